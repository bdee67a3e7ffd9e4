package intake

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectNamespace prefixes every artifact path.
const ObjectNamespace = "prescriptions"

const defaultExt = "bin"

// ObjectPath builds "prescriptions/<unixMillis>_<token>.<ext>". The
// extension is taken from the original file name, lowercased and limited
// to alphanumerics; names without one get "bin".
func ObjectPath(now time.Time, token, fileName string) string {
	return fmt.Sprintf("%s/%d_%s.%s", ObjectNamespace, now.UnixMilli(), token, extension(fileName))
}

func extension(fileName string) string {
	ext := strings.TrimPrefix(path.Ext(strings.ReplaceAll(fileName, `\`, "/")), ".")
	ext = strings.ToLower(ext)
	if ext == "" || len(ext) > 10 {
		return defaultExt
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultExt
		}
	}
	return ext
}

// randomToken returns 12 hex characters from a random UUID.
func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
