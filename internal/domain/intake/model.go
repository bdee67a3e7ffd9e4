package intake

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Gender is the patient's self-reported gender.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ParseGender accepts the form values case-insensitively ("Female").
func ParseGender(s string) (Gender, bool) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale, GenderOther:
		return g, true
	}
	return "", false
}

// UploadMethod records how the artifact was most likely captured.
type UploadMethod string

const (
	UploadVoice  UploadMethod = "voice"
	UploadCamera UploadMethod = "camera"
	UploadFile   UploadMethod = "file"
)

// uploadMethodByPrefix maps content type prefixes to upload methods. A type
// that matches none of them is a plain file.
var uploadMethodByPrefix = []struct {
	prefix string
	method UploadMethod
}{
	{"audio/", UploadVoice},
	{"image/", UploadCamera},
}

// ClassifyUploadMethod derives the upload method from a MIME type. It is
// total: every input maps to one of the three methods.
func ClassifyUploadMethod(contentType string) UploadMethod {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, m := range uploadMethodByPrefix {
		if strings.HasPrefix(ct, m.prefix) {
			return m.method
		}
	}
	return UploadFile
}

// Status is the review state of a submission.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

var statusRank = map[Status]int{
	StatusPending:    1,
	StatusProcessing: 2,
	StatusCompleted:  3,
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	_, ok := statusRank[st]
	return st, ok
}

// Before reports whether s comes strictly earlier than other in the
// pending, processing, completed lifecycle.
func (s Status) Before(other Status) bool {
	a, okA := statusRank[s]
	b, okB := statusRank[other]
	return okA && okB && a < b
}

// Submission is one stored prescription request. FileURL, FileType and
// FileName are set together or not at all.
type Submission struct {
	ID              uuid.UUID    `json:"id"`
	PatientName     string       `json:"patient_name"`
	Gender          Gender       `json:"gender"`
	Age             int          `json:"age"`
	PhoneNumber     string       `json:"phone_number"`
	ReferringDoctor *string      `json:"referring_doctor"`
	PrimaryQuestion string       `json:"primary_question"`
	UploadMethod    UploadMethod `json:"upload_method"`
	FileURL         *string      `json:"file_url"`
	FileType        *string      `json:"file_type"`
	FileName        *string      `json:"file_name"`
	Status          Status       `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
}

// HasArtifact reports whether the artifact reference is complete.
func (s *Submission) HasArtifact() bool {
	return s.FileURL != nil && s.FileType != nil && s.FileName != nil
}

// Form is the patient-entered metadata as received from the caller. Age
// stays a string so that non-numeric input can be reported as a field error.
type Form struct {
	PatientName     string `json:"patientName" form:"patientName"`
	Gender          string `json:"gender" form:"gender"`
	Age             string `json:"age" form:"age"`
	PhoneNumber     string `json:"phoneNumber" form:"phoneNumber"`
	ReferringDoctor string `json:"referringDoctor" form:"referringDoctor"`
	PrimaryQuestion string `json:"primaryQuestion" form:"primaryQuestion"`
}

// Artifact is the uploaded prescription file.
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
}
