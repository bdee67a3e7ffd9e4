package fault

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

var errBoom = errors.New("unexpected failure")

func guarded(logger zerolog.Logger, fn func() error) (err error) {
	defer Recover(logger, "test.op", errBoom, &err)
	return fn()
}

func TestRecover_ConvertsPanic(t *testing.T) {
	var buf bytes.Buffer
	err := guarded(zerolog.New(&buf), func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if !strings.Contains(err.Error(), "test.op") {
		t.Errorf("expected op in message, got %q", err.Error())
	}
	if !strings.Contains(buf.String(), `"op":"test.op"`) {
		t.Errorf("expected op to be logged, got %s", buf.String())
	}
}

func TestRecover_KeepsNormalResult(t *testing.T) {
	want := errors.New("ordinary")
	if err := guarded(zerolog.Nop(), func() error { return want }); err != want {
		t.Errorf("expected ordinary error to pass through, got %v", err)
	}
	if err := guarded(zerolog.Nop(), func() error { return nil }); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
