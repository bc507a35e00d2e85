package services_test

import (
	"errors"
	"strings"
	"testing"

	"candyshop/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrArtifactWrite, "ingest", "place", "write binary", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrArtifactWrite) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ingest", "place", "write binary"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestIsRejection(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrNotASubmission, "parse", "", "missing marker", nil), true},
		{services.Wrap(services.ErrSkipped, "ingest", "", "skip label", nil), true},
		{services.Wrap(services.ErrMissingRequiredArtifact, "ingest", "validate", "binary", nil), true},
		{services.Wrap(services.ErrNetwork, "source", "fetch", "timeout", errors.New("x")), false},
		{services.Wrap(services.ErrArtifactWrite, "ingest", "place", "disk full", nil), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := services.IsRejection(tc.err); got != tc.want {
			t.Errorf("IsRejection(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestUserMessageNamesMissingArtifact(t *testing.T) {
	err := services.Wrap(services.ErrMissingRequiredArtifact, "ingest", "validate", "no .bin file was attached", nil)
	msg := services.UserMessage(err)
	if !strings.Contains(msg, "no .bin file was attached") {
		t.Fatalf("expected reason in message, got %q", msg)
	}
	if strings.Contains(msg, "ingest") {
		t.Fatalf("expected stage detail to be hidden, got %q", msg)
	}
}

func TestUserMessageGenericForInternalErrors(t *testing.T) {
	msg := services.UserMessage(errors.New("stack trace goes here"))
	if strings.Contains(msg, "stack trace") {
		t.Fatalf("internal detail leaked: %q", msg)
	}
	if services.UserMessage(nil) != "" {
		t.Fatal("expected empty message for nil error")
	}
}
