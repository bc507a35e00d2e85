package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotASubmission          = errors.New("not a song submission")
	ErrSkipped                 = errors.New("submission skipped")
	ErrMissingRequiredArtifact = errors.New("missing required artifact")
	ErrArtifactWrite           = errors.New("artifact write failure")
	ErrNetwork                 = errors.New("network error")
	ErrCatalogCorrupt          = errors.New("catalog corrupt")
	ErrConcurrentModification  = errors.New("concurrent modification")
	ErrValidation              = errors.New("validation error")
	ErrConfiguration           = errors.New("configuration error")
	ErrNotFound                = errors.New("not found")
	ErrAlreadyIngested         = errors.New("already ingested")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRejection reports whether err means the submission itself was unusable, as
// opposed to an infrastructure failure worth retrying.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotASubmission) ||
		errors.Is(err, ErrSkipped) ||
		errors.Is(err, ErrMissingRequiredArtifact) ||
		errors.Is(err, ErrValidation)
}

// UserMessage renders a one-line explanation suitable for posting back to a
// contributor. Internal detail stays in the logs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	detail := rejectionDetail(err)
	switch {
	case errors.Is(err, ErrNotASubmission):
		return "This pull request is not a song submission: the first line must be the submission marker."
	case errors.Is(err, ErrSkipped):
		return "This pull request is labelled to skip ingestion."
	case errors.Is(err, ErrMissingRequiredArtifact):
		return "The submission is missing a required file: " + detail + "."
	case errors.Is(err, ErrValidation):
		return "The submission could not be read: " + detail + "."
	case errors.Is(err, ErrAlreadyIngested):
		return "This pull request was already added to the catalog."
	case errors.Is(err, ErrConcurrentModification):
		return "The catalog changed while this submission was processed; it will be retried."
	case errors.Is(err, ErrNetwork):
		return "A service needed to process this submission was unavailable; it will be retried."
	default:
		return "The submission could not be processed because of an internal error."
	}
}

// rejectionDetail extracts the message segment a Wrap call attached, which is
// written for humans, dropping the marker prefix and any wrapped cause.
func rejectionDetail(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		msg = msg[idx+2:]
	}
	parts := strings.Split(msg, ": ")
	if len(parts) >= 3 {
		return parts[2]
	}
	return parts[len(parts)-1]
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
