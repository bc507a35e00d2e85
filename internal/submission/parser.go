package submission

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"candyshop/internal/services"
)

// DefaultSentinel is the first line every song submission starts with.
const DefaultSentinel = "IS SONG - DO NOT DELETE THIS LINE"

// Parse builds a Submission from a pull request body and its attachments. It
// returns ErrNotASubmission when the first non-blank line is not sentinel.
// The match is case-sensitive; whitespace around the marker line is ignored,
// as is the carriage return GitHub adds to edited descriptions.
func Parse(body string, attachments []Attachment, sentinel string) (*Submission, error) {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	body = normalizeText(body)

	lines := strings.Split(body, "\n")
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.TrimSpace(line) != sentinel {
			return nil, services.Wrap(services.ErrNotASubmission, "parse", "sentinel", "first line is not the submission marker", nil)
		}
		start = i + 1
		break
	}
	if start < 0 {
		return nil, services.Wrap(services.ErrNotASubmission, "parse", "sentinel", "description is empty", nil)
	}

	sub := &Submission{}
	for _, line := range lines[start:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		sub.set(key, coerce(key, strings.TrimSpace(value)))
	}

	for i := range attachments {
		att := attachments[i]
		switch att.Ext() {
		case "bin":
			sub.Binary = &att
		case "mid":
			sub.MIDI = &att
		case "wav", "mp3":
			sub.Preview = &att
		}
	}
	return sub, nil
}

// CheckLabels returns ErrSkipped when any label matches a skip label.
// Matching ignores case.
func CheckLabels(labels, skip []string) error {
	for _, label := range labels {
		for _, s := range skip {
			if strings.EqualFold(strings.TrimSpace(label), strings.TrimSpace(s)) {
				return services.Wrap(services.ErrSkipped, "parse", "labels", "pull request carries the "+s+" label", nil)
			}
		}
	}
	return nil
}

func normalizeText(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ReplaceAll(text, "\u00a0", "")
}

func coerce(key, value string) any {
	switch {
	case strings.EqualFold(key, FieldTracks), strings.EqualFold(key, FieldDuration):
		if strings.Contains(value, ".") {
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				return f
			}
			return value
		}
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		return value
	case strings.EqualFold(key, FieldTags):
		return splitList(value)
	default:
		return value
	}
}

func splitList(value string) []string {
	var out []string
	for _, token := range strings.Split(value, ",") {
		if token = strings.TrimSpace(token); token != "" {
			out = append(out, token)
		}
	}
	return out
}
