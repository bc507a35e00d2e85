package submission

import (
	"strings"

	"candyshop/internal/textutil"
)

// Well-known field keys.
const (
	FieldGame            = "Game"
	FieldSong            = "Song"
	FieldCategory        = "Category"
	FieldComposers       = "Composers"
	FieldConverters      = "Converters"
	FieldTags            = "Tags"
	FieldTracks          = "Tracks"
	FieldDuration        = "Duration"
	FieldNotes           = "Notes"
	FieldUpdateNotes     = "Update Notes"
	FieldAdditionalNotes = "Additional Notes"
)

// Attachment references one file attached to a pull request. URL is the
// handle the source uses to fetch its bytes.
type Attachment struct {
	Name string
	URL  string
	Size int64
}

// Ext returns the lower-cased file extension without the dot.
func (a Attachment) Ext() string {
	name := strings.ToLower(a.Name)
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return name[idx+1:]
}

// Field is one parsed "Key: value" pair. Value is a string, an int, a
// float64, or a []string depending on the key.
type Field struct {
	Key   string
	Value any
}

// Submission is the parsed, pre-persistence form of a pull request.
type Submission struct {
	Fields  []Field
	Binary  *Attachment
	MIDI    *Attachment
	Preview *Attachment
}

// Get returns the value for key using a case-insensitive match.
func (s *Submission) Get(key string) (any, bool) {
	for _, field := range s.Fields {
		if strings.EqualFold(field.Key, key) {
			return field.Value, true
		}
	}
	return nil, false
}

// String returns the value for key as text. Numbers that were coerced keep
// their original spelling only through the typed accessors, so this is meant
// for free-text fields.
func (s *Submission) String(key string) string {
	value, ok := s.Get(key)
	if !ok {
		return ""
	}
	if text, ok := value.(string); ok {
		return text
	}
	return ""
}

func (s *Submission) set(key string, value any) {
	for i, field := range s.Fields {
		if strings.EqualFold(field.Key, key) {
			s.Fields[i].Value = value
			return
		}
	}
	s.Fields = append(s.Fields, Field{Key: key, Value: value})
}

// Game returns the game title.
func (s *Submission) Game() string { return s.String(FieldGame) }

// Song returns the song title.
func (s *Submission) Song() string { return s.String(FieldSong) }

// Category returns the category with shorthand expanded.
func (s *Submission) Category() string { return NormalizeCategory(s.String(FieldCategory)) }

// Tags returns the ordered tag list.
func (s *Submission) Tags() []string {
	value, ok := s.Get(FieldTags)
	if !ok {
		return nil
	}
	tags, _ := value.([]string)
	return tags
}

// Tracks returns the track count when it parsed as an integer.
func (s *Submission) Tracks() (int, bool) {
	value, ok := s.Get(FieldTracks)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case int:
		return v, true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// Duration returns a submitter-supplied duration in seconds when numeric.
func (s *Submission) Duration() (float64, bool) {
	value, ok := s.Get(FieldDuration)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// Notes returns the additional and update notes. Explicit fields win over the
// combined "Notes" field, which holds "additional|update". Segments after
// the second are ignored.
func (s *Submission) Notes() (additional, update string) {
	if combined := s.String(FieldNotes); combined != "" {
		parts := strings.Split(combined, "|")
		additional = strings.TrimSpace(parts[0])
		if len(parts) > 1 {
			update = strings.TrimSpace(parts[1])
		}
	}
	if v := s.String(FieldAdditionalNotes); v != "" {
		additional = v
	}
	if v := s.String(FieldUpdateNotes); v != "" {
		update = v
	}
	return additional, update
}

// Missing lists the required fields that are empty once unsafe filename
// characters are removed.
func (s *Submission) Missing() []string {
	var missing []string
	for _, key := range []string{FieldGame, FieldSong} {
		if strings.TrimSpace(textutil.FilterFilename(s.String(key))) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
