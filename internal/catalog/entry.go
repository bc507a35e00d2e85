package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Catalog JSON keys. The spaced note keys match the historical catalog file.
const (
	keyGame            = "Game"
	keySong            = "Song"
	keyCategory        = "Category"
	keyComposers       = "Composers"
	keyConverters      = "Converters"
	keyBinary          = "Binary"
	keyAudio           = "Audio"
	keyDuration        = "Duration"
	keyTracks          = "Tracks"
	keyTags            = "Tags"
	keyVerified        = "Verified"
	keyDate            = "Date"
	keyUpdateNotes     = "Update Notes"
	keyAdditionalNotes = "Additional Notes"
	keyPruned          = "pruned"
)

var knownKeys = []string{
	keyGame, keySong, keyCategory, keyComposers, keyConverters, keyBinary,
	keyAudio, keyDuration, keyTracks, keyTags, keyVerified, keyDate,
	keyUpdateNotes, keyAdditionalNotes, keyPruned,
}

// Entry is one song submission in the catalog.
//
// Binary holds a repository-relative path. Audio holds a public URL (or, for
// older entries, a relative path). Keys the catalog does not model, and known
// keys whose stored value has an unexpected type, are kept verbatim in Extra
// so a load/save cycle never drops data.
type Entry struct {
	Game            string
	Song            string
	Category        string
	Composers       string
	Converters      string
	Binary          string
	Audio           string
	Duration        *float64
	Tracks          *int
	Tags            []string
	Verified        bool
	Date            string
	UpdateNotes     string
	AdditionalNotes string
	Pruned          bool
	Extra           map[string]json.RawMessage
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	out := e
	if e.Duration != nil {
		d := *e.Duration
		out.Duration = &d
	}
	if e.Tracks != nil {
		t := *e.Tracks
		out.Tracks = &t
	}
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	if e.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(e.Extra))
		for k, v := range e.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// MarshalJSON writes known keys in a fixed order followed by any extra keys
// sorted by name. Empty optional fields are omitted.
func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		encoded, err := encodeValue(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		writeRaw(&buf, &first, key, encoded)
		return nil
	}
	fromExtra := func(key string) {
		if raw, ok := e.Extra[key]; ok {
			writeRaw(&buf, &first, key, raw)
		}
	}

	for _, key := range knownKeys {
		var (
			value any
			set   bool
		)
		switch key {
		case keyGame:
			value, set = e.Game, e.Game != "" || e.Extra[keyGame] == nil
		case keySong:
			value, set = e.Song, e.Song != "" || e.Extra[keySong] == nil
		case keyCategory:
			value, set = e.Category, e.Category != ""
		case keyComposers:
			value, set = e.Composers, e.Composers != ""
		case keyConverters:
			value, set = e.Converters, e.Converters != ""
		case keyBinary:
			value, set = e.Binary, e.Binary != ""
		case keyAudio:
			value, set = e.Audio, e.Audio != ""
		case keyDuration:
			value, set = e.Duration, e.Duration != nil
		case keyTracks:
			value, set = e.Tracks, e.Tracks != nil
		case keyTags:
			value, set = e.Tags, len(e.Tags) > 0
		case keyVerified:
			value, set = e.Verified, e.Verified
		case keyDate:
			value, set = e.Date, e.Date != ""
		case keyUpdateNotes:
			value, set = e.UpdateNotes, e.UpdateNotes != ""
		case keyAdditionalNotes:
			value, set = e.AdditionalNotes, e.AdditionalNotes != ""
		case keyPruned:
			value, set = e.Pruned, e.Pruned
		}
		if !set {
			fromExtra(key)
			continue
		}
		if err := write(key, value); err != nil {
			return nil, err
		}
	}

	extras := make([]string, 0, len(e.Extra))
	for key := range e.Extra {
		if !isKnownKey(key) {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		fromExtra(key)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a catalog object, keeping anything it cannot type.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entry{}
	for key, value := range raw {
		if !e.decodeKnown(key, value) {
			var compacted bytes.Buffer
			if err := json.Compact(&compacted, value); err != nil {
				return fmt.Errorf("compact %s: %w", key, err)
			}
			if e.Extra == nil {
				e.Extra = make(map[string]json.RawMessage)
			}
			e.Extra[key] = json.RawMessage(compacted.Bytes())
		}
	}
	return nil
}

func (e *Entry) decodeKnown(key string, value json.RawMessage) bool {
	if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		return false
	}
	switch key {
	case keyGame:
		return decodeString(value, &e.Game)
	case keySong:
		return decodeString(value, &e.Song)
	case keyCategory:
		return decodeString(value, &e.Category)
	case keyComposers:
		return decodeString(value, &e.Composers)
	case keyConverters:
		return decodeString(value, &e.Converters)
	case keyBinary:
		return decodeString(value, &e.Binary)
	case keyAudio:
		return decodeString(value, &e.Audio)
	case keyDuration:
		var d float64
		if json.Unmarshal(value, &d) != nil {
			return false
		}
		e.Duration = &d
		return true
	case keyTracks:
		var t int
		if json.Unmarshal(value, &t) != nil {
			return false
		}
		e.Tracks = &t
		return true
	case keyTags:
		var tags []string
		if json.Unmarshal(value, &tags) != nil || len(tags) == 0 {
			return false
		}
		e.Tags = tags
		return true
	case keyVerified:
		return json.Unmarshal(value, &e.Verified) == nil && e.Verified
	case keyDate:
		return decodeString(value, &e.Date)
	case keyUpdateNotes:
		return decodeString(value, &e.UpdateNotes)
	case keyAdditionalNotes:
		return decodeString(value, &e.AdditionalNotes)
	case keyPruned:
		return json.Unmarshal(value, &e.Pruned) == nil && e.Pruned
	}
	return false
}

func decodeString(value json.RawMessage, dst *string) bool {
	return json.Unmarshal(value, dst) == nil && *dst != ""
}

func isKnownKey(key string) bool {
	for _, known := range knownKeys {
		if key == known {
			return true
		}
	}
	return false
}

func writeRaw(buf *bytes.Buffer, first *bool, key string, value []byte) {
	if !*first {
		buf.WriteByte(',')
	}
	*first = false
	encodedKey, _ := encodeValue(key)
	buf.Write(encodedKey)
	buf.WriteByte(':')
	buf.Write(value)
}

func encodeValue(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
