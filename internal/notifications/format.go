package notifications

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	colorAdded    = 0x2ECC71
	colorRejected = 0xE74C3C
	colorPrune    = 0x3498DB
	colorTest     = 0x95A5A6
)

type button struct {
	Label string
	URL   string
}

type attachment struct {
	Name string
	Data []byte
}

// message is the transport-neutral form of a notification: a title, fields,
// link buttons, and an optional file.
type message struct {
	Title       string
	Description string
	URL         string
	Color       int
	Fields      []embedField
	Buttons     []button
	Attachment  *attachment
	Timestamp   time.Time
}

// embed renders the message as a Discord embed. Plain webhooks cannot send
// interactive components, so buttons become a row of markdown links.
func (m message) embed() embed {
	out := embed{
		Title:       m.Title,
		Description: m.Description,
		URL:         m.URL,
		Color:       m.Color,
		Fields:      m.Fields,
	}
	if len(m.Buttons) > 0 {
		links := make([]string, 0, len(m.Buttons))
		for _, b := range m.Buttons {
			links = append(links, fmt.Sprintf("[%s](%s)", b.Label, b.URL))
		}
		out.Fields = append(out.Fields, embedField{Name: "Links", Value: strings.Join(links, " | ")})
	}
	if !m.Timestamp.IsZero() {
		out.Timestamp = m.Timestamp.UTC().Format(time.RFC3339)
	}
	return out
}

// build converts an event into a message. It reports false for events that
// produce nothing.
//
// Payload keys:
//   - entry_added: game, song, category, composers, converters, tags ([]string),
//     duration (float64), revision (int), audio_url, pr_url, preview_name, preview ([]byte)
//   - submission_rejected: pr (int), pr_url, reason
//   - prune_completed: candidates, deleted, retained, marked (int), dry_run (bool)
func build(event Event, payload Payload) (message, bool) {
	switch event {
	case EventEntryAdded:
		return entryAdded(payload), true
	case EventSubmissionRejected:
		return message{
			Title:       fmt.Sprintf("Submission #%d rejected", payload.int("pr")),
			Description: payload.string("reason"),
			URL:         payload.string("pr_url"),
			Color:       colorRejected,
		}, true
	case EventPruneCompleted:
		title := "Preview prune complete"
		if payload.bool("dry_run") {
			title = "Preview prune dry run"
		}
		return message{
			Title: title,
			Color: colorPrune,
			Fields: []embedField{
				{Name: "Candidates", Value: strconv.Itoa(payload.int("candidates")), Inline: true},
				{Name: "Deleted", Value: strconv.Itoa(payload.int("deleted")), Inline: true},
				{Name: "Retained", Value: strconv.Itoa(payload.int("retained")), Inline: true},
				{Name: "Entries pruned", Value: strconv.Itoa(payload.int("marked")), Inline: true},
			},
		}, true
	case EventTest:
		return message{Title: "candyshop test notification", Description: "Webhook delivery works.", Color: colorTest}, true
	default:
		return message{}, false
	}
}

func entryAdded(payload Payload) message {
	game := payload.string("game")
	song := payload.string("song")
	msg := message{
		Title: fmt.Sprintf("New song: %s - %s", game, song),
		Color: colorAdded,
	}
	add := func(name, value string, inline bool) {
		if strings.TrimSpace(value) != "" {
			msg.Fields = append(msg.Fields, embedField{Name: name, Value: value, Inline: inline})
		}
	}
	add("Game", game, true)
	add("Song", song, true)
	add("Category", payload.string("category"), true)
	add("Composers", payload.string("composers"), true)
	add("Converters", payload.string("converters"), true)
	if d, ok := payload["duration"].(float64); ok && d > 0 {
		add("Duration", formatDuration(d), true)
	}
	if rev := payload.int("revision"); rev > 0 {
		add("Revision", strconv.Itoa(rev), true)
	}
	if tags, ok := payload["tags"].([]string); ok && len(tags) > 0 {
		add("Tags", strings.Join(tags, ", "), false)
	}
	if audio := payload.string("audio_url"); audio != "" {
		msg.Buttons = append(msg.Buttons, button{Label: "Preview", URL: audio})
	}
	if pr := payload.string("pr_url"); pr != "" {
		msg.Buttons = append(msg.Buttons, button{Label: "Pull request", URL: pr})
		msg.URL = pr
	}
	if data, ok := payload["preview"].([]byte); ok && len(data) > 0 {
		name := payload.string("preview_name")
		if name == "" {
			name = "preview"
		}
		msg.Attachment = &attachment{Name: name, Data: data}
	}
	return msg
}

func formatDuration(seconds float64) string {
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func (p Payload) string(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func (p Payload) int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) bool(key string) bool {
	v, _ := p[key].(bool)
	return v
}
