package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"candyshop/internal/config"
	"candyshop/internal/services"
)

const userAgent = "candyshop/1.0"

// Event identifies the kind of notification being published.
type Event string

const (
	EventEntryAdded         Event = "entry_added"
	EventSubmissionRejected Event = "submission_rejected"
	EventPruneCompleted     Event = "prune_completed"
	EventTest               Event = "test"
)

// Payload carries event-specific values. Recognized keys are documented on
// each builder in format.go; unknown keys are ignored.
type Payload map[string]any

// Service publishes events to the configured chat sink.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a Discord webhook notifier when a webhook URL is
// configured. Otherwise a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	endpoint := strings.TrimSpace(cfg.Notifications.WebhookURL)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &webhookService{
		endpoint: endpoint,
		username: cfg.Notifications.Username,
		client:   &http.Client{Timeout: timeout},
	}
}

type webhookService struct {
	endpoint string
	username string
	client   *http.Client
}

func (w *webhookService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := build(event, payload)
	if !ok {
		return nil
	}
	return w.send(ctx, msg)
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type webhookBody struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []embed `json:"embeds,omitempty"`
}

func (w *webhookService) send(ctx context.Context, msg message) error {
	if w == nil || w.client == nil {
		return nil
	}

	body := webhookBody{Username: w.username, Embeds: []embed{msg.embed()}}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	var (
		reader      io.Reader
		contentType string
	)
	if msg.Attachment != nil && len(msg.Attachment.Data) > 0 {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="payload_json"`)
		header.Set("Content-Type", "application/json")
		part, err := writer.CreatePart(header)
		if err != nil {
			return fmt.Errorf("build webhook form: %w", err)
		}
		if _, err := part.Write(encoded); err != nil {
			return fmt.Errorf("build webhook form: %w", err)
		}
		file, err := writer.CreateFormFile("files[0]", msg.Attachment.Name)
		if err != nil {
			return fmt.Errorf("build webhook form: %w", err)
		}
		if _, err := file.Write(msg.Attachment.Data); err != nil {
			return fmt.Errorf("build webhook form: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("build webhook form: %w", err)
		}
		reader, contentType = &buf, writer.FormDataContentType()
	} else {
		reader, contentType = bytes.NewReader(encoded), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, reader)
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrNetwork, "notify", "webhook", "chat webhook unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrNetwork, "notify", "webhook",
			fmt.Sprintf("chat webhook returned %d", resp.StatusCode),
			fmt.Errorf("%s", strings.TrimSpace(string(detail))))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
