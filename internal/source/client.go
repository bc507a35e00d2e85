// Package source fetches pull request submissions from the GitHub REST API.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"candyshop/internal/config"
	"candyshop/internal/services"
	"candyshop/internal/submission"
)

// MaxAttachmentBytes bounds a single attachment download.
const MaxAttachmentBytes = 64 << 20

// PullRequest is the subset of a pull request the ingest pipeline needs.
type PullRequest struct {
	Number      int
	Title       string
	Body        string
	URL         string
	Author      string
	Labels      []string
	Attachments []submission.Attachment
}

// Client talks to the GitHub REST API for one repository.
type Client struct {
	apiBase    string
	slug       string
	token      string
	policy     services.RetryPolicy
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the retry policy taken from the configuration.
func WithRetryPolicy(policy services.RetryPolicy) Option {
	return func(c *Client) { c.policy = policy }
}

// New creates a client for the repository named in cfg.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	slug := strings.Trim(strings.TrimSpace(cfg.Repository.Slug), "/")
	if slug == "" {
		return nil, services.Wrap(services.ErrConfiguration, "source", "new", "repository slug required", nil)
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.Repository.APIBaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "source", "new", "api base url required", nil)
	}
	client := &Client{
		apiBase:    base,
		slug:       slug,
		token:      strings.TrimSpace(cfg.Repository.Token),
		policy:     cfg.RetryPolicy(),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type apiPull struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	User    struct {
		Login string `json:"login"`
	} `json:"user"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

type apiFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	RawURL   string `json:"raw_url"`
}

// Fetch returns the pull request with its labels and attachments. Attachments
// are collected from links in the description first, then from files the
// pull request adds; a name seen twice keeps its first source.
func (c *Client) Fetch(ctx context.Context, number int) (*PullRequest, error) {
	if number <= 0 {
		return nil, services.Wrap(services.ErrValidation, "source", "fetch", fmt.Sprintf("invalid pull request number %d", number), nil)
	}

	var pull apiPull
	path := fmt.Sprintf("/repos/%s/pulls/%d", c.slug, number)
	if err := c.getJSON(ctx, path, &pull); err != nil {
		return nil, err
	}

	pr := &PullRequest{
		Number: pull.Number,
		Title:  pull.Title,
		Body:   pull.Body,
		URL:    pull.HTMLURL,
		Author: pull.User.Login,
	}
	for _, label := range pull.Labels {
		if name := strings.TrimSpace(label.Name); name != "" {
			pr.Labels = append(pr.Labels, name)
		}
	}

	seen := make(map[string]struct{})
	add := func(att submission.Attachment) {
		key := strings.ToLower(att.Name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		pr.Attachments = append(pr.Attachments, att)
	}
	for _, att := range LinkedAttachments(pull.Body) {
		add(att)
	}

	var files []apiFile
	if err := c.getJSON(ctx, path+"/files?per_page=100", &files); err != nil {
		return nil, err
	}
	for _, file := range files {
		if file.Status == "removed" || file.RawURL == "" {
			continue
		}
		name := file.Filename
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		add(submission.Attachment{Name: name, URL: file.RawURL})
	}
	return pr, nil
}

// Download returns the bytes behind an attachment handle.
func (c *Client) Download(ctx context.Context, att submission.Attachment) ([]byte, error) {
	if strings.TrimSpace(att.URL) == "" {
		return nil, services.Wrap(services.ErrValidation, "source", "download", fmt.Sprintf("attachment %s has no url", att.Name), nil)
	}
	var data []byte
	err := services.Retry(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
		if err != nil {
			return services.Permanent{Err: fmt.Errorf("build request: %w", err)}
		}
		c.decorate(req, false)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return services.Wrap(services.ErrNetwork, "source", "download", fmt.Sprintf("fetch %s failed", att.Name), err)
		}
		defer resp.Body.Close()
		if err := statusError("download", att.Name, resp); err != nil {
			return err
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, MaxAttachmentBytes+1))
		if err != nil {
			return services.Wrap(services.ErrNetwork, "source", "download", fmt.Sprintf("read %s failed", att.Name), err)
		}
		if len(body) > MaxAttachmentBytes {
			return services.Permanent{Err: services.Wrap(services.ErrValidation, "source", "download",
				fmt.Sprintf("attachment %s is larger than %d MiB", att.Name, MaxAttachmentBytes>>20), nil)}
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Comment posts a comment on the pull request conversation.
func (c *Client) Comment(ctx context.Context, number int, body string) error {
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("encode comment: %w", err)
	}
	endpoint := fmt.Sprintf("%s/repos/%s/issues/%d/comments", c.apiBase, c.slug, number)
	return services.Retry(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return services.Permanent{Err: fmt.Errorf("build request: %w", err)}
		}
		c.decorate(req, true)
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return services.Wrap(services.ErrNetwork, "source", "comment", "post comment failed", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return statusError("comment", fmt.Sprintf("#%d", number), resp)
	})
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	return services.Retry(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
		if err != nil {
			return services.Permanent{Err: fmt.Errorf("build request: %w", err)}
		}
		c.decorate(req, true)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return services.Wrap(services.ErrNetwork, "source", "get", path, err)
		}
		defer resp.Body.Close()
		if err := statusError("get", path, resp); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return services.Wrap(services.ErrNetwork, "source", "decode", path, err)
		}
		return nil
	})
}

// decorate sets GitHub headers. The token is only sent to the API host so it
// never leaks to third-party attachment hosts.
func (c *Client) decorate(req *http.Request, api bool) {
	req.Header.Set("User-Agent", "candyshop/1.0")
	if api {
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	}
	if c.token == "" {
		return
	}
	if api || sameHost(req.URL, c.apiBase) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func sameHost(target *url.URL, base string) bool {
	parsed, err := url.Parse(base)
	if err != nil || target == nil {
		return false
	}
	return strings.EqualFold(parsed.Host, target.Host)
}

// statusError maps non-2xx responses. Not-found and other client errors are
// permanent; rate limiting and server errors are retried.
func statusError(op, subject string, resp *http.Response) error {
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return nil
	}
	msg := fmt.Sprintf("%s returned %d", subject, status)
	switch {
	case status == http.StatusNotFound:
		return services.Permanent{Err: services.Wrap(services.ErrNotFound, "source", op, msg, nil)}
	case status == http.StatusTooManyRequests || status >= 500:
		return services.Wrap(services.ErrNetwork, "source", op, msg, nil)
	case status == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return services.Wrap(services.ErrNetwork, "source", op, msg+" (rate limited)", nil)
	default:
		return services.Permanent{Err: services.Wrap(services.ErrNetwork, "source", op, msg, nil)}
	}
}
