package testsupport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"candyshop/internal/services"
	"candyshop/internal/source"
	"candyshop/internal/submission"
)

// Source is an in-memory pull request source. Attachment URLs are keys into
// Files; a URL listed in Failing returns a network error.
type Source struct {
	mu        sync.Mutex
	Pulls     map[int]*source.PullRequest
	Files     map[string][]byte
	Failing   map[string]bool
	Downloads []string
}

// NewSource returns an empty fake source.
func NewSource() *Source {
	return &Source{
		Pulls:   make(map[int]*source.PullRequest),
		Files:   make(map[string][]byte),
		Failing: make(map[string]bool),
	}
}

// AddPull registers a pull request whose attachments are name → bytes.
func (s *Source) AddPull(number int, body string, labels []string, files map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr := &source.PullRequest{
		Number: number,
		Body:   body,
		URL:    fmt.Sprintf("https://github.com/owner/shop/pull/%d", number),
		Labels: labels,
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data := files[name]
		url := fmt.Sprintf("mem://%d/%s", number, name)
		s.Files[url] = data
		pr.Attachments = append(pr.Attachments, submission.Attachment{Name: name, URL: url, Size: int64(len(data))})
	}
	s.Pulls[number] = pr
}

// Fail makes downloads of the named attachment on pull request number fail.
func (s *Source) Fail(number int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failing[fmt.Sprintf("mem://%d/%s", number, name)] = true
}

func (s *Source) Fetch(_ context.Context, number int) (*source.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.Pulls[number]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "source", "get", fmt.Sprintf("pull request %d", number), nil)
	}
	copyPR := *pr
	return &copyPR, nil
}

func (s *Source) Download(_ context.Context, att submission.Attachment) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Downloads = append(s.Downloads, att.URL)
	if s.Failing[att.URL] {
		return nil, services.Wrap(services.ErrNetwork, "source", "download", att.Name, nil)
	}
	data, ok := s.Files[att.URL]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "source", "download", att.Name, nil)
	}
	return append([]byte(nil), data...), nil
}
