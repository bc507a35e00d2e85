package source

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"candyshop/internal/submission"
)

var (
	markdownLink = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^)\s]+)\)`)
	bareLink     = regexp.MustCompile(`https?://[^\s<>()\[\]"']+`)
)

var attachmentExts = map[string]struct{}{
	"bin": {}, "mid": {}, "wav": {}, "mp3": {},
}

// LinkedAttachments extracts attachment links from a pull request
// description. A markdown link's text names the file when it carries a
// recognized extension; otherwise the last URL path segment does. Links
// without a recognized extension are ignored.
func LinkedAttachments(body string) []submission.Attachment {
	var out []submission.Attachment
	consumed := make(map[string]struct{})

	for _, match := range markdownLink.FindAllStringSubmatch(body, -1) {
		text, link := strings.TrimSpace(match[1]), match[2]
		consumed[link] = struct{}{}
		name := text
		if !hasAttachmentExt(name) {
			name = nameFromURL(link)
		}
		if hasAttachmentExt(name) {
			out = append(out, submission.Attachment{Name: name, URL: link})
		}
	}
	for _, link := range bareLink.FindAllString(body, -1) {
		link = strings.TrimRight(link, ".,;:!?")
		if _, ok := consumed[link]; ok {
			continue
		}
		if name := nameFromURL(link); hasAttachmentExt(name) {
			out = append(out, submission.Attachment{Name: name, URL: link})
		}
	}
	return out
}

func nameFromURL(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	name := path.Base(parsed.Path)
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	if name == "/" || name == "." {
		return ""
	}
	return name
}

func hasAttachmentExt(name string) bool {
	ext := (submission.Attachment{Name: name}).Ext()
	_, ok := attachmentExts[ext]
	return ok
}
