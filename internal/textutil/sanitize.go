package textutil

import "strings"

// forbiddenChars lists characters stripped from path segments. The set matches
// the names already present in the published content tree, so changing it
// would orphan existing artifacts.
const forbiddenChars = ":/'\"?#%&{}\\<>*$!@+`|=."

// FilterFilename removes filesystem-unsafe characters from name. Whitespace is
// preserved so existing paths such as "Song Name (REV 1).bin" stay stable.
func FilterFilename(name string) string {
	if !strings.ContainsAny(name, forbiddenChars) {
		return name
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(forbiddenChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContainsForbidden reports whether name contains any character FilterFilename strips.
func ContainsForbidden(name string) bool {
	return strings.ContainsAny(name, forbiddenChars)
}

// ArchiveName converts a song title into an archive member name. Slashes
// become underscores; everything else is kept as the in-game menus show it.
func ArchiveName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "/", "_")
}
