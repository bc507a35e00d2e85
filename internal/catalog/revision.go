package catalog

import (
	"fmt"

	"candyshop/internal/textutil"
)

// CountPriorRevisions counts entries that share the artifact folder and stem
// of game and song. Names are compared after filename filtering, so "Foo!"
// and "Foo" are the same game; the comparison is otherwise case-sensitive.
func CountPriorRevisions(cat *Catalog, game, song string) int {
	if cat == nil {
		return 0
	}
	game, song = textutil.FilterFilename(game), textutil.FilterFilename(song)
	count := 0
	for _, entry := range cat.entries {
		if textutil.FilterFilename(entry.Game) == game && textutil.FilterFilename(entry.Song) == song {
			count++
		}
	}
	return count
}

// RevisionSuffix returns the artifact filename suffix for a submission with
// prior earlier entries: empty for the first, " (REV n)" afterwards.
func RevisionSuffix(prior int) string {
	if prior <= 0 {
		return ""
	}
	return fmt.Sprintf(" (REV %d)", prior)
}
