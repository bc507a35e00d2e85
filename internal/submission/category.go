package submission

import "strings"

var categoryAliases = map[string]string{
	"bgm":        "bgm",
	"event":      "events",
	"events":     "events",
	"major":      "majoritems",
	"majoritem":  "majoritems",
	"majoritems": "majoritems",
	"minor":      "minoritems",
	"minoritem":  "minoritems",
	"minoritems": "minoritems",
	"fanfare":    "fanfares",
	"fanfares":   "fanfares",
	"ambient":    "ambient",
}

// NormalizeCategory maps a category shorthand to its canonical name. Matching
// ignores case and inner spaces ("Major Item" is "majoritems"). Unknown
// categories are returned unchanged.
func NormalizeCategory(category string) string {
	trimmed := strings.TrimSpace(category)
	key := strings.ToLower(strings.Join(strings.Fields(trimmed), ""))
	if canonical, ok := categoryAliases[key]; ok {
		return canonical
	}
	return trimmed
}
