package scapeid

import "strings"

var aliases = map[string]string{
	"forage":         "forage",
	"foraging":       "forage",
	"antforage":      "forage",
	"track":          "forage",
	"tmaze":          "t-maze",
	"maze":           "t-maze",
	"discrimination": "t-maze",
}

// Normalize lowercases a scape name, folds "_" and spaces into "-" and
// resolves known aliases. Unknown names come back in folded form.
func Normalize(name string) string {
	folded := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(name)))
	folded = strings.Trim(folded, "-")
	if canonical, ok := aliases[strings.ReplaceAll(folded, "-", "")]; ok {
		return canonical
	}
	return folded
}
