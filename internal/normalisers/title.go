package normalisers

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxTitleLength bounds titles guessed from document text.
const maxTitleLength = 200

// TitleFromPath derives a readable title from a file name.
func TitleFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}

// TitleFromText returns the first non-blank line shorter than 200 characters,
// or "" when there is none.
func TitleFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || utf8.RuneCountInString(line) > maxTitleLength {
			continue
		}
		return line
	}
	return ""
}
