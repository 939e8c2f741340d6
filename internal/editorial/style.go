package editorial

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
)

//go:embed house_style.md
var houseStyle string

// LoadStyle returns the house style template, read from path when set.
func LoadStyle(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return houseStyle, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read style file: %w", err)
	}
	return string(b), nil
}

var linkTargetRe = regexp.MustCompile(`\]\([^)]*\)`)

// WordCount counts words in markdown, ignoring link targets.
func WordCount(md string) int {
	md = linkTargetRe.ReplaceAllString(md, "]")
	n := 0
	for _, f := range strings.Fields(md) {
		if strings.Trim(f, "#*_->|[]`") != "" {
			n++
		}
	}
	return n
}
