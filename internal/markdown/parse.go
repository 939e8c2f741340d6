// Package markdown reads and writes Markdown files with YAML frontmatter.
package markdown

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document represents a Markdown file with YAML frontmatter.
type Document struct {
	Frontmatter map[string]any
	Body        string
}

// ParseFile reads a Markdown file and extracts YAML frontmatter and body.
// Frontmatter is expected at the top of the file between two lines containing only "---".
func ParseFile(path string) (Document, error) {
	fm, hasFM, body, err := split(path)
	if err != nil {
		return Document{}, err
	}
	d := Document{Frontmatter: map[string]any{}, Body: body}
	if hasFM {
		if err := yaml.Unmarshal([]byte(fm), &d.Frontmatter); err != nil {
			return Document{}, err
		}
	}
	return d, nil
}

// ReadFile decodes the frontmatter of path into fm and returns the body.
func ReadFile(path string, fm any) (string, error) {
	raw, hasFM, body, err := split(path)
	if err != nil {
		return "", err
	}
	if hasFM {
		if err := yaml.Unmarshal([]byte(raw), fm); err != nil {
			return "", err
		}
	}
	return body, nil
}

func split(path string) (fm string, hasFM bool, body string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, "", err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	peek, err := br.Peek(3)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, "", err
	}
	hasFM = string(peek) == "---"
	var fmBuf, bodyBuf strings.Builder

	if hasFM {
		if _, err := br.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
			return "", false, "", err
		}
		for {
			l, err := br.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return "", false, "", err
			}
			if strings.TrimSpace(l) == "---" {
				break
			}
			fmBuf.WriteString(l)
			if errors.Is(err, io.EOF) {
				break
			}
		}
	}
	for {
		l, err := br.ReadString('\n')
		bodyBuf.WriteString(l)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", false, "", err
		}
	}
	return fmBuf.String(), hasFM, bodyBuf.String(), nil
}
