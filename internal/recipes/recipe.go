package recipes

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/fixd/internal/cwe"
)

// Recipe is one guidance document.
type Recipe struct {
	// ID is the recipe's position in the store and in the vector index.
	ID       int
	Category string
	Text     string
	// Embedding is set by Store.Embed.
	Embedding []float32
	// Source is the file the recipe was read from.
	Source string
}

// frontMatter is the optional YAML header of a recipe document.
type frontMatter struct {
	Category string `yaml:"category"`
	CWE      string `yaml:"cwe"`
}

// markerScanLines is how far into a document a category marker may appear.
const markerScanLines = 5

var markerLine = regexp.MustCompile(`(?i)^\s*(?:cwe|category)\s*:\s*(\S.*?)\s*$`)

// parse splits a document into its category and body. name is the file name
// used when the document declares no category.
func parse(name string, data []byte) (category, body string, err error) {
	text := string(bytes.TrimPrefix(data, []byte("\ufeff")))
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if header, rest, ok := splitFrontMatter(text); ok {
		var fm frontMatter
		if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
			return "", "", err
		}
		text = rest
		switch {
		case fm.Category != "":
			category = fm.Category
		case fm.CWE != "":
			category = fm.CWE
		}
	}

	body = strings.TrimSpace(text)

	if category == "" {
		category, body = markerCategory(body)
	}
	if category == "" {
		category = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	return canonicalCategory(category), body, nil
}

// splitFrontMatter returns the YAML between leading "---" lines.
func splitFrontMatter(text string) (header, rest string, ok bool) {
	if !strings.HasPrefix(text, "---\n") {
		return "", text, false
	}
	end := strings.Index(text[4:], "\n---")
	if end < 0 {
		return "", text, false
	}
	header = text[4 : 4+end]
	rest = text[4+end+4:]
	rest = strings.TrimPrefix(rest, "\n")
	return header, rest, true
}

// markerCategory scans the first lines of body for a category marker and
// returns it with the marker line removed from body.
func markerCategory(body string) (category, rest string) {
	lines := strings.Split(body, "\n")
	for i := 0; i < len(lines) && i < markerScanLines; i++ {
		if m := markerLine.FindStringSubmatch(lines[i]); m != nil {
			lines = append(lines[:i], lines[i+1:]...)
			return m[1], strings.TrimSpace(strings.Join(lines, "\n"))
		}
	}
	return "", body
}

func canonicalCategory(tag string) string {
	if id, ok := cwe.Resolve(tag); ok {
		return id
	}
	return strings.TrimSpace(tag)
}
