// Package frontmatter extracts catalog metadata from the YAML header of a
// content document.
package frontmatter

import (
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Metadata is the subset of front matter the catalog indexes.
type Metadata struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
}

// Parse reads the front matter block at the start of content. The block must
// open and close with a line holding only "---". Content without a block, or
// with a block that is not valid YAML, yields empty metadata and ok=false.
func Parse(content string) (md Metadata, ok bool) {
	content = strings.TrimPrefix(content, "\ufeff")
	lines := strings.Split(content, "\n")
	if len(lines) < 2 || strings.TrimRight(lines[0], "\r ") != delimiter {
		return Metadata{}, false
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r ") == delimiter {
			end = i
			break
		}
	}
	if end < 0 {
		return Metadata{}, false
	}
	block := strings.Join(lines[1:end], "\n")
	if err := yaml.Unmarshal([]byte(block), &md); err != nil {
		return Metadata{}, false
	}
	md.Name = strings.TrimSpace(md.Name)
	md.Description = strings.TrimSpace(md.Description)
	return md, true
}

// Describe returns the name and description for the document at p. The name
// falls back to the file name without its extension.
func Describe(p, content string) (name, description string) {
	md, _ := Parse(content)
	name = md.Name
	if name == "" {
		base := path.Base(p)
		name = strings.TrimSuffix(base, path.Ext(base))
	}
	return name, md.Description
}
