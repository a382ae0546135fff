package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors lists the CSS selectors tried against the homepage, most specific
// first. Field selectors are evaluated relative to a matched block.
type Selectors struct {
	Blocks      []string `yaml:"blocks"`
	Name        []string `yaml:"name"`
	Description []string `yaml:"description"`
	Votes       []string `yaml:"votes"`
	Link        []string `yaml:"link"`
}

// DefaultSelectors returns the cascade for the current and previous homepage
// layouts.
func DefaultSelectors() Selectors {
	return Selectors{
		Blocks: []string{
			`div[data-test="product-item"]`,
			`section[data-test^="post-item"]`,
			`[data-test^="post-item"]`,
			`section[class*="styles_item"]`,
			`div[class*="styles_item"]`,
		},
		Name: []string{
			`[data-test="product-name"]`,
			`h3`,
			`a[data-test^="post-name"]`,
			`[class*="styles_title"]`,
		},
		Description: []string{
			`[data-test="product-description"]`,
			`[data-test="post-tagline"]`,
			`[class*="styles_tagline"]`,
			`p`,
		},
		Votes: []string{
			`span[data-test="vote-button"]`,
			`[data-test="vote-button"]`,
			`button[data-test^="vote"]`,
			`[class*="styles_voteCount"]`,
		},
		Link: []string{
			`a[data-test="product-name-link"]`,
			`a[data-test^="post-name"]`,
			`a[href^="/posts/"]`,
			`a[href^="/products/"]`,
		},
	}
}

// LoadSelectors reads a YAML selector file. Lists left out of the file keep
// their default values.
func LoadSelectors(path string) (Selectors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Selectors{}, fmt.Errorf("read selectors: %w", err)
	}

	var override Selectors
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Selectors{}, fmt.Errorf("parse selectors %s: %w", path, err)
	}

	merged := DefaultSelectors()
	if len(override.Blocks) > 0 {
		merged.Blocks = override.Blocks
	}
	if len(override.Name) > 0 {
		merged.Name = override.Name
	}
	if len(override.Description) > 0 {
		merged.Description = override.Description
	}
	if len(override.Votes) > 0 {
		merged.Votes = override.Votes
	}
	if len(override.Link) > 0 {
		merged.Link = override.Link
	}
	return merged, merged.Validate()
}

// Validate ensures every cascade has at least one selector.
func (s Selectors) Validate() error {
	lists := []struct {
		name  string
		items []string
	}{
		{"blocks", s.Blocks},
		{"name", s.Name},
		{"description", s.Description},
		{"votes", s.Votes},
		{"link", s.Link},
	}
	for _, l := range lists {
		if len(l.items) == 0 {
			return fmt.Errorf("%s selectors cannot be empty", l.name)
		}
		for i, sel := range l.items {
			if sel == "" {
				return fmt.Errorf("%s selector %d is empty", l.name, i)
			}
		}
	}
	return nil
}
