package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Placeholders substituted by Render
const (
	PlaceholderQuery    = "{{query}}"
	PlaceholderProducts = "{{products}}"
)

// Prompt is a system message plus a user message template
type Prompt struct {
	// System is sent as the system message
	System string `yaml:"system"`

	// User may reference {{query}} and {{products}}
	User string `yaml:"user"`
}

// Set groups the prompts used across one search request
type Set struct {
	Enhance Prompt `yaml:"enhance"`
	Extract Prompt `yaml:"extract"`
	Format  Prompt `yaml:"format"`
}

// file is the on-disk shape of a PROMPTS_FILE
type file struct {
	Prompts Set `yaml:"prompts"`
}

// Render substitutes placeholders in the user template
func (p Prompt) Render(query, products string) string {
	r := strings.NewReplacer(PlaceholderQuery, query, PlaceholderProducts, products)
	return r.Replace(p.User)
}

// Load returns the default prompt set, overlaid with any prompts defined in the
// YAML file at path. An empty path yields the defaults.
func Load(path string) (*Set, error) {
	set := Defaults()
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var override file
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse prompts YAML: %w", err)
	}

	set.Enhance = merge(set.Enhance, override.Prompts.Enhance)
	set.Extract = merge(set.Extract, override.Prompts.Extract)
	set.Format = merge(set.Format, override.Prompts.Format)

	if err := validate(set); err != nil {
		return nil, fmt.Errorf("invalid prompts file: %w", err)
	}
	return set, nil
}

func merge(base, override Prompt) Prompt {
	if strings.TrimSpace(override.System) != "" {
		base.System = override.System
	}
	if strings.TrimSpace(override.User) != "" {
		base.User = override.User
	}
	return base
}

func validate(set *Set) error {
	if !strings.Contains(set.Enhance.User, PlaceholderQuery) {
		return fmt.Errorf("prompts.enhance.user must reference %s", PlaceholderQuery)
	}
	if !strings.Contains(set.Extract.User, PlaceholderQuery) {
		return fmt.Errorf("prompts.extract.user must reference %s", PlaceholderQuery)
	}
	if !strings.Contains(set.Format.User, PlaceholderProducts) {
		return fmt.Errorf("prompts.format.user must reference %s", PlaceholderProducts)
	}
	return nil
}
