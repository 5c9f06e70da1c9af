// Package catalog holds the lookup tables and canned content used when the
// generative backend cannot produce questions or feedback.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"gwi.com/interview-coach/internal/store"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Catalog struct {
	Levels            map[string]store.Difficulty `yaml:"levels" validate:"required"`
	DefaultDifficulty store.Difficulty            `yaml:"defaultDifficulty" validate:"required,oneof=easy medium hard"`
	Roles             map[string][]string         `yaml:"roles" validate:"required,dive,min=1"`
	DefaultCategories []string                    `yaml:"defaultCategories" validate:"required,min=1,dive,required"`
	DefaultQuestions  []string                    `yaml:"defaultQuestions" validate:"required,min=10,max=12,dive,required"`
	GenericFeedback   string                      `yaml:"genericFeedback" validate:"required"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog file, falling back to the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	levels := make(map[string]store.Difficulty, len(c.Levels))
	for level, d := range c.Levels {
		levels[normalize(level)] = d
	}
	c.Levels = levels

	roles := make(map[string][]string, len(c.Roles))
	for role, cats := range c.Roles {
		roles[normalize(role)] = cats
	}
	c.Roles = roles
	return &c, nil
}

func (c *Catalog) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	for level, d := range c.Levels {
		if !d.Valid() {
			return fmt.Errorf("invalid catalog: level %q maps to unknown difficulty %q", level, d)
		}
	}
	return nil
}

// DifficultyFor maps an interview level to a question difficulty. Unknown
// levels get the default difficulty.
func (c *Catalog) DifficultyFor(level string) store.Difficulty {
	if d, ok := c.Levels[normalize(level)]; ok {
		return d
	}
	return c.DefaultDifficulty
}

// CategoriesFor returns the question categories associated with a role.
func (c *Catalog) CategoriesFor(role string) []string {
	cats, ok := c.Roles[normalize(role)]
	if !ok {
		cats = c.DefaultCategories
	}
	return append([]string(nil), cats...)
}

func (c *Catalog) StaticQuestions() []string {
	return append([]string(nil), c.DefaultQuestions...)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
