// Package classifier maps filesystem paths to junk categories.
package classifier

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/security"
)

// Category is the semantic class of a path
type Category string

const (
	Cache       Category = "cache"
	Log         Category = "log"
	DerivedData Category = "derived_data"
	Other       Category = "other"
	Protected   Category = "protected"
)

// IsJunk reports whether items of this category are offered for cleanup
func (c Category) IsJunk() bool {
	return c == Cache || c == Log || c == DerivedData
}

// Rule assigns a category to everything below Root
type Rule struct {
	Root     string
	Category Category
}

// Classifier is safe for concurrent use once built
type Classifier struct {
	rules     []Rule
	validator *security.PathValidator
	excludes  []string
}

// New builds a classifier. Rules are matched longest root first.
// Paths accepted by validator.IsProtectedPath or matching an exclude glob
// are always Protected.
func New(rules []Rule, validator *security.PathValidator, excludes []string) *Classifier {
	if validator == nil {
		validator = security.NewPathValidator()
	}

	sorted := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Root == "" {
			continue
		}
		sorted = append(sorted, Rule{Root: filepath.Clean(r.Root), Category: r.Category})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Root) > len(sorted[j].Root)
	})

	return &Classifier{
		rules:     sorted,
		validator: validator,
		excludes:  append([]string(nil), excludes...),
	}
}

// RulesFromPlatform converts platform junk roots into rules
func RulesFromPlatform(roots []platform.JunkRoot) []Rule {
	rules := make([]Rule, 0, len(roots))
	for _, r := range roots {
		rules = append(rules, Rule{Root: r.Path, Category: Category(r.Kind)})
	}
	return rules
}

// Classify returns the category of path. It performs no I/O.
func (c *Classifier) Classify(path string, isDir bool) Category {
	clean := filepath.Clean(path)

	if c.validator.IsProtectedPath(clean) || security.MatchesAny(clean, c.excludes) {
		return Protected
	}

	for _, r := range c.rules {
		if under(clean, r.Root) {
			// The root directory itself is a container, not an item.
			if isDir && clean == r.Root {
				return Other
			}
			return r.Category
		}
	}
	return Other
}

// Rules returns the rules in match order
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

func under(path, root string) bool {
	if path == root {
		return true
	}
	if root == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
