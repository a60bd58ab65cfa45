// Package filter decides which paths belong in the file index.
//
// The same Policy value is evaluated by the crawler and by the watcher so the
// bulk and incremental paths never disagree about eligibility.
package filter

import (
	"fmt"
	"os"
	"path"
	"strings"

	"file-server/internal/logging"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Policy is the ignore filter configuration. It is read-only to the indexer.
type Policy struct {
	// WhitelistMode makes GlobPatterns the set of paths to include instead
	// of the set of paths to exclude.
	WhitelistMode bool     `yaml:"whitelist_mode" json:"whitelistMode"`
	GlobPatterns  []string `yaml:"glob_patterns" json:"globPatterns"`
	ExcludeHidden bool     `yaml:"exclude_hidden" json:"excludeHidden"`
}

// NormalizePath converts separators to forward slashes.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// Matches reports whether any glob pattern matches the normalized path.
// Invalid patterns never match.
func (p Policy) Matches(filePath string) bool {
	normalized := NormalizePath(filePath)
	for _, pattern := range p.GlobPatterns {
		matched, err := doublestar.Match(pattern, normalized)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// Eligible reports whether filePath should be indexed under the policy.
func (p Policy) Eligible(filePath string) bool {
	matches := p.Matches(filePath)

	if p.WhitelistMode && !matches {
		return false
	}
	if !p.WhitelistMode && matches {
		return false
	}
	if p.ExcludeHidden && isHidden(filePath) {
		return false
	}
	return true
}

func isHidden(filePath string) bool {
	return strings.HasPrefix(path.Base(NormalizePath(filePath)), ".")
}

// Validate returns an error naming the first pattern doublestar cannot parse.
func (p Policy) Validate() error {
	for _, pattern := range p.GlobPatterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}
	return nil
}

// LoadPolicyFile reads a YAML policy file on top of base. Keys missing from
// the file keep their values from base.
func LoadPolicyFile(filePath string, base Policy) (Policy, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return base, fmt.Errorf("failed to read filter config: %w", err)
	}

	policy := base
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return base, fmt.Errorf("failed to parse filter config %s: %w", filePath, err)
	}

	if err := policy.Validate(); err != nil {
		logging.Warn("Filter config %s: %v (pattern will never match)", filePath, err)
	}

	return policy, nil
}
