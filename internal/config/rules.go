package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Rule is a named pattern stored in a rule file.
type Rule struct {
	Name        string   `yaml:"name" toml:"name" json:"name"`
	Language    string   `yaml:"language" toml:"language" json:"language"`
	Pattern     string   `yaml:"pattern" toml:"pattern" json:"pattern"`
	Description string   `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty" toml:"tags,omitempty" json:"tags,omitempty"`
}

// RuleSet is the top level of a rule file.
type RuleSet struct {
	Rules []Rule `yaml:"rules" toml:"rules" json:"rules"`
}

// LoadRules reads a rule file. ".toml" files are decoded as TOML; anything
// else as YAML, which also accepts JSON.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var set RuleSet
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &set); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := ValidateRules(set.Rules); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set.Rules, nil
}

// SaveRules writes rules to path in the format its extension selects.
func SaveRules(path string, rules []Rule) error {
	if err := ValidateRules(rules); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	set := RuleSet{Rules: rules}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.NewEncoder(f).Encode(set)
	} else {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		err = enc.Encode(set)
		if err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// ValidateRules requires a name and a pattern on every rule and unique
// names.
func ValidateRules(rules []Rule) error {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if strings.TrimSpace(r.Name) == "" {
			return &Error{Field: fmt.Sprintf("rules[%d].name", i), Message: "is required"}
		}
		if strings.TrimSpace(r.Pattern) == "" {
			return &Error{Field: fmt.Sprintf("rules[%d].pattern", i), Message: "is required"}
		}
		if seen[r.Name] {
			return &Error{Field: fmt.Sprintf("rules[%d].name", i), Message: fmt.Sprintf("duplicate rule %q", r.Name)}
		}
		seen[r.Name] = true
	}
	return nil
}
