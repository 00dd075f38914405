package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"guardian-hq/sentinel/pkg/filter"
)

// ruleFile is the YAML document shape of a rule file.
type ruleFile struct {
	Rules []filter.Rule `yaml:"rules"`
}

// FileSource loads rule definitions from a YAML file or a directory of
// YAML files. It is the rule source for file-managed deployments and
// for the CLI's offline mode.
type FileSource struct {
	path string
}

// NewFileSource creates a file source for a .yaml/.yml file or a
// directory containing them.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the configured file or directory path.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads every rule file under the configured path. Directories are
// walked recursively; hidden files and non-YAML files are skipped.
func (s *FileSource) Load(ctx context.Context) ([]filter.Rule, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rule path %q: %w", s.path, err)
	}

	if !info.IsDir() {
		return loadRuleFile(s.path)
	}

	var rules []filter.Rule
	err = filepath.Walk(s.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && path != s.path {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !isYAMLFile(path) {
			return nil
		}

		fileRules, err := loadRuleFile(path)
		if err != nil {
			return err
		}
		rules = append(rules, fileRules...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rules, nil
}

// loadRuleFile parses one YAML rule file.
func loadRuleFile(path string) ([]filter.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %q: %w", path, err)
	}

	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rule file %q: %w", path, err)
	}

	return doc.Rules, nil
}

// isYAMLFile reports whether the path has a YAML extension.
func isYAMLFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
