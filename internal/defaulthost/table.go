// Package defaulthost loads the per-environment default host table.
package defaulthost

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Table maps an environment name to the canonical host for that environment.
// It is loaded once and never modified.
type Table map[string]string

// LoadTable reads a YAML mapping such as:
//
//	production: www.example.com
//	staging: staging.example.com
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("defaulthost: read %s: %w", path, err)
	}

	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("defaulthost: parse %s: %w", path, err)
	}
	if t == nil {
		t = Table{}
	}
	return t, nil
}

// Lookup returns the default host for env. Empty hosts count as absent.
func (t Table) Lookup(env string) (string, bool) {
	host, ok := t[env]
	if !ok || host == "" {
		return "", false
	}
	return host, true
}
