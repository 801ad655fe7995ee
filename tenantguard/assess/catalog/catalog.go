// Package catalog holds the compliance check metadata modules consult during
// Normalize: titles, severities, remediation text, and reference links, keyed
// by check ID. The built-in catalog ships embedded; deployments can load a
// customized copy from disk.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/TenantGuard/go-api/tenantguard"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Check is the static metadata for one compliance check.
type Check struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Title       string               `yaml:"title"`
	Description string               `yaml:"description"`
	Severity    tenantguard.Severity `yaml:"severity"`
	Category    string               `yaml:"category"`
	Remediation string               `yaml:"remediation"`
	References  []string             `yaml:"references"`
}

// Catalog is an ordered, ID-keyed set of checks.
type Catalog struct {
	byID  map[string]Check
	order []string
}

type catalogFile struct {
	Checks []Check `yaml:"checks"`
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse check catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]Check, len(file.Checks))}
	for _, check := range file.Checks {
		if check.ID == "" {
			return nil, fmt.Errorf("check catalog entry missing id (title %q)", check.Title)
		}
		if _, dup := c.byID[check.ID]; dup {
			return nil, fmt.Errorf("duplicate check id %s in catalog", check.ID)
		}
		if check.Severity.Rank() == 0 {
			return nil, fmt.Errorf("check %s has unknown severity %q", check.ID, check.Severity)
		}
		c.byID[check.ID] = check
		c.order = append(c.order, check.ID)
	}
	return c, nil
}

// LoadFile reads a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read check catalog %s: %w", path, err)
	}
	return Parse(data)
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded built-in catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultsYAML)
		if err != nil {
			// The embedded catalog is part of the build; failing to parse it
			// is a programming error.
			panic(fmt.Sprintf("embedded check catalog invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Get returns the check for an ID.
func (c *Catalog) Get(id string) (Check, bool) {
	check, ok := c.byID[id]
	return check, ok
}

// IDs returns the check IDs in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of checks.
func (c *Catalog) Len() int {
	return len(c.order)
}
