package tenant

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultDisplayName is used when a tenant has no branding configured.
const DefaultDisplayName = "FlowForge"

// Context is the tenant branding consumed verbatim by prompts.
type Context struct {
	ID                string `yaml:"id" json:"id"`
	DisplayName       string `yaml:"display_name" json:"display_name"`
	WelcomeMessage    string `yaml:"welcome_message,omitempty" json:"welcome_message,omitempty"`
	CompletionMessage string `yaml:"completion_message,omitempty" json:"completion_message,omitempty"`
}

// Name returns the display name or DefaultDisplayName.
func (c Context) Name() string {
	if n := strings.TrimSpace(c.DisplayName); n != "" {
		return n
	}
	return DefaultDisplayName
}

// Directory resolves tenant branding by ID.
type Directory interface {
	Lookup(id string) Context
}

// StaticDirectory is an in-memory Directory, optionally loaded from YAML.
type StaticDirectory struct {
	mu   sync.RWMutex
	byID map[string]Context
}

func NewStaticDirectory(tenants ...Context) *StaticDirectory {
	d := &StaticDirectory{byID: make(map[string]Context, len(tenants))}
	for _, t := range tenants {
		d.Put(t)
	}
	return d
}

type fileFormat struct {
	Tenants []Context `yaml:"tenants"`
}

// LoadFile reads a YAML document of the form `tenants: [{id, display_name, ...}]`.
// An empty path yields an empty directory.
func LoadFile(path string) (*StaticDirectory, error) {
	if strings.TrimSpace(path) == "" {
		return NewStaticDirectory(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes the tenant YAML document.
func Parse(raw []byte) (*StaticDirectory, error) {
	var doc fileFormat
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse tenants: %w", err)
	}
	for i, t := range doc.Tenants {
		if strings.TrimSpace(t.ID) == "" {
			return nil, fmt.Errorf("parse tenants: entry %d has no id", i)
		}
	}
	return NewStaticDirectory(doc.Tenants...), nil
}

func (d *StaticDirectory) Put(t Context) {
	t.ID = strings.TrimSpace(t.ID)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[t.ID] = t
}

// Lookup returns the tenant, or a default-branded context carrying id.
func (d *StaticDirectory) Lookup(id string) Context {
	id = strings.TrimSpace(id)
	if d != nil {
		d.mu.RLock()
		t, ok := d.byID[id]
		d.mu.RUnlock()
		if ok {
			return t
		}
	}
	return Context{ID: id, DisplayName: DefaultDisplayName}
}
