// Package persona holds the coach personalities. The registry is built once at
// startup and never mutated afterwards, so it is safe for concurrent use.
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/elishakaranja/Mindset-coach/internal/common"
)

// DefaultKey is used when neither the request nor the user picks a personality.
const DefaultKey = "sophia"

//go:embed personalities.yaml
var builtin []byte

type Personality struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Tagline     string `yaml:"tagline" json:"tagline"`
	Description string `yaml:"description" json:"description"`
	// Instruction conditions the model and is never sent to clients.
	Instruction string `yaml:"instruction" json:"-"`
}

// Info is the client-safe view of a Personality.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Tagline     string `json:"tagline"`
	Description string `json:"description"`
}

type Registry struct {
	byKey      map[string]Personality
	order      []string
	defaultKey string
}

type file struct {
	Default       string        `yaml:"default"`
	Personalities []Personality `yaml:"personalities"`
}

// Load parses the YAML at path, or the built-in set when path is empty.
func Load(path string) (*Registry, error) {
	data := builtin
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read personalities: %w", err)
		}
		data = b
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse personalities: %w", err)
	}
	def := f.Default
	if def == "" {
		def = DefaultKey
	}
	return New(def, f.Personalities...)
}

// MustBuiltin returns the embedded registry and panics if it is invalid.
func MustBuiltin() *Registry {
	r, err := Load("")
	if err != nil {
		panic(err)
	}
	return r
}

// New builds a registry; keys are normalized to lower case and the default key
// must be one of them.
func New(defaultKey string, ps ...Personality) (*Registry, error) {
	r := &Registry{byKey: make(map[string]Personality, len(ps))}
	for _, p := range ps {
		key := normalize(p.ID)
		if key == "" {
			return nil, fmt.Errorf("personality %q: empty id", p.Name)
		}
		if _, dup := r.byKey[key]; dup {
			return nil, fmt.Errorf("personality %q: duplicate id", key)
		}
		if strings.TrimSpace(p.Instruction) == "" {
			return nil, fmt.Errorf("personality %q: empty instruction", key)
		}
		p.ID = key
		r.byKey[key] = p
		r.order = append(r.order, key)
	}
	r.defaultKey = normalize(defaultKey)
	if _, ok := r.byKey[r.defaultKey]; !ok {
		return nil, fmt.Errorf("default personality %q is not registered", defaultKey)
	}
	return r, nil
}

// Get looks a personality up case-insensitively.
func (r *Registry) Get(key string) (Personality, error) {
	p, ok := r.byKey[normalize(key)]
	if !ok {
		return Personality{}, fmt.Errorf("%w: personality %q not found, available: %s",
			common.ErrNotFound, key, strings.Join(r.order, ", "))
	}
	return p, nil
}

// List returns public metadata in declaration order.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.order))
	for _, k := range r.order {
		p := r.byKey[k]
		out = append(out, Info{ID: p.ID, Name: p.Name, Tagline: p.Tagline, Description: p.Description})
	}
	return out
}

func (r *Registry) DefaultKey() string { return r.defaultKey }

func (r *Registry) Has(key string) bool {
	_, ok := r.byKey[normalize(key)]
	return ok
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
