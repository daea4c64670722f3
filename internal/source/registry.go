package source

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Registry maps file extensions to the provider that handles them.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Provider)}
}

// Register adds a provider for all extensions it claims. Registering a
// provider for an already-claimed extension returns an error so a
// misconfigured deployment fails at startup instead of picking a winner
// silently.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range p.Extensions() {
		ext = strings.ToLower(ext)
		if existing, ok := r.byExt[ext]; ok {
			return fmt.Errorf("extension %s already claimed by provider %s", ext, existing.GetFormatID())
		}
		r.byExt[ext] = p
	}
	return nil
}

// ForPath returns the provider claiming the path's extension. The match is
// case-insensitive.
func (r *Registry) ForPath(path string) (Provider, bool) {
	ext := strings.ToLower(filepath.Ext(path))

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExt[ext]
	return p, ok
}

// Extensions returns all registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
