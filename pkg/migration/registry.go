package migration

import (
	"fmt"
	"sort"
	"sync"
)

// Registry はバージョンをキーにマイグレーション定義を保持する。
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register は定義を登録する。同じバージョンの二重登録はpanicする。
func (r *Registry) Register(version string, d Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d == nil {
		panic(fmt.Sprintf("migration: Register definition is nil for %q", version))
	}
	if _, dup := r.defs[version]; dup {
		panic(fmt.Sprintf("migration: Register called twice for %q", version))
	}
	r.defs[version] = d
}

// Lookup は登録済みの定義を返す。
func (r *Registry) Lookup(version string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[version]
	return d, ok
}

// Versions は登録済みのバージョンを文字列順で返す。
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.defs))
	for v := range r.defs {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

var defaultRegistry = NewRegistry()

// Register はパッケージ既定のRegistryに定義を登録する。
// migrations パッケージの init から呼び出される。
func Register(version string, d Definition) {
	defaultRegistry.Register(version, d)
}

// Default はパッケージ既定のRegistryを返す。
func Default() *Registry {
	return defaultRegistry
}
