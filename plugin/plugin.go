// Package plugin implements the host-extensibility surface: a plugin
// registers under a name and an API version, and the interpreter's command
// dispatcher tries it after functions and builtins and before the $PATH
// script search.
//
// The registry follows the same RWMutex-guarded map plus global
// convenience-function shape as a database/sql-style driver registry.
package plugin

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/vercel-labs/just-bash/govern"
	"github.com/vercel-labs/just-bash/vfs"
)

// Result is what a plugin invocation produces: a {stdout, stderr,
// exitCode} contract.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Context is the sandboxed view of the shell a plugin executes against
//.
type Context struct {
	FS     vfs.FS
	CWD    string
	Env    map[string]string
	Stdin  io.Reader
	Limits govern.Limits

	Fetch  func(ctx context.Context, url string) ([]byte, error)
	Sleep  func(ctx context.Context, ms int) error
	Random func() float64
}

// Plugin is a host-registered command. APIVersion is a semver string
// ("v1.2.0") checked against the registry's accepted range at Register
// time, so a plugin built against an incompatible contract revision
// fails loudly instead of misbehaving at call time.
type Plugin interface {
	Name() string
	APIVersion() string
	Execute(ctx context.Context, argv []string, pctx *Context) (Result, error)
}

// MinAPIVersion / MaxAPIVersion bound the plugin contract versions this
// build of the interpreter accepts.
const (
	MinAPIVersion = "v1.0.0"
	MaxAPIVersion = "v1.999.0"
)

// Registry holds registered plugins by command name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Plugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Plugin)}
}

// Register adds a plugin under its own Name(), rejecting API versions
// outside [MinAPIVersion, MaxAPIVersion].
func (r *Registry) Register(p Plugin) error {
	v := p.APIVersion()
	if !semver.IsValid(v) {
		return fmt.Errorf("plugin %q: invalid API version %q", p.Name(), v)
	}
	if semver.Compare(v, MinAPIVersion) < 0 || semver.Compare(v, MaxAPIVersion) > 0 {
		return fmt.Errorf("plugin %q: API version %q outside supported range [%s, %s]",
			p.Name(), v, MinAPIVersion, MaxAPIVersion)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[p.Name()] = p
	return nil
}

// Lookup returns the plugin registered under name, if any.
func (r *Registry) Lookup(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.entries[name]
	return p, ok
}

// Names lists every registered plugin name in map iteration order; the
// result is not sorted.
func Names(r *Registry) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for n := range r.entries {
		out = append(out, n)
	}
	return out
}
