// Package engine implements the embedding surface: a long-lived Bash
// instance over one persistent filesystem, exposing a single suspendable
// exec(script) plus the small file-management and plugin-registration
// calls an embedder needs.
//
// Each Exec call starts from the engine's configured base environment and
// cwd rather than inheriting mutations from a previous call — only the
// filesystem persists across calls. This is realised by building a fresh
// interp.Interp (fresh root frame, fresh governor) for every Exec, all
// wired to the same vfs.FS.
package engine

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vercel-labs/just-bash/govern"
	"github.com/vercel-labs/just-bash/interp"
	"github.com/vercel-labs/just-bash/plugin"
	"github.com/vercel-labs/just-bash/vfs"
)

// Options configures a new Engine's constructor argument.
type Options struct {
	Files           map[string]string
	Env             map[string]string
	CWD             string
	ExecutionLimits govern.Limits
	Network         interp.NetworkEvaluator
	CustomCommands  []plugin.Plugin

	// FS overrides the default InMemory filesystem seeded from Files,
	// e.g. with a ReadOnlyHost, Overlay or Mountable variant.
	FS vfs.FS

	Fetch  func(ctx context.Context, url string) ([]byte, error)
	Sleep  func(ctx context.Context, ms int) error
	Random func() float64

	// ConfigYAML is a convenience: a YAML document supplying
	// env/cwd/executionLimits, decoded and schema-validated
	// before being merged under whatever the Go fields above already set
	// explicitly. Go fields always win over the YAML document.
	ConfigYAML []byte
}

// yamlConfig is the subset of Options a YAML document can supply.
type yamlConfig struct {
	Env             map[string]string `yaml:"env" json:"env"`
	CWD             string            `yaml:"cwd" json:"cwd"`
	ExecutionLimits struct {
		MaxCallDepth      int `yaml:"maxCallDepth" json:"maxCallDepth"`
		MaxCommandCount   int `yaml:"maxCommandCount" json:"maxCommandCount"`
		MaxLoopIterations int `yaml:"maxLoopIterations" json:"maxLoopIterations"`
		MaxAwkIterations  int `yaml:"maxAwkIterations" json:"maxAwkIterations"`
		MaxSedIterations  int `yaml:"maxSedIterations" json:"maxSedIterations"`
		MaxJqIterations   int `yaml:"maxJqIterations" json:"maxJqIterations"`
	} `yaml:"executionLimits" json:"executionLimits"`
}

// Engine is one embeddable shell instance: one VFS, one base environment
// frame, one plugin registry.
type Engine struct {
	fs      vfs.FS
	baseEnv map[string]string
	baseCWD string
	limits  govern.Limits
	plugins *plugin.Registry
	hooks   interp.Hooks
}

// New builds an Engine from opts, seeding the filesystem from opts.Files
// (or opts.FS if supplied) and registering opts.CustomCommands.
func New(opts Options) (*Engine, error) {
	if len(opts.ConfigYAML) > 0 {
		merged, err := mergeYAMLConfig(opts)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		opts = merged
	}
	if err := validateOptions(opts); err != nil {
		return nil, fmt.Errorf("engine: invalid options: %w", err)
	}

	fs := opts.FS
	if fs == nil {
		fs = vfs.NewInMemoryFrom(opts.Files)
	}

	cwd := opts.CWD
	if cwd == "" {
		cwd = "/"
	}

	registry := plugin.NewRegistry()
	for _, p := range opts.CustomCommands {
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("engine: registering plugin %q: %w", p.Name(), err)
		}
	}

	env := opts.Env
	if env == nil {
		env = map[string]string{}
	}

	return &Engine{
		fs:      fs,
		baseEnv: env,
		baseCWD: cwd,
		limits:  opts.ExecutionLimits,
		plugins: registry,
		hooks: interp.Hooks{
			Fetch:   opts.Fetch,
			Sleep:   opts.Sleep,
			Random:  opts.Random,
			Network: opts.Network,
		},
	}, nil
}

func mergeYAMLConfig(opts Options) (Options, error) {
	var cfg yamlConfig
	if err := yaml.Unmarshal(opts.ConfigYAML, &cfg); err != nil {
		return opts, fmt.Errorf("parsing ConfigYAML: %w", err)
	}
	if err := validateYAMLDoc(opts.ConfigYAML); err != nil {
		return opts, err
	}
	if opts.Env == nil && len(cfg.Env) > 0 {
		opts.Env = cfg.Env
	}
	if opts.CWD == "" {
		opts.CWD = cfg.CWD
	}
	if opts.ExecutionLimits == (govern.Limits{}) {
		opts.ExecutionLimits = govern.Limits{
			MaxCallDepth:      cfg.ExecutionLimits.MaxCallDepth,
			MaxCommandCount:   cfg.ExecutionLimits.MaxCommandCount,
			MaxLoopIterations: cfg.ExecutionLimits.MaxLoopIterations,
			MaxAwkIterations:  cfg.ExecutionLimits.MaxAwkIterations,
			MaxSedIterations:  cfg.ExecutionLimits.MaxSedIterations,
			MaxJqIterations:   cfg.ExecutionLimits.MaxJqIterations,
		}
	}
	return opts, nil
}

// Overrides supplies a different env or cwd for a single Exec call (spec
// §6 `exec(script, overrides?)`), without touching the engine's base
// state for subsequent calls.
type Overrides struct {
	Env map[string]string
	CWD string
}

// Result is one exec call's outcome.
type Result struct {
	Stdout   string            `json:"stdout"`
	Stderr   string            `json:"stderr"`
	ExitCode int               `json:"exitCode"`
	Env      map[string]string `json:"env"`
}

// Exec parses and runs script against a fresh root frame derived from the
// engine's base env/cwd (or overrides, for this call only), backed by the
// engine's persistent filesystem.
func (e *Engine) Exec(script string, overrides *Overrides) Result {
	env := e.baseEnv
	cwd := e.baseCWD
	if overrides != nil {
		if overrides.Env != nil {
			env = overrides.Env
		}
		if overrides.CWD != "" {
			cwd = overrides.CWD
		}
	}

	ip := interp.New(e.fs, cwd, env, e.limits, e.plugins, e.hooks)
	stdout, stderr, exitCode, exportedEnv := ip.Exec(script)
	return Result{Stdout: stdout, Stderr: stderr, ExitCode: exitCode, Env: exportedEnv}
}

// WriteFile/ReadFile/Mkdir are the direct filesystem-management calls
// exposed alongside exec.
func (e *Engine) WriteFile(path, content string) error {
	return e.fs.WriteFile(vfs.ResolvePath(e.baseCWD, path), []byte(content), vfs.DefaultFileMode)
}

func (e *Engine) ReadFile(path string) (string, error) {
	b, err := e.fs.ReadFile(vfs.ResolvePath(e.baseCWD, path))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (e *Engine) Mkdir(path string, recursive bool) error {
	return e.fs.Mkdir(vfs.ResolvePath(e.baseCWD, path), recursive)
}

// RegisterPlugin adds p to the engine's live plugin registry, available
// to every subsequent Exec call.
func (e *Engine) RegisterPlugin(p plugin.Plugin) error {
	return e.plugins.Register(p)
}

// FS exposes the underlying filesystem for embedders that need direct
// access (e.g. to build another VFS variant layered on top).
func (e *Engine) FS() vfs.FS { return e.fs }
