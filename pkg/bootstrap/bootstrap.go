package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"warden-hq/callisto/pkg/audit"
	"warden-hq/callisto/pkg/policy/engine"
)

// SetupFunc is a policy setup entry point. It receives the audit bridge to
// install a callback on and, optionally, a pre-built policy engine. A nil
// engine means no config path was resolved; the entry point builds its own.
type SetupFunc func(bridge *audit.Bridge, eng *engine.Engine) error

var (
	registryMu sync.RWMutex
	registry   = make(map[string]SetupFunc)
)

// Register publishes a setup entry point under its contract name. The
// policy package calls this from an init function; importing the package
// is what makes its entry points available.
func Register(name string, fn SetupFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// lookup resolves an entry point by name. The second return reports
// whether the policy package published it.
func lookup(name string) (SetupFunc, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// SetupError indicates a policy setup entry point failed. A missing entry
// point is not a SetupError; absence is tolerated silently.
type SetupError struct {
	// EntryPoint is the contract name that was invoked.
	EntryPoint string

	// Cause is the underlying failure.
	Cause error
}

// Error returns the error message.
func (e *SetupError) Error() string {
	return fmt.Sprintf("policy setup %q failed: %v", e.EntryPoint, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *SetupError) Unwrap() error {
	return e.Cause
}

// Bootstrap runs a policy setup entry point at most once.
type Bootstrap struct {
	once      sync.Once
	installed bool
	logger    *slog.Logger
	watchCtx  context.Context
}

// Option configures a Bootstrap.
type Option func(*Bootstrap)

// WithHotReload makes Install watch the policy config file for changes
// until ctx is cancelled.
func WithHotReload(ctx context.Context) Option {
	return func(bs *Bootstrap) { bs.watchCtx = ctx }
}

// New creates a bootstrap with the given logger. A nil logger falls back
// to the process default.
func New(logger *slog.Logger, opts ...Option) *Bootstrap {
	if logger == nil {
		logger = slog.Default()
	}
	bs := &Bootstrap{logger: logger.With("component", "bootstrap")}
	for _, opt := range opts {
		opt(bs)
	}
	return bs
}

// Installed reports whether a setup entry point ran.
func (bs *Bootstrap) Installed() bool {
	return bs.installed
}

// Install selects the entry point for mode and invokes it once. A second
// call on the same Bootstrap is a no-op returning nil.
//
// When configPath is non-empty a policy engine is constructed with it and
// passed to the entry point. A missing entry point is swallowed: the
// process continues unprotected. Any other setup failure is returned as a
// *SetupError.
func (bs *Bootstrap) Install(bridge *audit.Bridge, mode Mode, configPath string) error {
	var err error
	bs.once.Do(func() {
		err = bs.install(bridge, mode, configPath)
	})
	return err
}

func (bs *Bootstrap) install(bridge *audit.Bridge, mode Mode, configPath string) error {
	name := mode.EntryPoint()

	fn, ok := lookup(name)
	if !ok {
		// The policy package is optional; its absence must never block
		// the hosted program.
		bs.logger.Debug("policy entry point not available, continuing unprotected",
			"entry_point", name,
		)
		return nil
	}

	var eng *engine.Engine
	if configPath != "" {
		var err error
		eng, err = engine.New(configPath, engine.WithLogger(bs.logger))
		if err != nil {
			return &SetupError{EntryPoint: name, Cause: err}
		}
		if bs.watchCtx != nil {
			go func() {
				if err := eng.Watch(bs.watchCtx); err != nil && bs.watchCtx.Err() == nil {
					bs.logger.Warn("policy config watch ended", "error", err)
				}
			}()
		}
	}

	if err := fn(bridge, eng); err != nil {
		return &SetupError{EntryPoint: name, Cause: err}
	}

	bs.installed = true
	bs.logger.Debug("policy hook installed",
		"mode", string(mode),
		"entry_point", name,
		"config_path", configPath,
	)
	return nil
}

// defaultBootstrap is the process-level instance used by the launcher.
var defaultBootstrap = New(nil)

// Install runs the process-level bootstrap. A second invocation in the
// same process is a no-op.
func Install(bridge *audit.Bridge, mode Mode, configPath string) error {
	return defaultBootstrap.Install(bridge, mode, configPath)
}
