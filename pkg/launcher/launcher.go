package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"warden-hq/callisto/pkg/audit"
	"warden-hq/callisto/pkg/bootstrap"
	"warden-hq/callisto/pkg/journal"
	"warden-hq/callisto/pkg/journal/storage"
	"warden-hq/callisto/pkg/telemetry/logging"
	"warden-hq/callisto/pkg/telemetry/metrics"
)

// Launcher boots the runtime and runs the hosted program.
type Launcher struct {
	settings Settings
	logger   *slog.Logger
}

// New creates a launcher with the given settings.
func New(settings Settings) *Launcher {
	return &Launcher{
		settings: settings,
		logger:   slog.Default().With("component", "launcher"),
	}
}

// Run executes the boot sequence for argv (the arguments after the
// program name) and returns the process exit code. The sequence is
// ordered; any failure before runtime initialization is reported to
// stderr with exit code 1.
func (l *Launcher) Run(ctx context.Context, argv []string) int {
	level := "info"
	if l.settings.Debug {
		level = "debug"
	}
	if _, err := logging.Setup(logging.Config{Level: level}); err == nil {
		l.logger = slog.Default().With("component", "launcher")
	}

	// Argument conversion happens before any runtime state exists; its
	// failure is the one launcher-owned exit code.
	args, err := ConvertArgs(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	inv, err := ParseInvocation(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	l.logger.Debug("launcher starting",
		"enabled", l.settings.Enabled,
		"mode", string(l.settings.Mode),
		"config_path", l.settings.ConfigPath,
		"runtime_home", l.settings.RuntimeHome,
		"script", inv.Script,
	)

	L := lua.NewState(lua.Options{IncludeGoStackTrace: l.settings.Debug})
	defer L.Close()

	exe, _ := os.Executable()
	l.configureSearchPath(L, exe)
	setArgTable(L, exe, inv.Script, inv.ScriptArgs)

	var opts []audit.Option

	if l.settings.JournalPath != "" {
		cfg := storage.DefaultSQLiteConfig()
		cfg.Path = l.settings.JournalPath
		store, err := storage.NewSQLiteStorage(cfg)
		if err != nil {
			l.logger.Warn("could not open audit journal, continuing without it",
				"path", l.settings.JournalPath,
				"error", err,
			)
		} else {
			rec := journal.NewRecorder(store, &journal.Config{
				Enabled: true,
				Mode:    string(l.settings.Mode),
				Script:  inv.Script,
			})
			defer func() {
				rec.Close()
				store.Close()
			}()
			opts = append(opts, audit.WithObserver(rec.Observer()))
		}
	}

	if l.settings.MetricsAddr != "" {
		m := metrics.New(string(l.settings.Mode))
		opts = append(opts, audit.WithObserver(m.Observer()))
		go func() {
			if err := m.Serve(ctx, l.settings.MetricsAddr); err != nil {
				l.logger.Warn("metrics listener failed", "error", err)
			}
		}()
	}

	bridge := audit.New(L, opts...)

	if l.settings.Enabled {
		bs := bootstrap.New(l.logger, bootstrap.WithHotReload(ctx))
		if err := bs.Install(bridge, l.settings.Mode, l.settings.ConfigPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	code := NewDriver(L).Run(inv)

	// A policy abort unwinds through the runtime as a script error. The
	// termination recorded on the bridge carries the exit status the policy
	// intended; translating it here lets the deferred journal shutdown
	// drain first.
	if term, ok := bridge.Terminated(); ok {
		l.logger.Debug("run terminated by policy", "code", term.Code, "reason", term.Reason)
		code = term.Code
	}
	return code
}

// configureSearchPath prepends the runtime home, LUA_PATH, and the
// launcher's own directory and its parent to package.path, so policy
// modules resolve independent of installation layout.
func (l *Launcher) configureSearchPath(L *lua.LState, exe string) {
	var paths []string

	if home := l.settings.RuntimeHome; home != "" {
		paths = append(paths,
			filepath.Join(home, "?.lua"),
			filepath.Join(home, "?", "init.lua"),
		)
	}
	if env := os.Getenv("LUA_PATH"); env != "" {
		paths = append(paths, env)
	}
	if exe != "" {
		dir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(dir, "?.lua"),
			filepath.Join(filepath.Dir(dir), "?.lua"),
		)
	}
	if len(paths) == 0 {
		return
	}

	pkg := L.GetGlobal("package")
	if pkg == lua.LNil {
		return
	}
	combined := strings.Join(paths, ";")
	if current := lua.LVAsString(L.GetField(pkg, "path")); current != "" {
		combined += ";" + current
	}
	L.SetField(pkg, "path", lua.LString(combined))
}
