package launcher

import (
	"os"

	"warden-hq/callisto/pkg/bootstrap"
)

// Environment variables read by the launcher. Resolved once at startup;
// later changes to the environment have no effect.
const (
	// EnvEnabled activates the policy bootstrap when set to "1".
	EnvEnabled = "WARDEN_ENABLED"

	// EnvMode selects the enforcement mode: run, force, or review.
	EnvMode = "WARDEN_MODE"

	// EnvConfig is the policy config file path, passed opaquely to the
	// policy engine.
	EnvConfig = "WARDEN_CONFIG"

	// EnvDebug enables verbose lifecycle diagnostics when set to "1".
	EnvDebug = "WARDEN_DEBUG"

	// EnvRuntimeHome overrides the compiled-in runtime home directory.
	EnvRuntimeHome = "WARDEN_RUNTIME_HOME"

	// EnvJournalPath enables the audit journal, backed by the SQLite
	// database at this path.
	EnvJournalPath = "WARDEN_JOURNAL_PATH"

	// EnvMetricsAddr exposes Prometheus metrics on this listen address.
	EnvMetricsAddr = "WARDEN_METRICS_ADDR"
)

// DefaultRuntimeHome is the compiled-in runtime home directory.
// Overridable at link time:
//
//	go build -ldflags "-X warden-hq/callisto/pkg/launcher.DefaultRuntimeHome=/opt/callisto"
var DefaultRuntimeHome = "/usr/local/share/callisto"

// Settings is the launcher configuration, resolved from the environment
// exactly once and immutable afterward.
type Settings struct {
	// Enabled reports whether the policy bootstrap runs.
	Enabled bool

	// Mode is the enforcement mode.
	Mode bootstrap.Mode

	// ConfigPath is the policy config path; empty means unset.
	ConfigPath string

	// Debug enables verbose diagnostics.
	Debug bool

	// RuntimeHome is the runtime home directory after override
	// resolution. The environment wins over the compiled-in default.
	RuntimeHome string

	// JournalPath enables audit journaling when non-empty.
	JournalPath string

	// MetricsAddr enables the metrics listener when non-empty.
	MetricsAddr string
}

// SettingsFromEnv resolves launcher settings from the environment.
func SettingsFromEnv() Settings {
	s := Settings{
		Enabled:     os.Getenv(EnvEnabled) == "1",
		Mode:        bootstrap.ParseMode(os.Getenv(EnvMode)),
		ConfigPath:  os.Getenv(EnvConfig),
		Debug:       os.Getenv(EnvDebug) == "1",
		RuntimeHome: DefaultRuntimeHome,
		JournalPath: os.Getenv(EnvJournalPath),
		MetricsAddr: os.Getenv(EnvMetricsAddr),
	}
	if home := os.Getenv(EnvRuntimeHome); home != "" {
		s.RuntimeHome = home
	}
	return s
}
