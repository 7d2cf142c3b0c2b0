package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// registryHosts are allowed when AllowRegistryRequests is set, so module
// installation keeps working under the default policy.
var registryHosts = map[string]bool{
	"luarocks.org":         true,
	"www.luarocks.org":     true,
	"rocks.moonscript.org": true,
}

// EnvClassification is the engine's verdict on an environment variable read.
type EnvClassification string

const (
	// EnvSilent means the variable is explicitly allowed; no logging.
	EnvSilent EnvClassification = "silent"

	// EnvInfo means the read is harmless but worth logging.
	EnvInfo EnvClassification = "info"

	// EnvBlock means the variable looks sensitive and the read goes
	// through the normal permission check.
	EnvBlock EnvClassification = "block"
)

// sensitiveEnvMarkers flag variables whose values are likely credentials.
var sensitiveEnvMarkers = []string{
	"TOKEN", "SECRET", "KEY", "PASSWORD", "PASSWD", "CREDENTIAL", "AUTH",
}

// sensitivePathPrefixes flag files whose exposure is a credential leak.
var sensitivePathPrefixes = []string{
	"/etc/passwd", "/etc/shadow", "/etc/sudoers",
	".ssh/", ".aws/", ".gnupg/", ".netrc", ".npmrc",
}

// Decision is one recorded review-mode approval or denial.
type Decision struct {
	// Event is the audited event name.
	Event string

	// Args is the rendered argument list, for the journal only.
	Args string

	// Allowed reports the user's choice.
	Allowed bool

	// Details carries the fields needed to merge the decision back into
	// the config (path, mode, command, key, host).
	Details map[string]string
}

// Engine enforces the permission config for audited runtime events.
//
// CheckPermission is called on the runtime's execution thread for every
// audited event; config reloads happen on the watcher goroutine, so config
// access is guarded by a read-write mutex.
type Engine struct {
	configPath string
	workdir    string

	mu  sync.RWMutex
	cfg *Config

	decisionsMu sync.Mutex
	decisions   []Decision

	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWorkdir overrides the working directory used to resolve relative
// paths. Defaults to the process working directory.
func WithWorkdir(dir string) Option {
	return func(e *Engine) { e.workdir = dir }
}

// New creates an engine backed by the config file at configPath. An empty
// path uses DefaultConfigName in the workdir. A missing file yields the
// default permissions; a malformed file is logged and also falls back to
// the defaults, so a broken config degrades rather than crashes the
// hosted program.
func New(configPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		configPath: configPath,
		logger:     slog.Default().With("component", "policy.engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.workdir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		e.workdir = wd
	}
	if e.configPath == "" {
		e.configPath = filepath.Join(e.workdir, DefaultConfigName)
	}

	cfg, err := LoadConfig(e.configPath, e.workdir)
	if err != nil {
		e.logger.Warn("could not load policy config, using defaults",
			"path", e.configPath,
			"error", err,
		)
		cfg = DefaultConfig(e.workdir)
	}
	e.cfg = cfg

	return e, nil
}

// ConfigPath returns the config file path backing this engine.
func (e *Engine) ConfigPath() string {
	return e.configPath
}

// Config returns the current permission config.
func (e *Engine) Config() *Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Reload re-reads the config file, replacing the in-memory permissions
// only when loading succeeds.
func (e *Engine) Reload() error {
	cfg, err := LoadConfig(e.configPath, e.workdir)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()

	e.logger.Info("policy config reloaded", "path", e.configPath)
	return nil
}

// CheckPermission reports whether an audited event is permitted. Events
// without rules are allowed.
func (e *Engine) CheckPermission(event string, args []string) bool {
	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()

	switch event {
	case "io.open", "io.lines", "dofile", "loadfile":
		return e.checkFileAccess(cfg, event, args)
	case "os.remove", "os.rename":
		return e.checkFileMutation(cfg, args)
	case "os.setenv":
		return e.checkEnvWrite(cfg, args)
	case "os.getenv":
		return e.checkEnvRead(cfg, args)
	case "os.execute", "io.popen", "os.system":
		return e.checkSystemCommand(cfg, args)
	case "socket.connect":
		return e.checkNetwork(cfg, args)
	}
	return true
}

// ClassifyEnvVar decides how an environment variable read is handled:
// explicitly allowed variables are silent, credential-looking names go
// through the permission check, everything else is log-only.
func (e *Engine) ClassifyEnvVar(name string) EnvClassification {
	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()

	for _, allowed := range cfg.AllowEnvVarReads {
		if allowed == name {
			return EnvSilent
		}
	}

	upper := strings.ToUpper(name)
	for _, marker := range sensitiveEnvMarkers {
		if strings.Contains(upper, marker) {
			return EnvBlock
		}
	}
	return EnvInfo
}

// IsSensitivePath reports whether a path points at well-known credential
// or account files. Used by review mode to escalate the prompt color.
func (e *Engine) IsSensitivePath(path string) bool {
	resolved := e.resolvePath(path)
	for _, marker := range sensitivePathPrefixes {
		if strings.HasPrefix(resolved, marker) || strings.Contains(resolved, "/"+marker) {
			return true
		}
	}
	return false
}

// resolvePath makes a path absolute relative to the workdir and cleans it.
func (e *Engine) resolvePath(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.workdir, path)
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

// checkFileAccess handles read-or-write style file events. For io.open the
// second argument is the mode string; any of "w", "a", "x", "+" makes it a
// write. The loader events (dofile, loadfile, io.lines) are always reads.
func (e *Engine) checkFileAccess(cfg *Config, event string, args []string) bool {
	if len(args) == 0 || args[0] == "" {
		// No path argument (stdin chunk, default file); nothing to check.
		return true
	}

	path := e.resolvePath(args[0])

	mode := "r"
	if event == "io.open" && len(args) > 1 && args[1] != "" {
		mode = args[1]
	}

	if strings.ContainsAny(mode, "wax+") {
		_, statErr := os.Stat(path)
		isNew := os.IsNotExist(statErr)
		return e.checkWrite(cfg, path, isNew)
	}
	return e.checkRead(cfg, path)
}

// checkFileMutation handles os.remove and os.rename, which modify the
// filesystem regardless of open mode.
func (e *Engine) checkFileMutation(cfg *Config, args []string) bool {
	for _, arg := range args {
		if arg == "" {
			continue
		}
		path := e.resolvePath(arg)
		if !e.checkWrite(cfg, path, false) {
			return false
		}
	}
	return true
}

func (e *Engine) checkRead(cfg *Config, path string) bool {
	if e.matchPathRules(path, cfg.AllowFileReads, false) {
		return true
	}
	return e.matchDirs(path, cfg.AllowDirReads)
}

func (e *Engine) checkWrite(cfg *Config, path string, isNew bool) bool {
	if isNew {
		if e.matchPathRules(path, cfg.AllowFileWrites, false) {
			return true
		}
		return e.matchDirs(path, cfg.AllowDirWrites)
	}
	if e.matchPathRules(path, cfg.AllowFileChanges, true) {
		return true
	}
	return e.matchDirs(path, cfg.AllowDirChanges)
}

// matchPathRules checks a path against individual file rules, verifying
// content hashes when asked to.
func (e *Engine) matchPathRules(path string, rules []PathRule, checkHash bool) bool {
	for _, rule := range rules {
		if e.resolvePath(rule.Path) != path {
			continue
		}
		if checkHash && rule.Hash != "" {
			return verifyFileHash(path, rule.Hash)
		}
		return true
	}
	return false
}

// matchDirs checks whether path lives under any of the listed directories.
func (e *Engine) matchDirs(path string, dirs []string) bool {
	for _, dir := range dirs {
		resolved := e.resolvePath(dir)
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			continue
		}
		if rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)) {
			return true
		}
	}
	return false
}

// verifyFileHash checks a "sha256:<hex>" pin against the file content.
func verifyFileHash(path, pin string) bool {
	const prefix = "sha256:"
	if !strings.HasPrefix(pin, prefix) {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) == strings.TrimPrefix(pin, prefix)
}

func (e *Engine) checkEnvWrite(cfg *Config, args []string) bool {
	if len(args) == 0 {
		return true
	}
	for _, allowed := range cfg.AllowEnvVarWrites {
		if allowed == args[0] {
			return true
		}
	}
	return false
}

// checkEnvRead allows everything when no read restrictions are configured
// and otherwise requires the variable to be listed.
func (e *Engine) checkEnvRead(cfg *Config, args []string) bool {
	if len(cfg.AllowEnvVarReads) == 0 {
		return true
	}
	if len(args) == 0 {
		return false
	}
	for _, allowed := range cfg.AllowEnvVarReads {
		if allowed == args[0] {
			return true
		}
	}
	return false
}

// checkSystemCommand matches the normalized command line against the
// configured glob patterns.
func (e *Engine) checkSystemCommand(cfg *Config, args []string) bool {
	if len(args) == 0 || args[0] == "" {
		return true
	}

	command := NormalizeCommand(args[0])
	for _, pattern := range cfg.AllowSystemCommands {
		if matchGlob(pattern, command) {
			return true
		}
	}
	return false
}

// checkNetwork allows registry hosts (when enabled) and listed hosts.
func (e *Engine) checkNetwork(cfg *Config, args []string) bool {
	if len(args) == 0 {
		return true
	}
	host := args[0]

	if cfg.AllowRegistryRequests {
		if registryHosts[host] || strings.HasPrefix(host, "raw.githubusercontent.") {
			return true
		}
	}

	for _, allowed := range cfg.AllowHosts {
		if allowed == host {
			return true
		}
	}
	return false
}

// RecordDecision stores a review-mode decision for later merging.
func (e *Engine) RecordDecision(event, args string, allowed bool, details map[string]string) {
	e.decisionsMu.Lock()
	defer e.decisionsMu.Unlock()
	e.decisions = append(e.decisions, Decision{
		Event:   event,
		Args:    args,
		Allowed: allowed,
		Details: details,
	})
}

// SaveDecisions merges all recorded approvals into the config file and
// clears the recorded list. Denials are dropped: only approvals widen the
// policy.
func (e *Engine) SaveDecisions() error {
	e.decisionsMu.Lock()
	decisions := e.decisions
	e.decisions = nil
	e.decisionsMu.Unlock()

	if len(decisions) == 0 {
		return nil
	}

	cfg, err := LoadConfig(e.configPath, e.workdir)
	if err != nil {
		cfg = DefaultConfig(e.workdir)
	}

	for _, d := range decisions {
		if !d.Allowed {
			continue
		}
		mergeDecision(cfg, d)
	}

	if err := cfg.Save(e.configPath); err != nil {
		e.logger.Warn("could not save policy decisions", "error", err)
		return err
	}

	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	return nil
}

// mergeDecision widens the config with one approval.
func mergeDecision(cfg *Config, d Decision) {
	switch d.Event {
	case "io.open", "io.lines", "dofile", "loadfile":
		path := d.Details["path"]
		if path == "" {
			return
		}
		if strings.ContainsAny(d.Details["mode"], "wax") {
			if !containsPathRule(cfg.AllowFileWrites, path) {
				cfg.AllowFileWrites = append(cfg.AllowFileWrites, PathRule{Path: path})
			}
		} else {
			if !containsPathRule(cfg.AllowFileReads, path) {
				cfg.AllowFileReads = append(cfg.AllowFileReads, PathRule{Path: path})
			}
		}
	case "os.execute", "io.popen", "os.system":
		if cmd := d.Details["command"]; cmd != "" && !containsString(cfg.AllowSystemCommands, cmd) {
			cfg.AllowSystemCommands = append(cfg.AllowSystemCommands, cmd)
		}
	case "os.setenv":
		if key := d.Details["key"]; key != "" && !containsString(cfg.AllowEnvVarWrites, key) {
			cfg.AllowEnvVarWrites = append(cfg.AllowEnvVarWrites, key)
		}
	case "os.getenv":
		if key := d.Details["key"]; key != "" && !containsString(cfg.AllowEnvVarReads, key) {
			cfg.AllowEnvVarReads = append(cfg.AllowEnvVarReads, key)
		}
	case "socket.connect":
		if host := d.Details["host"]; host != "" && !containsString(cfg.AllowHosts, host) {
			cfg.AllowHosts = append(cfg.AllowHosts, host)
		}
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsPathRule(rules []PathRule, path string) bool {
	for _, r := range rules {
		if r.Path == path {
			return true
		}
	}
	return false
}
