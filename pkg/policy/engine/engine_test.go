package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func newTestEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	workdir := t.TempDir()
	e, err := New(filepath.Join(workdir, DefaultConfigName), WithWorkdir(workdir))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg != nil {
		e.cfg = cfg
	}
	return e
}

// TestEngine_CheckPermission_Files tests the file access permission matrix:
// reads and writes inside allowed directories, individual file rules, and
// the new-file/changed-file distinction.
func TestEngine_CheckPermission_Files(t *testing.T) {
	workdir := t.TempDir()
	outside := t.TempDir()

	existing := filepath.Join(workdir, "data.txt")
	if err := os.WriteFile(existing, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	outsideFile := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(outsideFile, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := New(filepath.Join(workdir, DefaultConfigName), WithWorkdir(workdir))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name  string
		event string
		args  []string
		want  bool
	}{
		{"read inside workdir", "io.open", []string{existing, "r"}, true},
		{"read default mode", "io.open", []string{existing}, true},
		{"read outside workdir", "io.open", []string{outsideFile, "r"}, false},
		{"create inside workdir", "io.open", []string{filepath.Join(workdir, "new.txt"), "w"}, true},
		{"create outside workdir", "io.open", []string{filepath.Join(outside, "new.txt"), "w"}, false},
		{"modify inside workdir", "io.open", []string{existing, "a"}, true},
		{"modify outside workdir", "io.open", []string{outsideFile, "r+"}, false},
		{"dofile inside workdir", "dofile", []string{existing}, true},
		{"dofile outside workdir", "dofile", []string{outsideFile}, false},
		{"remove inside workdir", "os.remove", []string{existing}, true},
		{"remove outside workdir", "os.remove", []string{outsideFile}, false},
		{"rename across boundary", "os.rename", []string{existing, outsideFile}, false},
		{"no path argument", "io.open", nil, true},
		{"unlisted event allowed", "os.clock", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.CheckPermission(tt.event, tt.args); got != tt.want {
				t.Errorf("CheckPermission(%q, %v) = %v, want %v", tt.event, tt.args, got, tt.want)
			}
		})
	}
}

// TestEngine_CheckPermission_HashPin tests that a content-pinned file
// change rule only matches while the on-disk bytes match.
func TestEngine_CheckPermission_HashPin(t *testing.T) {
	workdir := t.TempDir()
	pinned := filepath.Join(workdir, "install.lua")
	content := []byte("return {}")
	if err := os.WriteFile(pinned, content, 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(content)

	e := newTestEngine(t, nil)
	e.workdir = workdir
	e.cfg = &Config{
		AllowFileChanges: []PathRule{
			{Path: pinned, Hash: "sha256:" + hex.EncodeToString(sum[:])},
		},
	}

	if !e.CheckPermission("io.open", []string{pinned, "r+"}) {
		t.Error("matching hash pin should allow the change")
	}

	if err := os.WriteFile(pinned, []byte("return nil -- tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	if e.CheckPermission("io.open", []string{pinned, "r+"}) {
		t.Error("tampered content must fail the hash pin")
	}
}

// TestEngine_CheckPermission_Env tests environment variable rules.
func TestEngine_CheckPermission_Env(t *testing.T) {
	tests := []struct {
		name  string
		cfg   *Config
		event string
		args  []string
		want  bool
	}{
		{
			name:  "write listed variable",
			cfg:   &Config{AllowEnvVarWrites: []string{"LANG"}},
			event: "os.setenv",
			args:  []string{"LANG", "C"},
			want:  true,
		},
		{
			name:  "write unlisted variable",
			cfg:   &Config{AllowEnvVarWrites: []string{"LANG"}},
			event: "os.setenv",
			args:  []string{"PATH", "/tmp"},
			want:  false,
		},
		{
			name:  "read unrestricted by default",
			cfg:   &Config{},
			event: "os.getenv",
			args:  []string{"HOME"},
			want:  true,
		},
		{
			name:  "read restricted when list configured",
			cfg:   &Config{AllowEnvVarReads: []string{"LANG"}},
			event: "os.getenv",
			args:  []string{"HOME"},
			want:  false,
		},
		{
			name:  "read listed variable",
			cfg:   &Config{AllowEnvVarReads: []string{"LANG"}},
			event: "os.getenv",
			args:  []string{"LANG"},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.cfg)
			if got := e.CheckPermission(tt.event, tt.args); got != tt.want {
				t.Errorf("CheckPermission(%q, %v) = %v, want %v", tt.event, tt.args, got, tt.want)
			}
		})
	}
}

// TestEngine_CheckPermission_Commands tests command glob matching against
// the normalized command line.
func TestEngine_CheckPermission_Commands(t *testing.T) {
	cfg := &Config{
		AllowSystemCommands: []string{"ls *", "git status"},
	}

	tests := []struct {
		name    string
		command string
		want    bool
	}{
		{"glob match", "ls -la /tmp", true},
		{"glob match with quoting", `ls  -la "/tmp"`, true},
		{"exact match", "git status", true},
		{"prefix is not a match", "git status --porcelain", false},
		{"unlisted command", "rm -rf /", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, cfg)
			if got := e.CheckPermission("os.execute", []string{tt.command}); got != tt.want {
				t.Errorf("CheckPermission(os.execute, %q) = %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}

// TestEngine_CheckPermission_Network tests host allow-listing and the
// registry host shortcut.
func TestEngine_CheckPermission_Network(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		host string
		want bool
	}{
		{
			name: "listed host",
			cfg:  &Config{AllowHosts: []string{"api.example.com"}},
			host: "api.example.com",
			want: true,
		},
		{
			name: "unlisted host",
			cfg:  &Config{},
			host: "evil.example.com",
			want: false,
		},
		{
			name: "registry host allowed",
			cfg:  &Config{AllowRegistryRequests: true},
			host: "luarocks.org",
			want: true,
		},
		{
			name: "registry host denied when disabled",
			cfg:  &Config{AllowRegistryRequests: false},
			host: "luarocks.org",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.cfg)
			if got := e.CheckPermission("socket.connect", []string{tt.host, "443"}); got != tt.want {
				t.Errorf("CheckPermission(socket.connect, %q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

// TestEngine_ClassifyEnvVar tests the three-way env read classification.
func TestEngine_ClassifyEnvVar(t *testing.T) {
	e := newTestEngine(t, &Config{AllowEnvVarReads: []string{"LANG"}})

	tests := []struct {
		name string
		want EnvClassification
	}{
		{"LANG", EnvSilent},
		{"HOME", EnvInfo},
		{"AWS_SECRET_ACCESS_KEY", EnvBlock},
		{"GITHUB_TOKEN", EnvBlock},
		{"db_password", EnvBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.ClassifyEnvVar(tt.name); got != tt.want {
				t.Errorf("ClassifyEnvVar(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

// TestEngine_SaveDecisions tests that approvals are merged into the config
// file and visible after reload.
func TestEngine_SaveDecisions(t *testing.T) {
	workdir := t.TempDir()
	configPath := filepath.Join(workdir, DefaultConfigName)

	e, err := New(configPath, WithWorkdir(workdir))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.RecordDecision("os.execute", `("make test")`, true, map[string]string{"command": "make test"})
	e.RecordDecision("io.open", `("/tmp/out", "w")`, true, map[string]string{"path": "/tmp/out", "mode": "w"})
	e.RecordDecision("socket.connect", `("api.example.com")`, true, map[string]string{"host": "api.example.com"})
	e.RecordDecision("os.execute", `("rm -rf /")`, false, map[string]string{"command": "rm -rf /"})

	if err := e.SaveDecisions(); err != nil {
		t.Fatalf("SaveDecisions: %v", err)
	}

	reloaded, err := New(configPath, WithWorkdir(workdir))
	if err != nil {
		t.Fatalf("New (reload): %v", err)
	}
	cfg := reloaded.Config()

	if !containsString(cfg.AllowSystemCommands, "make test") {
		t.Error("approved command missing from saved config")
	}
	if containsString(cfg.AllowSystemCommands, "rm -rf /") {
		t.Error("denied command must not be saved")
	}
	if !containsPathRule(cfg.AllowFileWrites, "/tmp/out") {
		t.Error("approved file write missing from saved config")
	}
	if !containsString(cfg.AllowHosts, "api.example.com") {
		t.Error("approved host missing from saved config")
	}

	// Saving with nothing recorded is a no-op.
	if err := e.SaveDecisions(); err != nil {
		t.Fatalf("SaveDecisions (empty): %v", err)
	}
}

// TestEngine_Reload tests that Reload picks up on-disk changes and keeps
// the previous config on failure.
func TestEngine_Reload(t *testing.T) {
	workdir := t.TempDir()
	configPath := filepath.Join(workdir, DefaultConfigName)

	if err := os.WriteFile(configPath, []byte("allow_hosts: [one.example.com]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := New(configPath, WithWorkdir(workdir))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !containsString(e.Config().AllowHosts, "one.example.com") {
		t.Fatal("initial config not loaded")
	}

	if err := os.WriteFile(configPath, []byte("allow_hosts: [two.example.com]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !containsString(e.Config().AllowHosts, "two.example.com") {
		t.Error("reloaded config not applied")
	}

	if err := os.WriteFile(configPath, []byte("allow_hosts: [broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.Reload(); err == nil {
		t.Error("Reload of malformed config should fail")
	}
	if !containsString(e.Config().AllowHosts, "two.example.com") {
		t.Error("failed reload must keep the previous config")
	}
}
