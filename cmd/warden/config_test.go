package main

import (
	"os"
	"path/filepath"
	"testing"

	"warden-hq/callisto/pkg/policy/engine"
)

func resetConfigFlags(t *testing.T) {
	t.Helper()
	saved := configFlags
	savedCfg := cfgFile
	configFlags.path = ""
	configFlags.force = false
	cfgFile = ""
	t.Cleanup(func() {
		configFlags = saved
		cfgFile = savedCfg
	})
}

func TestCreateConfig_WritesDefault(t *testing.T) {
	resetConfigFlags(t)
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWd); err != nil {
			t.Fatal(err)
		}
	})
	configFlags.path = filepath.Join(dir, engine.DefaultConfigName)

	if err := createConfig(configCreateCmd, nil); err != nil {
		t.Fatalf("createConfig() error = %v", err)
	}

	eng, err := engine.New(configFlags.path, engine.WithWorkdir(dir))
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if !eng.CheckPermission("io.open", []string{filepath.Join(dir, "notes.txt"), "r"}) {
		t.Error("default config should allow reads inside the workdir")
	}
	if eng.CheckPermission("os.execute", []string{"rm -rf /"}) {
		t.Error("default config should not allow arbitrary commands")
	}
}

func TestCreateConfig_RefusesOverwrite(t *testing.T) {
	resetConfigFlags(t)
	dir := t.TempDir()
	configFlags.path = filepath.Join(dir, engine.DefaultConfigName)

	if err := os.WriteFile(configFlags.path, []byte("allow_hosts: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := createConfig(configCreateCmd, nil); err == nil {
		t.Fatal("createConfig() error = nil, want overwrite refusal")
	}

	configFlags.force = true
	if err := createConfig(configCreateCmd, nil); err != nil {
		t.Fatalf("createConfig() with --force error = %v", err)
	}
}
