package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigName is the config file used when no path is given.
const DefaultConfigName = ".warden.yaml"

// PathRule is a single file permission entry. In YAML it is either a bare
// path string or a mapping with an optional content hash pin:
//
//	allow_file_changes:
//	  - /etc/hosts
//	  - path: build/install.lua
//	    hash: sha256:9f86d08...
type PathRule struct {
	// Path is the file path, absolute or relative to the workdir.
	Path string `yaml:"path"`

	// Hash optionally pins the file content, format "sha256:<hex>".
	Hash string `yaml:"hash,omitempty"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (r *PathRule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Path = node.Value
		r.Hash = ""
		return nil
	}

	type plain PathRule
	var p plain
	if err := node.Decode(&p); err != nil {
		return fmt.Errorf("path rule: %w", err)
	}
	*r = PathRule(p)
	return nil
}

// MarshalYAML emits the scalar form when no hash is pinned.
func (r PathRule) MarshalYAML() (interface{}, error) {
	if r.Hash == "" {
		return r.Path, nil
	}
	type plain PathRule
	return plain(r), nil
}

// Config is the permission schema enforced by the engine.
type Config struct {
	// AllowFileReads lists individual files readable by the hosted program.
	AllowFileReads []PathRule `yaml:"allow_file_reads"`

	// AllowFileWrites lists individual files that may be created.
	AllowFileWrites []PathRule `yaml:"allow_file_writes"`

	// AllowFileChanges lists existing files that may be modified. Entries
	// with a hash pin only match while the on-disk content matches.
	AllowFileChanges []PathRule `yaml:"allow_file_changes"`

	// AllowDirReads lists directories whose contents are readable.
	AllowDirReads []string `yaml:"allow_dir_reads"`

	// AllowDirWrites lists directories where new files may be created.
	AllowDirWrites []string `yaml:"allow_dir_writes"`

	// AllowDirChanges lists directories whose files may be modified.
	AllowDirChanges []string `yaml:"allow_dir_changes"`

	// AllowEnvVarReads lists readable environment variables. An empty list
	// means reads are unrestricted.
	AllowEnvVarReads []string `yaml:"allow_env_var_reads"`

	// AllowEnvVarWrites lists environment variables the program may set.
	AllowEnvVarWrites []string `yaml:"allow_env_var_writes"`

	// AllowHosts lists network hosts the program may connect to.
	AllowHosts []string `yaml:"allow_hosts"`

	// AllowRegistryRequests permits connections to the module registry
	// hosts (luarocks and friends) without listing them individually.
	AllowRegistryRequests bool `yaml:"allow_registry_requests"`

	// AllowSystemCommands lists glob patterns for permitted commands,
	// matched against the normalized command line.
	AllowSystemCommands []string `yaml:"allow_system_commands"`
}

// DefaultConfig returns the default permissions for a working directory:
// read/write/change inside the workdir, registry requests allowed,
// everything else denied.
func DefaultConfig(workdir string) *Config {
	return &Config{
		AllowFileReads:        []PathRule{},
		AllowFileWrites:       []PathRule{},
		AllowFileChanges:      []PathRule{},
		AllowDirReads:         []string{workdir},
		AllowDirWrites:        []string{workdir},
		AllowDirChanges:       []string{workdir},
		AllowEnvVarReads:      []string{},
		AllowEnvVarWrites:     []string{},
		AllowHosts:            []string{},
		AllowRegistryRequests: true,
		AllowSystemCommands:   []string{},
	}
}

// LoadConfig reads a config file and merges it over the defaults for
// workdir. A missing file yields the defaults; a malformed file is an
// error so the caller can decide the failure posture.
func LoadConfig(path, workdir string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(workdir), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg := DefaultConfig(workdir)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}
