package winnow

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	defaults "github.com/winnow-sh/winnow/default"
	"mvdan.cc/sh/v3/syntax"
)

// Matcher modes carried in a source instruction.
const (
	MatchSubstring = "substring"
	MatchFuzzy     = "fuzzy"
	MatchRegex     = "regex"
	MatchApprox    = "approx"
)

// KnownMatcher reports whether mode names a supported matcher.
func KnownMatcher(mode string) bool {
	switch mode {
	case MatchSubstring, MatchFuzzy, MatchRegex, MatchApprox:
		return true
	}
	return false
}

// Config represents the user's winnow configuration.
type Config struct {
	Version int           `toml:"version"`
	Find    CommandConfig `toml:"find"`
	Grep    CommandConfig `toml:"grep"`
	Filter  FilterConfig  `toml:"filter"`
	Worker  WorkerConfig  `toml:"worker"`
}

// CommandConfig holds the backing shell command for one picker mode.
type CommandConfig struct {
	Command string `toml:"command"`
}

// FilterConfig holds worker-side filtering settings.
type FilterConfig struct {
	Matcher         string `toml:"matcher"`
	CacheTTLSeconds int    `toml:"cache_ttl_seconds"`
	ChunkBytes      int    `toml:"chunk_bytes"`
}

// WorkerConfig holds settings for spawning the winnowd worker.
type WorkerConfig struct {
	Path           string `toml:"path"`
	SocketDir      string `toml:"socket_dir"`
	SpawnTimeoutMS int    `toml:"spawn_timeout_ms"`
}

// ConfigDir returns the config directory path.
// Resolution order: $WINNOW_CONFIG_DIR > $XDG_CONFIG_HOME/winnow > ~/.config/winnow
func ConfigDir() string {
	if dir := os.Getenv("WINNOW_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "winnow")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "winnow-config")
	}
	return filepath.Join(home, ".config", "winnow")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultConfig returns the default configuration from the embedded
// default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.Decode(string(defaults.DefaultConfigTOML), &cfg); err != nil {
		panic("winnow: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Apply defaults for missing fields
	def := DefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = def.Version
	}
	if cfg.Find.Command == "" {
		cfg.Find.Command = def.Find.Command
	}
	if cfg.Grep.Command == "" {
		cfg.Grep.Command = def.Grep.Command
	}
	if cfg.Filter.Matcher == "" {
		cfg.Filter.Matcher = def.Filter.Matcher
	}
	if cfg.Filter.CacheTTLSeconds == 0 {
		cfg.Filter.CacheTTLSeconds = def.Filter.CacheTTLSeconds
	}
	if cfg.Filter.ChunkBytes == 0 {
		cfg.Filter.ChunkBytes = def.Filter.ChunkBytes
	}
	if cfg.Worker.SpawnTimeoutMS == 0 {
		cfg.Worker.SpawnTimeoutMS = def.Worker.SpawnTimeoutMS
	}

	return &cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if cfg.Filter.Matcher != "" && !KnownMatcher(cfg.Filter.Matcher) {
		warnings = append(warnings, fmt.Sprintf("unknown filter matcher %q; the worker will fall back to %q", cfg.Filter.Matcher, MatchFuzzy))
	}
	parser := syntax.NewParser()
	for _, mode := range []struct {
		name    string
		command string
	}{
		{"find", cfg.Find.Command},
		{"grep", cfg.Grep.Command},
	} {
		if mode.command == "" {
			warnings = append(warnings, fmt.Sprintf("[%s] command is empty; %s mode will produce no candidates", mode.name, mode.name))
			continue
		}
		if _, err := parser.Parse(strings.NewReader(mode.command), ""); err != nil {
			warnings = append(warnings, fmt.Sprintf("[%s] command does not parse as shell: %v", mode.name, err))
		}
	}
	return warnings
}

// SourceFor returns the configured candidate source for the given picker
// mode ("find" or "grep") rooted at dir.
func SourceFor(cfg *Config, mode, dir string) (Source, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	src := Source{Dir: dir, Matcher: cfg.Filter.Matcher}
	switch mode {
	case "find":
		src.Command = cfg.Find.Command
	case "grep":
		src.Command = cfg.Grep.Command
	default:
		return Source{}, fmt.Errorf("unknown mode %q", mode)
	}
	return src, nil
}

// ResolveWorkerPath returns the winnowd executable to spawn.
// Priority: $WINNOW_WORKER env > config value > a winnowd next to the current
// executable > $PATH lookup at exec time.
func ResolveWorkerPath(cfg *Config) string {
	if path := os.Getenv("WINNOW_WORKER"); path != "" {
		return path
	}
	if cfg != nil && cfg.Worker.Path != "" {
		return cfg.Worker.Path
	}
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), "winnowd")
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			return sibling
		}
	}
	return "winnowd"
}

// SpawnTimeout returns the bound on waiting for a spawned worker's socket to
// become reachable.
func SpawnTimeout(cfg *Config) time.Duration {
	if cfg == nil || cfg.Worker.SpawnTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(cfg.Worker.SpawnTimeoutMS) * time.Millisecond
}

// SocketPath returns a fresh socket path for one worker, unique per session:
// <socket_dir>/winnow-<pid>-<random>.sock. socket_dir defaults to os.TempDir().
func SocketPath(cfg *Config) string {
	dir := os.TempDir()
	if cfg != nil && cfg.Worker.SocketDir != "" {
		dir = cfg.Worker.SocketDir
	}
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		binary.LittleEndian.PutUint32(buf[:], uint32(time.Now().UnixNano()))
	}
	return filepath.Join(dir, fmt.Sprintf("winnow-%d-%x.sock", os.Getpid(), buf))
}
