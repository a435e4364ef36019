// Package config loads the daemon's configuration: archive/streaming
// roots, media tool paths, disc format defaults, and server settings.
// Grounded on the teacher's internal/config pattern (a tagged struct,
// DefaultConfig, Load that writes defaults on first run, Save) layered
// with tomtom215-lyrebirdaudio-go's koanf-based file+env composition
// (internal/config/koanf.go) in place of the teacher's single
// yaml.Unmarshal call.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the environment-variable prefix for config overrides
// (e.g. DVDARCHIVE_WORKERS=4), matching lyrebirdaudio-go's
// WithEnvPrefix convention.
const EnvPrefix = "DVDARCHIVE"

// Config is the daemon's full configuration.
type Config struct {
	// ArchiveRoot is where preservation-master and archive-disk trees
	// land (spec §4.5, §6.1 <archive_root>).
	ArchiveRoot string `koanf:"archive_root" yaml:"archive_root"`

	// StreamingRoot is where streaming-proxy trees land (spec §6.1
	// <streaming_root>).
	StreamingRoot string `koanf:"streaming_root" yaml:"streaming_root"`

	// EditStorePath is the sqlite file backing internal/editstore.
	EditStorePath string `koanf:"edit_store_path" yaml:"edit_store_path"`

	// FFmpegPath/FFprobePath/ISOTool are the external media tool binary
	// names or absolute paths the MediaTool adapter shells out to.
	FFmpegPath  string `koanf:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath string `koanf:"ffprobe_path" yaml:"ffprobe_path"`
	ISOTool     string `koanf:"iso_tool" yaml:"iso_tool"`

	// Workers is the worker pool size (spec §5: "bounded pool (default:
	// global pool sized by host policy; per-pool overrides allowed)").
	Workers int `koanf:"workers" yaml:"workers"`

	// DefaultDiscFormat selects the folder_size_gb default ("dvd" = 4,
	// "bd" = 25, spec §4.5).
	DefaultDiscFormat string `koanf:"default_disc_format" yaml:"default_disc_format"`

	// DefaultHashAlgo is the checksum algorithm VideoFileCopier uses
	// when a build request doesn't specify one ("sha256" or "md5").
	DefaultHashAlgo string `koanf:"default_hash_algo" yaml:"default_hash_algo"`

	// SnapOffsetFrames is the CutEngine's tunable GOP-snap offset (spec
	// §9's Open Question: "expose the offset as tunable, not guess").
	SnapOffsetFrames float64 `koanf:"snap_offset_frames" yaml:"snap_offset_frames"`

	// ListenAddr is the HTTP API's bind address.
	ListenAddr string `koanf:"listen_addr" yaml:"listen_addr"`

	// LogLevel controls logging verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" yaml:"log_level"`

	// MetricsEnabled toggles the /metrics endpoint.
	MetricsEnabled bool `koanf:"metrics_enabled" yaml:"metrics_enabled"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ArchiveRoot:       "/archive",
		StreamingRoot:     "/streaming",
		EditStorePath:     "/config/edits.db",
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		ISOTool:           "genisoimage",
		Workers:           4,
		DefaultDiscFormat: "dvd",
		DefaultHashAlgo:   "sha256",
		SnapOffsetFrames:  2,
		ListenAddr:        ":8080",
		LogLevel:          "info",
		MetricsEnabled:    true,
	}
}

// Load reads configuration from path (YAML), then applies
// DVDARCHIVE_-prefixed environment variable overrides, per
// lyrebirdaudio-go's koanf precedence (env overrides file overrides
// built-in defaults). If path does not exist, a default config is
// written there (teacher's "create one with defaults on first run"
// behavior) and returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if saveErr := cfg.Save(path); saveErr != nil {
			fmt.Fprintf(os.Stderr, "config: could not write default config to %s: %v\n", path, saveErr)
		}
		applyEnvOverrides(cfg)
		return cfg, normalize(cfg)
	}

	k := koanf.New(".")
	if err := k.Load(structDefaultsProvider(cfg), nil); err != nil {
		return nil, fmt.Errorf("config: seed defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix + "_",
		TransformFunc: func(k, v string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(k, EnvPrefix+"_")), v
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load env overrides: %w", err)
	}

	var loaded Config
	if err := k.Unmarshal("", &loaded); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &loaded, normalize(&loaded)
}

// normalize fills any still-empty fields with defaults, mirroring the
// teacher's "apply defaults for empty values" pass in its own Load.
func normalize(cfg *Config) error {
	d := DefaultConfig()
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = d.FFmpegPath
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = d.FFprobePath
	}
	if cfg.ISOTool == "" {
		cfg.ISOTool = d.ISOTool
	}
	if cfg.Workers < 1 {
		cfg.Workers = d.Workers
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = d.LogLevel
	}
	if cfg.SnapOffsetFrames <= 0 {
		cfg.SnapOffsetFrames = d.SnapOffsetFrames
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = d.ListenAddr
	}
	switch cfg.DefaultDiscFormat {
	case "dvd", "bd":
	default:
		cfg.DefaultDiscFormat = d.DefaultDiscFormat
	}
	switch cfg.DefaultHashAlgo {
	case "sha256", "md5":
	default:
		cfg.DefaultHashAlgo = d.DefaultHashAlgo
	}
	return nil
}

// applyEnvOverrides is the first-run path: no file exists yet, so env
// vars apply directly on top of the in-memory default struct via a
// throwaway koanf instance.
func applyEnvOverrides(cfg *Config) {
	k := koanf.New(".")
	_ = k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix + "_",
		TransformFunc: func(k, v string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(k, EnvPrefix+"_")), v
		},
	}), nil)
	_ = k.Unmarshal("", cfg)
}

// Save writes cfg to path as YAML, creating the parent directory if
// needed (teacher's Save pattern, unchanged).
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// structProvider seeds a koanf.Koanf from a struct's current values so
// a later file/env load only overrides what it actually sets.
type structProvider struct{ cfg *Config }

func structDefaultsProvider(cfg *Config) *structProvider { return &structProvider{cfg: cfg} }

func (s *structProvider) ReadBytes() ([]byte, error) {
	return yamlv3.Marshal(s.cfg)
}

func (s *structProvider) Read() (map[string]any, error) {
	b, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yamlv3.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
