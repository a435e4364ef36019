package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWritesDefaultsOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dvdarchive.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected Load to write a default config file: %v", err)
	}
	if cfg.Workers != DefaultConfig().Workers {
		t.Errorf("Workers = %d, want default %d", cfg.Workers, DefaultConfig().Workers)
	}
	if cfg.DefaultDiscFormat != "dvd" {
		t.Errorf("DefaultDiscFormat = %q, want dvd", cfg.DefaultDiscFormat)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dvdarchive.yaml")
	yamlBody := "archive_root: /mnt/archive\nstreaming_root: /mnt/streaming\nworkers: 8\ndefault_disc_format: bd\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ArchiveRoot != "/mnt/archive" {
		t.Errorf("ArchiveRoot = %q, want /mnt/archive", cfg.ArchiveRoot)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.DefaultDiscFormat != "bd" {
		t.Errorf("DefaultDiscFormat = %q, want bd", cfg.DefaultDiscFormat)
	}
	// Fields absent from the YAML keep their defaults.
	if cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("FFmpegPath = %q, want ffmpeg", cfg.FFmpegPath)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dvdarchive.yaml")
	if err := os.WriteFile(path, []byte("workers: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DVDARCHIVE_WORKERS", "16")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workers != 16 {
		t.Errorf("Workers = %d, want env override 16", cfg.Workers)
	}
}

func TestNormalizeRejectsUnknownEnums(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dvdarchive.yaml")
	if err := os.WriteFile(path, []byte("default_disc_format: laserdisc\ndefault_hash_algo: crc32\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultDiscFormat != "dvd" {
		t.Errorf("DefaultDiscFormat = %q, want fallback dvd", cfg.DefaultDiscFormat)
	}
	if cfg.DefaultHashAlgo != "sha256" {
		t.Errorf("DefaultHashAlgo = %q, want fallback sha256", cfg.DefaultHashAlgo)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "dvdarchive.yaml")

	cfg := DefaultConfig()
	cfg.ArchiveRoot = "/data/archive"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ArchiveRoot != "/data/archive" {
		t.Errorf("ArchiveRoot = %q, want /data/archive", loaded.ArchiveRoot)
	}
}
