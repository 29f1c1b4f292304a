// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// Environment variables recognised by Load.
const (
	EnvConfig       = "CUSTODY_CONFIG"
	EnvEvidenceRoot = "CUSTODY_EVIDENCE_ROOT"
	EnvToolsDir     = "CUSTODY_TOOLS_DIR"
)

// MinIterations is the lowest PBKDF2 iteration count accepted for the
// archive cipher.
const MinIterations = 200000

// Config is the complete custody configuration.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Acquisition tunes the device-side stages.
	Acquisition AcquisitionConfig `yaml:"acquisition"`

	// Vault selects the archive cipher.
	Vault VaultConfig `yaml:"vault"`

	// Cleanup controls plaintext destruction.
	Cleanup CleanupConfig `yaml:"cleanup"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// EvidenceRoot holds one workspace directory per run.
	EvidenceRoot string `yaml:"evidence_root"`

	// Tools is searched for adb and carving binaries before PATH.
	Tools string `yaml:"tools"`
}

// AcquisitionConfig tunes the acquisition stages.
type AcquisitionConfig struct {
	// ADB is the adb binary name or path.
	// Default: adb
	ADB string `yaml:"adb"`

	// LogicalPaths are pulled during LOGICAL_PULL.
	// Default: [/sdcard]
	LogicalPaths []string `yaml:"logical_paths"`

	// SystemPaths are pulled during SYSTEM_PULL.
	// Default: [/system, /vendor]
	SystemPaths []string `yaml:"system_paths"`

	// AppDataWorkers bounds concurrent per-package collection.
	// Default: 1 (sequential, as the device link is narrow)
	AppDataWorkers int `yaml:"app_data_workers"`

	// ImageCompression is applied to the physical image.
	// Values: gzip, zstd, lz4. Default: gzip
	ImageCompression string `yaml:"image_compression"`

	// CarvingTools are tried, in order, during CARVE. Missing tools
	// are skipped.
	// Default: [foremost, scalpel, photorec, bulk_extractor]
	CarvingTools []string `yaml:"carving_tools"`
}

// VaultConfig selects the archive cipher.
type VaultConfig struct {
	// Cipher is openssl-aes-256-cbc or age-scrypt.
	// Default: openssl-aes-256-cbc
	Cipher string `yaml:"cipher"`

	// Iterations is the PBKDF2 iteration count for
	// openssl-aes-256-cbc. Minimum and default: 200000.
	Iterations int `yaml:"iterations"`
}

// CleanupConfig controls plaintext destruction.
type CleanupConfig struct {
	// SecureDelete is auto, overwrite or plain.
	// Default: auto (overwrite when the workspace filesystem allows it)
	SecureDelete string `yaml:"secure_delete"`

	// OverwritePasses is the number of random-data passes.
	// Default: 1
	OverwritePasses int `yaml:"overwrite_passes"`
}

// Values accepted by Validate.
var (
	compressionValues  = []string{"gzip", "zstd", "lz4"}
	cipherValues       = []string{"openssl-aes-256-cbc", "age-scrypt"}
	secureDeleteValues = []string{"auto", "overwrite", "plain"}
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, "forensics")

	return &Config{
		Paths: PathsConfig{
			EvidenceRoot: filepath.Join(defaultRoot, "evidence"),
			Tools:        filepath.Join(defaultRoot, "tools"),
		},
		Acquisition: AcquisitionConfig{
			ADB:              "adb",
			LogicalPaths:     []string{"/sdcard"},
			SystemPaths:      []string{"/system", "/vendor"},
			AppDataWorkers:   1,
			ImageCompression: "gzip",
			CarvingTools:     []string{"foremost", "scalpel", "photorec", "bulk_extractor"},
		},
		Vault: VaultConfig{
			Cipher:     "openssl-aes-256-cbc",
			Iterations: MinIterations,
		},
		Cleanup: CleanupConfig{
			SecureDelete:    "auto",
			OverwritePasses: 1,
		},
	}
}

// Load resolves the configuration. path wins over CUSTODY_CONFIG; when
// neither names a file, defaults apply. Environment path overrides are
// applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a YAML file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	if value := os.Getenv(EnvEvidenceRoot); value != "" {
		c.Paths.EvidenceRoot = value
	}
	if value := os.Getenv(EnvToolsDir); value != "" {
		c.Paths.Tools = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.EvidenceRoot = expandVars(c.Paths.EvidenceRoot, vars)
	c.Paths.Tools = expandVars(c.Paths.Tools, vars)
	c.Acquisition.ADB = expandVars(c.Acquisition.ADB, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.EvidenceRoot == "" {
		errs = append(errs, fmt.Errorf("paths.evidence_root is required"))
	}
	if c.Acquisition.ADB == "" {
		errs = append(errs, fmt.Errorf("acquisition.adb is required"))
	}
	if c.Acquisition.AppDataWorkers < 1 || c.Acquisition.AppDataWorkers > 8 {
		errs = append(errs, fmt.Errorf("acquisition.app_data_workers must be between 1 and 8, got %d", c.Acquisition.AppDataWorkers))
	}
	if !slices.Contains(compressionValues, c.Acquisition.ImageCompression) {
		errs = append(errs, fmt.Errorf("acquisition.image_compression must be one of: %v", compressionValues))
	}
	if !slices.Contains(cipherValues, c.Vault.Cipher) {
		errs = append(errs, fmt.Errorf("vault.cipher must be one of: %v", cipherValues))
	}
	if c.Vault.Iterations < MinIterations {
		errs = append(errs, fmt.Errorf("vault.iterations must be at least %d, got %d", MinIterations, c.Vault.Iterations))
	}
	if !slices.Contains(secureDeleteValues, c.Cleanup.SecureDelete) {
		errs = append(errs, fmt.Errorf("cleanup.secure_delete must be one of: %v", secureDeleteValues))
	}
	if c.Cleanup.OverwritePasses < 1 {
		errs = append(errs, fmt.Errorf("cleanup.overwrite_passes must be at least 1"))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the evidence root and tools directories if they
// don't exist. The evidence root is owner-only.
func (c *Config) EnsurePaths() error {
	if err := os.MkdirAll(c.Paths.EvidenceRoot, 0o700); err != nil {
		return fmt.Errorf("creating evidence root %s: %w", c.Paths.EvidenceRoot, err)
	}
	if c.Paths.Tools != "" {
		if err := os.MkdirAll(c.Paths.Tools, 0o755); err != nil {
			return fmt.Errorf("creating tools directory %s: %w", c.Paths.Tools, err)
		}
	}
	return nil
}

// BinaryPath returns the full path to an external tool. It looks in
// Paths.Tools first, then falls back to exec.LookPath.
func (c *Config) BinaryPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		return name, nil
	}

	if c.Paths.Tools != "" {
		candidate := filepath.Join(c.Paths.Tools, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		if c.Paths.Tools != "" {
			return "", fmt.Errorf("%s not found in %s or PATH", name, c.Paths.Tools)
		}
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	return path, nil
}
