// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Vault.Cipher != "openssl-aes-256-cbc" {
		t.Errorf("expected cipher=openssl-aes-256-cbc, got %s", cfg.Vault.Cipher)
	}
	if cfg.Vault.Iterations != MinIterations {
		t.Errorf("expected iterations=%d, got %d", MinIterations, cfg.Vault.Iterations)
	}
	if cfg.Acquisition.AppDataWorkers != 1 {
		t.Errorf("expected app_data_workers=1, got %d", cfg.Acquisition.AppDataWorkers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvEvidenceRoot, "")
	t.Setenv(EnvToolsDir, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Acquisition.ImageCompression != "gzip" {
		t.Errorf("expected image_compression=gzip, got %s", cfg.Acquisition.ImageCompression)
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv(EnvEvidenceRoot, "")
	t.Setenv(EnvToolsDir, "")

	configPath := filepath.Join(t.TempDir(), "custody.yaml")
	content := `
paths:
  evidence_root: /cases/evidence
acquisition:
  logical_paths: [/sdcard/DCIM, /sdcard/Download]
  image_compression: zstd
  app_data_workers: 3
vault:
  iterations: 600000
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Paths.EvidenceRoot != "/cases/evidence" {
		t.Errorf("expected evidence_root=/cases/evidence, got %s", cfg.Paths.EvidenceRoot)
	}
	if len(cfg.Acquisition.LogicalPaths) != 2 || cfg.Acquisition.LogicalPaths[1] != "/sdcard/Download" {
		t.Errorf("unexpected logical_paths: %v", cfg.Acquisition.LogicalPaths)
	}
	if cfg.Acquisition.ImageCompression != "zstd" {
		t.Errorf("expected image_compression=zstd, got %s", cfg.Acquisition.ImageCompression)
	}
	if cfg.Vault.Iterations != 600000 {
		t.Errorf("expected iterations=600000, got %d", cfg.Vault.Iterations)
	}
	// Unset fields keep their defaults.
	if cfg.Vault.Cipher != "openssl-aes-256-cbc" {
		t.Errorf("expected default cipher, got %s", cfg.Vault.Cipher)
	}
}

func TestLoad_EnvironmentConfigPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custody.yaml")
	if err := os.WriteFile(configPath, []byte("cleanup:\n  secure_delete: plain\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(EnvConfig, configPath)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Cleanup.SecureDelete != "plain" {
		t.Errorf("expected secure_delete=plain, got %s", cfg.Cleanup.SecureDelete)
	}
}

func TestLoad_EnvironmentPathOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custody.yaml")
	if err := os.WriteFile(configPath, []byte("paths:\n  evidence_root: /from/file\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(EnvEvidenceRoot, "/from/env")
	t.Setenv(EnvToolsDir, "/opt/forensic-tools")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Paths.EvidenceRoot != "/from/env" {
		t.Errorf("expected evidence_root=/from/env, got %s", cfg.Paths.EvidenceRoot)
	}
	if cfg.Paths.Tools != "/opt/forensic-tools" {
		t.Errorf("expected tools=/opt/forensic-tools, got %s", cfg.Paths.Tools)
	}
}

func TestLoad_ExpandsVariables(t *testing.T) {
	t.Setenv(EnvEvidenceRoot, "")
	t.Setenv("HOME", "/home/examiner")
	t.Setenv("CASE_VOLUME", "")

	configPath := filepath.Join(t.TempDir(), "custody.yaml")
	content := "paths:\n  evidence_root: ${CASE_VOLUME:-/cases}\n  tools: ${HOME}/tools\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(EnvToolsDir, "")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Paths.EvidenceRoot != "/cases" {
		t.Errorf("expected evidence_root=/cases, got %s", cfg.Paths.EvidenceRoot)
	}
	if cfg.Paths.Tools != "/home/examiner/tools" {
		t.Errorf("expected tools=/home/examiner/tools, got %s", cfg.Paths.Tools)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{"${HOME}/evidence", map[string]string{"HOME": "/home/examiner"}, "/home/examiner/evidence"},
		{"${CUSTODY_TEST_MISSING:-fallback}", map[string]string{}, "fallback"},
		{"${A}/${B}", map[string]string{"A": "first", "B": "second"}, "first/second"},
		{"no variables here", map[string]string{}, "no variables here"},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"low iterations", func(c *Config) { c.Vault.Iterations = 10000 }, "vault.iterations"},
		{"unknown cipher", func(c *Config) { c.Vault.Cipher = "rot13" }, "vault.cipher"},
		{"unknown compression", func(c *Config) { c.Acquisition.ImageCompression = "bzip2" }, "image_compression"},
		{"too many workers", func(c *Config) { c.Acquisition.AppDataWorkers = 64 }, "app_data_workers"},
		{"unknown delete mode", func(c *Config) { c.Cleanup.SecureDelete = "maybe" }, "secure_delete"},
		{"no evidence root", func(c *Config) { c.Paths.EvidenceRoot = "" }, "evidence_root"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error %q does not mention %q", err, test.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Paths.EvidenceRoot = filepath.Join(root, "evidence")
	cfg.Paths.Tools = filepath.Join(root, "tools")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths() failed: %v", err)
	}
	for _, path := range []string{cfg.Paths.EvidenceRoot, cfg.Paths.Tools} {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Errorf("%s was not created", path)
		}
	}
}

func TestBinaryPath_PrefersToolsDirectory(t *testing.T) {
	tools := t.TempDir()
	toolPath := filepath.Join(tools, "foremost")
	if err := os.WriteFile(toolPath, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("writing tool: %v", err)
	}

	cfg := Default()
	cfg.Paths.Tools = tools

	got, err := cfg.BinaryPath("foremost")
	if err != nil {
		t.Fatalf("BinaryPath() failed: %v", err)
	}
	if got != toolPath {
		t.Errorf("BinaryPath() = %s, want %s", got, toolPath)
	}

	if _, err := cfg.BinaryPath("definitely-not-a-carving-tool"); err == nil {
		t.Error("expected error for missing tool")
	}
}
