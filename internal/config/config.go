// Package config resolves the kernel's on-disk layout: the config
// directory holding the policy and packs, the cache directory holding
// sessions/snapshots/language grammars, and the mode that governs
// fail-open/fail-closed behavior.
package config

import (
	"os"
	"path/filepath"
)

const (
	configDirName = "veto"
	cacheDirName  = "veto-leash"

	DefaultPolicyFile = ".veto"
	DefaultAuditFile  = "audit.jsonl"
	DefaultSessionsFile = "sessions.json"
	PacksDirName        = "packs"
	SnapshotsDirName    = "snapshots"
	LanguagesDirName    = "languages"
)

// Config is the kernel's resolved runtime layout.
type Config struct {
	PolicyPath   string // ~/.config/veto/.veto (or user-supplied override)
	ConfigDir    string // ~/.config/veto
	PacksDir     string // ~/.config/veto/packs
	AuditLogPath string // ~/.config/veto-leash/audit.jsonl
	SnapshotsDir string // ~/.config/veto-leash/snapshots
	CacheDir     string // ~/.cache/veto-leash
	SessionsPath string // ~/.cache/veto-leash/sessions.json
	LanguagesDir string // ~/.cache/veto-leash/languages
	Mode         string // "strict" or "log"
}

// Load resolves the kernel's directories, creating them with 0700 if
// missing, and fills in default file paths for any argument left empty.
func Load(policyPath, auditLogPath, mode string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configBase, err := userConfigBase(homeDir)
	if err != nil {
		return nil, err
	}
	cacheBase, err := userCacheBase(homeDir)
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(configBase, configDirName)
	vetoLeashConfigDir := filepath.Join(configBase, cacheDirName)
	cacheDir := filepath.Join(cacheBase, cacheDirName)

	for _, dir := range []string{configDir, vetoLeashConfigDir, cacheDir} {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}

	packsDir := filepath.Join(configDir, PacksDirName)
	if err := ensureDir(packsDir); err != nil {
		return nil, err
	}
	snapshotsDir := filepath.Join(vetoLeashConfigDir, SnapshotsDirName)
	if err := ensureDir(snapshotsDir); err != nil {
		return nil, err
	}
	languagesDir := filepath.Join(cacheDir, LanguagesDirName)
	if err := ensureDir(languagesDir); err != nil {
		return nil, err
	}

	cfg := &Config{
		ConfigDir:    configDir,
		PacksDir:     packsDir,
		AuditLogPath: filepath.Join(vetoLeashConfigDir, DefaultAuditFile),
		SnapshotsDir: snapshotsDir,
		CacheDir:     cacheDir,
		SessionsPath: filepath.Join(cacheDir, DefaultSessionsFile),
		LanguagesDir: languagesDir,
		Mode:         mode,
	}

	if policyPath != "" {
		cfg.PolicyPath = policyPath
	} else {
		cfg.PolicyPath = filepath.Join(configDir, DefaultPolicyFile)
	}
	if auditLogPath != "" {
		cfg.AuditLogPath = auditLogPath
	}
	if cfg.Mode == "" {
		cfg.Mode = "strict"
	}

	return cfg, nil
}

// userConfigBase returns $XDG_CONFIG_HOME or ~/.config.
func userConfigBase(homeDir string) (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg, nil
	}
	return filepath.Join(homeDir, ".config"), nil
}

// userCacheBase returns $XDG_CACHE_HOME or ~/.cache.
func userCacheBase(homeDir string) (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg, nil
	}
	return filepath.Join(homeDir, ".cache"), nil
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0o700)
	}
	return nil
}
