package main

import (
	"os"
	"path/filepath"
	"strings"
)

// resolveConfigPath applies the --profile flag / MEAO_PROFILE env var, then
// MEAO_CONFIG, then falls back to "meao.yaml", mirroring
// cmd/nexus/main.go's resolveConfigPath precedence (profile overrides an
// explicit path; an explicit path overrides the environment default).
func resolveConfigPath(path string) string {
	if active := activeProfile(); active != "" {
		return profileConfigPath(active)
	}
	if strings.TrimSpace(path) != "" {
		return path
	}
	if envPath := strings.TrimSpace(os.Getenv("MEAO_CONFIG")); envPath != "" {
		return envPath
	}
	return "meao.yaml"
}

func activeProfile() string {
	if p := strings.TrimSpace(profileName); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv("MEAO_PROFILE"))
}

func profileConfigPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name + ".yaml"
	}
	return filepath.Join(home, ".meao", "profiles", name+".yaml")
}
