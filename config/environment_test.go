package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigPathForEnvironmentPrefersSiblingFile(t *testing.T) {
	os.Setenv("APP_ENV", "production")
	defer os.Unsetenv("APP_ENV")

	dir := t.TempDir()
	basePath := filepath.Join(dir, "config.yml")
	prodPath := filepath.Join(dir, "config.production.yml")

	if err := os.WriteFile(basePath, []byte("base"), 0o644); err != nil {
		t.Fatalf("write base config: %v", err)
	}
	if err := os.WriteFile(prodPath, []byte("prod"), 0o644); err != nil {
		t.Fatalf("write prod config: %v", err)
	}

	if got := ConfigPathForEnvironment(basePath); got != prodPath {
		t.Fatalf("ConfigPathForEnvironment = %q, want %q", got, prodPath)
	}
}

func TestConfigPathForEnvironmentFallsBackWithoutSibling(t *testing.T) {
	os.Setenv("APP_ENV", "staging")
	defer os.Unsetenv("APP_ENV")

	basePath := filepath.Join(t.TempDir(), "config.yml")
	if got := ConfigPathForEnvironment(basePath); got != basePath {
		t.Fatalf("ConfigPathForEnvironment = %q, want unchanged %q", got, basePath)
	}
}

func TestIsProductionLike(t *testing.T) {
	cases := map[string]bool{
		EnvironmentProduction:  true,
		EnvironmentStaging:     true,
		EnvironmentDevelopment: false,
		"":                     false,
	}
	for env, want := range cases {
		if got := IsProductionLike(env); got != want {
			t.Errorf("IsProductionLike(%q) = %v, want %v", env, got, want)
		}
	}
}

func TestLoadConfigRejectsProductionWithoutCloudWatch(t *testing.T) {
	os.Setenv("APP_ENV", "production")
	defer os.Unsetenv("APP_ENV")

	path := writeTempConfig(t, minimalConfig)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for production config without cloudwatch enabled")
	}
}
