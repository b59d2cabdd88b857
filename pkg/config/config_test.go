package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "vault")
	p := writeConfig(t, "name: ${SAMPLE_NAME}\nport: 80\n")

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "vault" {
		t.Errorf("name = %q, want %q", s.Name, "vault")
	}
}

func TestLoad_Validates(t *testing.T) {
	p := writeConfig(t, "name: x\n")
	var s sample
	if err := Load(p, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOptional_MissingFileKeepsDefaults(t *testing.T) {
	s := sample{Name: "default", Port: 8080}
	loaded, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s)
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if loaded {
		t.Error("loaded = true for a missing file")
	}
	if s.Name != "default" || s.Port != 8080 {
		t.Errorf("defaults changed: %+v", s)
	}
}

func TestLoadOptional_OverridesDefaults(t *testing.T) {
	p := writeConfig(t, "port: 9090\n")
	s := sample{Name: "default", Port: 8080}
	loaded, err := LoadOptional(p, &s)
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if !loaded || s.Port != 9090 || s.Name != "default" {
		t.Errorf("loaded = %v, s = %+v", loaded, s)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got, want := ExpandHome("~/Vault"), filepath.Join(home, "Vault"); got != want {
		t.Errorf("got = %q, want %q", got, want)
	}
	if got := ExpandHome("/abs/~/x"); got != "/abs/~/x" {
		t.Errorf("got = %q, want unchanged", got)
	}
	if got := ExpandHome("~user/x"); got != "~user/x" {
		t.Errorf("got = %q, want unchanged", got)
	}
}
