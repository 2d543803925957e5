package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("CODESTASH_TEST_NAME", "stash")
	p := writeFile(t, "name: ${CODESTASH_TEST_NAME}\nport: 9000\n")

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "stash" || s.Port != 9000 {
		t.Errorf("loaded = %+v", s)
	}
}

func TestLoad_ValidationFails(t *testing.T) {
	p := writeFile(t, "name: x\nport: 0\n")

	var s sample
	err := Load(p, &s)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v, want validation failure", err)
	}
}

func TestLoadIfExists_MissingFileKeepsDefaults(t *testing.T) {
	s := sample{Name: "default", Port: 8080}
	found, err := LoadIfExists(filepath.Join(t.TempDir(), "nope.yaml"), &s)
	if err != nil {
		t.Fatalf("LoadIfExists: %v", err)
	}
	if found {
		t.Error("found = true for missing file")
	}
	if s.Name != "default" || s.Port != 8080 {
		t.Errorf("defaults changed: %+v", s)
	}
}

func TestLoadIfExists_MissingFileStillValidates(t *testing.T) {
	var s sample
	if _, err := LoadIfExists(filepath.Join(t.TempDir(), "nope.yaml"), &s); err == nil {
		t.Fatal("zero config should fail validation")
	}
}

func TestLoadIfExists_OverridesDefaults(t *testing.T) {
	p := writeFile(t, "port: 9100\n")
	s := sample{Name: "default", Port: 8080}
	found, err := LoadIfExists(p, &s)
	if err != nil || !found {
		t.Fatalf("found = %v, err = %v", found, err)
	}
	if s.Name != "default" || s.Port != 9100 {
		t.Errorf("loaded = %+v", s)
	}
}
