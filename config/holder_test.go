package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/artpar/gatewayd/config"
)

func TestHolder_Get(t *testing.T) {
	path := writeConfig(t, `
clients:
  users_api:
    type: http
    base_url: "http://localhost:9001"
routes: []
`)

	h, err := config.NewHolder(path)
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}

	got := h.Get()
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if got.Clients["users_api"].BaseURL != "http://localhost:9001" {
		t.Errorf("BaseURL = %s, want http://localhost:9001", got.Clients["users_api"].BaseURL)
	}
}

func TestNewHolder_InvalidPath(t *testing.T) {
	_, err := config.NewHolder("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent config path")
	}
}

func TestNewHolder_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
clients:
  users_api:
    type: carrier_pigeon
routes: []
`)

	_, err := config.NewHolder(path)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestHolder_ConcurrentGet(t *testing.T) {
	path := writeConfig(t, `
clients: {}
routes: []
`)

	h, err := config.NewHolder(path)
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if cfg := h.Get(); cfg == nil {
					t.Error("concurrent Get returned nil")
				}
			}
		}()
	}
	wg.Wait()
}

// Helpers

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
