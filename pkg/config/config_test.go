package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestInitWithCustomPath validates custom config path
func TestInitWithCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	customConfigPath := filepath.Join(tempDir, "custom", "path", "config.toml")

	if err := Init(customConfigPath); err != nil {
		t.Fatalf("Failed to initialize with custom path: %v", err)
	}

	expectedDir := filepath.Join(tempDir, "custom", "path")
	if GetConfigDir() != expectedDir {
		t.Errorf("Expected config dir %s, got %s", expectedDir, GetConfigDir())
	}
	if _, err := os.Stat(expectedDir); err != nil {
		t.Errorf("Config directory should exist: %v", err)
	}
	if GetCredentialsPath() != filepath.Join(expectedDir, "credentials") {
		t.Errorf("Unexpected credentials path %s", GetCredentialsPath())
	}
}

// TestDefaults validates the realtime and progress defaults
func TestDefaults(t *testing.T) {
	if err := Init(filepath.Join(t.TempDir(), "config.toml")); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	if got := GetString("api.base_url"); got != "http://localhost:8080" {
		t.Errorf("Expected default base URL 'http://localhost:8080', got '%s'", got)
	}
	if got := GetDuration("realtime.ping_interval"); got != 25*time.Second {
		t.Errorf("Expected ping interval 25s, got %v", got)
	}
	if got := GetDuration("realtime.pong_timeout"); got != 10*time.Second {
		t.Errorf("Expected pong timeout 10s, got %v", got)
	}
	if got := GetDuration("realtime.fallback_poll_interval"); got != 30*time.Second {
		t.Errorf("Expected fallback poll 30s, got %v", got)
	}
	if got := GetDuration("progress.window"); got != 10*time.Second {
		t.Errorf("Expected progress window 10s, got %v", got)
	}
	if GetBool("optimistic.reconcile_notification_reads") {
		t.Error("Notification read reconciliation should be off by default")
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second}
	got := BackoffSchedule()
	if len(got) != len(want) {
		t.Fatalf("Expected %d backoff entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("backoff[%d]: expected %v, got %v", i, want[i], got[i])
		}
	}
}

// TestUserConfigOverridesDefaults validates TOML loading
func TestUserConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[api]\nbase_url = \"https://api.example.com\"\n\n[tenant]\nslug = \"guitar\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	if err := Init(path); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	if got := GetString("tenant.slug"); got != "guitar" {
		t.Errorf("Expected tenant 'guitar', got '%s'", got)
	}
	if got := RESTBaseURL(); got != "https://api.example.com/api/v1" {
		t.Errorf("Unexpected REST base URL %s", got)
	}
	wsURL, err := RealtimeURL()
	if err != nil {
		t.Fatal(err)
	}
	if wsURL != "wss://api.example.com/ws" {
		t.Errorf("Unexpected realtime URL %s", wsURL)
	}
}

// TestEnvironmentOverride validates the env prefix binding
func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("COMMUNITY_TENANT_SLUG", "drums")
	t.Setenv("COMMUNITY_API_BASE_URL", "http://10.0.0.5:9000")

	if err := Init(filepath.Join(t.TempDir(), "config.toml")); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	if got := GetString("tenant.slug"); got != "drums" {
		t.Errorf("Expected tenant 'drums', got '%s'", got)
	}
	if got := GetString("api.base_url"); got != "http://10.0.0.5:9000" {
		t.Errorf("Expected env base URL, got '%s'", got)
	}
}

func TestDeriveRealtimeURL(t *testing.T) {
	testCases := []struct {
		origin  string
		path    string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "/ws", "ws://localhost:8080/ws", false},
		{"https://api.example.com", "/ws", "wss://api.example.com/ws", false},
		{"https://api.example.com/", "", "wss://api.example.com/ws", false},
		{"wss://rt.example.com", "/socket", "wss://rt.example.com/socket", false},
		{"ftp://example.com", "/ws", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.origin, func(t *testing.T) {
			got, err := DeriveRealtimeURL(tc.origin, tc.path)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected error for %s", tc.origin)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}
}
