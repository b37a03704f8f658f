package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"imanconnect/internal/credentials"
	"imanconnect/internal/quran"
)

// =============================================================================
// Core CLI Tests
// These tests verify basic CLI functionality: help, version, flags, config and
// the commands that need no account. Feature-specific CLI tests are co-located
// with their feature code:
// - Accounts, trackers, fatwa, messaging: backend/sqlite/cli_test.go
// - Daily files: backend/flatfile/cli_test.go
// - Backups and serve: internal/backup/cli_test.go
// =============================================================================

var testNow = time.Date(2025, 3, 10, 10, 0, 0, 0, time.Local)

type stubQuran struct{ err error }

func (s stubQuran) VerseText(_ context.Context, surah, ayah int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "بِسْمِ اللَّهِ", nil
}

func (s stubQuran) Translation(context.Context, int, int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "In the name of Allah", nil
}

func (s stubQuran) ListSurahs(context.Context) ([]quran.Surah, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []quran.Surah{{Number: 1, EnglishName: "Al-Faatiha", EnglishNameTranslation: "The Opening", NumberOfAyahs: 7, RevelationType: "Meccan"}}, nil
}

// newTestConfig returns an isolated config rooted in a temp dir.
func newTestConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	conf := "security:\n  bcrypt_cost: 4\nnotification:\n  desktop:\n    enabled: false\n"
	if err := os.WriteFile(configPath, []byte(conf), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return &Config{
		NoPrompt:   true,
		ConfigPath: configPath,
		DataDir:    filepath.Join(dir, "data"),
		Stdin:      strings.NewReader(""),
		Keyring:    credentials.NewMockKeyring(),
		Getenv:     func(string) string { return "" },
		Now:        func() time.Time { return testNow },
		Quran:      stubQuran{},
	}
}

func run(t *testing.T, cfg *Config, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr, cfg)
	return stdout.String(), stderr.String(), code
}

// --- Help and Version Tests ---

// TestHelpFlagCoreCLI verifies that --help displays usage information
func TestHelpFlagCoreCLI(t *testing.T) {
	stdout, stderr, code := run(t, nil, "--help")
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "imanconnect") {
		t.Errorf("help output should contain 'imanconnect', got: %s", stdout)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Errorf("help output should contain 'Usage:', got: %s", stdout)
	}
	for _, sub := range []string{"prayer", "quran", "fatwa", "message", "backup", "dashboard"} {
		if !strings.Contains(stdout, sub) {
			t.Errorf("help output should list %q", sub)
		}
	}
}

// TestNoArgsShowsHelpCoreCLI verifies that running with no args shows help
func TestNoArgsShowsHelpCoreCLI(t *testing.T) {
	stdout, _, code := run(t, nil)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Errorf("expected usage, got: %s", stdout)
	}
}

// TestVersionCoreCLI verifies the version command and its JSON form
func TestVersionCoreCLI(t *testing.T) {
	stdout, _, code := run(t, nil, "version")
	if code != 0 || !strings.Contains(stdout, "imanconnect "+Version) {
		t.Errorf("unexpected version output (%d): %s", code, stdout)
	}

	stdout, _, code = run(t, nil, "--json", "version")
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if got["version"] != Version {
		t.Errorf("expected version %q, got %q", Version, got["version"])
	}
}

// TestUnknownCommandCoreCLI verifies unknown commands fail with ERROR in no-prompt mode
func TestUnknownCommandCoreCLI(t *testing.T) {
	stdout, stderr, code := run(t, &Config{NoPrompt: true}, "pray")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "unknown command") {
		t.Errorf("expected unknown command error, got: %s", stderr)
	}
	if strings.TrimSpace(stdout) != ResultError {
		t.Errorf("expected %s on stdout, got: %s", ResultError, stdout)
	}
}

// TestConfigDoesNotLeakBetweenRunsCoreCLI verifies flags only apply to their run
func TestConfigDoesNotLeakBetweenRunsCoreCLI(t *testing.T) {
	cfg := newTestConfig(t)

	run(t, cfg, "--json", "version")
	stdout, _, _ := run(t, cfg, "version")
	if strings.HasPrefix(strings.TrimSpace(stdout), "{") {
		t.Errorf("--json leaked into the next run: %s", stdout)
	}
	if cfg.OutputFormat != "" {
		t.Errorf("caller's config was modified: %q", cfg.OutputFormat)
	}
}

// --- Config and Init Tests ---

func TestInitCreatesDatabaseCoreCLI(t *testing.T) {
	cfg := newTestConfig(t)

	stdout, stderr, code := run(t, cfg, "init")
	if code != 0 {
		t.Fatalf("init failed (%d): %s", code, stderr)
	}
	if !strings.Contains(stdout, "schema version") {
		t.Errorf("expected schema version in output, got: %s", stdout)
	}
	if !strings.HasSuffix(strings.TrimSpace(stdout), ResultActionCompleted) {
		t.Errorf("expected %s, got: %s", ResultActionCompleted, stdout)
	}
	if _, err := os.Stat(filepath.Join(cfg.DataDir, "imanconnect.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	// a second init is a no-op
	stdout, _, _ = run(t, cfg, "--json", "init")
	var got struct {
		SchemaVersion int `json:"schema_version"`
		Seeded        int `json:"seeded"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if got.SchemaVersion < 1 {
		t.Errorf("expected a schema version, got %d", got.SchemaVersion)
	}
	if got.Seeded != 0 {
		t.Errorf("expected no new seed messages, got %d", got.Seeded)
	}
}

func TestInitWritesSampleConfigCoreCLI(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ConfigPath = filepath.Join(t.TempDir(), "fresh", "config.yaml")

	if _, stderr, code := run(t, cfg, "init"); code != 0 {
		t.Fatalf("init failed (%d): %s", code, stderr)
	}
	data, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		t.Fatalf("sample config not written: %v", err)
	}
	if !strings.Contains(string(data), "backup:") {
		t.Errorf("sample config should contain a backup section, got:\n%s", data)
	}
}

func TestConfigPathAndShowCoreCLI(t *testing.T) {
	cfg := newTestConfig(t)

	stdout, _, code := run(t, cfg, "config", "path")
	if code != 0 || strings.TrimSpace(stdout) != cfg.ConfigPath {
		t.Errorf("expected %s, got (%d) %s", cfg.ConfigPath, code, stdout)
	}

	stdout, _, code = run(t, cfg, "config", "show")
	if code != 0 {
		t.Fatalf("config show failed: %d", code)
	}
	if !strings.Contains(stdout, "bcrypt_cost: 4") {
		t.Errorf("expected file values in effective config, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "retention: 5") {
		t.Errorf("expected defaults in effective config, got:\n%s", stdout)
	}
}

func TestInvalidConfigCoreCLI(t *testing.T) {
	cfg := newTestConfig(t)
	if err := os.WriteFile(cfg.ConfigPath, []byte("output_format: xml\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, stderr, code := run(t, cfg, "init")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "outputformat must be one of") {
		t.Errorf("expected the bad field to be named, got: %s", stderr)
	}
}

// --- Commands without an account ---

func TestTimesCoreCLI(t *testing.T) {
	cfg := newTestConfig(t)

	stdout, _, code := run(t, cfg, "times")
	if code != 0 {
		t.Fatalf("times failed: %d", code)
	}
	for _, want := range []string{"Dhaka", "Fajr", "4:15 AM", "Iftar", "Next: Dhuhr at 12:10 PM"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output, got:\n%s", want, stdout)
		}
	}

	stdout, _, _ = run(t, cfg, "--json", "times")
	var got map[string]string
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if got["next"] != "Dhuhr" || got["fajr"] != "4:15 AM" {
		t.Errorf("unexpected times: %v", got)
	}
}

func TestQuranVerseCoreCLI(t *testing.T) {
	cfg := newTestConfig(t)

	stdout, _, code := run(t, cfg, "quran", "verse", "1", "1", "-t")
	if code != 0 {
		t.Fatalf("verse failed: %d", code)
	}
	if !strings.Contains(stdout, "1:1") || !strings.Contains(stdout, "In the name of Allah") {
		t.Errorf("unexpected verse output:\n%s", stdout)
	}

	cfg.Quran = stubQuran{err: errors.New("quran api unavailable")}
	_, stderr, code := run(t, cfg, "quran", "verse", "1", "1")
	if code != 1 || !strings.Contains(stderr, "quran api unavailable") {
		t.Errorf("expected provider error, got (%d) %s", code, stderr)
	}
}

func TestQuranSurahsCoreCLI(t *testing.T) {
	cfg := newTestConfig(t)

	stdout, _, code := run(t, cfg, "quran", "surahs")
	if code != 0 {
		t.Fatalf("surahs failed: %d", code)
	}
	if !strings.Contains(stdout, "Al-Faatiha") || !strings.Contains(stdout, "The Opening") {
		t.Errorf("unexpected surahs output:\n%s", stdout)
	}
}

func TestDashboardCoreCLI(t *testing.T) {
	cfg := newTestConfig(t)

	register := []string{"register", "--name", "Omar Farooq", "--email", "omar@example.com",
		"--username", "omar", "--password", "secret123"}
	if _, stderr, code := run(t, cfg, register...); code != 0 {
		t.Fatalf("register failed: %s", stderr)
	}
	if _, stderr, code := run(t, cfg, "login", "-u", "omar", "--password", "secret123"); code != 0 {
		t.Fatalf("login failed: %s", stderr)
	}
	run(t, cfg, "prayer", "mark", "fajr", "on-time")
	run(t, cfg, "quran", "pages", "3")

	stdout, stderr, code := run(t, cfg, "dashboard")
	if code != 0 {
		t.Fatalf("dashboard failed (%d): %s", code, stderr)
	}
	for _, want := range []string{"Assalamu alaikum, Omar Farooq", "1/5", "3/10 pages", "Dhuhr"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in dashboard, got:\n%s", want, stdout)
		}
	}

	stdout, _, _ = run(t, cfg, "--json", "dashboard")
	var got dashboardView
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if got.PrayersDone != 1 || got.QuranPages != 3 || got.NextPrayer != "Dhuhr" {
		t.Errorf("unexpected dashboard: %+v", got)
	}
	if got.Prayers["Fajr"] != "ON_TIME" {
		t.Errorf("expected Fajr ON_TIME, got %q", got.Prayers["Fajr"])
	}
}
