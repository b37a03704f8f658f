// Package testutil provides shared test utilities for CLI testing across packages.
// This enables co-located CLI tests while maintaining consistent test infrastructure.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"imanconnect/cmd/imanconnect/cmd"
	"imanconnect/internal/credentials"
	"imanconnect/internal/quran"
)

// defaultTestConfig keeps tests fast and quiet: the lowest bcrypt cost and no
// desktop notifications.
const defaultTestConfig = `# test config
security:
  bcrypt_cost: 4
notification:
  desktop:
    enabled: false
location:
  division: Dhaka
  city: Dhaka
`

// FixedNow is the clock every CLITest runs on: 2025-03-10 10:00 local time.
var FixedNow = time.Date(2025, 3, 10, 10, 0, 0, 0, time.Local)

// CLITest provides a test helper for running CLI commands in isolation.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	tmpDir     string
	configPath string
	keyring    *credentials.MockKeyring
	now        time.Time
}

// NewCLITest creates a CLI test helper with its own data directory, config
// file, keyring and clock. Environment sessions are disabled.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(defaultTestConfig), 0644); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	c := &CLITest{
		t:          t,
		tmpDir:     tmpDir,
		configPath: configPath,
		keyring:    credentials.NewMockKeyring(),
		now:        FixedNow,
	}
	c.cfg = &cmd.Config{
		NoPrompt:   true,
		ConfigPath: configPath,
		DataDir:    filepath.Join(tmpDir, "data"),
		Stdin:      strings.NewReader(""),
		Keyring:    c.keyring,
		Getenv:     func(string) string { return "" },
		Now:        func() time.Time { return c.now },
		Quran:      &FakeQuran{},
	}
	return c
}

// Config returns the CLI config used for each run.
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// TmpDir returns the temporary directory for the test.
func (c *CLITest) TmpDir() string {
	return c.tmpDir
}

// DataDir returns where the database, flat files and backups live.
func (c *CLITest) DataDir() string {
	return c.cfg.DataDir
}

// ConfigPath returns the path to the config file.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// SetNow moves the test clock.
func (c *CLITest) SetNow(now time.Time) {
	c.now = now
}

// SetFullConfig replaces the entire config file with the given YAML content.
func (c *CLITest) SetFullConfig(yamlContent string) {
	c.t.Helper()
	if err := os.WriteFile(c.configPath, []byte(yamlContent), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// AppendConfig adds YAML to the default test config.
func (c *CLITest) AppendConfig(yamlContent string) {
	c.t.Helper()
	c.SetFullConfig(defaultTestConfig + yamlContent)
}

// Execute runs a CLI command with the given arguments and returns stdout, stderr, and exit code.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, c.cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// MustExecute runs a CLI command and fails the test if exit code is non-zero.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("expected exit code 0, got %d: stdout=%s stderr=%s", exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs a CLI command and fails the test if exit code is zero.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("expected non-zero exit code, got 0: stdout=%s", stdout)
	}
	return stdout, stderr
}

// Register creates a member account with password "secret123".
func (c *CLITest) Register(username, gender string) {
	c.t.Helper()
	c.MustExecute("register",
		"--name", strings.ToUpper(username[:1])+username[1:],
		"--email", username+"@example.com",
		"--username", username,
		"--password", "secret123",
		"--gender", gender,
	)
}

// RegisterScholar creates a scholar account with password "secret123".
func (c *CLITest) RegisterScholar(username, gender string) {
	c.t.Helper()
	c.MustExecute("register", "--scholar",
		"--name", "Sheikh "+username,
		"--email", username+"@example.com",
		"--username", username,
		"--password", "secret123",
		"--gender", gender,
		"--specialization", "Fiqh",
	)
}

// Login logs in as username with password "secret123".
func (c *CLITest) Login(username string, scholar bool) {
	c.t.Helper()
	args := []string{"login", "--username", username, "--password", "secret123"}
	if scholar {
		args = append(args, "--scholar")
	}
	c.MustExecute(args...)
}

// AssertContains fails the test if output doesn't contain expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains fails the test if output contains unexpected string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertExitCode fails the test if exit code doesn't match expected.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}

// AssertResultCode verifies that the output ends with the expected result code.
func AssertResultCode(t *testing.T, output, expectedCode string) {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		t.Errorf("expected result code %q but output is empty", expectedCode)
		return
	}
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	if lastLine != expectedCode {
		t.Errorf("expected result code %q, got %q\nFull output:\n%s", expectedCode, lastLine, output)
	}
}

// FakeQuran serves a fixed verse and a two-surah index.
type FakeQuran struct {
	Err error
}

var _ quran.Provider = (*FakeQuran)(nil)

// VerseText returns a placeholder Arabic text naming the verse.
func (f *FakeQuran) VerseText(_ context.Context, surah, ayah int) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return fmt.Sprintf("arabic %d:%d", surah, ayah), nil
}

// Translation returns a placeholder English text naming the verse.
func (f *FakeQuran) Translation(_ context.Context, surah, ayah int) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return fmt.Sprintf("english %d:%d", surah, ayah), nil
}

// ListSurahs returns Al-Fatiha and Al-Baqara.
func (f *FakeQuran) ListSurahs(context.Context) ([]quran.Surah, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return []quran.Surah{
		{Number: 1, Name: "الفاتحة", EnglishName: "Al-Faatiha", EnglishNameTranslation: "The Opening", NumberOfAyahs: 7, RevelationType: "Meccan"},
		{Number: 2, Name: "البقرة", EnglishName: "Al-Baqara", EnglishNameTranslation: "The Cow", NumberOfAyahs: 286, RevelationType: "Medinan"},
	}, nil
}
