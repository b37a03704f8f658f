package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"imanconnect/internal/credentials"
	"imanconnect/internal/quran"
	"imanconnect/internal/utils"
)

// Version is set at build time
var Version = "dev"

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// Config holds per-invocation settings. The overrides exist for tests.
type Config struct {
	NoPrompt     bool
	Verbose      bool
	OutputFormat string
	ConfigPath   string
	DBPath       string // overrides database.path
	DataDir      string // overrides every data location (flat files, backups, logs)

	Stdin   io.Reader
	Keyring credentials.Keyring
	Getenv  func(string) string
	Now     func() time.Time
	Quran   quran.Provider
}

func (c *Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Config) jsonOutput() bool {
	return c.OutputFormat == "json"
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	if cfg == nil {
		cfg = &Config{}
	}
	// flags are applied to a copy so one Config can serve several runs
	run := *cfg
	cfg = &run
	rootCmd := NewImanConnect(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if containsJSONFlag(args) || cfg.jsonOutput() {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewImanConnect creates the root command with injectable IO
func NewImanConnect(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "imanconnect",
		Short:   "Prayer, Quran and community companion",
		Long:    "imanconnect keeps prayer, Quran, dhikr and fasting logs, fatwa questions and community messages in a local database.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
				cfg.NoPrompt = true
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				cfg.Verbose = true
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				cfg.OutputFormat = "json"
			}
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				cfg.ConfigPath = path
			}
			utils.SetVerboseMode(cfg.Verbose)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().String("config", "", "Path to config file")

	cmd.AddCommand(
		newInitCmd(stdout, stderr, cfg),
		newVersionCmd(stdout, cfg),
		newConfigCmd(stdout, stderr, cfg),
		newRegisterCmd(stdout, stderr, cfg),
		newLoginCmd(stdout, stderr, cfg),
		newLogoutCmd(stdout, stderr, cfg),
		newWhoamiCmd(stdout, stderr, cfg),
		newPasswordCmd(stdout, stderr, cfg),
		newAvatarCmd(stdout, stderr, cfg),
		newUsersCmd(stdout, stderr, cfg),
		newPrayerCmd(stdout, stderr, cfg),
		newTimesCmd(stdout, stderr, cfg),
		newQuranCmd(stdout, stderr, cfg),
		newTasbihCmd(stdout, stderr, cfg),
		newFastCmd(stdout, stderr, cfg),
		newZikrCmd(stdout, stderr, cfg),
		newFatwaCmd(stdout, stderr, cfg),
		newScholarsCmd(stdout, stderr, cfg),
		newMessageCmd(stdout, stderr, cfg),
		newBackupCmd(stdout, stderr, cfg),
		newNotificationCmd(stdout, stderr, cfg),
		newReminderCmd(stdout, stderr, cfg),
		newServeCmd(stdout, stderr, cfg),
		newDashboardCmd(stdout, stderr, cfg),
	)

	return cmd
}

// groupCmd is a parent command that only shows help
func groupCmd(use, short string, children ...*cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.AddCommand(children...)
	return c
}

type errorResponse struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
	Code       int    `json:"code"`
	Result     string `json:"result"`
}

// outputErrorJSON outputs an error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	response := errorResponse{
		Error:      err.Error(),
		Suggestion: suggestionOf(err),
		Code:       1,
		Result:     ResultError,
	}

	jsonBytes, _ := json.Marshal(response)
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}

// writeJSON prints v as indented JSON
func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// resultCode emits code in no-prompt mode
func resultCode(w io.Writer, cfg *Config, code string) {
	if cfg.NoPrompt && !cfg.jsonOutput() {
		_, _ = fmt.Fprintln(w, code)
	}
}
