package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"imanconnect/backend"
	"imanconnect/backend/sqlite"
	"imanconnect/internal/async"
	"imanconnect/internal/config"
	"imanconnect/internal/credentials"
	"imanconnect/internal/utils"
	"imanconnect/internal/views"
)

// accountView is the JSON shape of an account; the password hash never leaves
// the data layer.
type accountView struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Gender         string    `json:"gender"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func viewAccount(acct *backend.Account) accountView {
	return accountView{
		ID:             acct.ID,
		Username:       acct.Username,
		FullName:       acct.FullName,
		Email:          acct.Email,
		Gender:         acct.Gender,
		ProfilePicture: acct.ProfilePicturePath,
		CreatedAt:      acct.CreatedAt,
	}
}

// newInitCmd creates the config file and the database schema
func newInitCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the config file and database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			var version int
			if err := a.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
				var err error
				version, err = sqlite.SchemaVersion(ctx, conn)
				return err
			}); err != nil {
				return a.explain(async.KindConnection, err)
			}
			seeded, err := await(ctx, a, a.svc.SeedCommunities(ctx))
			if err != nil {
				return err
			}

			if a.json() {
				return writeJSON(stdout, map[string]any{
					"database":       a.conf.Database.Path,
					"schema_version": version,
					"seeded":         seeded,
					"result":         ResultActionCompleted,
				})
			}
			a.done("Database ready at %s (schema version %d)", a.conf.Database.Path, version)
			return nil
		},
	}
}

// newVersionCmd prints the build version
func newVersionCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.jsonOutput() {
				return writeJSON(stdout, map[string]string{"version": Version})
			}
			_, _ = fmt.Fprintf(stdout, "imanconnect %s\n", Version)
			return nil
		},
	}
}

// newConfigCmd shows the effective configuration
func newConfigCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			if cfg.jsonOutput() {
				return writeJSON(stdout, conf)
			}
			out, err := conf.YAML()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(stdout, out)
			return nil
		},
	}
	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := cfg.ConfigPath
			if p == "" {
				p = filepath.Join(config.GetConfigDir(), "config.yaml")
			}
			_, _ = fmt.Fprintln(stdout, p)
			return nil
		},
	}
	return groupCmd("config", "Inspect configuration", show, path)
}

// newRegisterCmd registers a member or a scholar
func newRegisterCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var (
		in        backend.NewScholar
		confirm   string
		asScholar bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			if in.FullName, err = a.prompt("Full name", in.FullName, false); err != nil {
				return err
			}
			if in.Email, err = a.prompt("Email", in.Email, false); err != nil {
				return err
			}
			if in.Username, err = a.prompt("Username", in.Username, false); err != nil {
				return err
			}
			if in.Password, err = a.prompt("Password", in.Password, true); err != nil {
				return err
			}
			if !cfg.NoPrompt && confirm == "" {
				if confirm, err = a.prompt("Confirm password", "", true); err != nil {
					return err
				}
			}
			if confirm != "" && confirm != in.Password {
				return errors.New("passwords do not match")
			}
			if asScholar {
				if in.Specialization, err = a.prompt("Specialization", in.Specialization, false); err != nil {
					return err
				}
			}

			var view accountView
			if asScholar {
				sc, err := await(ctx, a, a.svc.RegisterScholar(ctx, in))
				if err != nil {
					return registrationErr(err, in.Username, in.Email)
				}
				view = accountView{
					ID: sc.UserID, Username: sc.Username, FullName: sc.FullName,
					Email: sc.Email, Gender: sc.Gender, CreatedAt: sc.CreatedAt,
				}
			} else {
				acct, err := await(ctx, a, a.svc.RegisterAccount(ctx, in.NewAccount))
				if err != nil {
					return registrationErr(err, in.Username, in.Email)
				}
				view = viewAccount(acct)
			}
			if _, err := await(ctx, a, a.svc.SeedCommunities(ctx)); err != nil {
				a.log.Warn("seed communities: %v", err)
			}

			if a.json() {
				return writeJSON(stdout, view)
			}
			role := "account"
			if asScholar {
				role = "scholar account"
			}
			a.done("Created %s %s", role, view.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	cmd.Flags().StringVarP(&in.Username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&confirm, "confirm", "", "Password confirmation")
	cmd.Flags().StringVar(&in.Gender, "gender", "", "Male or Female (default Male)")
	cmd.Flags().BoolVar(&asScholar, "scholar", false, "Register as a scholar")
	cmd.Flags().StringVar(&in.Specialization, "specialization", "", "Scholar specialization")
	cmd.Flags().StringVar(&in.Qualifications, "qualifications", "", "Scholar qualifications")
	cmd.Flags().StringVar(&in.Bio, "bio", "", "Scholar biography")
	return cmd
}

func registrationErr(err error, username, email string) error {
	if errors.Is(err, backend.ErrDuplicate) {
		return utils.ErrAccountExists(username, email)
	}
	return err
}

// newLoginCmd validates credentials and stores the session
func newLoginCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var (
		username, password string
		asScholar          bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a member or scholar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			if username, err = a.prompt("Username", username, false); err != nil {
				return err
			}
			if password, err = a.prompt("Password", password, true); err != nil {
				return err
			}

			session := credentials.Session{Username: strings.TrimSpace(username), Role: credentials.RoleMember}
			var ok bool
			if asScholar {
				ok, err = await(ctx, a, a.svc.ValidateScholarLogin(ctx, username, password))
			} else {
				ok, err = await(ctx, a, a.svc.ValidateLogin(ctx, username, password))
			}
			if err != nil {
				return err
			}
			if !ok {
				return utils.ErrInvalidCredentials(username)
			}

			acct, found, err := lookup(ctx, a, a.svc.GetAccountByUsername(ctx, session.Username))
			if err != nil {
				return err
			}
			if !found {
				return utils.ErrAccountNotFound(session.Username)
			}
			session.AccountID = acct.ID
			if asScholar {
				sc, found, err := lookup(ctx, a, a.svc.GetScholarByUsername(ctx, session.Username))
				if err != nil {
					return err
				}
				if !found {
					return utils.ErrScholarNotFound(session.Username)
				}
				session.Role = credentials.RoleScholar
				session.ScholarID = sc.ID
			}

			saved, err := a.sessions.Save(ctx, session)
			if err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, saved)
			}
			a.done("Welcome, %s", acct.FullName)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	cmd.Flags().BoolVar(&asScholar, "scholar", false, "Log in as a scholar")
	return cmd
}

// newLogoutCmd ends the session; scholars are marked offline
func newLogoutCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.whoami(ctx)
			if err == nil && id.scholar != nil {
				if _, err := await(ctx, a, a.svc.SetScholarOffline(ctx, id.scholar.ID)); err != nil {
					a.log.Warn("mark scholar offline: %v", err)
				}
			}
			if err := a.sessions.Clear(ctx); err != nil {
				return err
			}
			a.done("Logged out")
			return nil
		},
	}
}

// newWhoamiCmd shows the current identity
func newWhoamiCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.whoami(ctx)
			if err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, map[string]any{
					"account": viewAccount(id.account),
					"role":    id.session.Role,
					"source":  id.session.Source,
				})
			}
			a.render.Message("%s (%s)", id.account.FullName, id.account.Username)
			a.render.Message("Role:   %s", id.session.Role)
			a.render.Message("Gender: %s", id.account.Gender)
			a.render.Message("Email:  %s", id.account.Email)
			a.render.Message("Source: %s", id.session.Source)
			a.info()
			return nil
		},
	}
}

// newPasswordCmd changes the current member's password
func newPasswordCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var password, confirm string
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.whoami(ctx)
			if err != nil {
				return err
			}
			if password, err = a.prompt("New password", password, true); err != nil {
				return err
			}
			if !cfg.NoPrompt && confirm == "" {
				if confirm, err = a.prompt("Confirm password", "", true); err != nil {
					return err
				}
			}
			if confirm != "" && confirm != password {
				return errors.New("passwords do not match")
			}
			if _, err := await(ctx, a, a.svc.UpdatePassword(ctx, id.account.Username, password)); err != nil {
				return err
			}
			a.done("Password updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted when omitted)")
	cmd.Flags().StringVar(&confirm, "confirm", "", "Password confirmation")
	return cmd
}

// newAvatarCmd manages the profile picture
func newAvatarCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	set := &cobra.Command{
		Use:   "set <file>",
		Short: "Copy an image in as your profile picture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.whoami(ctx)
			if err != nil {
				return err
			}
			path, err := a.avatars().Save(id.account.Username, args[0], id.account.ProfilePicturePath)
			if err != nil && path == "" {
				return err
			}
			if err != nil {
				a.log.Warn("%v", err)
			}
			if _, err := await(ctx, a, a.svc.UpdateProfilePicture(ctx, id.account.Username, path)); err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, map[string]string{"profile_picture": path})
			}
			a.done("Profile picture saved to %s", path)
			return nil
		},
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the profile picture path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.whoami(ctx)
			if err != nil {
				return err
			}
			path, found, err := lookup(ctx, a, a.svc.GetProfilePicturePath(ctx, id.account.Username))
			if err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, map[string]string{"profile_picture": path})
			}
			if !found {
				a.render.Message("No profile picture set")
			} else {
				a.render.Message("%s", path)
			}
			a.info()
			return nil
		},
	}
	return groupCmd("avatar", "Manage your profile picture", set, show)
}

// newUsersCmd lists registered members
func newUsersCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var gender string
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List registered members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			var accts []backend.Account
			if gender == "" {
				accts, err = await(ctx, a, a.svc.ListAccounts(ctx))
			} else {
				accts, err = await(ctx, a, a.svc.ListAccountsByGender(ctx, gender))
			}
			if err != nil {
				return err
			}
			return renderAccounts(a, "Members", accts)
		},
	}
	cmd.Flags().StringVar(&gender, "gender", "", "Only list Male or Female members")
	return cmd
}

func renderAccounts(a *app, title string, accts []backend.Account) error {
	if a.json() {
		out := make([]accountView, len(accts))
		for i := range accts {
			out[i] = viewAccount(&accts[i])
		}
		return writeJSON(a.out, out)
	}
	t := views.Table{
		Title:   title,
		Columns: views.Cols("ID", "Username", "Name", "Gender", "Joined"),
		Empty:   "No members found",
	}
	for _, acct := range accts {
		t.Rows = append(t.Rows, []string{
			fmt.Sprint(acct.ID), acct.Username, acct.FullName, acct.Gender,
			acct.CreatedAt.Local().Format(views.DefaultDateFormat),
		})
	}
	a.render.RenderTable(t)
	a.info()
	return nil
}
