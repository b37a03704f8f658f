package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"imanconnect/backend"
	"imanconnect/internal/utils"
)

// Migration is one forward schema step. Versions are applied in ascending
// order and recorded in schema_version; a recorded version never runs again.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

const createVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`

// Migrations is the ordered schema history. Each table is created by its own
// migration, so one failing CREATE rolls back only that table. Dates are TEXT
// (YYYY-MM-DD) and timestamps TEXT (RFC3339) so values round-trip without
// driver conversion.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create users",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				full_name TEXT NOT NULL,
				email TEXT UNIQUE NOT NULL,
				username TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				gender TEXT DEFAULT 'Male',
				profile_picture_path TEXT,
				created_at TEXT DEFAULT CURRENT_TIMESTAMP
			)`,
		},
	},
	{
		Version: 2,
		Name:    "create ramadan_fasting",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS ramadan_fasting (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				year INTEGER NOT NULL,
				day_number INTEGER NOT NULL,
				fasted BOOLEAN DEFAULT FALSE,
				notes TEXT,
				good_deeds TEXT,
				quran_pages INTEGER DEFAULT 0,
				created_at TEXT DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id),
				UNIQUE(user_id, year, day_number)
			)`,
		},
	},
	{
		Version: 3,
		Name:    "create salah_tracker",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS salah_tracker (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				prayer_date TEXT NOT NULL,
				fajr BOOLEAN DEFAULT FALSE,
				dhuhr BOOLEAN DEFAULT FALSE,
				asr BOOLEAN DEFAULT FALSE,
				maghrib BOOLEAN DEFAULT FALSE,
				isha BOOLEAN DEFAULT FALSE,
				notes TEXT,
				created_at TEXT DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id),
				UNIQUE(user_id, prayer_date)
			)`,
		},
	},
	{
		Version: 4,
		Name:    "create quran_tracker",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS quran_tracker (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				date TEXT NOT NULL,
				surah_number INTEGER NOT NULL,
				ayah_from INTEGER NOT NULL,
				ayah_to INTEGER NOT NULL,
				duration_minutes INTEGER,
				notes TEXT,
				created_at TEXT DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id)
			)`,
		},
	},
	{
		Version: 5,
		Name:    "create zikr_tracker",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS zikr_tracker (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				date TEXT NOT NULL,
				period TEXT NOT NULL CHECK(period IN ('morning', 'evening')),
				completed BOOLEAN DEFAULT FALSE,
				notes TEXT,
				created_at TEXT DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id),
				UNIQUE(user_id, date, period)
			)`,
		},
	},
	{
		Version: 6,
		Name:    "create tasbih_entries",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS tasbih_entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				entry_date TEXT NOT NULL,
				dhikr_name TEXT NOT NULL,
				count INTEGER NOT NULL,
				cycles INTEGER NOT NULL,
				total_count INTEGER NOT NULL,
				notes TEXT,
				created_at TEXT DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id)
			)`,
		},
	},
	{
		Version: 7,
		Name:    "create scholars",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS scholars (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER,
				full_name TEXT NOT NULL,
				email TEXT UNIQUE NOT NULL,
				username TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				specialization TEXT NOT NULL,
				qualifications TEXT,
				bio TEXT,
				gender TEXT DEFAULT 'Male',
				is_verified BOOLEAN DEFAULT FALSE,
				is_online BOOLEAN DEFAULT FALSE,
				last_seen TEXT,
				profile_picture_path TEXT,
				created_at TEXT DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id)
			)`,
		},
	},
	{
		Version: 8,
		Name:    "create fatwa_questions",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS fatwa_questions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				scholar_id INTEGER NOT NULL,
				question_title TEXT NOT NULL,
				question_text TEXT NOT NULL,
				category TEXT,
				priority TEXT DEFAULT 'normal' CHECK(priority IN ('low', 'normal', 'high')),
				status TEXT DEFAULT 'pending' CHECK(status IN ('pending', 'answered', 'rejected')),
				created_at TEXT DEFAULT CURRENT_TIMESTAMP,
				updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id),
				FOREIGN KEY (scholar_id) REFERENCES scholars(id)
			)`,
		},
	},
	{
		Version: 9,
		Name:    "create fatwa_answers",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS fatwa_answers (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				question_id INTEGER NOT NULL,
				scholar_id INTEGER NOT NULL,
				answer_text TEXT NOT NULL,
				references_text TEXT,
				is_public BOOLEAN DEFAULT TRUE,
				created_at TEXT DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (question_id) REFERENCES fatwa_questions(id),
				FOREIGN KEY (scholar_id) REFERENCES scholars(id)
			)`,
		},
	},
	{
		Version: 10,
		Name:    "create community_messages",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS community_messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				message_text TEXT NOT NULL,
				community_type TEXT NOT NULL CHECK(community_type IN ('male', 'female')),
				created_at TEXT DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id)
			)`,
		},
	},
	{
		Version: 11,
		Name:    "create personal_messages",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS personal_messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				sender_id INTEGER NOT NULL,
				receiver_id INTEGER NOT NULL,
				message_text TEXT NOT NULL,
				is_read BOOLEAN DEFAULT FALSE,
				created_at TEXT DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (sender_id) REFERENCES users(id),
				FOREIGN KEY (receiver_id) REFERENCES users(id)
			)`,
		},
	},
	{
		Version: 12,
		Name:    "ramadan good deeds and quran pages",
		Statements: []string{
			`ALTER TABLE ramadan_fasting ADD COLUMN good_deeds TEXT`,
			`ALTER TABLE ramadan_fasting ADD COLUMN quran_pages INTEGER DEFAULT 0`,
		},
	},
	{
		Version: 13,
		Name:    "account gender",
		Statements: []string{
			`ALTER TABLE users ADD COLUMN gender TEXT DEFAULT 'Male'`,
			`ALTER TABLE scholars ADD COLUMN gender TEXT DEFAULT 'Male'`,
		},
	},
	{
		Version: 14,
		Name:    "lookup indexes",
		Statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_fatwa_questions_scholar ON fatwa_questions(scholar_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_fatwa_questions_user ON fatwa_questions(user_id, created_at)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_fatwa_answers_question ON fatwa_answers(question_id)`,
			`CREATE INDEX IF NOT EXISTS idx_community_messages_type ON community_messages(community_type, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_personal_messages_pair ON personal_messages(sender_id, receiver_id)`,
			`CREATE INDEX IF NOT EXISTS idx_tasbih_entries_user ON tasbih_entries(user_id, entry_date)`,
		},
	},
}

// EnsureSchema applies every migration not yet recorded. A "duplicate column"
// failure counts as success. Any other failure rolls back that migration,
// is logged, and does not stop later migrations; all failures are returned.
func EnsureSchema(ctx context.Context, conn *sqlx.Conn) error {
	return applyMigrations(ctx, conn, Migrations)
}

func applyMigrations(ctx context.Context, conn *sqlx.Conn, migrations []Migration) error {
	log := utils.GetLogger().Component("schema")

	if _, err := conn.ExecContext(ctx, createVersionTable); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var applied []int
	if err := conn.SelectContext(ctx, &applied, "SELECT version FROM schema_version"); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	var errs []error
	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		if err := applyMigration(ctx, conn, m); err != nil {
			log.Error("migration %d (%s) failed: %v", m.Version, m.Name, err)
			errs = append(errs, fmt.Errorf("migration %d: %w", m.Version, err))
			continue
		}
		log.Debug("applied migration %d (%s)", m.Version, m.Name)
	}
	return errors.Join(errs...)
}

func applyMigration(ctx context.Context, conn *sqlx.Conn, m Migration) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if isDuplicateColumn(err) {
				continue
			}
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Name, backend.FormatTime(time.Now()),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func isDuplicateColumn(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column")
}

// SchemaVersion returns the highest applied migration version, 0 for a fresh file.
func SchemaVersion(ctx context.Context, conn *sqlx.Conn) (int, error) {
	var v int
	err := conn.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	return v, err
}
