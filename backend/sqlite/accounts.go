package sqlite

import (
	"context"
	"database/sql"
	"time"

	"imanconnect/backend"
)

type accountRow struct {
	ID                 int64          `db:"id"`
	FullName           string         `db:"full_name"`
	Email              string         `db:"email"`
	Username           string         `db:"username"`
	PasswordHash       string         `db:"password_hash"`
	Gender             sql.NullString `db:"gender"`
	ProfilePicturePath sql.NullString `db:"profile_picture_path"`
	CreatedAt          sql.NullString `db:"created_at"`
}

func (r accountRow) toAccount() backend.Account {
	return backend.Account{
		ID:                 r.ID,
		FullName:           r.FullName,
		Email:              r.Email,
		Username:           r.Username,
		PasswordHash:       r.PasswordHash,
		Gender:             r.Gender.String,
		ProfilePicturePath: r.ProfilePicturePath.String,
		CreatedAt:          backend.ParseTime(r.CreatedAt.String),
	}
}

const accountColumns = "id, full_name, email, username, password_hash, gender, profile_picture_path, created_at"

// CreateAccount inserts a member account and returns its id
func (b *Backend) CreateAccount(ctx context.Context, a *backend.Account) (int64, error) {
	var id int64
	err := b.conn(ctx, func(q querier) error {
		var err error
		id, err = insertAccount(ctx, q, a, b.stamp())
		return err
	})
	return id, err
}

func insertAccount(ctx context.Context, q querier, a *backend.Account, now string) (int64, error) {
	gender := a.Gender
	if gender == "" {
		gender = "Male"
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO users (full_name, email, username, password_hash, gender, profile_picture_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.FullName, a.Email, a.Username, a.PasswordHash, gender, nullString(a.ProfilePicturePath), now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// AccountExists reports whether the username or the email is taken
func (b *Backend) AccountExists(ctx context.Context, username, email string) (bool, error) {
	var n int
	err := b.conn(ctx, func(q querier) error {
		return q.GetContext(ctx, &n, "SELECT COUNT(*) FROM users WHERE username = ? OR email = ?", username, email)
	})
	return n > 0, err
}

// GetAccountByUsername returns the account with the given username
func (b *Backend) GetAccountByUsername(ctx context.Context, username string) (*backend.Account, error) {
	var r accountRow
	err := b.conn(ctx, func(q querier) error {
		return q.GetContext(ctx, &r, "SELECT "+accountColumns+" FROM users WHERE username = ?", username)
	})
	if err != nil {
		return nil, err
	}
	a := r.toAccount()
	return &a, nil
}

// GetAccountByID returns the account with the given id
func (b *Backend) GetAccountByID(ctx context.Context, id int64) (*backend.Account, error) {
	var r accountRow
	err := b.conn(ctx, func(q querier) error {
		return q.GetContext(ctx, &r, "SELECT "+accountColumns+" FROM users WHERE id = ?", id)
	})
	if err != nil {
		return nil, err
	}
	a := r.toAccount()
	return &a, nil
}

// ListAccounts returns all accounts ordered by full name
func (b *Backend) ListAccounts(ctx context.Context) ([]backend.Account, error) {
	return b.selectAccounts(ctx, "SELECT "+accountColumns+" FROM users ORDER BY full_name")
}

// ListAccountsByGender returns the accounts of one gender ordered by full name
func (b *Backend) ListAccountsByGender(ctx context.Context, gender string) ([]backend.Account, error) {
	return b.selectAccounts(ctx, "SELECT "+accountColumns+" FROM users WHERE gender = ? ORDER BY full_name", gender)
}

// ListMessagingContacts returns same-gender accounts other than excludeID
func (b *Backend) ListMessagingContacts(ctx context.Context, excludeID int64, gender string) ([]backend.Account, error) {
	return b.selectAccounts(ctx,
		"SELECT "+accountColumns+" FROM users WHERE id != ? AND gender = ? ORDER BY full_name",
		excludeID, gender,
	)
}

func (b *Backend) selectAccounts(ctx context.Context, query string, args ...any) ([]backend.Account, error) {
	var rows []accountRow
	err := b.conn(ctx, func(q querier) error {
		return q.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		return nil, err
	}
	accounts := make([]backend.Account, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, r.toAccount())
	}
	return accounts, nil
}

// UpdatePasswordHash replaces the stored credential of a member
func (b *Backend) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	return b.conn(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE username = ?", hash, username)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// UpdateProfilePicture stores the avatar path of a member
func (b *Backend) UpdateProfilePicture(ctx context.Context, username, path string) error {
	return b.conn(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, "UPDATE users SET profile_picture_path = ? WHERE username = ?", nullString(path), username)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

type scholarRow struct {
	ID                 int64          `db:"id"`
	UserID             sql.NullInt64  `db:"user_id"`
	FullName           string         `db:"full_name"`
	Email              string         `db:"email"`
	Username           string         `db:"username"`
	PasswordHash       string         `db:"password_hash"`
	Specialization     string         `db:"specialization"`
	Qualifications     sql.NullString `db:"qualifications"`
	Bio                sql.NullString `db:"bio"`
	Gender             sql.NullString `db:"gender"`
	IsVerified         bool           `db:"is_verified"`
	IsOnline           bool           `db:"is_online"`
	LastSeen           sql.NullString `db:"last_seen"`
	ProfilePicturePath sql.NullString `db:"profile_picture_path"`
	CreatedAt          sql.NullString `db:"created_at"`
}

func (r scholarRow) toScholar() backend.Scholar {
	s := backend.Scholar{
		ID:                 r.ID,
		UserID:             r.UserID.Int64,
		FullName:           r.FullName,
		Email:              r.Email,
		Username:           r.Username,
		PasswordHash:       r.PasswordHash,
		Specialization:     r.Specialization,
		Qualifications:     r.Qualifications.String,
		Bio:                r.Bio.String,
		Gender:             r.Gender.String,
		IsVerified:         r.IsVerified,
		IsOnline:           r.IsOnline,
		ProfilePicturePath: r.ProfilePicturePath.String,
		CreatedAt:          backend.ParseTime(r.CreatedAt.String),
	}
	if r.LastSeen.Valid {
		t := backend.ParseTime(r.LastSeen.String)
		s.LastSeen = &t
	}
	return s
}

const scholarColumns = `id, user_id, full_name, email, username, password_hash, specialization,
	qualifications, bio, gender, is_verified, is_online, last_seen, profile_picture_path, created_at`

// CreateScholar inserts the member account and the scholar profile in one
// transaction and returns the scholar id. s.UserID is set on success.
func (b *Backend) CreateScholar(ctx context.Context, s *backend.Scholar) (int64, error) {
	var scholarID int64
	now := b.stamp()
	err := b.tx(ctx, func(q querier) error {
		userID, err := insertAccount(ctx, q, &backend.Account{
			FullName:     s.FullName,
			Email:        s.Email,
			Username:     s.Username,
			PasswordHash: s.PasswordHash,
			Gender:       s.Gender,
		}, now)
		if err != nil {
			return err
		}
		gender := s.Gender
		if gender == "" {
			gender = "Male"
		}
		res, err := q.ExecContext(ctx,
			`INSERT INTO scholars (user_id, full_name, email, username, password_hash, specialization,
				qualifications, bio, gender, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, s.FullName, s.Email, s.Username, s.PasswordHash, s.Specialization,
			nullString(s.Qualifications), nullString(s.Bio), gender, now,
		)
		if err != nil {
			return err
		}
		scholarID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		s.UserID = userID
		return nil
	})
	return scholarID, err
}

// ScholarExists reports whether a scholar holds the username or the email
func (b *Backend) ScholarExists(ctx context.Context, username, email string) (bool, error) {
	var n int
	err := b.conn(ctx, func(q querier) error {
		return q.GetContext(ctx, &n, "SELECT COUNT(*) FROM scholars WHERE username = ? OR email = ?", username, email)
	})
	return n > 0, err
}

// GetScholarByUsername returns the scholar with the given username
func (b *Backend) GetScholarByUsername(ctx context.Context, username string) (*backend.Scholar, error) {
	return b.getScholar(ctx, "SELECT "+scholarColumns+" FROM scholars WHERE username = ?", username)
}

// GetScholarByID returns the scholar with the given id
func (b *Backend) GetScholarByID(ctx context.Context, id int64) (*backend.Scholar, error) {
	return b.getScholar(ctx, "SELECT "+scholarColumns+" FROM scholars WHERE id = ?", id)
}

func (b *Backend) getScholar(ctx context.Context, query string, arg any) (*backend.Scholar, error) {
	var r scholarRow
	err := b.conn(ctx, func(q querier) error {
		return q.GetContext(ctx, &r, query, arg)
	})
	if err != nil {
		return nil, err
	}
	s := r.toScholar()
	return &s, nil
}

// ListScholars returns all scholars, online ones first
func (b *Backend) ListScholars(ctx context.Context) ([]backend.Scholar, error) {
	var rows []scholarRow
	err := b.conn(ctx, func(q querier) error {
		return q.SelectContext(ctx, &rows, "SELECT "+scholarColumns+" FROM scholars ORDER BY is_online DESC, full_name")
	})
	if err != nil {
		return nil, err
	}
	scholars := make([]backend.Scholar, 0, len(rows))
	for _, r := range rows {
		scholars = append(scholars, r.toScholar())
	}
	return scholars, nil
}

// SetScholarOnline records the scholar's presence and last-seen stamp
func (b *Backend) SetScholarOnline(ctx context.Context, id int64, online bool, at time.Time) error {
	return b.conn(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx,
			"UPDATE scholars SET is_online = ?, last_seen = ? WHERE id = ?",
			online, backend.FormatTime(at), id,
		)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// UpdateScholarPasswordHash replaces the stored credential of a scholar
func (b *Backend) UpdateScholarPasswordHash(ctx context.Context, username, hash string) error {
	return b.conn(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, "UPDATE scholars SET password_hash = ? WHERE username = ?", hash, username)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}
