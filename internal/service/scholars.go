package service

import (
	"context"
	"fmt"
	"strings"

	"imanconnect/backend"
	"imanconnect/internal/async"
	"imanconnect/internal/utils"
)

// RegisterScholar creates the scholar profile and its member account in one
// transaction.
func (s *Service) RegisterScholar(ctx context.Context, in backend.NewScholar) *async.Future[*backend.Scholar] {
	return run(ctx, s, "RegisterScholar", func(ctx context.Context) (*backend.Scholar, error) {
		in.NewAccount = normalizeAccount(in.NewAccount)
		in.Specialization = strings.TrimSpace(in.Specialization)
		if err := utils.Validate(in); err != nil {
			return nil, err
		}

		exists, err := s.store.ScholarExists(ctx, in.Username, in.Email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: scholar username %q or email %q", backend.ErrDuplicate, in.Username, in.Email)
		}

		hash, err := s.hashSecret(in.Password)
		if err != nil {
			return nil, err
		}
		id, err := s.store.CreateScholar(ctx, &backend.Scholar{
			FullName:       in.FullName,
			Email:          in.Email,
			Username:       in.Username,
			PasswordHash:   hash,
			Specialization: in.Specialization,
			Qualifications: in.Qualifications,
			Bio:            in.Bio,
			Gender:         in.Gender,
		})
		if err != nil {
			return nil, err
		}
		return s.store.GetScholarByID(ctx, id)
	})
}

// ValidateScholarLogin checks a scholar's password and, on success, marks the
// scholar online with last_seen set to now. An unknown username is OK(false).
func (s *Service) ValidateScholarLogin(ctx context.Context, username, secret string) *async.Future[bool] {
	return run(ctx, s, "ValidateScholarLogin", func(ctx context.Context) (bool, error) {
		sc, err := s.store.GetScholarByUsername(ctx, strings.TrimSpace(username))
		if isNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		match, legacy := checkSecret(sc.PasswordHash, secret)
		if !match {
			return false, nil
		}
		if legacy {
			s.upgradeHash(ctx, sc.Username, secret, s.store.UpdateScholarPasswordHash)
		}
		if err := s.store.SetScholarOnline(ctx, sc.ID, true, s.now()); err != nil {
			return false, err
		}
		return true, nil
	})
}

// SetScholarOffline clears the online flag and stamps last_seen.
func (s *Service) SetScholarOffline(ctx context.Context, scholarID int64) *async.Future[bool] {
	return run(ctx, s, "SetScholarOffline", func(ctx context.Context) (bool, error) {
		if err := s.store.SetScholarOnline(ctx, scholarID, false, s.now()); err != nil {
			return false, err
		}
		return true, nil
	})
}

// GetScholarByUsername loads a scholar, Empty when unknown.
func (s *Service) GetScholarByUsername(ctx context.Context, username string) *async.Future[*backend.Scholar] {
	return lookup(ctx, s, "GetScholarByUsername", func(ctx context.Context) (*backend.Scholar, error) {
		return s.store.GetScholarByUsername(ctx, username)
	})
}

// ListScholars returns every scholar, online ones first.
func (s *Service) ListScholars(ctx context.Context) *async.Future[[]backend.Scholar] {
	return run(ctx, s, "ListScholars", s.store.ListScholars)
}

// ScholarExists reports whether a scholar uses the username or the email.
func (s *Service) ScholarExists(ctx context.Context, username, email string) *async.Future[bool] {
	return run(ctx, s, "ScholarExists", func(ctx context.Context) (bool, error) {
		return s.store.ScholarExists(ctx, strings.TrimSpace(username), strings.TrimSpace(email))
	})
}
