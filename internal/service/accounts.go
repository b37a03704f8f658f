package service

import (
	"context"
	"fmt"
	"strings"

	"imanconnect/backend"
	"imanconnect/internal/async"
	"imanconnect/internal/utils"
)

// RegisterAccount creates a member account with a hashed password. A taken
// username or email fails as a conflict.
func (s *Service) RegisterAccount(ctx context.Context, in backend.NewAccount) *async.Future[*backend.Account] {
	return run(ctx, s, "RegisterAccount", func(ctx context.Context) (*backend.Account, error) {
		in = normalizeAccount(in)
		if err := utils.Validate(in); err != nil {
			return nil, err
		}

		exists, err := s.store.AccountExists(ctx, in.Username, in.Email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: username %q or email %q", backend.ErrDuplicate, in.Username, in.Email)
		}

		hash, err := s.hashSecret(in.Password)
		if err != nil {
			return nil, err
		}
		a := &backend.Account{
			FullName:     in.FullName,
			Email:        in.Email,
			Username:     in.Username,
			PasswordHash: hash,
			Gender:       in.Gender,
		}
		id, err := s.store.CreateAccount(ctx, a)
		if err != nil {
			return nil, err
		}
		return s.store.GetAccountByID(ctx, id)
	})
}

func normalizeAccount(in backend.NewAccount) backend.NewAccount {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.Gender == "" {
		in.Gender = "Male"
	} else if g, err := normalizeGender(in.Gender); err == nil {
		in.Gender = g
	}
	return in
}

// AccountExists reports whether a member uses the username or the email.
func (s *Service) AccountExists(ctx context.Context, username, email string) *async.Future[bool] {
	return run(ctx, s, "AccountExists", func(ctx context.Context) (bool, error) {
		return s.store.AccountExists(ctx, strings.TrimSpace(username), strings.TrimSpace(email))
	})
}

// ValidateLogin checks a member's password. An unknown username is OK(false).
// A matching legacy plaintext secret is rehashed in place.
func (s *Service) ValidateLogin(ctx context.Context, username, secret string) *async.Future[bool] {
	return run(ctx, s, "ValidateLogin", func(ctx context.Context) (bool, error) {
		a, err := s.store.GetAccountByUsername(ctx, strings.TrimSpace(username))
		if isNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		match, legacy := checkSecret(a.PasswordHash, secret)
		if legacy {
			s.upgradeHash(ctx, a.Username, secret, s.store.UpdatePasswordHash)
		}
		return match, nil
	})
}

// upgradeHash replaces a plaintext secret with its hash. Failure is logged;
// the login itself already succeeded.
func (s *Service) upgradeHash(ctx context.Context, username, secret string, update func(context.Context, string, string) error) {
	hash, err := s.hashSecret(secret)
	if err == nil {
		err = update(ctx, username, hash)
	}
	if err != nil {
		s.log.Warn("could not rehash legacy password for %s: %v", username, err)
		return
	}
	s.log.Info("rehashed legacy password for %s", username)
}

// GetFullName returns a member's display name, Empty when unknown.
func (s *Service) GetFullName(ctx context.Context, username string) *async.Future[string] {
	return lookup(ctx, s, "GetFullName", func(ctx context.Context) (string, error) {
		a, err := s.store.GetAccountByUsername(ctx, username)
		if err != nil {
			return "", err
		}
		return a.FullName, nil
	})
}

// GetAccountByUsername loads a member, Empty when unknown.
func (s *Service) GetAccountByUsername(ctx context.Context, username string) *async.Future[*backend.Account] {
	return lookup(ctx, s, "GetAccountByUsername", func(ctx context.Context) (*backend.Account, error) {
		return s.store.GetAccountByUsername(ctx, username)
	})
}

// UpdateProfilePicture stores the avatar path for a member.
func (s *Service) UpdateProfilePicture(ctx context.Context, username, path string) *async.Future[bool] {
	return run(ctx, s, "UpdateProfilePicture", func(ctx context.Context) (bool, error) {
		if err := s.store.UpdateProfilePicture(ctx, username, path); err != nil {
			return false, err
		}
		return true, nil
	})
}

// GetProfilePicturePath returns the stored avatar path, Empty when the member
// is unknown or has none.
func (s *Service) GetProfilePicturePath(ctx context.Context, username string) *async.Future[string] {
	return lookup(ctx, s, "GetProfilePicturePath", func(ctx context.Context) (string, error) {
		a, err := s.store.GetAccountByUsername(ctx, username)
		if err != nil {
			return "", err
		}
		if a.ProfilePicturePath == "" {
			return "", backend.ErrNotFound
		}
		return a.ProfilePicturePath, nil
	})
}

// ListAccounts returns every member ordered by name.
func (s *Service) ListAccounts(ctx context.Context) *async.Future[[]backend.Account] {
	return run(ctx, s, "ListAccounts", s.store.ListAccounts)
}

type newPassword struct {
	Username string `validate:"required"`
	Password string `validate:"required,min=6"`
}

// UpdatePassword sets a new hashed password for a member.
func (s *Service) UpdatePassword(ctx context.Context, username, password string) *async.Future[bool] {
	return run(ctx, s, "UpdatePassword", func(ctx context.Context) (bool, error) {
		if err := utils.Validate(newPassword{Username: username, Password: password}); err != nil {
			return false, err
		}
		hash, err := s.hashSecret(password)
		if err != nil {
			return false, err
		}
		if err := s.store.UpdatePasswordHash(ctx, username, hash); err != nil {
			return false, err
		}
		return true, nil
	})
}

// ListAccountsByGender returns the members of one gender.
func (s *Service) ListAccountsByGender(ctx context.Context, gender string) *async.Future[[]backend.Account] {
	return run(ctx, s, "ListAccountsByGender", func(ctx context.Context) ([]backend.Account, error) {
		g, err := normalizeGender(gender)
		if err != nil {
			return nil, err
		}
		return s.store.ListAccountsByGender(ctx, g)
	})
}

// ListMessagingContacts returns the members a user may message: same gender,
// excluding the user.
func (s *Service) ListMessagingContacts(ctx context.Context, userID int64, gender string) *async.Future[[]backend.Account] {
	return run(ctx, s, "ListMessagingContacts", func(ctx context.Context) ([]backend.Account, error) {
		g, err := normalizeGender(gender)
		if err != nil {
			return nil, err
		}
		return s.store.ListMessagingContacts(ctx, userID, g)
	})
}

func normalizeGender(g string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "male":
		return "Male", nil
	case "female":
		return "Female", nil
	default:
		return "", invalid("gender", "must be one of [Male Female]")
	}
}
