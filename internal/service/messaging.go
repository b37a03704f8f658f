package service

import (
	"context"
	"strings"

	"imanconnect/backend"
	"imanconnect/internal/async"
	"imanconnect/internal/utils"
)

// CommunityPageSize is how many community messages a listing returns.
const CommunityPageSize = 100

// WelcomeMessages are posted to each community the first time it is seeded.
var WelcomeMessages = map[backend.Community][]string{
	backend.CommunityMale: {
		"Assalamu alaikum brothers! Welcome to our Male Community. Let's support each other in our Islamic journey.",
		"May Allah bless us all. Feel free to share your thoughts, ask questions, and connect with fellow brothers.",
		"Remember to maintain Islamic etiquette in our discussions. Respect and kindness are key values.",
		"This is a safe space for brothers to discuss Islamic topics, share experiences, and grow together in faith.",
	},
	backend.CommunityFemale: {
		"Assalamu alaikum sisters! Welcome to our Female Community. Let's support each other in our Islamic journey.",
		"May Allah bless us all. Feel free to share your thoughts, ask questions, and connect with fellow sisters.",
		"Remember to maintain Islamic etiquette in our discussions. Respect and kindness are key values.",
		"This is a safe space for sisters to discuss Islamic topics, share experiences, and grow together in faith.",
	},
}

// PostCommunityMessage appends a message to a community channel.
func (s *Service) PostCommunityMessage(ctx context.Context, m backend.CommunityMessage) *async.Future[int64] {
	return run(ctx, s, "PostCommunityMessage", func(ctx context.Context) (int64, error) {
		m.Text = strings.TrimSpace(m.Text)
		m.Community = backend.Community(strings.ToLower(string(m.Community)))
		if err := utils.Validate(m); err != nil {
			return 0, err
		}
		return s.store.PostCommunityMessage(ctx, &m)
	})
}

// ListCommunityMessages returns the newest messages of a channel, newest first.
func (s *Service) ListCommunityMessages(ctx context.Context, community backend.Community) *async.Future[[]backend.CommunityMessage] {
	return run(ctx, s, "ListCommunityMessages", func(ctx context.Context) ([]backend.CommunityMessage, error) {
		c := backend.Community(strings.ToLower(string(community)))
		if c != backend.CommunityMale && c != backend.CommunityFemale {
			return nil, invalid("community", "must be one of [male female]")
		}
		return s.store.ListCommunityMessages(ctx, c, CommunityPageSize)
	})
}

// SendPersonalMessage delivers a direct message, unread.
func (s *Service) SendPersonalMessage(ctx context.Context, m backend.PersonalMessage) *async.Future[int64] {
	return run(ctx, s, "SendPersonalMessage", func(ctx context.Context) (int64, error) {
		m.Text = strings.TrimSpace(m.Text)
		if err := utils.Validate(m); err != nil {
			return 0, err
		}
		return s.store.SendPersonalMessage(ctx, &m)
	})
}

// ListConversation returns the messages between two accounts in both
// directions, oldest first.
func (s *Service) ListConversation(ctx context.Context, userID, otherID int64) *async.Future[[]backend.PersonalMessage] {
	return run(ctx, s, "ListConversation", func(ctx context.Context) ([]backend.PersonalMessage, error) {
		return s.store.ListConversation(ctx, userID, otherID)
	})
}

// MarkMessageRead marks a message read. Only its receiver may do so.
func (s *Service) MarkMessageRead(ctx context.Context, messageID, receiverID int64) *async.Future[bool] {
	return run(ctx, s, "MarkMessageRead", func(ctx context.Context) (bool, error) {
		if err := s.store.MarkMessageRead(ctx, messageID, receiverID); err != nil {
			return false, err
		}
		return true, nil
	})
}

// UnreadCount returns how many messages addressed to userID are unread.
func (s *Service) UnreadCount(ctx context.Context, userID int64) *async.Future[int] {
	return run(ctx, s, "UnreadCount", func(ctx context.Context) (int, error) {
		return s.store.UnreadCount(ctx, userID)
	})
}

// SeedCommunities posts WelcomeMessages when no community message exists yet
// and at least one account does. It returns how many messages were posted.
func (s *Service) SeedCommunities(ctx context.Context) *async.Future[int] {
	return run(ctx, s, "SeedCommunities", func(ctx context.Context) (int, error) {
		return s.store.SeedCommunities(ctx, WelcomeMessages)
	})
}
