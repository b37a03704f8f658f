package sqlite

import (
	"context"
	"database/sql"
	"sort"

	"imanconnect/backend"
)

type communityRow struct {
	ID        int64          `db:"id"`
	UserID    int64          `db:"user_id"`
	Text      string         `db:"message_text"`
	Community string         `db:"community_type"`
	CreatedAt sql.NullString `db:"created_at"`
	UserName  sql.NullString `db:"user_name"`
}

// PostCommunityMessage appends a message to a community channel
func (b *Backend) PostCommunityMessage(ctx context.Context, m *backend.CommunityMessage) (int64, error) {
	var id int64
	err := b.conn(ctx, func(q querier) error {
		var err error
		id, err = insertCommunityMessage(ctx, q, m, b.stamp())
		return err
	})
	return id, err
}

func insertCommunityMessage(ctx context.Context, q querier, m *backend.CommunityMessage, now string) (int64, error) {
	res, err := q.ExecContext(ctx,
		"INSERT INTO community_messages (user_id, message_text, community_type, created_at) VALUES (?, ?, ?, ?)",
		m.UserID, m.Text, string(m.Community), now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListCommunityMessages returns the newest limit messages of a channel,
// newest first. A limit of zero or less means 100.
func (b *Backend) ListCommunityMessages(ctx context.Context, community backend.Community, limit int) ([]backend.CommunityMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []communityRow
	err := b.conn(ctx, func(q querier) error {
		return q.SelectContext(ctx, &rows,
			`SELECT m.id, m.user_id, m.message_text, m.community_type, m.created_at, u.full_name AS user_name
			 FROM community_messages m
			 LEFT JOIN users u ON u.id = m.user_id
			 WHERE m.community_type = ?
			 ORDER BY julianday(m.created_at) DESC, m.id DESC
			 LIMIT ?`,
			string(community), limit,
		)
	})
	if err != nil {
		return nil, err
	}
	msgs := make([]backend.CommunityMessage, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, backend.CommunityMessage{
			ID:        r.ID,
			UserID:    r.UserID,
			Text:      r.Text,
			Community: backend.Community(r.Community),
			CreatedAt: backend.ParseTime(r.CreatedAt.String),
			UserName:  r.UserName.String,
		})
	}
	return msgs, nil
}

type personalRow struct {
	ID         int64          `db:"id"`
	SenderID   int64          `db:"sender_id"`
	ReceiverID int64          `db:"receiver_id"`
	Text       string         `db:"message_text"`
	IsRead     bool           `db:"is_read"`
	CreatedAt  sql.NullString `db:"created_at"`
	SenderName sql.NullString `db:"sender_name"`
}

// SendPersonalMessage appends a direct message
func (b *Backend) SendPersonalMessage(ctx context.Context, m *backend.PersonalMessage) (int64, error) {
	var id int64
	err := b.conn(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx,
			"INSERT INTO personal_messages (sender_id, receiver_id, message_text, is_read, created_at) VALUES (?, ?, ?, ?, ?)",
			m.SenderID, m.ReceiverID, m.Text, false, b.stamp(),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ListConversation returns the messages exchanged between a and b in both
// directions, oldest first.
func (b *Backend) ListConversation(ctx context.Context, a, other int64) ([]backend.PersonalMessage, error) {
	var rows []personalRow
	err := b.conn(ctx, func(q querier) error {
		return q.SelectContext(ctx, &rows,
			`SELECT m.id, m.sender_id, m.receiver_id, m.message_text, m.is_read, m.created_at,
				u.full_name AS sender_name
			 FROM personal_messages m
			 LEFT JOIN users u ON u.id = m.sender_id
			 WHERE (m.sender_id = ? AND m.receiver_id = ?) OR (m.sender_id = ? AND m.receiver_id = ?)
			 ORDER BY julianday(m.created_at) ASC, m.id ASC`,
			a, other, other, a,
		)
	})
	if err != nil {
		return nil, err
	}
	msgs := make([]backend.PersonalMessage, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, backend.PersonalMessage{
			ID:         r.ID,
			SenderID:   r.SenderID,
			ReceiverID: r.ReceiverID,
			Text:       r.Text,
			IsRead:     r.IsRead,
			CreatedAt:  backend.ParseTime(r.CreatedAt.String),
			SenderName: r.SenderName.String,
		})
	}
	return msgs, nil
}

// MarkMessageRead flags a message as read. Only its receiver may do so.
func (b *Backend) MarkMessageRead(ctx context.Context, messageID, receiverID int64) error {
	return b.conn(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx,
			"UPDATE personal_messages SET is_read = ? WHERE id = ? AND receiver_id = ?",
			true, messageID, receiverID,
		)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// UnreadCount returns how many messages addressed to userID are unread
func (b *Backend) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := b.conn(ctx, func(q querier) error {
		return q.GetContext(ctx, &n,
			"SELECT COUNT(*) FROM personal_messages WHERE receiver_id = ? AND is_read = ?",
			userID, false,
		)
	})
	return n, err
}

// SeedCommunities posts the welcome messages for each channel when no
// community message exists yet. Messages are authored by the first account;
// with no account nothing is seeded. Returns the number of messages inserted.
func (b *Backend) SeedCommunities(ctx context.Context, welcome map[backend.Community][]string) (int, error) {
	inserted := 0
	err := b.tx(ctx, func(q querier) error {
		var existing int
		if err := q.GetContext(ctx, &existing, "SELECT COUNT(*) FROM community_messages"); err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		var authors []int64
		if err := q.SelectContext(ctx, &authors, "SELECT id FROM users ORDER BY id LIMIT 1"); err != nil {
			return err
		}
		if len(authors) == 0 {
			return nil
		}

		communities := make([]string, 0, len(welcome))
		for c := range welcome {
			communities = append(communities, string(c))
		}
		sort.Strings(communities)

		now := b.stamp()
		for _, c := range communities {
			for _, text := range welcome[backend.Community(c)] {
				msg := &backend.CommunityMessage{UserID: authors[0], Text: text, Community: backend.Community(c)}
				if _, err := insertCommunityMessage(ctx, q, msg, now); err != nil {
					return err
				}
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
