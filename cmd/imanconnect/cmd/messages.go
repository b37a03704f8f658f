package cmd

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"imanconnect/backend"
	"imanconnect/internal/utils"
	"imanconnect/internal/views"
)

type messageView struct {
	ID        int64     `json:"id"`
	From      string    `json:"from"`
	Text      string    `json:"text"`
	Read      *bool     `json:"read,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// community resolves --community, defaulting to the account's own channel.
func community(flag string, acct *backend.Account) backend.Community {
	if flag != "" {
		return backend.Community(strings.ToLower(flag))
	}
	return backend.Community(strings.ToLower(acct.Gender))
}

// newMessageCmd groups community channels and direct messages
func newMessageCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return groupCmd("message", "Community and personal messages",
		newMessagePostCmd(stdout, stderr, cfg),
		newMessageCommunityCmd(stdout, stderr, cfg),
		newMessageContactsCmd(stdout, stderr, cfg),
		newMessageSendCmd(stdout, stderr, cfg),
		newMessageConversationCmd(stdout, stderr, cfg),
		newMessageReadCmd(stdout, stderr, cfg),
		newMessageUnreadCmd(stdout, stderr, cfg),
	)
}

func newMessagePostCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "post <text>",
		Short: "Post to a community channel",
		Args:  cobra.MinimumNArgs(1),
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
			m := backend.CommunityMessage{
				UserID:    id.account.ID,
				Text:      strings.Join(args, " "),
				Community: community(channel, id.account),
			}
			mid, err := await(ctx, a, a.svc.PostCommunityMessage(ctx, m))
			if err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, map[string]any{"id": mid, "community": m.Community})
			}
			a.done("Posted to the %s community", m.Community)
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "community", "", "male or female (default: your own)")
	return cmd
}

func newMessageCommunityCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "community",
		Short: "Read a community channel, newest first",
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
			c := community(channel, id.account)
			msgs, err := await(ctx, a, a.svc.ListCommunityMessages(ctx, c))
			if err != nil {
				return err
			}
			if a.json() {
				out := make([]messageView, len(msgs))
				for i, m := range msgs {
					out[i] = messageView{ID: m.ID, From: m.UserName, Text: m.Text, CreatedAt: m.CreatedAt}
				}
				return writeJSON(stdout, out)
			}
			t := views.Table{
				Title: "Community: " + string(c),
				Columns: []views.Column{
					{Title: "When"}, {Title: "From"}, {Title: "Message", Width: 60, Truncate: true},
				},
				Empty: "No messages yet",
			}
			for _, m := range msgs {
				t.Rows = append(t.Rows, []string{m.CreatedAt.Local().Format("2006-01-02 15:04"), m.UserName, m.Text})
			}
			a.render.RenderTable(t)
			a.info()
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "community", "", "male or female (default: your own)")
	return cmd
}

func newMessageContactsCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List the members you can message",
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
			contacts, err := await(ctx, a, a.svc.ListMessagingContacts(ctx, id.account.ID, id.account.Gender))
			if err != nil {
				return err
			}
			return renderAccounts(a, "Contacts", contacts)
		},
	}
}

// recipient resolves a username to an account.
func recipient(cmd *cobra.Command, a *app, username string) (*backend.Account, error) {
	acct, found, err := lookup(cmd.Context(), a, a.svc.GetAccountByUsername(cmd.Context(), username))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, utils.ErrAccountNotFound(username)
	}
	return acct, nil
}

func newMessageSendCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "send <username> <text>",
		Short: "Send a direct message",
		Args:  cobra.MinimumNArgs(2),
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
			to, err := recipient(cmd, a, args[0])
			if err != nil {
				return err
			}
			m := backend.PersonalMessage{
				SenderID:   id.account.ID,
				ReceiverID: to.ID,
				Text:       strings.Join(args[1:], " "),
			}
			mid, err := await(ctx, a, a.svc.SendPersonalMessage(ctx, m))
			if err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, map[string]any{"id": mid, "to": to.Username})
			}
			a.done("Sent to %s", to.FullName)
			return nil
		},
	}
}

func newMessageConversationCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var markRead bool
	cmd := &cobra.Command{
		Use:   "conversation <username>",
		Short: "Show the messages between you and another member, oldest first",
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
			other, err := recipient(cmd, a, args[0])
			if err != nil {
				return err
			}
			msgs, err := await(ctx, a, a.svc.ListConversation(ctx, id.account.ID, other.ID))
			if err != nil {
				return err
			}
			if markRead {
				for _, m := range msgs {
					if m.ReceiverID == id.account.ID && !m.IsRead {
						if _, err := await(ctx, a, a.svc.MarkMessageRead(ctx, m.ID, id.account.ID)); err != nil {
							return err
						}
					}
				}
			}

			if a.json() {
				out := make([]messageView, len(msgs))
				for i, m := range msgs {
					read := m.IsRead
					out[i] = messageView{ID: m.ID, From: m.SenderName, Text: m.Text, Read: &read, CreatedAt: m.CreatedAt}
				}
				return writeJSON(stdout, out)
			}
			t := views.Table{
				Title: "Conversation with " + other.FullName,
				Columns: []views.Column{
					{Title: "ID", Align: "right"}, {Title: "When"}, {Title: "From"},
					{Title: "Message", Width: 60, Truncate: true}, {Title: ""},
				},
				Empty: "No messages yet",
			}
			for _, m := range msgs {
				unread := ""
				if !m.IsRead && m.ReceiverID == id.account.ID {
					unread = "new"
				}
				t.Rows = append(t.Rows, []string{
					strconv.FormatInt(m.ID, 10), m.CreatedAt.Local().Format("2006-01-02 15:04"),
					m.SenderName, m.Text, unread,
				})
			}
			a.render.RenderTable(t)
			a.info()
			return nil
		},
	}
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "Mark received messages as read")
	return cmd
}

func newMessageReadCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a received message as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mid, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.whoami(ctx)
			if err != nil {
				return err
			}
			if _, err := await(ctx, a, a.svc.MarkMessageRead(ctx, mid, id.account.ID)); err != nil {
				return err
			}
			a.done("Message #%d marked read", mid)
			return nil
		},
	}
}

func newMessageUnreadCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Count unread direct messages",
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
			n, err := await(ctx, a, a.svc.UnreadCount(ctx, id.account.ID))
			if err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, map[string]int{"unread": n})
			}
			a.render.Message("%d unread", n)
			a.info()
			return nil
		},
	}
}
