package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"imanconnect/backend"
	"imanconnect/internal/utils"
	"imanconnect/internal/views"
)

type questionView struct {
	ID        int64                  `json:"id"`
	Title     string                 `json:"title"`
	Text      string                 `json:"text"`
	Category  string                 `json:"category,omitempty"`
	Priority  backend.Priority       `json:"priority"`
	Status    backend.QuestionStatus `json:"status"`
	Asker     string                 `json:"asker"`
	Scholar   string                 `json:"scholar"`
	CreatedAt time.Time              `json:"created_at"`
	Answer    *answerView            `json:"answer,omitempty"`
}

type answerView struct {
	Text       string    `json:"text"`
	References string    `json:"references,omitempty"`
	Public     bool      `json:"public"`
	Scholar    string    `json:"scholar"`
	CreatedAt  time.Time `json:"created_at"`
}

func viewQuestion(q *backend.FatwaQuestion) questionView {
	return questionView{
		ID: q.ID, Title: q.Title, Text: q.Text, Category: q.Category, Priority: q.Priority,
		Status: q.Status, Asker: q.UserName, Scholar: q.ScholarName, CreatedAt: q.CreatedAt,
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %s", s)
	}
	return id, nil
}

// questionErr maps a missing question to the friendly error.
func questionErr(err error, id int64) error {
	if errors.Is(err, backend.ErrNotFound) {
		return utils.ErrQuestionNotFound(id)
	}
	return err
}

// newFatwaCmd groups the question and answer workflow
func newFatwaCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return groupCmd("fatwa", "Ask scholars and answer questions",
		newFatwaAskCmd(stdout, stderr, cfg),
		newFatwaListCmd(stdout, stderr, cfg),
		newFatwaInboxCmd(stdout, stderr, cfg),
		newFatwaShowCmd(stdout, stderr, cfg),
		newFatwaAnswerCmd(stdout, stderr, cfg),
		newFatwaRejectCmd(stdout, stderr, cfg),
	)
}

func newFatwaAskCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var (
		q        backend.FatwaQuestion
		priority string
	)
	cmd := &cobra.Command{
		Use:   "ask <scholar>",
		Short: "Send a question to a scholar",
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
			sc, found, err := lookup(ctx, a, a.svc.GetScholarByUsername(ctx, args[0]))
			if err != nil {
				return err
			}
			if !found {
				return utils.ErrScholarNotFound(args[0])
			}
			if q.Title, err = a.prompt("Title", q.Title, false); err != nil {
				return err
			}
			if q.Text, err = a.prompt("Question", q.Text, false); err != nil {
				return err
			}

			q.UserID = id.account.ID
			q.ScholarID = sc.ID
			q.Priority = backend.Priority(priority)
			qid, err := await(ctx, a, a.svc.SubmitQuestion(ctx, q))
			if err != nil {
				return err
			}
			if a.json() {
				return writeJSON(stdout, map[string]any{"id": qid, "scholar": sc.Username, "status": backend.StatusPending})
			}
			a.done("Question #%d sent to %s", qid, sc.FullName)
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Title, "title", "", "Short title")
	cmd.Flags().StringVar(&q.Text, "text", "", "The question")
	cmd.Flags().StringVar(&q.Category, "category", "", "Category, e.g. fiqh")
	cmd.Flags().StringVar(&priority, "priority", "normal", "low, normal or high")
	return cmd
}

func renderQuestions(a *app, title, who string, qs []backend.FatwaQuestion) error {
	if a.json() {
		out := make([]questionView, len(qs))
		for i := range qs {
			out[i] = viewQuestion(&qs[i])
		}
		return writeJSON(a.out, out)
	}
	t := views.Table{
		Title: title,
		Columns: []views.Column{
			{Title: "ID", Align: "right"},
			{Title: "Title", Width: 40, Truncate: true},
			{Title: who},
			{Title: "Priority"},
			{Title: "Status"},
			{Title: "Asked"},
		},
		Empty: "No questions",
	}
	for _, q := range qs {
		name := q.ScholarName
		if who == "Asker" {
			name = q.UserName
		}
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(q.ID, 10), q.Title, name, string(q.Priority), string(q.Status),
			q.CreatedAt.Local().Format(views.DefaultDateFormat),
		})
	}
	a.render.RenderTable(t)
	a.info()
	return nil
}

func newFatwaListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the questions you asked",
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
			qs, err := await(ctx, a, a.svc.ListQuestionsForUser(ctx, id.account.ID))
			if err != nil {
				return err
			}
			return renderQuestions(a, "My questions", "Scholar", qs)
		},
	}
}

func newFatwaInboxCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var pending bool
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List questions addressed to you (scholars)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.whoamiScholar(ctx)
			if err != nil {
				return err
			}
			qs, err := await(ctx, a, a.svc.ListQuestionsForScholar(ctx, id.scholar.ID))
			if err != nil {
				return err
			}
			if pending {
				qs = pendingOnly(qs)
			}
			return renderQuestions(a, "Inbox", "Asker", qs)
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "Only unanswered questions")
	return cmd
}

func pendingOnly(qs []backend.FatwaQuestion) []backend.FatwaQuestion {
	out := qs[:0]
	for _, q := range qs {
		if q.Status == backend.StatusPending {
			out = append(out, q)
		}
	}
	return out
}

func newFatwaShowCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a question and its answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			qid, err := parseID(args[0])
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
			q, found, err := lookup(ctx, a, a.svc.GetQuestion(ctx, qid))
			if err != nil {
				return err
			}
			asker := found && q.UserID == id.account.ID
			addressed := found && id.scholar != nil && q.ScholarID == id.scholar.ID
			if !asker && !addressed {
				return utils.ErrQuestionNotFound(qid)
			}
			ans, answered, err := lookup(ctx, a, a.svc.GetAnswer(ctx, qid))
			if err != nil {
				return err
			}

			view := viewQuestion(q)
			if answered {
				view.Answer = &answerView{
					Text: ans.Text, References: ans.References, Public: ans.IsPublic,
					Scholar: ans.ScholarName, CreatedAt: ans.CreatedAt,
				}
			}
			if a.json() {
				return writeJSON(stdout, view)
			}
			a.render.Message("#%d %s [%s, %s]", q.ID, q.Title, q.Status, q.Priority)
			a.render.Message("From %s to %s on %s", q.UserName, q.ScholarName, q.CreatedAt.Local().Format(views.DefaultDateFormat))
			a.render.Message("")
			a.render.Message("%s", q.Text)
			if view.Answer != nil {
				a.render.Message("")
				a.render.Message("Answer by %s:", view.Answer.Scholar)
				a.render.Message("%s", view.Answer.Text)
				if view.Answer.References != "" {
					a.render.Message("References: %s", view.Answer.References)
				}
			}
			a.info()
			return nil
		},
	}
}

func newFatwaAnswerCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var ans backend.FatwaAnswer
	cmd := &cobra.Command{
		Use:   "answer <id>",
		Short: "Answer a pending question (scholars)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			qid, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.whoamiScholar(ctx)
			if err != nil {
				return err
			}
			if ans.Text, err = a.prompt("Answer", ans.Text, false); err != nil {
				return err
			}
			ans.QuestionID = qid
			ans.ScholarID = id.scholar.ID
			aid, err := await(ctx, a, a.svc.SubmitAnswer(ctx, ans))
			if err != nil {
				return questionErr(err, qid)
			}
			if a.json() {
				return writeJSON(stdout, map[string]any{"id": aid, "question_id": qid, "status": backend.StatusAnswered})
			}
			a.done("Answered question #%d", qid)
			return nil
		},
	}
	cmd.Flags().StringVar(&ans.Text, "text", "", "The answer")
	cmd.Flags().StringVar(&ans.References, "references", "", "Sources cited")
	cmd.Flags().BoolVar(&ans.IsPublic, "public", false, "Publish the answer")
	return cmd
}

func newFatwaRejectCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Decline a pending question (scholars)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			qid, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.whoamiScholar(ctx)
			if err != nil {
				return err
			}
			if _, err := await(ctx, a, a.svc.RejectQuestion(ctx, qid, id.scholar.ID)); err != nil {
				return questionErr(err, qid)
			}
			if a.json() {
				return writeJSON(stdout, map[string]any{"question_id": qid, "status": backend.StatusRejected})
			}
			a.done("Declined question #%d", qid)
			return nil
		},
	}
}

type scholarView struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	FullName       string     `json:"full_name"`
	Specialization string     `json:"specialization"`
	Qualifications string     `json:"qualifications,omitempty"`
	Gender         string     `json:"gender"`
	Verified       bool       `json:"verified"`
	Online         bool       `json:"online"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
}

// newScholarsCmd lists scholars, online first
func newScholarsCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "scholars",
		Short: "List scholars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			scholars, err := await(ctx, a, a.svc.ListScholars(ctx))
			if err != nil {
				return err
			}
			if a.json() {
				out := make([]scholarView, len(scholars))
				for i, s := range scholars {
					out[i] = scholarView{
						ID: s.ID, Username: s.Username, FullName: s.FullName, Specialization: s.Specialization,
						Qualifications: s.Qualifications, Gender: s.Gender, Verified: s.IsVerified,
						Online: s.IsOnline, LastSeen: s.LastSeen,
					}
				}
				return writeJSON(stdout, out)
			}
			t := views.Table{
				Title:   "Scholars",
				Columns: views.Cols("Username", "Name", "Specialization", "Status", "Last seen"),
				Empty:   "No scholars registered",
			}
			for _, s := range scholars {
				status := "offline"
				if s.IsOnline {
					status = "online"
				}
				seen := "-"
				if s.LastSeen != nil {
					seen = s.LastSeen.Local().Format("2006-01-02 15:04")
				}
				t.Rows = append(t.Rows, []string{s.Username, s.FullName, s.Specialization, status, seen})
			}
			a.render.RenderTable(t)
			a.info()
			return nil
		},
	}
}
