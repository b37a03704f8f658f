package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"imanconnect/backend"
)

type questionRow struct {
	ID          int64          `db:"id"`
	UserID      int64          `db:"user_id"`
	ScholarID   int64          `db:"scholar_id"`
	Title       string         `db:"question_title"`
	Text        string         `db:"question_text"`
	Category    sql.NullString `db:"category"`
	Priority    string         `db:"priority"`
	Status      string         `db:"status"`
	CreatedAt   sql.NullString `db:"created_at"`
	UpdatedAt   sql.NullString `db:"updated_at"`
	UserName    sql.NullString `db:"user_name"`
	ScholarName sql.NullString `db:"scholar_name"`
}

func (r questionRow) toQuestion() backend.FatwaQuestion {
	return backend.FatwaQuestion{
		ID:          r.ID,
		UserID:      r.UserID,
		ScholarID:   r.ScholarID,
		Title:       r.Title,
		Text:        r.Text,
		Category:    r.Category.String,
		Priority:    backend.Priority(r.Priority),
		Status:      backend.QuestionStatus(r.Status),
		CreatedAt:   backend.ParseTime(r.CreatedAt.String),
		UpdatedAt:   backend.ParseTime(r.UpdatedAt.String),
		UserName:    r.UserName.String,
		ScholarName: r.ScholarName.String,
	}
}

const selectQuestions = `
	SELECT q.id, q.user_id, q.scholar_id, q.question_title, q.question_text, q.category,
		q.priority, q.status, q.created_at, q.updated_at,
		u.full_name AS user_name, s.full_name AS scholar_name
	FROM fatwa_questions q
	LEFT JOIN users u ON u.id = q.user_id
	LEFT JOIN scholars s ON s.id = q.scholar_id`

// CreateQuestion stores a new pending question
func (b *Backend) CreateQuestion(ctx context.Context, fq *backend.FatwaQuestion) (int64, error) {
	priority := fq.Priority
	if priority == "" {
		priority = backend.PriorityNormal
	}
	var id int64
	now := b.stamp()
	err := b.conn(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx,
			`INSERT INTO fatwa_questions
				(user_id, scholar_id, question_title, question_text, category, priority, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fq.UserID, fq.ScholarID, fq.Title, fq.Text, nullString(fq.Category),
			string(priority), string(backend.StatusPending), now, now,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// GetQuestion returns one question with the asker's and scholar's names
func (b *Backend) GetQuestion(ctx context.Context, id int64) (*backend.FatwaQuestion, error) {
	var r questionRow
	err := b.conn(ctx, func(q querier) error {
		return q.GetContext(ctx, &r, selectQuestions+" WHERE q.id = ?", id)
	})
	if err != nil {
		return nil, err
	}
	fq := r.toQuestion()
	return &fq, nil
}

// ListQuestionsForScholar returns the questions addressed to a scholar, newest first
func (b *Backend) ListQuestionsForScholar(ctx context.Context, scholarID int64) ([]backend.FatwaQuestion, error) {
	return b.selectQuestions(ctx, selectQuestions+" WHERE q.scholar_id = ? ORDER BY julianday(q.created_at) DESC, q.id DESC", scholarID)
}

// ListQuestionsForUser returns the questions an account asked, newest first
func (b *Backend) ListQuestionsForUser(ctx context.Context, userID int64) ([]backend.FatwaQuestion, error) {
	return b.selectQuestions(ctx, selectQuestions+" WHERE q.user_id = ? ORDER BY julianday(q.created_at) DESC, q.id DESC", userID)
}

func (b *Backend) selectQuestions(ctx context.Context, query string, arg any) ([]backend.FatwaQuestion, error) {
	var rows []questionRow
	err := b.conn(ctx, func(q querier) error {
		return q.SelectContext(ctx, &rows, query, arg)
	})
	if err != nil {
		return nil, err
	}
	questions := make([]backend.FatwaQuestion, 0, len(rows))
	for _, r := range rows {
		questions = append(questions, r.toQuestion())
	}
	return questions, nil
}

// AnswerQuestion records the answer and marks the question answered in one
// transaction. Only a pending question can be answered; an answered or
// rejected one yields ErrInvalidState.
func (b *Backend) AnswerQuestion(ctx context.Context, a *backend.FatwaAnswer) (int64, error) {
	var id int64
	now := b.stamp()
	err := b.tx(ctx, func(q querier) error {
		var status string
		if err := q.GetContext(ctx, &status, "SELECT status FROM fatwa_questions WHERE id = ?", a.QuestionID); err != nil {
			return err
		}
		if backend.QuestionStatus(status) != backend.StatusPending {
			return fmt.Errorf("%w: question %d is %s", backend.ErrInvalidState, a.QuestionID, status)
		}

		res, err := q.ExecContext(ctx,
			`INSERT INTO fatwa_answers (question_id, scholar_id, answer_text, references_text, is_public, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			a.QuestionID, a.ScholarID, a.Text, nullString(a.References), a.IsPublic, now,
		)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}

		res, err = q.ExecContext(ctx,
			"UPDATE fatwa_questions SET status = ?, updated_at = ? WHERE id = ?",
			string(backend.StatusAnswered), now, a.QuestionID,
		)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	return id, err
}

type answerRow struct {
	ID          int64          `db:"id"`
	QuestionID  int64          `db:"question_id"`
	ScholarID   int64          `db:"scholar_id"`
	Text        string         `db:"answer_text"`
	References  sql.NullString `db:"references_text"`
	IsPublic    bool           `db:"is_public"`
	CreatedAt   sql.NullString `db:"created_at"`
	ScholarName sql.NullString `db:"scholar_name"`
}

// GetAnswer returns the answer recorded for a question
func (b *Backend) GetAnswer(ctx context.Context, questionID int64) (*backend.FatwaAnswer, error) {
	var r answerRow
	err := b.conn(ctx, func(q querier) error {
		return q.GetContext(ctx, &r,
			`SELECT a.id, a.question_id, a.scholar_id, a.answer_text, a.references_text, a.is_public,
				a.created_at, s.full_name AS scholar_name
			 FROM fatwa_answers a
			 LEFT JOIN scholars s ON s.id = a.scholar_id
			 WHERE a.question_id = ?`,
			questionID,
		)
	})
	if err != nil {
		return nil, err
	}
	return &backend.FatwaAnswer{
		ID:          r.ID,
		QuestionID:  r.QuestionID,
		ScholarID:   r.ScholarID,
		Text:        r.Text,
		References:  r.References.String,
		IsPublic:    r.IsPublic,
		CreatedAt:   backend.ParseTime(r.CreatedAt.String),
		ScholarName: r.ScholarName.String,
	}, nil
}

// RejectQuestion moves a pending question addressed to scholarID to rejected.
func (b *Backend) RejectQuestion(ctx context.Context, questionID, scholarID int64) error {
	return b.tx(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx,
			"UPDATE fatwa_questions SET status = ?, updated_at = ? WHERE id = ? AND scholar_id = ? AND status = ?",
			string(backend.StatusRejected), b.stamp(), questionID, scholarID, string(backend.StatusPending),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		// Distinguish a missing question from one that is not pending.
		var status string
		err = q.GetContext(ctx, &status, "SELECT status FROM fatwa_questions WHERE id = ? AND scholar_id = ?", questionID, scholarID)
		if errors.Is(err, sql.ErrNoRows) {
			return backend.ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: question %d is %s", backend.ErrInvalidState, questionID, status)
	})
}
