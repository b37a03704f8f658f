package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"imanconnect/backend"
	"imanconnect/internal/async"
	"imanconnect/internal/notification"
	"imanconnect/internal/utils"
)

// SubmitQuestion records a pending question for a scholar and notifies the
// scholar. It returns the question id.
func (s *Service) SubmitQuestion(ctx context.Context, q backend.FatwaQuestion) *async.Future[int64] {
	return run(ctx, s, "SubmitQuestion", func(ctx context.Context) (int64, error) {
		q.Title = strings.TrimSpace(q.Title)
		q.Text = strings.TrimSpace(q.Text)
		if q.Priority == "" {
			q.Priority = backend.PriorityNormal
		}
		q.Priority = backend.Priority(strings.ToLower(string(q.Priority)))
		if err := utils.Validate(q); err != nil {
			return 0, err
		}

		asker, err := s.store.GetAccountByID(ctx, q.UserID)
		if err != nil {
			return 0, fmt.Errorf("asker %d: %w", q.UserID, err)
		}
		if _, err := s.store.GetScholarByID(ctx, q.ScholarID); err != nil {
			return 0, fmt.Errorf("scholar %d: %w", q.ScholarID, err)
		}

		id, err := s.store.CreateQuestion(ctx, &q)
		if err != nil {
			return 0, err
		}
		s.notify(notification.Notification{
			Type:      notification.NotifyQuestionSubmitted,
			Recipient: notification.Scholar(q.ScholarID),
			Title:     "New question",
			Message:   fmt.Sprintf("%s asked: %s", asker.FullName, q.Title),
			Metadata:  map[string]string{"question_id": strconv.FormatInt(id, 10)},
		})
		return id, nil
	})
}

// ListQuestionsForScholar returns the questions addressed to a scholar, newest first.
func (s *Service) ListQuestionsForScholar(ctx context.Context, scholarID int64) *async.Future[[]backend.FatwaQuestion] {
	return run(ctx, s, "ListQuestionsForScholar", func(ctx context.Context) ([]backend.FatwaQuestion, error) {
		return s.store.ListQuestionsForScholar(ctx, scholarID)
	})
}

// ListQuestionsForUser returns the questions an account asked, newest first.
func (s *Service) ListQuestionsForUser(ctx context.Context, userID int64) *async.Future[[]backend.FatwaQuestion] {
	return run(ctx, s, "ListQuestionsForUser", func(ctx context.Context) ([]backend.FatwaQuestion, error) {
		return s.store.ListQuestionsForUser(ctx, userID)
	})
}

// GetQuestion loads one question, Empty when unknown.
func (s *Service) GetQuestion(ctx context.Context, id int64) *async.Future[*backend.FatwaQuestion] {
	return lookup(ctx, s, "GetQuestion", func(ctx context.Context) (*backend.FatwaQuestion, error) {
		return s.store.GetQuestion(ctx, id)
	})
}

// SubmitAnswer records the answer and marks the question answered in one
// transaction, then notifies the asker. Only the addressed scholar may answer,
// and only while the question is pending; anything else is a conflict.
func (s *Service) SubmitAnswer(ctx context.Context, a backend.FatwaAnswer) *async.Future[int64] {
	return run(ctx, s, "SubmitAnswer", func(ctx context.Context) (int64, error) {
		a.Text = strings.TrimSpace(a.Text)
		if err := utils.Validate(a); err != nil {
			return 0, err
		}

		q, err := s.store.GetQuestion(ctx, a.QuestionID)
		if err != nil {
			return 0, fmt.Errorf("question %d: %w", a.QuestionID, err)
		}
		if q.ScholarID != a.ScholarID {
			return 0, fmt.Errorf("%w: question %d is addressed to another scholar", backend.ErrInvalidState, q.ID)
		}

		id, err := s.store.AnswerQuestion(ctx, &a)
		if err != nil {
			return 0, err
		}
		s.notify(notification.Notification{
			Type:      notification.NotifyQuestionAnswered,
			Recipient: notification.User(q.UserID),
			Title:     "Your question was answered",
			Message:   fmt.Sprintf("%s answered: %s", q.ScholarName, q.Title),
			Metadata:  map[string]string{"question_id": strconv.FormatInt(q.ID, 10)},
		})
		return id, nil
	})
}

// GetAnswer loads the answer to a question, Empty when it has none.
func (s *Service) GetAnswer(ctx context.Context, questionID int64) *async.Future[*backend.FatwaAnswer] {
	return lookup(ctx, s, "GetAnswer", func(ctx context.Context) (*backend.FatwaAnswer, error) {
		return s.store.GetAnswer(ctx, questionID)
	})
}

// RejectQuestion moves a pending question to rejected and notifies the asker.
func (s *Service) RejectQuestion(ctx context.Context, questionID, scholarID int64) *async.Future[bool] {
	return run(ctx, s, "RejectQuestion", func(ctx context.Context) (bool, error) {
		if err := s.store.RejectQuestion(ctx, questionID, scholarID); err != nil {
			return false, err
		}
		q, err := s.store.GetQuestion(ctx, questionID)
		if err != nil {
			s.log.Warn("question %d rejected but could not be reloaded: %v", questionID, err)
			return true, nil
		}
		s.notify(notification.Notification{
			Type:      notification.NotifyQuestionRejected,
			Recipient: notification.User(q.UserID),
			Title:     "Your question was declined",
			Message:   fmt.Sprintf("%s declined: %s", q.ScholarName, q.Title),
			Metadata:  map[string]string{"question_id": strconv.FormatInt(q.ID, 10)},
		})
		return true, nil
	})
}
