package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
)

// ListQuizQuestions returns the active questions of a quiz in display order.
func (s *Store) ListQuizQuestions(ctx context.Context, quizID string) ([]models.QuizQuestion, error) {
	q := `
		SELECT id, quiz_id, text, self_text, options_json, sort_order
		FROM quiz_questions
		WHERE quiz_id = $1 AND is_active
		ORDER BY sort_order
	`
	rows, err := s.Pool.Query(ctx, q, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var qs []models.QuizQuestion
	for rows.Next() {
		var (
			qq      models.QuizQuestion
			options []byte
		)
		if err := rows.Scan(&qq.ID, &qq.QuizID, &qq.Text, &qq.SelfText, &options, &qq.Order); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(options, &qq.Options); err != nil {
			return nil, fmt.Errorf("question %d options: %w", qq.ID, err)
		}
		qs = append(qs, qq)
	}
	return qs, rows.Err()
}

// GetAnswerProfile loads a user's own answers for a quiz.
func (s *Store) GetAnswerProfile(ctx context.Context, userID uuid.UUID, quizID string) (*models.AnswerProfile, error) {
	q := `
		SELECT user_id, quiz_id, answers_json, updated_at
		FROM quiz_profiles
		WHERE user_id = $1 AND quiz_id = $2
	`
	var (
		p       models.AnswerProfile
		answers []byte
	)
	if err := s.Pool.QueryRow(ctx, q, userID, quizID).Scan(&p.UserID, &p.QuizID, &answers, &p.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(answers, &p.Answers); err != nil {
		return nil, fmt.Errorf("profile answers: %w", err)
	}
	return &p, nil
}

// UpsertAnswerProfile stores or replaces a user's answers for a quiz.
func (s *Store) UpsertAnswerProfile(ctx context.Context, p *models.AnswerProfile) error {
	answers, err := json.Marshal(p.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	q := `
		INSERT INTO quiz_profiles (user_id, quiz_id, answers_json, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, quiz_id)
		DO UPDATE SET answers_json = EXCLUDED.answers_json, updated_at = EXCLUDED.updated_at
	`
	return pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, p.UserID, p.QuizID, answers, updatedAt)
		return e
	})
}
