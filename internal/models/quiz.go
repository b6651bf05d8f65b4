package models

import (
	"time"

	"github.com/google/uuid"
)

// QuizQuestion is one entry of a quiz's question bank. Text is phrased about
// the partner; SelfText, when set, is the first-person wording used for prefill.
type QuizQuestion struct {
	ID       int      `json:"id"`
	QuizID   string   `json:"quizId"`
	Text     string   `json:"text"`
	SelfText string   `json:"selfText,omitempty"`
	Options  []string `json:"options"`
	Order    int      `json:"order"`
}

// AnswerProfile holds a user's own answers for a quiz, keyed by question id.
type AnswerProfile struct {
	UserID    uuid.UUID         `json:"userId"`
	QuizID    string            `json:"quizId"`
	Answers   map[string]string `json:"answers"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
