package game

import (
	"strings"

	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
)

// QuizLoveSlug identifies the preference quiz.
const QuizLoveSlug = "quiz_love"

// SeedQuestions is the built-in question bank for QuizLoveSlug. The memory
// store driver loads it at startup; Postgres seeds the same rows.
func SeedQuestions() []models.QuizQuestion {
	return []models.QuizQuestion{
		{ID: 1, QuizID: QuizLoveSlug, Order: 1,
			Text:     "Which movie genre does your partner love?",
			SelfText: "Which movie genre do you love?",
			Options:  []string{"Comedy", "Drama", "Action", "Sci-Fi"}},
		{ID: 2, QuizID: QuizLoveSlug, Order: 2,
			Text:     "What will your partner drink in the morning?",
			SelfText: "What will you drink in the morning?",
			Options:  []string{"Coffee", "Tea", "Smoothie", "Water"}},
		{ID: 3, QuizID: QuizLoveSlug, Order: 3,
			Text:     "What is your partner's favourite season?",
			SelfText: "What is your favourite season?",
			Options:  []string{"Spring", "Summer", "Autumn", "Winter"}},
		{ID: 4, QuizID: QuizLoveSlug, Order: 4,
			Text:     "Which pet would your partner pick?",
			SelfText: "Which pet would you pick?",
			Options:  []string{"Dog", "Cat", "Hamster", "Parrot"}},
		{ID: 5, QuizID: QuizLoveSlug, Order: 5,
			Text:     "Your partner's dream day off is…",
			SelfText: "Your dream day off is…",
			Options:  []string{"Beach", "Mountains", "City tour", "Home with a book"}},
	}
}

var firstPerson = strings.NewReplacer(
	"Your partner's", "Your",
	"your partner's", "your",
	"Your partner", "You",
	"your partner", "you",
)

var secondPersonGrammar = strings.NewReplacer("does you", "do you", "is you", "are you")

// selfText returns the first-person wording of q.
func selfText(q models.QuizQuestion) string {
	if q.SelfText != "" {
		return q.SelfText
	}
	return secondPersonGrammar.Replace(firstPerson.Replace(q.Text))
}
