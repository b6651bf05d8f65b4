// Package achievement holds the static achievement catalog and the engine that
// advances partnership counters when a session finishes.
package achievement

import "github.com/ARTFROST1/DuoLoveCursor/internal/models"

// Catalog categories.
const (
	CategoryMilestones    = "relationship_milestones"
	CategoryActivity      = "activity"
	CategoryMemorySync    = "memory_sync"
	CategoryCommunication = "communication"
	CategorySpecialFun    = "special_fun"
)

// Slugs advanced by a finished session.
const (
	SlugFirstGame    = "first_game"
	SlugGameDuo      = "game_duo"
	SlugHardcoreMode = "hardcore_mode"
	SlugFirstVictory = "first_victory"
)

func goal(n int) *int { return &n }

func couple(slug, emoji, title, description, category string, g *int) models.AchievementDefinition {
	return models.AchievementDefinition{
		Slug:        slug,
		Emoji:       emoji,
		Title:       title,
		Description: description,
		Category:    category,
		Goal:        g,
		Scope:       models.ScopeCouple,
	}
}

var catalog = []models.AchievementDefinition{
	couple("first_day", "📅", "First Day", "Spend your first day together in the app", CategoryMilestones, goal(1)),
	couple("first_10_days", "🔟", "Ten Days", "Stay together for 10 days", CategoryMilestones, goal(10)),
	couple("hundred_days_strong", "💯", "Hundred Days Strong", "Stay together for 100 days", CategoryMilestones, goal(100)),
	couple("one_year_duo", "🏆", "One Year Duo", "Stay together for a whole year", CategoryMilestones, goal(365)),

	couple(SlugFirstGame, "🎮", "First Game", "Play your first game together", CategoryActivity, goal(1)),
	couple(SlugGameDuo, "🔁", "Game Duo", "Play 10 games together", CategoryActivity, goal(10)),
	couple(SlugHardcoreMode, "💪", "Hardcore Mode", "Play 50 games together", CategoryActivity, goal(50)),
	couple("puzzle_masters", "🧩", "Puzzle Masters", "Solve 5 puzzles together", CategoryActivity, goal(5)),
	couple("duelists", "⚔️", "Duelists", "Fight 10 duels", CategoryActivity, goal(10)),

	couple("mind_reader", "🧠", "Mind Reader", "Guess your partner's answer 3 times", CategoryMemorySync, goal(3)),
	couple("perfect_sync", "🔄", "Perfect Sync", "Match every answer in one quiz", CategoryMemorySync, goal(1)),
	couple("brain_twins", "🤯", "Brain Twins", "Finish 5 quizzes with a high match", CategoryMemorySync, goal(5)),

	couple("talk_to_me", "🗣", "Talk To Me", "Answer your first question card", CategoryCommunication, goal(1)),
	couple("deep_talk", "💬", "Deep Talk", "Answer 5 deep questions", CategoryCommunication, goal(5)),
	couple("soul_talkers", "📖", "Soul Talkers", "Answer 15 question cards", CategoryCommunication, goal(15)),

	couple(SlugFirstVictory, "🥇", "First Victory", "Win your first duel", CategorySpecialFun, goal(1)),
	couple("silly_couple", "🧃", "Silly Couple", "Pick the silliest answer together", CategorySpecialFun, goal(1)),
	couple("night_owls", "🌙", "Night Owls", "Play a game after midnight", CategorySpecialFun, goal(1)),
	couple("hot_streak", "🔥", "Hot Streak", "Play three days in a row", CategorySpecialFun, goal(3)),
	couple("legendary_duo", "💎", "Legendary Duo", "Unlock something truly special", CategorySpecialFun, nil),
}

var bySlug = func() map[string]models.AchievementDefinition {
	m := make(map[string]models.AchievementDefinition, len(catalog))
	for _, d := range catalog {
		m[d.Slug] = d
	}
	return m
}()

// Catalog returns every known definition in display order.
func Catalog() []models.AchievementDefinition {
	out := make([]models.AchievementDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a definition by slug.
func Lookup(slug string) (models.AchievementDefinition, bool) {
	d, ok := bySlug[slug]
	return d, ok
}
