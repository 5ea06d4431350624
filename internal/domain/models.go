package domain

import (
	"strings"
	"time"
)

// AllowedWeights are the multipliers a team may spend on an answer; each is
// consumable once per game.
var AllowedWeights = []int{1, 2, 4}

// ValidWeight reports whether w is one of the spendable weights.
func ValidWeight(w int) bool {
	for _, allowed := range AllowedWeights {
		if w == allowed {
			return true
		}
	}
	return false
}

// Question is one multiple-choice prompt with 2-3 labeled options.
// CorrectOption is empty when the question has no scoring answer; every
// submission then scores zero.
type Question struct {
	Title         string   `json:"title"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correctOption,omitempty"`
}

// CanonicalOption maps a case-insensitive label to the stored option label,
// or "" when the label is not an option of this question.
func (q Question) CanonicalOption(label string) string {
	trimmed := strings.TrimSpace(label)
	for _, opt := range q.Options {
		if strings.EqualFold(opt, trimmed) {
			return opt
		}
	}
	return ""
}

// HasOption reports whether label names one of the question's options,
// ignoring case.
func (q Question) HasOption(label string) bool {
	return q.CanonicalOption(label) != ""
}

// IsCorrect reports whether label matches the designated correct option,
// ignoring case. Always false for questions without a correct option.
func (q Question) IsCorrect(label string) bool {
	return q.CorrectOption != "" && strings.EqualFold(strings.TrimSpace(label), q.CorrectOption)
}

// Catalog is the ordered question sequence for one game. Immutable after
// construction; read access needs no locking.
type Catalog struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Submission is a participant's answer for the current question.
type Submission struct {
	ParticipantID  string  `json:"participantId"`
	TeamName       string  `json:"teamName"`
	SelectedOption string  `json:"selectedOption"`
	Weight         int     `json:"weight"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// QuestionResult is one scored row of a finalized question snapshot.
type QuestionResult struct {
	ParticipantID  string  `json:"participantId"`
	TeamName       string  `json:"teamName"`
	SelectedOption string  `json:"selectedOption"`
	Weight         int     `json:"weight"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	Points         int     `json:"points"`
}

// TeamStanding is a team's running total across all finalized questions.
type TeamStanding struct {
	TeamName            string  `json:"teamName"`
	TotalPoints         int     `json:"totalPoints"`
	TotalElapsedSeconds float64 `json:"totalElapsedSeconds"`
}

// QuestionView is the participant-facing shape of a question; it never
// carries the correct option.
type QuestionView struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

// StateView is the full render-ready picture of the session pushed to
// clients after every mutation.
type StateView struct {
	CurrentIndex    int                   `json:"currentIndex"`
	QuestionCount   int                   `json:"questionCount"`
	Question        QuestionView          `json:"question"`
	Counts          map[string]int        `json:"counts"`
	IsVotingOpen    bool                  `json:"isVotingOpen"`
	VotingStartedAt *time.Time            `json:"votingStartedAt,omitempty"`
	Votes           map[string]Submission `json:"votes"`
	UsedWeights     map[string][]int      `json:"usedWeights"`
}
