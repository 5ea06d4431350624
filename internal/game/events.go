package game

import "gechoice/internal/domain"

// EventType tags broadcast notifications fanned out to subscribers.
type EventType string

const (
	EventState           EventType = "state"
	EventVotingStatus    EventType = "votingStatus"
	EventQuestionResults EventType = "questionResults"
	EventResultsRevealed EventType = "resultsRevealed"
	EventResultsClosed   EventType = "resultsClosed"
	EventVoteDeleted     EventType = "voteDeleted"
	EventFinalResults    EventType = "finalResults"
	EventGameReset       EventType = "gameReset"
)

// Event is the envelope pushed on subscription channels after every
// mutation. Caller-targeted outcomes (accepted weights, advisories) are
// operation return values, not events.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

type VotingStatusPayload struct {
	IsOpen bool `json:"isOpen"`
}

type QuestionResultsPayload struct {
	Index int                     `json:"index"`
	Rows  []domain.QuestionResult `json:"rows"`
}

type VoteDeletedPayload struct {
	TeamName     string `json:"teamName"`
	FreedWeights []int  `json:"freedWeights"`
}

type FinalResultsPayload struct {
	Standings []domain.TeamStanding `json:"standings"`
}
