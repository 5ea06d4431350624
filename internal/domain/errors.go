package domain

import "errors"

var (
	// ErrRoundClosed rejects submissions outside an open round.
	ErrRoundClosed = errors.New("voting is closed")
	// ErrRoundOpen rejects lifecycle operations that require a closed round.
	ErrRoundOpen = errors.New("voting is still open")
	// ErrInvalidOption rejects labels that are not options of the current question.
	ErrInvalidOption = errors.New("option is not part of the current question")
	// ErrInvalidWeight rejects weights outside {1,2,4}.
	ErrInvalidWeight = errors.New("weight must be 1, 2 or 4")
	// ErrMissingTeamName rejects weighted submissions without a team.
	ErrMissingTeamName = errors.New("team name is required")
	// ErrWeightAlreadyUsed rejects a weight the team has already spent this game.
	ErrWeightAlreadyUsed = errors.New("weight already used by this team")
	// ErrAlreadyFinalized rejects reopening a question that has been scored.
	ErrAlreadyFinalized = errors.New("question has already been finalized")
	// ErrNotFinalized rejects result operations before the round was stopped.
	ErrNotFinalized = errors.New("question has not been finalized")
	// ErrResultsNotRevealed blocks advancement until the host shows results.
	ErrResultsNotRevealed = errors.New("results have not been revealed")
	// ErrNotLastQuestion rejects final results before the last question.
	ErrNotLastQuestion = errors.New("final results are only available on the last question")
	// ErrVoteNotFound indicates no ledger or snapshot row matched.
	ErrVoteNotFound = errors.New("no vote found")
	// ErrNotHost rejects host operations from unprivileged callers.
	ErrNotHost = errors.New("host privileges required")
	// ErrCatalogNotFound indicates the question catalog could not be loaded.
	ErrCatalogNotFound = errors.New("catalog not found")
)
