package game

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"gechoice/internal/domain"
)

// Session is the coordinator for one live game: it owns the question index,
// the open/closed round flag, the vote ledger, the per-team weight tracker,
// finalized snapshots and running totals, and pushes a fresh state view to
// every subscriber after each mutation.
//
// Locking: mu guards the lifecycle fields and the subscriber set. The vote
// ledger, weight tracker and totals carry their own locks so submissions
// from different participants never serialize on each other; submissions
// hold mu for reading only, while finalize, advancement and reset take it
// exclusively. Lock order is always mu first, then a leaf structure.
type Session struct {
	id      string
	catalog domain.Catalog
	clock   clockwork.Clock

	mu           sync.RWMutex
	currentIndex int
	votingOpen   bool
	startedAt    *time.Time
	results      map[int][]domain.QuestionResult
	finalized    map[int]bool
	revealed     map[int]bool
	subscribers  map[chan Event]struct{}

	votes   *voteLedger
	weights *weightTracker
	totals  *aggregateTotals

	finalizeGroup singleflight.Group
}

// NewSession builds a session over an immutable catalog.
func NewSession(id string, catalog domain.Catalog) *Session {
	return NewSessionWithClock(id, catalog, clockwork.NewRealClock())
}

// NewSessionWithClock allows a fake clock for deterministic elapsed times in tests.
func NewSessionWithClock(id string, catalog domain.Catalog, clock clockwork.Clock) *Session {
	return &Session{
		id:          id,
		catalog:     catalog,
		clock:       clock,
		results:     make(map[int][]domain.QuestionResult),
		finalized:   make(map[int]bool),
		revealed:    make(map[int]bool),
		subscribers: make(map[chan Event]struct{}),
		votes:       newVoteLedger(),
		weights:     newWeightTracker(),
		totals:      newAggregateTotals(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// GetState returns the current render-ready view.
func (s *Session) GetState() domain.StateView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// Submit records a team-less answer with an implicit weight of 1. It never
// touches the weight tracker, so it can be called any number of times while
// the round is open.
func (s *Session) Submit(participantID, option string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.votingOpen {
		return domain.ErrRoundClosed
	}
	question := s.catalog.Questions[s.currentIndex]
	canonical := question.CanonicalOption(option)
	if canonical == "" {
		return domain.ErrInvalidOption
	}

	sub, ok := s.votes.get(participantID)
	if !ok {
		sub = domain.Submission{
			ParticipantID: participantID,
			TeamName:      s.votes.teamFor(participantID),
			Weight:        1,
		}
	}
	sub.SelectedOption = canonical
	sub.ElapsedSeconds = s.elapsedLocked()
	s.votes.put(sub)

	s.emitLocked(Event{Type: EventState, Payload: s.stateLocked()})
	return nil
}

// SubmitWithWeight records a weighted, team-attributed answer. The weight
// claim is a single check-and-set per team: when two submissions race for
// the same team and weight, exactly one wins. Resubmitting with the weight
// the participant already holds only changes the option.
func (s *Session) SubmitWithWeight(participantID, teamName, option string, weight int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.votingOpen {
		return domain.ErrRoundClosed
	}
	question := s.catalog.Questions[s.currentIndex]
	canonical := question.CanonicalOption(option)
	if canonical == "" {
		return domain.ErrInvalidOption
	}
	if !domain.ValidWeight(weight) {
		return domain.ErrInvalidWeight
	}
	team := strings.TrimSpace(teamName)
	if team == "" {
		return domain.ErrMissingTeamName
	}

	prev, resubmit := s.votes.get(participantID)
	sameClaim := resubmit && prev.TeamName == team && prev.Weight == weight
	if !sameClaim && !s.weights.claim(team, weight) {
		return domain.ErrWeightAlreadyUsed
	}

	s.votes.put(domain.Submission{
		ParticipantID:  participantID,
		TeamName:       team,
		SelectedOption: canonical,
		Weight:         weight,
		ElapsedSeconds: s.elapsedLocked(),
	})

	s.emitLocked(Event{Type: EventState, Payload: s.stateLocked()})
	return nil
}

// UpdateTeamName sets the participant's team for future submissions and
// renames their current one. Weights already spent stay with the old team.
func (s *Session) UpdateTeamName(participantID, teamName string) error {
	team := strings.TrimSpace(teamName)
	if team == "" {
		return domain.ErrMissingTeamName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.votes.setTeam(participantID, team)
	s.emitLocked(Event{Type: EventState, Payload: s.stateLocked()})
	return nil
}

// StartVoting opens the round for the current question and stamps the
// start time. A question that has already been finalized cannot be
// reopened for replay.
func (s *Session) StartVoting() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.votingOpen {
		return domain.ErrRoundOpen
	}
	if s.finalized[s.currentIndex] {
		return domain.ErrAlreadyFinalized
	}
	now := s.clock.Now()
	s.votingOpen = true
	s.startedAt = &now

	s.emitLocked(Event{Type: EventVotingStatus, Payload: VotingStatusPayload{IsOpen: true}})
	s.emitLocked(Event{Type: EventState, Payload: s.stateLocked()})
	return nil
}

// StopVoting closes the round and finalizes the current question exactly
// once. Calling it again is a no-op; results stay unrevealed until the
// host shows them.
func (s *Session) StopVoting() error {
	s.mu.RLock()
	index := s.currentIndex
	s.mu.RUnlock()
	_, err := s.finalize(index)
	return err
}

// finalize converts the ledger into the immutable snapshot for index and
// folds it into the running totals. Concurrent calls collapse into one
// execution; an already-finalized index returns the stored snapshot
// without folding anything twice. The round is marked closed inside the
// same critical section as the already-finalized check, so no submission
// can be scored after closure is observable.
func (s *Session) finalize(index int) ([]domain.QuestionResult, error) {
	rows, err, _ := s.finalizeGroup.Do(strconv.Itoa(index), func() (interface{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		wasOpen := s.votingOpen
		s.votingOpen = false

		if s.finalized[index] {
			if wasOpen {
				s.emitLocked(Event{Type: EventVotingStatus, Payload: VotingStatusPayload{IsOpen: false}})
				s.emitLocked(Event{Type: EventState, Payload: s.stateLocked()})
			}
			return s.results[index], nil
		}

		question := s.catalog.Questions[index]
		votes := s.votes.snapshot()
		snapshot := make([]domain.QuestionResult, 0, len(votes))
		for _, sub := range votes {
			points := 0
			if question.IsCorrect(sub.SelectedOption) {
				points = sub.Weight
			}
			snapshot = append(snapshot, domain.QuestionResult{
				ParticipantID:  sub.ParticipantID,
				TeamName:       sub.TeamName,
				SelectedOption: sub.SelectedOption,
				Weight:         sub.Weight,
				ElapsedSeconds: sub.ElapsedSeconds,
				Points:         points,
			})
		}
		sort.Slice(snapshot, func(i, j int) bool {
			if snapshot[i].TeamName != snapshot[j].TeamName {
				return snapshot[i].TeamName < snapshot[j].TeamName
			}
			return snapshot[i].ParticipantID < snapshot[j].ParticipantID
		})

		for _, row := range snapshot {
			team := strings.TrimSpace(row.TeamName)
			if team == "" {
				// no anonymous ranking
				continue
			}
			s.totals.add(team, row.Points, row.ElapsedSeconds)
		}

		s.results[index] = snapshot
		s.finalized[index] = true

		s.emitLocked(Event{Type: EventVotingStatus, Payload: VotingStatusPayload{IsOpen: false}})
		s.emitLocked(Event{Type: EventQuestionResults, Payload: QuestionResultsPayload{Index: index, Rows: snapshot}})
		s.emitLocked(Event{Type: EventState, Payload: s.stateLocked()})
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return rows.([]domain.QuestionResult), nil
}

// ShowQuestionResults reveals the finalized snapshot of the current
// question to everyone and unlocks advancement.
func (s *Session) ShowQuestionResults() ([]domain.QuestionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finalized[s.currentIndex] {
		return nil, domain.ErrNotFinalized
	}
	s.revealed[s.currentIndex] = true
	rows := s.results[s.currentIndex]

	s.emitLocked(Event{Type: EventResultsRevealed, Payload: QuestionResultsPayload{Index: s.currentIndex, Rows: rows}})
	s.emitLocked(Event{Type: EventState, Payload: s.stateLocked()})
	return rows, nil
}

// NextQuestion moves to the following question. See advance for the guards.
func (s *Session) NextQuestion() error { return s.advance(1) }

// PrevQuestion moves back one question.
func (s *Session) PrevQuestion() error { return s.advance(-1) }

// advance transitions the question index. Rejected while the round is open
// and until the current question's results have been finalized and shown.
// The target index clamps into the catalog bounds; the ledger empties but
// consumed weights persist for the rest of the game.
func (s *Session) advance(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.votingOpen {
		return domain.ErrRoundOpen
	}
	if !s.finalized[s.currentIndex] {
		return domain.ErrNotFinalized
	}
	if !s.revealed[s.currentIndex] {
		return domain.ErrResultsNotRevealed
	}

	next := s.currentIndex + delta
	if next < 0 {
		next = 0
	}
	if last := len(s.catalog.Questions) - 1; next > last {
		next = last
	}
	s.currentIndex = next
	s.votingOpen = false
	s.startedAt = nil
	s.votes.clearVotes()

	s.emitLocked(Event{Type: EventResultsClosed})
	s.emitLocked(Event{Type: EventState, Payload: s.stateLocked()})
	return nil
}

// RequestFinalResults ranks all finalized results. Only available once the
// last question has been finalized; the ordering is deterministic: points
// descending, total elapsed ascending, then team name.
func (s *Session) RequestFinalResults() ([]domain.TeamStanding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := len(s.catalog.Questions) - 1
	if s.currentIndex != last {
		return nil, domain.ErrNotLastQuestion
	}
	if !s.finalized[last] {
		return nil, domain.ErrNotFinalized
	}

	standings := s.totals.standings()
	s.emitLocked(Event{Type: EventFinalResults, Payload: FinalResultsPayload{Standings: standings}})
	return standings, nil
}

// DeleteTeamVote removes every current-question submission of a team and
// frees the weights those submissions had claimed, so the team can spend
// them again. This is the host's undo path, distinct from normal
// consumption.
func (s *Session) DeleteTeamVote(teamName string) error {
	team := strings.TrimSpace(teamName)
	if team == "" {
		return domain.ErrMissingTeamName
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	removed := s.votes.removeTeam(team)
	if len(removed) == 0 {
		return domain.ErrVoteNotFound
	}
	var freed []int
	for _, sub := range removed {
		if domain.ValidWeight(sub.Weight) && s.weights.release(team, sub.Weight) {
			freed = append(freed, sub.Weight)
		}
	}
	sort.Ints(freed)

	s.emitLocked(Event{Type: EventVoteDeleted, Payload: VoteDeletedPayload{TeamName: team, FreedWeights: freed}})
	s.emitLocked(Event{Type: EventState, Payload: s.stateLocked()})
	return nil
}

// DeleteResultRow edits an already-finalized snapshot, removing the team's
// rows and deducting their points from the totals (floored at zero).
// Elapsed time stays counted.
func (s *Session) DeleteResultRow(index int, teamName string) error {
	team := strings.TrimSpace(teamName)
	if team == "" {
		return domain.ErrMissingTeamName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finalized[index] {
		return domain.ErrNotFinalized
	}
	rows := s.results[index]
	kept := make([]domain.QuestionResult, 0, len(rows))
	removed := 0
	for _, row := range rows {
		if strings.TrimSpace(row.TeamName) == team {
			removed++
			s.totals.subtractPoints(team, row.Points)
			continue
		}
		kept = append(kept, row)
	}
	if removed == 0 {
		return domain.ErrVoteNotFound
	}
	s.results[index] = kept

	s.emitLocked(Event{Type: EventQuestionResults, Payload: QuestionResultsPayload{Index: index, Rows: kept}})
	s.emitLocked(Event{Type: EventState, Payload: s.stateLocked()})
	return nil
}

// ResetGame wipes everything back to question zero: ledger, weight sets,
// snapshots, totals, round state. Always permitted.
func (s *Session) ResetGame() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.votes.reset()
	s.weights.reset()
	s.totals.reset()
	s.results = make(map[int][]domain.QuestionResult)
	s.finalized = make(map[int]bool)
	s.revealed = make(map[int]bool)
	s.currentIndex = 0
	s.votingOpen = false
	s.startedAt = nil

	s.emitLocked(Event{Type: EventState, Payload: s.stateLocked()})
	s.emitLocked(Event{Type: EventGameReset})
}

// Disconnect drops the participant's current submission. Their team keeps
// its consumed weights.
func (s *Session) Disconnect(participantID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.votes.removeParticipant(participantID); !ok {
		return
	}
	s.emitLocked(Event{Type: EventState, Payload: s.stateLocked()})
}

// Subscribe returns a channel that receives events for this session. The
// first event is the current state. The caller must invoke the returned
// cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.stateLocked()
	s.mu.Unlock()

	ch <- Event{Type: EventState, Payload: initial}

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// emitLocked fans an event out without ever blocking on a slow subscriber:
// when a channel is full the oldest pending event is dropped first, and a
// still-full channel loses the event entirely. Callers hold mu in at least
// read mode.
func (s *Session) emitLocked(ev Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

func (s *Session) stateLocked() domain.StateView {
	question := s.catalog.Questions[s.currentIndex]

	counts := make(map[string]int, len(question.Options))
	for _, opt := range question.Options {
		counts[opt] = 0
	}
	votes := s.votes.snapshot()
	for _, sub := range votes {
		if _, ok := counts[sub.SelectedOption]; ok {
			counts[sub.SelectedOption]++
		}
	}

	var startedAt *time.Time
	if s.startedAt != nil {
		t := *s.startedAt
		startedAt = &t
	}

	return domain.StateView{
		CurrentIndex:    s.currentIndex,
		QuestionCount:   len(s.catalog.Questions),
		Question:        domain.QuestionView{Title: question.Title, Options: question.Options},
		Counts:          counts,
		IsVotingOpen:    s.votingOpen,
		VotingStartedAt: startedAt,
		Votes:           votes,
		UsedWeights:     s.weights.snapshot(),
	}
}

// elapsedLocked measures seconds since the round opened, never negative.
func (s *Session) elapsedLocked() float64 {
	if s.startedAt == nil {
		return 0
	}
	elapsed := s.clock.Now().Sub(*s.startedAt).Seconds()
	if elapsed < 0 {
		return 0
	}
	return elapsed
}
