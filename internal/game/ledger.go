package game

import (
	"sort"
	"strings"
	"sync"

	"gechoice/internal/domain"
)

// voteLedger holds the current question's submissions keyed by participant,
// plus each participant's preferred team name, which outlives question
// transitions.
type voteLedger struct {
	mu    sync.RWMutex
	votes map[string]domain.Submission
	teams map[string]string
}

func newVoteLedger() *voteLedger {
	return &voteLedger{
		votes: make(map[string]domain.Submission),
		teams: make(map[string]string),
	}
}

func (l *voteLedger) get(participantID string) (domain.Submission, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sub, ok := l.votes[participantID]
	return sub, ok
}

func (l *voteLedger) put(sub domain.Submission) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.votes[sub.ParticipantID] = sub
	if sub.TeamName != "" {
		l.teams[sub.ParticipantID] = sub.TeamName
	}
}

func (l *voteLedger) teamFor(participantID string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.teams[participantID]
}

// setTeam records the participant's team and renames their current
// submission if one exists.
func (l *voteLedger) setTeam(participantID, team string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.teams[participantID] = team
	if sub, ok := l.votes[participantID]; ok {
		sub.TeamName = team
		l.votes[participantID] = sub
	}
}

func (l *voteLedger) removeParticipant(participantID string) (domain.Submission, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sub, ok := l.votes[participantID]
	delete(l.votes, participantID)
	delete(l.teams, participantID)
	return sub, ok
}

// removeTeam deletes every submission whose trimmed team name matches and
// returns the removed entries.
func (l *voteLedger) removeTeam(team string) []domain.Submission {
	l.mu.Lock()
	defer l.mu.Unlock()
	var removed []domain.Submission
	for id, sub := range l.votes {
		if strings.TrimSpace(sub.TeamName) == team {
			removed = append(removed, sub)
			delete(l.votes, id)
		}
	}
	return removed
}

func (l *voteLedger) snapshot() map[string]domain.Submission {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]domain.Submission, len(l.votes))
	for id, sub := range l.votes {
		out[id] = sub
	}
	return out
}

// clearVotes empties the ledger for a question transition; team identities
// survive.
func (l *voteLedger) clearVotes() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.votes = make(map[string]domain.Submission)
}

func (l *voteLedger) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.votes = make(map[string]domain.Submission)
	l.teams = make(map[string]string)
}

// weightTracker records which weights each team has spent this game. The
// claim check-and-set is one critical section: under concurrent claims for
// the same team and weight exactly one caller wins.
type weightTracker struct {
	mu   sync.Mutex
	used map[string]map[int]struct{}
}

func newWeightTracker() *weightTracker {
	return &weightTracker{used: make(map[string]map[int]struct{})}
}

func (t *weightTracker) claim(team string, weight int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.used[team]
	if !ok {
		set = make(map[int]struct{})
		t.used[team] = set
	}
	if _, taken := set[weight]; taken {
		return false
	}
	set[weight] = struct{}{}
	return true
}

// release frees a weight for reuse and reports whether it was held.
func (t *weightTracker) release(team string, weight int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.used[team]
	if !ok {
		return false
	}
	if _, held := set[weight]; !held {
		return false
	}
	delete(set, weight)
	if len(set) == 0 {
		delete(t.used, team)
	}
	return true
}

func (t *weightTracker) snapshot() map[string][]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][]int, len(t.used))
	for team, set := range t.used {
		weights := make([]int, 0, len(set))
		for w := range set {
			weights = append(weights, w)
		}
		sort.Ints(weights)
		out[team] = weights
	}
	return out
}

func (t *weightTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.used = make(map[string]map[int]struct{})
}

// aggregateTotals folds finalized results into per-team running totals.
type aggregateTotals struct {
	mu     sync.Mutex
	totals map[string]*teamTotal
}

type teamTotal struct {
	points  int
	elapsed float64
}

func newAggregateTotals() *aggregateTotals {
	return &aggregateTotals{totals: make(map[string]*teamTotal)}
}

func (a *aggregateTotals) add(team string, points int, elapsed float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	total, ok := a.totals[team]
	if !ok {
		total = &teamTotal{}
		a.totals[team] = total
	}
	total.points += points
	total.elapsed += elapsed
}

// subtractPoints deducts points from a team's total, flooring at zero.
// Elapsed time is deliberately left untouched: totals reflect attempts
// made, not just attempts that still score.
func (a *aggregateTotals) subtractPoints(team string, points int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	total, ok := a.totals[team]
	if !ok {
		return
	}
	total.points -= points
	if total.points < 0 {
		total.points = 0
	}
}

// standings returns the ranked totals: points descending, elapsed time
// ascending, then team name, so ties resolve the same way every time.
func (a *aggregateTotals) standings() []domain.TeamStanding {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.TeamStanding, 0, len(a.totals))
	for team, total := range a.totals {
		out = append(out, domain.TeamStanding{
			TeamName:            team,
			TotalPoints:         total.points,
			TotalElapsedSeconds: total.elapsed,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		if out[i].TotalElapsedSeconds != out[j].TotalElapsedSeconds {
			return out[i].TotalElapsedSeconds < out[j].TotalElapsedSeconds
		}
		return out[i].TeamName < out[j].TeamName
	})
	return out
}

func (a *aggregateTotals) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totals = make(map[string]*teamTotal)
}
