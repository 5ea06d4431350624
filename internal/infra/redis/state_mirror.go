package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"gechoice/internal/domain"
	"gechoice/internal/game"
)

// StateMirror publishes each broadcast state view to Redis as a JSON
// snapshot, so dashboards can read the live game without holding a socket.
// Notes:
//   - Writes are best-effort; the game never blocks or fails on Redis.
//   - The snapshot expires on its own if the process dies mid-game.
//   - Game state is not loaded back from Redis; the session stays the
//     single source of truth for one process lifetime.
type StateMirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStateMirror(client *redis.Client, ttl time.Duration) *StateMirror {
	return &StateMirror{client: client, ttl: ttl}
}

// MirrorState stores the latest view for the session.
func (m *StateMirror) MirrorState(ctx context.Context, sessionID string, view domain.StateView) {
	data, err := json.Marshal(view)
	if err != nil {
		return
	}
	_ = m.client.Set(ctx, m.key(sessionID), data, m.ttl).Err()
}

// Clear drops the mirrored snapshot, used on game reset.
func (m *StateMirror) Clear(ctx context.Context, sessionID string) {
	_ = m.client.Del(ctx, m.key(sessionID)).Err()
}

// Run consumes a session's event stream and mirrors every state update
// until ctx is canceled or the channel closes.
func (m *StateMirror) Run(ctx context.Context, sessionID string, events <-chan game.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case game.EventState:
				if view, ok := ev.Payload.(domain.StateView); ok {
					m.MirrorState(ctx, sessionID, view)
				}
			case game.EventGameReset:
				m.Clear(ctx, sessionID)
			}
		}
	}
}

func (m *StateMirror) key(sessionID string) string {
	return "vote:state:" + sessionID
}
