package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "presence:"
	// EventSync is published on a channel whenever its peer set changed.
	EventSync = "sync"
)

// GameChannels are the presence channels of the live games.
var GameChannels = []string{
	"game-racing-suits",
	"game-space-crash",
	"game-stack-em",
	"game-poker-opoly",
}

type event struct {
	Event string `json:"event"`
	Peer  string `json:"peer,omitempty"`
}

type peerState struct {
	ExpiresAt int64          `json:"expiresAt"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Tracker records which peers are connected to a channel. Peers that do not
// rejoin within the TTL stop being counted.
type Tracker struct {
	rc  *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewTracker(rc *redis.Client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Tracker{rc: rc, ttl: ttl, now: time.Now}
}

// Join adds or refreshes peerID on channel and broadcasts a sync event.
func (t *Tracker) Join(ctx context.Context, channel, peerID string, meta map[string]any) error {
	state, err := sonic.MarshalString(peerState{ExpiresAt: t.now().Add(t.ttl).UnixMilli(), Meta: meta})
	if err != nil {
		return err
	}
	if err := t.rc.HSet(ctx, keyPrefix+channel, peerID, state).Err(); err != nil {
		return err
	}
	return publishSync(ctx, t.rc, channel, peerID)
}

// Leave removes peerID from channel and broadcasts a sync event.
func (t *Tracker) Leave(ctx context.Context, channel, peerID string) error {
	if err := t.rc.HDel(ctx, keyPrefix+channel, peerID).Err(); err != nil {
		return err
	}
	return publishSync(ctx, t.rc, channel, peerID)
}

func publishSync(ctx context.Context, rc *redis.Client, channel, peerID string) error {
	payload, err := sonic.MarshalString(event{Event: EventSync, Peer: peerID})
	if err != nil {
		return err
	}
	return rc.Publish(ctx, channel, payload).Err()
}

// CountPeers counts the live peers of channel and prunes expired ones.
// Several connections of one user count separately. The count is valid even
// when pruning fails.
func CountPeers(ctx context.Context, rc *redis.Client, channel string, now time.Time) (int, error) {
	count, expired, err := livePeers(ctx, rc, channel, now)
	if err != nil {
		return 0, err
	}
	return count, prune(ctx, rc, channel, expired)
}

func livePeers(ctx context.Context, rc *redis.Client, channel string, now time.Time) (int, []string, error) {
	peers, err := rc.HGetAll(ctx, keyPrefix+channel).Result()
	if err != nil {
		return 0, nil, err
	}
	count := 0
	var expired []string
	for id, raw := range peers {
		var st peerState
		if err := sonic.UnmarshalString(raw, &st); err != nil {
			// Entries without state are counted as live.
			count++
			continue
		}
		if st.ExpiresAt != 0 && st.ExpiresAt <= now.UnixMilli() {
			expired = append(expired, id)
			continue
		}
		count++
	}
	return count, expired, nil
}

// prune drops expired peers and broadcasts a sync so other aggregators
// recount.
func prune(ctx context.Context, rc *redis.Client, channel string, expired []string) error {
	if len(expired) == 0 {
		return nil
	}
	removed, err := rc.HDel(ctx, keyPrefix+channel, expired...).Result()
	if err != nil {
		return fmt.Errorf("prune expired peers: %w", err)
	}
	if removed == 0 {
		return nil
	}
	if err := publishSync(ctx, rc, channel, ""); err != nil {
		return fmt.Errorf("publish prune sync: %w", err)
	}
	return nil
}
