package presence

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Aggregator subscribes to a fixed set of channels and keeps the number of
// connected peers per channel.
type Aggregator struct {
	rc       *redis.Client
	channels []string
	log      *log.Logger
	now      func() time.Time
	sweep    time.Duration

	mu     sync.RWMutex
	counts map[string]int

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// DefaultSweep is how often every channel is recounted without a sync event,
// so peers that vanish without leaving expire.
const DefaultSweep = time.Minute

func NewAggregator(rc *redis.Client, channels []string, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.StandardLogger()
	}
	counts := make(map[string]int, len(channels))
	for _, ch := range channels {
		counts[ch] = 0
	}
	return &Aggregator{
		rc:       rc,
		channels: append([]string(nil), channels...),
		log:      logger,
		now:      time.Now,
		sweep:    DefaultSweep,
		counts:   counts,
		subs:     make(map[chan struct{}]struct{}),
	}
}

// SetSweep changes the recount interval. Call it before Start; d <= 0
// disables sweeping.
func (a *Aggregator) SetSweep(d time.Duration) {
	a.sweep = d
}

// Start subscribes to every channel in the background. Counts are refreshed
// once subscribed and on each sync event after that.
func (a *Aggregator) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		a.run(ctx)
	}()
}

// Close unsubscribes from every channel and waits for the loop to exit.
func (a *Aggregator) Close() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
}

func (a *Aggregator) run(ctx context.Context) {
	var tick <-chan time.Time
	if a.sweep > 0 {
		ticker := time.NewTicker(a.sweep)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		sub := a.rc.Subscribe(ctx, a.channels...)
		if err := a.confirm(ctx, sub); err != nil {
			_ = sub.Close()
			if ctx.Err() != nil {
				return
			}
			a.log.WithError(err).Error("presence subscribe failed, retrying")
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}
		for _, ch := range a.channels {
			a.refresh(ctx, ch)
		}

		msgs := sub.Channel()
	loop:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case <-tick:
				for _, ch := range a.channels {
					a.refresh(ctx, ch)
				}
			case msg, ok := <-msgs:
				if !ok {
					break loop
				}
				a.handle(ctx, msg)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		a.log.Error("presence pubsub closed, reconnecting")
		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

func (a *Aggregator) confirm(ctx context.Context, sub *redis.PubSub) error {
	for range a.channels {
		if _, err := sub.Receive(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) handle(ctx context.Context, msg *redis.Message) {
	var ev event
	if err := sonic.UnmarshalString(msg.Payload, &ev); err != nil {
		a.log.WithError(err).WithField("channel", msg.Channel).Warn("unable to parse presence event")
		return
	}
	if ev.Event != EventSync {
		return
	}
	a.refresh(ctx, msg.Channel)
}

func (a *Aggregator) refresh(ctx context.Context, channel string) {
	n, expired, err := livePeers(ctx, a.rc, channel, a.now())
	if err != nil {
		if ctx.Err() == nil {
			a.log.WithError(err).WithField("channel", channel).Error("count presence")
		}
		return
	}
	if err := prune(ctx, a.rc, channel, expired); err != nil && ctx.Err() == nil {
		a.log.WithError(err).WithField("channel", channel).Warn("prune presence")
	}
	a.mu.Lock()
	changed := a.counts[channel] != n
	a.counts[channel] = n
	a.mu.Unlock()
	a.log.WithFields(log.Fields{"channel": channel, "count": n}).Debug("presence sync")
	if changed {
		a.notify()
	}
}

// Counts returns the connected peers per channel.
func (a *Aggregator) Counts() map[string]int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

// Count returns the connected peers of one channel.
func (a *Aggregator) Count(channel string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.counts[channel]
}

// Channels returns the tracked channel names.
func (a *Aggregator) Channels() []string {
	return append([]string(nil), a.channels...)
}

// Tracks reports whether channel is one of the aggregated channels.
func (a *Aggregator) Tracks(channel string) bool {
	for _, ch := range a.channels {
		if ch == channel {
			return true
		}
	}
	return false
}

// Subscribe returns a channel signalled whenever a count changes.
func (a *Aggregator) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	a.subMu.Lock()
	a.subs[ch] = struct{}{}
	a.subMu.Unlock()
	return ch, func() {
		a.subMu.Lock()
		delete(a.subs, ch)
		a.subMu.Unlock()
	}
}

func (a *Aggregator) notify() {
	a.subMu.Lock()
	for ch := range a.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	a.subMu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
