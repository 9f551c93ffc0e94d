package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrReplayInProgress is returned when a replay pass is already running.
var ErrReplayInProgress = errors.New("replay already in progress")

// Submitter performs the server-side write for one queued entry.
type Submitter interface {
	Submit(ctx context.Context, e Entry) error
}

// NotificationLevel classifies user-facing sync notifications.
type NotificationLevel string

// Notification levels.
const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
	LevelInfo    NotificationLevel = "info"
)

// Notification is surfaced to the operator after a replay or a queued submission.
type Notification struct {
	Level   NotificationLevel
	Message string
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// ReplayResult summarises one replay pass.
type ReplayResult struct {
	Synced int
	Failed int
}

// Replayer drains the pending queue through a Submitter. Passes are serialized.
type Replayer struct {
	queue     *Queue
	submitter Submitter
	notifier  Notifier
	logger    *zap.Logger
	running   atomic.Bool
}

// NewReplayer wires a replayer.
func NewReplayer(queue *Queue, submitter Submitter, notifier Notifier, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	return &Replayer{queue: queue, submitter: submitter, notifier: notifier, logger: logger}
}

// Replay submits every queued entry in order. Successful entries are removed
// as soon as the server confirms them; failed ones stay queued with their
// attempt count bumped. A lost connection stops the pass early.
func (r *Replayer) Replay(ctx context.Context) (ReplayResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return ReplayResult{}, ErrReplayInProgress
	}
	defer r.running.Store(false)

	entries := r.queue.List()
	var result ReplayResult
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			result.Failed += len(entries) - i
			break
		}
		err := r.submitter.Submit(ctx, entry)
		if err == nil {
			if rmErr := r.queue.Remove(entry.ID); rmErr != nil {
				r.logger.Warn("failed to remove synced entry", zap.String("entry_id", entry.ID), zap.Error(rmErr))
			}
			result.Synced++
			continue
		}

		result.Failed++
		entry.Attempts++
		entry.LastError = err.Error()
		if upErr := r.queue.Update(entry); upErr != nil {
			r.logger.Warn("failed to record replay failure", zap.String("entry_id", entry.ID), zap.Error(upErr))
		}
		r.logger.Warn("pending enrollment not synced", zap.String("entry_id", entry.ID), zap.Int("attempts", entry.Attempts), zap.Error(err))
		if errors.Is(err, ErrOffline) {
			result.Failed += len(entries) - i - 1
			break
		}
	}

	switch {
	case result.Synced == 0 && result.Failed == 0:
	case result.Failed == 0:
		r.notifier.Notify(Notification{Level: LevelSuccess, Message: fmt.Sprintf("%d pending enrollment(s) synced", result.Synced)})
	default:
		r.notifier.Notify(Notification{Level: LevelError, Message: fmt.Sprintf("%d enrollment(s) could not be synced and remain saved locally", result.Failed)})
	}
	return result, nil
}

// State is the connectivity state.
type State int

// Connectivity states.
const (
	Offline State = iota
	Online
)

func (s State) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// Observer tracks connectivity and replays the queue on reconnect.
type Observer struct {
	replayer *Replayer
	logger   *zap.Logger

	mu    sync.Mutex
	state State
	wg    sync.WaitGroup
}

// NewObserver starts in the initial state.
func NewObserver(initial State, replayer *Replayer, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{replayer: replayer, state: initial, logger: logger}
}

// State returns the current state.
func (o *Observer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Online reports whether the last known state is Online.
func (o *Observer) Online() bool {
	return o.State() == Online
}

// SetOnline records a connectivity event. An Offline to Online transition
// starts a background replay and returns true.
func (o *Observer) SetOnline(ctx context.Context, online bool) bool {
	next := Offline
	if online {
		next = Online
	}
	o.mu.Lock()
	prev := o.state
	o.state = next
	o.mu.Unlock()

	if prev == next {
		return false
	}
	o.logger.Info("connectivity changed", zap.Stringer("from", prev), zap.Stringer("to", next))
	if next != Online || o.replayer == nil {
		return false
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		result, err := o.replayer.Replay(ctx)
		if err != nil {
			o.logger.Debug("replay skipped", zap.Error(err))
			return
		}
		o.logger.Info("replay finished", zap.Int("synced", result.Synced), zap.Int("failed", result.Failed))
	}()
	return true
}

// Wait blocks until replays started by SetOnline finish.
func (o *Observer) Wait() {
	o.wg.Wait()
}
