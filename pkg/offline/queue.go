package offline

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
)

// StorageKey is the well-known key holding the pending list.
const StorageKey = "pending-enrollments"

// Entry is an enrollment submission waiting to reach the server.
type Entry struct {
	ID         string                `json:"id"`
	Enrollment dto.EnrollmentRequest `json:"enrollment"`
	QueuedAt   time.Time             `json:"queued_at"`
	Attempts   int                   `json:"attempts"`
	LastError  string                `json:"last_error,omitempty"`
}

// ChangeOp names the mutation that produced a Change.
type ChangeOp string

// Queue mutations.
const (
	OpAppend ChangeOp = "append"
	OpUpdate ChangeOp = "update"
	OpRemove ChangeOp = "remove"
	OpClear  ChangeOp = "clear"
)

// Change is published to subscribers after every mutation.
type Change struct {
	Op   ChangeOp
	ID   string
	Size int
}

// Queue is an ordered, durable list of pending entries. A nil KeyValue turns
// every mutation into a no-op.
type Queue struct {
	kv     KeyValue
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[int]chan Change
	nextID int
}

// NewQueue builds a queue over kv.
func NewQueue(kv KeyValue, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{kv: kv, logger: logger, subs: make(map[int]chan Change)}
}

// List re-reads the persisted entries in insertion order.
func (q *Queue) List() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries, err := q.load()
	if err != nil {
		q.logger.Warn("failed to read pending queue", zap.Error(err))
		return nil
	}
	return entries
}

// Append adds e at the end. An entry whose id is already queued is ignored.
func (q *Queue) Append(e Entry) error {
	return q.mutate(OpAppend, e.ID, func(entries []Entry) ([]Entry, bool) {
		if indexOf(entries, e.ID) >= 0 {
			return entries, false
		}
		return append(entries, e), true
	})
}

// Update replaces the entry with the same id, appending it when absent.
func (q *Queue) Update(e Entry) error {
	return q.mutate(OpUpdate, e.ID, func(entries []Entry) ([]Entry, bool) {
		if i := indexOf(entries, e.ID); i >= 0 {
			entries[i] = e
			return entries, true
		}
		return append(entries, e), true
	})
}

// Remove deletes the entry with id.
func (q *Queue) Remove(id string) error {
	return q.mutate(OpRemove, id, func(entries []Entry) ([]Entry, bool) {
		i := indexOf(entries, id)
		if i < 0 {
			return entries, false
		}
		return append(entries[:i], entries[i+1:]...), true
	})
}

// Clear empties the queue.
func (q *Queue) Clear() error {
	q.mu.Lock()
	if q.kv == nil {
		q.mu.Unlock()
		return nil
	}
	err := q.kv.Remove(StorageKey)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("clear pending queue: %w", err)
	}
	q.publish(Change{Op: OpClear})
	return nil
}

// Subscribe returns a channel of changes and a cancel function. Slow
// subscribers miss changes rather than blocking writers.
func (q *Queue) Subscribe() (<-chan Change, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextID
	q.nextID++
	ch := make(chan Change, 16)
	q.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.subs, id)
			q.mu.Unlock()
			close(ch)
		})
	}
}

func (q *Queue) mutate(op ChangeOp, id string, fn func([]Entry) ([]Entry, bool)) error {
	q.mu.Lock()
	if q.kv == nil {
		q.mu.Unlock()
		return nil
	}
	entries, err := q.load()
	if err != nil {
		q.mu.Unlock()
		return err
	}
	entries, changed := fn(entries)
	if !changed {
		q.mu.Unlock()
		return nil
	}
	if err := q.save(entries); err != nil {
		q.mu.Unlock()
		return err
	}
	size := len(entries)
	q.mu.Unlock()

	q.publish(Change{Op: op, ID: id, Size: size})
	return nil
}

func (q *Queue) load() ([]Entry, error) {
	if q.kv == nil {
		return nil, nil
	}
	raw, ok, err := q.kv.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read pending queue: %w", err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode pending queue: %w", err)
	}
	return entries, nil
}

func (q *Queue) save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode pending queue: %w", err)
	}
	if err := q.kv.Set(StorageKey, raw); err != nil {
		return fmt.Errorf("write pending queue: %w", err)
	}
	return nil
}

func (q *Queue) publish(change Change) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range q.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

func indexOf(entries []Entry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
