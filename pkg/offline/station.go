package offline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
)

// Creator submits enrollments to the server.
type Creator interface {
	CreateEnrollment(ctx context.Context, req dto.EnrollmentRequest) (*models.Enrollment, error)
}

// SubmitResult reports the outcome of Station.Submit.
type SubmitResult struct {
	Queued     bool
	EntryID    string
	Enrollment *models.Enrollment
}

// Station is an intake point that keeps working while the server is unreachable.
type Station struct {
	client   Creator
	queue    *Queue
	observer *Observer
	notifier Notifier
	now      func() time.Time
}

// NewStation wires an intake station.
func NewStation(client Creator, queue *Queue, observer *Observer, notifier Notifier) *Station {
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	return &Station{client: client, queue: queue, observer: observer, notifier: notifier, now: time.Now}
}

// Submit sends req to the server, or queues it when offline. The request is
// given an id before the first attempt; the queued entry and every replay
// carry that id, so a submission the server committed before the connection
// dropped is not recorded twice.
func (s *Station) Submit(ctx context.Context, req dto.EnrollmentRequest) (SubmitResult, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if s.observer != nil && !s.observer.Online() {
		return s.enqueue(req, ErrOffline)
	}
	enrollment, err := s.client.CreateEnrollment(ctx, req)
	if err != nil {
		if errors.Is(err, ErrOffline) {
			if s.observer != nil {
				s.observer.SetOnline(ctx, false)
			}
			return s.enqueue(req, err)
		}
		return SubmitResult{}, err
	}
	return SubmitResult{EntryID: enrollment.ID, Enrollment: enrollment}, nil
}

func (s *Station) enqueue(req dto.EnrollmentRequest, cause error) (SubmitResult, error) {
	entry := Entry{ID: req.ID, Enrollment: req, QueuedAt: s.now().UTC(), LastError: cause.Error()}
	if err := s.queue.Append(entry); err != nil {
		return SubmitResult{}, fmt.Errorf("queue enrollment: %w", err)
	}
	s.notifier.Notify(Notification{Level: LevelInfo, Message: "saved locally, will sync when connection returns"})
	return SubmitResult{Queued: true, EntryID: entry.ID}, nil
}

// HealthChecker reports whether the server is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Probe polls the server on a cron schedule and feeds the observer.
type Probe struct {
	checker  HealthChecker
	observer *Observer
	cron     *cron.Cron
	timeout  time.Duration
	logger   *zap.Logger
}

// NewProbe schedules health checks using a cron spec such as "@every 15s".
func NewProbe(checker HealthChecker, observer *Observer, spec string, timeout time.Duration, logger *zap.Logger) (*Probe, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if spec == "" {
		spec = "@every 15s"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &Probe{
		checker:  checker,
		observer: observer,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		timeout:  timeout,
		logger:   logger,
	}
	if _, err := p.cron.AddFunc(spec, func() { p.Check(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule probe %q: %w", spec, err)
	}
	return p, nil
}

// Check runs one health check and records the result.
func (p *Probe) Check(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.checker.Health(checkCtx)
	if err != nil {
		p.logger.Debug("health probe failed", zap.Error(err))
	}
	p.observer.SetOnline(ctx, err == nil)
	return err == nil
}

// Start begins the schedule.
func (p *Probe) Start() {
	p.cron.Start()
}

// Stop halts the schedule and waits for a running check.
func (p *Probe) Stop() {
	<-p.cron.Stop().Done()
}
