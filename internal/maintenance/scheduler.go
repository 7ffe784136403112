package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/garyellow/lullabot-go/internal/logger"
)

// Job is one periodic task. It receives a context that is canceled when
// the scheduler stops.
type Job func(ctx context.Context) error

// parser accepts standard five-field specs plus descriptors like
// "@every 6h" and "@daily".
var parser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// ValidateSchedule reports whether spec can be scheduled.
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("maintenance: invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler runs jobs on cron schedules. A job never overlaps with itself.
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(log *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: log.WithModule("maintenance"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job under name.
func (s *Scheduler) Add(name, spec string, timeout time.Duration, job Job) error {
	if err := ValidateSchedule(spec); err != nil {
		return err
	}
	_, err := s.cron.AddFunc(spec, func() { s.run(name, timeout, job) })
	if err != nil {
		return fmt.Errorf("maintenance: add %s: %w", name, err)
	}
	s.logger.WithField("job", name).WithField("schedule", spec).Info("Job scheduled")
	return nil
}

// RunNow runs job once in the caller's goroutine with the same logging and
// recovery as a scheduled run.
func (s *Scheduler) RunNow(name string, timeout time.Duration, job Job) {
	s.run(name, timeout, job)
}

func (s *Scheduler) run(name string, timeout time.Duration, job Job) {
	log := s.logger.WithField("job", name)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Job panicked")
		}
	}()

	ctx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job(ctx); err != nil {
		log.WithError(err).Error("Job failed")
		return
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("Job finished")
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
