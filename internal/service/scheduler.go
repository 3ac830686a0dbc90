package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DevRickLin/social-reactor/internal/logging"
	"github.com/DevRickLin/social-reactor/internal/metrics"
)

// Handler is one firing of a job. Returned errors and panics stay inside the
// job; they are logged and recorded in its status.
type Handler func(ctx context.Context) error

// JobState is Idle or Running
type JobState string

const (
	JobIdle    JobState = "idle"
	JobRunning JobState = "running"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrSchedulerStarted = errors.New("scheduler already started")
	ErrNotRunning       = errors.New("scheduler not running")
)

// job is a registered periodic job. running is the Idle/Running gate.
type job struct {
	name     string
	interval time.Duration
	handler  Handler

	running atomic.Bool
	firings atomic.Int64
	skipped atomic.Int64

	mu           sync.Mutex
	lastStart    time.Time
	lastDuration time.Duration
	lastErr      string
}

// JobStatus is a snapshot of one job
type JobStatus struct {
	Name         string        `json:"name"`
	Interval     time.Duration `json:"interval"`
	State        JobState      `json:"state"`
	Firings      int64         `json:"firings"`
	SkippedTicks int64         `json:"skipped_ticks"`
	LastStart    time.Time     `json:"last_start,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
}

// Scheduler fires each registered job on its own interval.
// A job never overlaps itself: a tick that arrives while the previous firing
// is still running is dropped. Different jobs run concurrently.
type Scheduler struct {
	jobs       map[string]*job
	runOnStart bool

	ctx     context.Context
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	firings sync.WaitGroup
	started bool
	stopped bool
	mu      sync.Mutex // guards jobs, started, stopped and firings.Add
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRunOnStart fires every job once immediately when the scheduler starts
func WithRunOnStart(enabled bool) Option {
	return func(s *Scheduler) {
		s.runOnStart = enabled
	}
}

// NewScheduler creates a new scheduler
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{jobs: make(map[string]*job)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job. Jobs are fixed once the scheduler has started.
func (s *Scheduler) Register(name string, interval time.Duration, handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrSchedulerStarted
	}
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %v", name, interval)
	}
	if handler == nil {
		return fmt.Errorf("job %s: handler is required", name)
	}
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s: already registered", name)
	}

	s.jobs[name] = &job{name: name, interval: interval, handler: handler}
	logging.Info().Str("job", name).Dur("interval", interval).Msg("[Scheduler] Job registered")
	return nil
}

// Start starts one ticker loop per job
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, j := range s.jobs {
		s.loops.Add(1)
		go s.loop(j)
	}

	logging.Info().Int("jobs", len(s.jobs)).Bool("run_on_start", s.runOnStart).Msg("[Scheduler] Started")
}

// Stop cancels in-flight firings and waits for them to return. No firing
// starts once Stop has been called.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.loops.Wait()
	s.firings.Wait()
	logging.Info().Msg("[Scheduler] Stopped")
}

func (s *Scheduler) loop(j *job) {
	defer s.loops.Done()

	if s.runOnStart {
		s.fire(j)
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.fire(j)
		}
	}
}

// Trigger fires a job now. started is false when the job was already running
// and the request was dropped.
func (s *Scheduler) Trigger(name string) (bool, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	running := s.started && !s.stopped
	s.mu.Unlock()

	if !ok {
		return false, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !running {
		return false, ErrNotRunning
	}
	return s.fire(j), nil
}

// fire moves j from Idle to Running and runs the handler on its own goroutine,
// so a slow firing never delays ticks of other jobs
func (s *Scheduler) fire(j *job) bool {
	// firings.Add must not race with the Wait in Stop
	s.mu.Lock()
	if s.stopped || s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if !j.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		j.skipped.Add(1)
		metrics.JobSkippedTicks.WithLabelValues(j.name).Inc()
		logging.Warn().Str("job", j.name).Msg("[Scheduler] Previous firing still running, tick dropped")
		return false
	}
	s.firings.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.firings.Done()
		defer j.running.Store(false)
		s.run(j)
	}()
	return true
}

func (s *Scheduler) run(j *job) {
	ctx := logging.WithFiring(s.ctx, j.name)
	log := logging.Ctx(ctx)
	start := time.Now()

	j.firings.Add(1)
	metrics.JobRunning.WithLabelValues(j.name).Set(1)

	result := "ok"
	err := s.invoke(ctx, j)
	if err != nil {
		result = "error"
		var p *panicError
		if errors.As(err, &p) {
			result = "panic"
			log.Error().Str("stack", p.stack).Interface("panic", p.value).Msg("[Scheduler] Job panicked")
		} else {
			log.Error().Err(err).Msg("[Scheduler] Job firing failed")
		}
	}

	duration := time.Since(start)
	metrics.JobRunning.WithLabelValues(j.name).Set(0)
	metrics.JobDuration.WithLabelValues(j.name).Observe(duration.Seconds())
	metrics.JobFirings.WithLabelValues(j.name, result).Inc()

	j.mu.Lock()
	j.lastStart = start
	j.lastDuration = duration
	j.lastErr = ""
	if err != nil {
		j.lastErr = err.Error()
	}
	j.mu.Unlock()

	log.Debug().Dur("duration", duration).Str("result", result).Msg("[Scheduler] Firing finished")
}

type panicError struct {
	value interface{}
	stack string
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// invoke runs the handler, turning a panic into an error
func (s *Scheduler) invoke(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: string(debug.Stack())}
		}
	}()
	return j.handler(ctx)
}

// Jobs returns a status snapshot of every job, sorted by name
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		state := JobIdle
		if j.running.Load() {
			state = JobRunning
		}
		j.mu.Lock()
		statuses = append(statuses, JobStatus{
			Name:         j.name,
			Interval:     j.interval,
			State:        state,
			Firings:      j.firings.Load(),
			SkippedTicks: j.skipped.Load(),
			LastStart:    j.lastStart,
			LastDuration: j.lastDuration,
			LastError:    j.lastErr,
		})
		j.mu.Unlock()
	}

	sort.Slice(statuses, func(i, k int) bool { return statuses[i].Name < statuses[k].Name })
	return statuses
}
