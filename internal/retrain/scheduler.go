package retrain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/config"
	"github.com/wonny/edgefactory/pkg/logger"
)

// Job is one scheduled task.
type Job interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}

// JobResult is one execution outcome, kept in a bounded history per job.
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

const historyLimit = 100

// Scheduler drives the periodic retraining and outcome-resolution jobs.
// ⭐ SSOT: 주기 작업 등록은 여기서만
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger

	mu      sync.RWMutex
	jobs    map[string]Job
	history map[string][]JobResult
}

// NewScheduler creates an empty scheduler. Cron expressions include seconds.
func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		logger:  log.Component("scheduler"),
		jobs:    make(map[string]Job),
		history: make(map[string][]JobResult),
	}
}

// AddJob registers a job on its cron schedule.
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduler: job %s already registered", name)
	}
	if _, err := s.cron.AddFunc(job.Schedule(), func() { s.execute(job) }); err != nil {
		return fmt.Errorf("scheduler: schedule job %s: %w", name, err)
	}
	s.jobs[name] = job

	s.logger.Info().
		Str("job", name).
		Str("schedule", job.Schedule()).
		Msg("Job registered")
	return nil
}

// Start begins cron dispatch.
func (s *Scheduler) Start() {
	s.logger.Info().Msg("Starting scheduler")
	s.cron.Start()
}

// Stop halts dispatch and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info().Msg("Stopping scheduler")
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// RunNow triggers a registered job outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("scheduler: job %s not found", name)
	}
	go s.execute(job)
	return nil
}

// History returns the recorded results for one job, oldest first.
func (s *Scheduler) History(name string) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobResult, len(s.history[name]))
	copy(out, s.history[name])
	return out
}

func (s *Scheduler) execute(job Job) {
	name := job.Name()
	start := time.Now()
	s.logger.Info().Str("job", name).Msg("Job started")

	err := job.Run(context.Background())
	duration := time.Since(start)

	result := JobResult{
		JobName:   name,
		StartTime: start,
		Duration:  duration,
		Success:   err == nil,
	}
	if err != nil {
		result.Error = err.Error()
	}

	s.mu.Lock()
	hist := append(s.history[name], result)
	if len(hist) > historyLimit {
		hist = hist[len(hist)-historyLimit:]
	}
	s.history[name] = hist
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Str("job", name).Dur("duration", duration).Err(err).Msg("Job failed")
		return
	}
	s.logger.Info().Str("job", name).Dur("duration", duration).Msg("Job completed")
}

// RetrainJob runs one retraining cycle. Cadence and the outcome volume
// threshold are independent triggers, whichever fires first: the cron fires
// Run unconditionally, and RunIfDue retrains early between cron ticks once
// enough new outcomes have resolved. A cycle already in flight is skipped
// silently.
type RetrainJob struct {
	cfg     config.RetrainConfig
	runner  *Runner
	store   contracts.SignalStore
	symbols func() []string
	logger  zerolog.Logger

	mu          sync.Mutex
	lastTrained time.Time
}

// NewRetrainJob creates the retraining job. symbols supplies the current
// universe at run time.
func NewRetrainJob(cfg config.RetrainConfig, runner *Runner, store contracts.SignalStore, symbols func() []string, log *logger.Logger) *RetrainJob {
	return &RetrainJob{
		cfg:     cfg,
		runner:  runner,
		store:   store,
		symbols: symbols,
		logger:  log.Component("retrain-job"),
	}
}

func (j *RetrainJob) Name() string     { return "retrain" }
func (j *RetrainJob) Schedule() string { return j.cfg.Cron }

// Run is the cadence trigger. It trains regardless of how many outcomes
// resolved since the last cycle; thin data is the runner's call to reject.
func (j *RetrainJob) Run(ctx context.Context) error {
	return j.train(ctx)
}

// RunIfDue is the volume trigger: retrain early when at least MinNewResolved
// outcomes resolved since the last training. Before the first training the
// cadence owns the cycle, so this is a no-op.
func (j *RetrainJob) RunIfDue(ctx context.Context) error {
	j.mu.Lock()
	since := j.lastTrained
	j.mu.Unlock()

	if since.IsZero() {
		return nil
	}
	count, err := j.store.ResolvedCountSince(ctx, since)
	if err != nil {
		return err
	}
	if count < j.cfg.MinNewResolved {
		return nil
	}

	j.logger.Info().
		Int("new_resolved", count).
		Int("threshold", j.cfg.MinNewResolved).
		Msg("Outcome volume threshold reached, retraining early")
	return j.train(ctx)
}

func (j *RetrainJob) train(ctx context.Context) error {
	result, err := j.runner.Run(ctx, j.symbols())
	if err == ErrRunInProgress {
		j.logger.Warn().Msg("Retrain already running, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	j.mu.Lock()
	j.lastTrained = result.FinishedAt
	j.mu.Unlock()
	return result.Err
}

// ResolveJob periodically resolves due signal outcomes. When resolutions
// landed and a retrain job is attached it checks the volume trigger, so the
// outcome count can fire a retrain between retrain-cron ticks.
type ResolveJob struct {
	schedule string
	resolver *Resolver
	retrain  *RetrainJob
}

// NewResolveJob creates the outcome-resolution job. retrain may be nil when
// no volume-triggered retraining is wanted.
func NewResolveJob(schedule string, resolver *Resolver, retrain *RetrainJob) *ResolveJob {
	return &ResolveJob{schedule: schedule, resolver: resolver, retrain: retrain}
}

func (j *ResolveJob) Name() string     { return "resolve-outcomes" }
func (j *ResolveJob) Schedule() string { return j.schedule }

func (j *ResolveJob) Run(ctx context.Context) error {
	n, err := j.resolver.ResolveDue(ctx)
	if err != nil {
		return err
	}
	if n > 0 && j.retrain != nil {
		return j.retrain.RunIfDue(ctx)
	}
	return nil
}
