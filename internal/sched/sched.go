// Package sched drives the bot's periodic work: evaluation cycles,
// signal refreshes, price polls, status checks, and reports. Each job
// gets its own ticker loop; a run still in flight when the next tick
// fires makes that tick a logged skip, never a second concurrent run.
package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config sets the job intervals, in minutes.
type Config struct {
	RebalanceMinutes int `yaml:"rebalance_minutes" default:"60" validate:"gt=0"`
	SignalsMinutes   int `yaml:"signals_minutes" default:"30" validate:"gt=0"`
	PricePollMinutes int `yaml:"price_poll_minutes" default:"15" validate:"gt=0"`
	StatusMinutes    int `yaml:"status_minutes" default:"360" validate:"gt=0"`
	ReportMinutes    int `yaml:"report_minutes" default:"1440" validate:"gt=0"`
}

// RebalanceEvery returns the evaluation cycle interval.
func (c Config) RebalanceEvery() time.Duration {
	return time.Duration(c.RebalanceMinutes) * time.Minute
}

// SignalsEvery returns the signal-only refresh interval.
func (c Config) SignalsEvery() time.Duration {
	return time.Duration(c.SignalsMinutes) * time.Minute
}

// PricePollEvery returns the REST price poll interval.
func (c Config) PricePollEvery() time.Duration {
	return time.Duration(c.PricePollMinutes) * time.Minute
}

// StatusEvery returns the competition status poll interval.
func (c Config) StatusEvery() time.Duration {
	return time.Duration(c.StatusMinutes) * time.Minute
}

// ReportEvery returns the report writing interval.
func (c Config) ReportEvery() time.Duration {
	return time.Duration(c.ReportMinutes) * time.Minute
}

// Job is one unit of periodic work. Run receives the scheduler context
// and should return promptly once it is canceled.
type Job struct {
	Name       string
	Every      time.Duration
	RunAtStart bool
	Run        func(ctx context.Context) error
}

// JobStatus is a point-in-time snapshot of one job, shaped for the
// status endpoint.
type JobStatus struct {
	Name         string    `json:"name"`
	Interval     string    `json:"interval"`
	Runs         int       `json:"runs"`
	Skips        int       `json:"skips"`
	LastStart    time.Time `json:"last_start"`
	LastDuration string    `json:"last_duration"`
	LastError    string    `json:"last_error,omitempty"`
}

type jobState struct {
	job Job

	// Held for the duration of a run; TryLock turns overlap into a skip.
	runMu sync.Mutex

	statMu    sync.Mutex
	runs      int
	skips     int
	lastStart time.Time
	lastDur   time.Duration
	lastErr   string
}

func (j *jobState) record(start time.Time, took time.Duration, err error) {
	j.statMu.Lock()
	defer j.statMu.Unlock()
	j.runs++
	j.lastStart = start
	j.lastDur = took
	j.lastErr = ""
	if err != nil {
		j.lastErr = err.Error()
	}
}

func (j *jobState) recordSkip() {
	j.statMu.Lock()
	defer j.statMu.Unlock()
	j.skips++
}

func (j *jobState) snapshot() JobStatus {
	j.statMu.Lock()
	defer j.statMu.Unlock()
	return JobStatus{
		Name:         j.job.Name,
		Interval:     j.job.Every.String(),
		Runs:         j.runs,
		Skips:        j.skips,
		LastStart:    j.lastStart,
		LastDuration: j.lastDur.String(),
		LastError:    j.lastErr,
	}
}

// Scheduler owns a set of jobs and their ticker loops.
type Scheduler struct {
	jobs []*jobState
	wg   sync.WaitGroup
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a job. All jobs must be added before Start.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return errors.New("job needs a name")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}
	if job.Every <= 0 {
		return fmt.Errorf("job %s has non-positive interval %v", job.Name, job.Every)
	}
	for _, j := range s.jobs {
		if j.job.Name == job.Name {
			return fmt.Errorf("job %s already registered", job.Name)
		}
	}
	s.jobs = append(s.jobs, &jobState{job: job})
	return nil
}

// Start launches one loop per job. Loops exit when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
	log.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

// Wait blocks until every loop and every in-flight run has returned.
// Call it after canceling the context passed to Start.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Status snapshots all jobs in registration order.
func (s *Scheduler) Status() []JobStatus {
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.snapshot())
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, j *jobState) {
	defer s.wg.Done()

	log.Info().
		Str("job", j.job.Name).
		Dur("every", j.job.Every).
		Bool("run_at_start", j.job.RunAtStart).
		Msg("job scheduled")

	if j.job.RunAtStart {
		s.dispatch(ctx, j)
	}

	ticker := time.NewTicker(j.job.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx, j)
		}
	}
}

// dispatch runs the job off the ticker goroutine so a slow run delays
// nothing; ticks that land during a run are skipped.
func (s *Scheduler) dispatch(ctx context.Context, j *jobState) {
	if !j.runMu.TryLock() {
		j.recordSkip()
		log.Warn().Str("job", j.job.Name).Msg("previous run still in flight, skipping tick")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer j.runMu.Unlock()
		s.run(ctx, j)
	}()
}

func (s *Scheduler) run(ctx context.Context, j *jobState) {
	start := time.Now()
	err := j.job.Run(ctx)
	took := time.Since(start)
	j.record(start, took, err)

	switch {
	case err == nil:
		log.Debug().Str("job", j.job.Name).Dur("took", took).Msg("job run finished")
	case ctx.Err() != nil:
		// Shutdown interrupted the run; nothing to report.
	default:
		log.Error().Err(err).Str("job", j.job.Name).Dur("took", took).Msg("job run failed")
	}
}
