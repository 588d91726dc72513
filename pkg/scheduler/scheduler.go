package scheduler

//go:generate mockgen -source scheduler.go -destination ./mock/scheduler.go

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pedro-r-marques/taskflow/pkg/engine"
)

const DefaultResolution = time.Second

var (
	ErrRunning    = errors.New("scheduler already running")
	ErrJobRunning = errors.New("job already running")
)

type Scheduler interface {
	// Job registration
	AddJob(workflow *engine.Workflow, trigger Trigger, mode Mode) error
	RemoveJob(name string) error
	ListJobs() []JobInfo
	LastRun(name string) (*engine.Run, error)

	// Tick loop
	Start() error
	Stop()
	// Wait blocks until every asynchronous run in flight has returned.
	Wait()
	RunNow(name string) error
}

type scheduler struct {
	resolution time.Duration
	status     io.Writer
	clock      func() time.Time

	mutex   sync.Mutex
	jobs    map[string]*job
	order   []string
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	inflight    sync.WaitGroup
	statusLines int
}

// NewScheduler returns a stopped scheduler that ticks every resolution. When
// status is not nil a job table is redrawn on it after every tick.
func NewScheduler(resolution time.Duration, status io.Writer) Scheduler {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	return &scheduler{
		resolution: resolution,
		status:     status,
		clock:      time.Now,
		jobs:       make(map[string]*job),
	}
}

func validateTrigger(trigger Trigger) error {
	switch t := trigger.(type) {
	case nil:
		return errors.New("no trigger")
	case Interval:
		if t.Period <= 0 {
			return fmt.Errorf("invalid interval %v", t.Period)
		}
	case DailyAt:
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return fmt.Errorf("invalid time of day %02d:%02d", t.Hour, t.Minute)
		}
	}
	return nil
}

func (s *scheduler) AddJob(workflow *engine.Workflow, trigger Trigger, mode Mode) error {
	if workflow == nil || workflow.Name == "" {
		return fmt.Errorf("%w: job requires a named workflow", engine.ErrConfiguration)
	}
	if err := validateTrigger(trigger); err != nil {
		return fmt.Errorf("%w: job %s: %v", engine.ErrConfiguration, workflow.Name, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, exists := s.jobs[workflow.Name]; exists {
		return fmt.Errorf("%w: duplicate job %s", engine.ErrConfiguration, workflow.Name)
	}
	j := newJob(workflow, trigger, mode, s.clock())
	s.jobs[workflow.Name] = j
	s.order = append(s.order, workflow.Name)

	log.Info().
		Str("job", workflow.Name).
		Str("schedule", trigger.String()).
		Str("mode", mode.String()).
		Time("next", j.nextRun).
		Msg("job added")
	return nil
}

func (s *scheduler) RemoveJob(name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, exists := s.jobs[name]; !exists {
		return fmt.Errorf("%w: unknown job %s", engine.ErrConfiguration, name)
	}
	delete(s.jobs, name)
	for ix, n := range s.order {
		if n == name {
			s.order = append(s.order[:ix], s.order[ix+1:]...)
			break
		}
	}
	log.Info().Str("job", name).Msg("job removed")
	return nil
}

func (s *scheduler) lookup(name string) (*job, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	j, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("%w: unknown job %s", engine.ErrConfiguration, name)
	}
	return j, nil
}

// snapshot returns the registered jobs in registration order.
func (s *scheduler) snapshot() []*job {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	jobs := make([]*job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	return jobs
}

func (s *scheduler) ListJobs() []JobInfo {
	jobs := s.snapshot()
	result := make([]JobInfo, 0, len(jobs))
	for _, j := range jobs {
		result = append(result, j.info())
	}
	return result
}

func (s *scheduler) LastRun(name string) (*engine.Run, error) {
	j, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return j.workflow.LastRun(), nil
}

func (s *scheduler) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running {
		return ErrRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(s.stopCh, s.doneCh)

	log.Info().Dur("resolution", s.resolution).Msg("scheduler started")
	return nil
}

// Stop halts the tick loop and waits for it to exit. Asynchronous runs
// already dispatched keep running; use Wait to block on them.
func (s *scheduler) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mutex.Unlock()

	<-done
	log.Info().Msg("scheduler stopped")
}

func (s *scheduler) Wait() {
	s.inflight.Wait()
}

func (s *scheduler) RunNow(name string) error {
	j, err := s.lookup(name)
	if err != nil {
		return err
	}
	if !j.begin() {
		return fmt.Errorf("%s: %w", name, ErrJobRunning)
	}
	s.dispatch(j, s.clock())
	return nil
}

func (s *scheduler) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()
	for {
		s.tick(s.clock())
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}
	}
}

// tick dispatches every due job that is not already running.
func (s *scheduler) tick(now time.Time) {
	for _, j := range s.snapshot() {
		switch j.acquire(now) {
		case skipped:
			log.Debug().
				Str("job", j.name()).
				Msg("job still running, skipping trigger")
		case started:
			s.dispatch(j, now)
		}
	}
	if s.status != nil {
		s.renderStatus()
	}
}

// dispatch runs a job that has been moved to running. Sync jobs run on the
// caller's goroutine.
func (s *scheduler) dispatch(j *job, now time.Time) {
	log.Debug().
		Str("job", j.name()).
		Str("mode", j.mode.String()).
		Msg("job dispatch")

	if j.mode == Sync {
		s.execute(j, now)
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.execute(j, now)
	}()
}

func (s *scheduler) execute(j *job, dispatchTime time.Time) {
	success, err := j.execute()
	if err != nil {
		log.Error().
			Err(err).
			Str("job", j.name()).
			Msg("job execution")
	} else {
		log.Info().
			Str("job", j.name()).
			Bool("success", success).
			Msg("job done")
	}
	j.finish(dispatchTime, s.clock(), success, err)
}

func (s *scheduler) renderStatus() {
	if s.statusLines > 0 {
		fmt.Fprintf(s.status, "\033[%dA\033[J", s.statusLines)
	}
	s.statusLines = RenderStatus(s.status, s.ListJobs())
}
