package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pedro-r-marques/taskflow/pkg/engine"
)

// Mode selects whether a job runs on the tick loop or on its own goroutine.
type Mode int

const (
	Sync = Mode(iota)
	Async
)

func (m Mode) String() string {
	if m == Async {
		return "async"
	}
	return "sync"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "sync":
		return Sync, nil
	case "async":
		return Async, nil
	}
	return Sync, fmt.Errorf("invalid mode %q", s)
}

// JobInfo is a point-in-time copy of a job's state.
type JobInfo struct {
	Name        string    `json:"name"`
	Schedule    string    `json:"schedule"`
	Mode        Mode      `json:"mode"`
	Running     bool      `json:"running"`
	LastRun     time.Time `json:"lastRun"`
	NextRun     time.Time `json:"nextRun"`
	Runs        int       `json:"runs"`
	LastSuccess bool      `json:"lastSuccess"`
	LastError   string    `json:"lastError,omitempty"`
}

type dispatch int

const (
	notDue = dispatch(iota)
	skipped
	started
)

// job binds a workflow to a trigger. All mutable fields are guarded by mutex;
// running is true from dispatch until the workflow execution returns.
type job struct {
	workflow *engine.Workflow
	trigger  Trigger
	mode     Mode

	mutex       sync.Mutex
	running     bool
	lastRun     time.Time
	nextRun     time.Time
	runs        int
	lastSuccess bool
	lastErr     error
}

func newJob(workflow *engine.Workflow, trigger Trigger, mode Mode, now time.Time) *job {
	return &job{
		workflow: workflow,
		trigger:  trigger,
		mode:     mode,
		nextRun:  trigger.Next(time.Time{}, now),
	}
}

func (j *job) name() string {
	return j.workflow.Name
}

// acquire moves the job to running when it is due at now. A due job that is
// already running is skipped.
func (j *job) acquire(now time.Time) dispatch {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if now.Before(j.nextRun) {
		return notDue
	}
	if j.running {
		return skipped
	}
	j.running = true
	return started
}

// begin moves the job to running regardless of its due time.
func (j *job) begin() bool {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if j.running {
		return false
	}
	j.running = true
	return true
}

func (j *job) finish(dispatchTime, now time.Time, success bool, err error) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.running = false
	j.runs++
	j.lastRun = dispatchTime
	j.nextRun = j.trigger.Next(j.lastRun, now)
	j.lastSuccess = success && err == nil
	j.lastErr = err
}

// execute runs the workflow once. Errors and panics stop at this boundary.
func (j *job) execute() (success bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			success = false
			err = fmt.Errorf("workflow %s panic: %v", j.name(), r)
		}
	}()
	return j.workflow.Execute(context.Background())
}

func (j *job) info() JobInfo {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	info := JobInfo{
		Name:        j.name(),
		Schedule:    j.trigger.String(),
		Mode:        j.mode,
		Running:     j.running,
		LastRun:     j.lastRun,
		NextRun:     j.nextRun,
		Runs:        j.runs,
		LastSuccess: j.lastSuccess,
	}
	if j.lastErr != nil {
		info.LastError = j.lastErr.Error()
	}
	return info
}
