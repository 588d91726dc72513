package scheduler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedro-r-marques/taskflow/pkg/engine"
)

// blockingHost counts commands and, when gate is set, blocks each one until
// the gate is closed.
type blockingHost struct {
	count   int32
	started chan struct{}
	gate    chan struct{}
}

func (h *blockingHost) Name() string { return "h1" }

func (h *blockingHost) ExecuteCommand(ctx context.Context, command string) (engine.CommandResult, error) {
	atomic.AddInt32(&h.count, 1)
	if h.started != nil {
		h.started <- struct{}{}
	}
	if h.gate != nil {
		<-h.gate
	}
	return engine.CommandResult{}, nil
}

func (h *blockingHost) executions() int {
	return int(atomic.LoadInt32(&h.count))
}

func newTestWorkflow(name string, host engine.Host) *engine.Workflow {
	return engine.NewWorkflow(name, "").
		AddHost(host).
		AddTask(engine.NewShellTask("t1", "true"))
}

type fakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = t
}

func newTestScheduler(clock *fakeClock) *scheduler {
	s := NewScheduler(10*time.Millisecond, nil).(*scheduler)
	s.clock = clock.Now
	return s
}

func TestIntervalNext(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	trigger := Every(30)

	assert.Equal(t, now, trigger.Next(time.Time{}, now))
	last := now.Add(-10 * time.Second)
	assert.Equal(t, last.Add(30*time.Second), trigger.Next(last, now))

	// the period does not matter for a job that never ran
	assert.Equal(t, now, Every(86400).Next(time.Time{}, now))
}

func TestDailyAtNext(t *testing.T) {
	trigger := DailyAt{Hour: 2, Minute: 0}

	at3 := time.Date(2024, 5, 1, 3, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2024, 5, 2, 2, 0, 0, 0, time.Local), trigger.Next(time.Time{}, at3))

	at1 := time.Date(2024, 5, 1, 1, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2024, 5, 1, 2, 0, 0, 0, time.Local), trigger.Next(time.Time{}, at1))

	at2 := time.Date(2024, 5, 1, 2, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2024, 5, 2, 2, 0, 0, 0, time.Local), trigger.Next(time.Time{}, at2))

	endOfMonth := time.Date(2024, 5, 31, 23, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2024, 6, 1, 2, 0, 0, 0, time.Local), trigger.Next(time.Time{}, endOfMonth))
}

func TestParseDailyAt(t *testing.T) {
	d, err := ParseDailyAt("14:05")
	require.NoError(t, err)
	assert.Equal(t, DailyAt{Hour: 14, Minute: 5}, d)
	assert.Equal(t, "daily at 14:05", d.String())

	_, err = ParseDailyAt("25:00")
	assert.Error(t, err)
	_, err = ParseDailyAt("noon")
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("async")
	require.NoError(t, err)
	assert.Equal(t, Async, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Sync, m)
	_, err = ParseMode("parallel")
	assert.Error(t, err)
}

func TestFirstTickFires(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	clock := &fakeClock{now: t0}
	s := newTestScheduler(clock)

	host := &blockingHost{}
	require.NoError(t, s.AddJob(newTestWorkflow("w1", host), Every(3600), Sync))

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, t0, jobs[0].NextRun)

	s.tick(t0)
	assert.Equal(t, 1, host.executions())

	info := s.ListJobs()[0]
	assert.Equal(t, t0, info.LastRun)
	assert.Equal(t, t0.Add(time.Hour), info.NextRun)
	assert.True(t, info.LastSuccess)
	assert.False(t, info.Running)

	s.tick(t0.Add(time.Second))
	assert.Equal(t, 1, host.executions())

	s.tick(t0.Add(time.Hour))
	assert.Equal(t, 2, host.executions())
}

func TestDailyJobNotDue(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 3, 0, 0, 0, time.Local)
	clock := &fakeClock{now: t0}
	s := newTestScheduler(clock)

	host := &blockingHost{}
	require.NoError(t, s.AddJob(newTestWorkflow("nightly", host), DailyAt{Hour: 2}, Sync))
	assert.Equal(t, time.Date(2024, 5, 2, 2, 0, 0, 0, time.Local), s.ListJobs()[0].NextRun)

	s.tick(t0.Add(time.Hour))
	assert.Equal(t, 0, host.executions())

	due := time.Date(2024, 5, 2, 2, 0, 0, 0, time.Local)
	clock.Set(due)
	s.tick(due)
	assert.Equal(t, 1, host.executions())
	assert.Equal(t, time.Date(2024, 5, 3, 2, 0, 0, 0, time.Local), s.ListJobs()[0].NextRun)
}

func TestOverlapProtection(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	clock := &fakeClock{now: t0}
	s := newTestScheduler(clock)

	host := &blockingHost{
		started: make(chan struct{}, 4),
		gate:    make(chan struct{}),
	}
	require.NoError(t, s.AddJob(newTestWorkflow("slow", host), Every(1), Async))

	s.tick(t0)
	<-host.started
	assert.True(t, s.ListJobs()[0].Running)

	for i := 1; i <= 3; i++ {
		s.tick(t0.Add(time.Duration(i) * time.Second))
	}
	assert.Equal(t, 1, host.executions())
	assert.ErrorIs(t, s.RunNow("slow"), ErrJobRunning)

	clock.Set(t0.Add(5 * time.Second))
	close(host.gate)
	s.Wait()

	info := s.ListJobs()[0]
	assert.False(t, info.Running)
	assert.Equal(t, 1, info.Runs)
	assert.Equal(t, t0, info.LastRun)
	assert.Equal(t, t0.Add(time.Second), info.NextRun)
	assert.Equal(t, 1, host.executions())
}

func TestDuplicateJob(t *testing.T) {
	s := newTestScheduler(&fakeClock{now: time.Now()})
	host := &blockingHost{}
	require.NoError(t, s.AddJob(newTestWorkflow("w1", host), Every(10), Sync))

	err := s.AddJob(newTestWorkflow("w1", host), Every(20), Async)
	assert.True(t, errors.Is(err, engine.ErrConfiguration))
	assert.Len(t, s.ListJobs(), 1)
	assert.Equal(t, "every 10s", s.ListJobs()[0].Schedule)
}

func TestAddJobInvalid(t *testing.T) {
	s := newTestScheduler(&fakeClock{now: time.Now()})
	host := &blockingHost{}

	assert.True(t, errors.Is(s.AddJob(newTestWorkflow("", host), Every(10), Sync), engine.ErrConfiguration))
	assert.True(t, errors.Is(s.AddJob(newTestWorkflow("w", host), Every(0), Sync), engine.ErrConfiguration))
	assert.True(t, errors.Is(s.AddJob(newTestWorkflow("w", host), DailyAt{Hour: 24}, Sync), engine.ErrConfiguration))
	assert.True(t, errors.Is(s.AddJob(newTestWorkflow("w", host), nil, Sync), engine.ErrConfiguration))
	assert.Empty(t, s.ListJobs())
}

func TestRemoveJob(t *testing.T) {
	t0 := time.Now()
	s := newTestScheduler(&fakeClock{now: t0})
	h1, h2 := &blockingHost{}, &blockingHost{}
	require.NoError(t, s.AddJob(newTestWorkflow("w1", h1), Every(10), Sync))
	require.NoError(t, s.AddJob(newTestWorkflow("w2", h2), Every(10), Sync))

	require.NoError(t, s.RemoveJob("w1"))
	assert.True(t, errors.Is(s.RemoveJob("w1"), engine.ErrConfiguration))

	s.tick(t0)
	assert.Equal(t, 0, h1.executions())
	assert.Equal(t, 1, h2.executions())

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "w2", jobs[0].Name)
}

func TestRemoveJobInFlight(t *testing.T) {
	t0 := time.Now()
	s := newTestScheduler(&fakeClock{now: t0})
	host := &blockingHost{
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	require.NoError(t, s.AddJob(newTestWorkflow("w1", host), Every(10), Async))

	s.tick(t0)
	<-host.started
	require.NoError(t, s.RemoveJob("w1"))
	close(host.gate)
	s.Wait()
	assert.Equal(t, 1, host.executions())
	assert.Empty(t, s.ListJobs())
}

func TestRunNow(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 3, 0, 0, 0, time.Local)
	s := newTestScheduler(&fakeClock{now: t0})
	host := &blockingHost{}
	require.NoError(t, s.AddJob(newTestWorkflow("nightly", host), DailyAt{Hour: 2}, Sync))

	require.NoError(t, s.RunNow("nightly"))
	assert.Equal(t, 1, host.executions())

	info := s.ListJobs()[0]
	assert.Equal(t, t0, info.LastRun)
	assert.Equal(t, 1, info.Runs)

	run, err := s.LastRun("nightly")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.True(t, run.Success)

	assert.True(t, errors.Is(s.RunNow("missing"), engine.ErrConfiguration))
	_, err = s.LastRun("missing")
	assert.Error(t, err)
}

func TestJobErrorsRecovered(t *testing.T) {
	t0 := time.Now()
	s := newTestScheduler(&fakeClock{now: t0})

	boom := func(ctx context.Context, task *engine.Task, host engine.Host, args map[string]interface{}) (*engine.TaskResult, error) {
		panic("boom")
	}
	panicky := engine.NewWorkflow("panicky", "").
		AddHost(&blockingHost{}).
		AddTask(engine.NewCallableTask("boom", boom, nil))
	empty := engine.NewWorkflow("empty", "").AddHost(&blockingHost{})
	host := &blockingHost{}

	require.NoError(t, s.AddJob(panicky, Every(60), Sync))
	require.NoError(t, s.AddJob(empty, Every(60), Sync))
	require.NoError(t, s.AddJob(newTestWorkflow("healthy", host), Every(60), Sync))

	s.tick(t0)
	assert.Equal(t, 1, host.executions())

	jobs := s.ListJobs()
	require.Len(t, jobs, 3)
	assert.Contains(t, jobs[0].LastError, "panic: boom")
	assert.False(t, jobs[0].Running)
	assert.False(t, jobs[0].LastSuccess)
	assert.Contains(t, jobs[1].LastError, "no tasks")
	assert.Equal(t, t0.Add(time.Minute), jobs[1].NextRun)
	assert.True(t, jobs[2].LastSuccess)
}

func TestFailedWorkflowResult(t *testing.T) {
	t0 := time.Now()
	s := newTestScheduler(&fakeClock{now: t0})
	fail := func(ctx context.Context, task *engine.Task, host engine.Host, args map[string]interface{}) (*engine.TaskResult, error) {
		return &engine.TaskResult{Success: false}, nil
	}
	wf := engine.NewWorkflow("failing", "").
		AddHost(&blockingHost{}).
		AddTask(engine.NewCallableTask("fail", fail, nil))
	require.NoError(t, s.AddJob(wf, Every(60), Sync))

	s.tick(t0)
	info := s.ListJobs()[0]
	assert.Equal(t, 1, info.Runs)
	assert.False(t, info.LastSuccess)
	assert.Empty(t, info.LastError)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(5*time.Millisecond, nil)
	host := &blockingHost{}
	require.NoError(t, s.AddJob(newTestWorkflow("w1", host), Interval{Period: 10 * time.Millisecond}, Async))

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrRunning)

	require.Eventually(t, func() bool { return host.executions() >= 2 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Wait()

	count := host.executions()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, count, host.executions())

	// stopping twice is harmless and the scheduler can be restarted
	s.Stop()
	require.NoError(t, s.Start())
	s.Stop()
}

func TestStopDoesNotWaitForInFlight(t *testing.T) {
	s := NewScheduler(5*time.Millisecond, nil)
	host := &blockingHost{
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	require.NoError(t, s.AddJob(newTestWorkflow("slow", host), Every(3600), Async))
	require.NoError(t, s.Start())
	<-host.started

	s.Stop()
	assert.True(t, s.ListJobs()[0].Running)

	close(host.gate)
	s.Wait()
	assert.False(t, s.ListJobs()[0].Running)
	assert.Equal(t, 1, s.ListJobs()[0].Runs)
}

func TestRenderStatus(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	jobs := []JobInfo{
		{Name: "deploy", Schedule: "every 30s", Mode: Async, NextRun: t0},
		{Name: "backup", Schedule: "daily at 02:00", Mode: Sync, Running: true, LastRun: t0, Runs: 3, LastError: "boom"},
	}
	var buf bytes.Buffer
	n := RenderStatus(&buf, jobs)
	out := buf.String()

	assert.Equal(t, 4, n)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "2 jobs")
	assert.True(t, strings.HasPrefix(lines[1], "NAME"))
	assert.Contains(t, lines[2], "never")
	assert.Contains(t, lines[2], "async")
	assert.Contains(t, lines[3], "running")
	assert.Contains(t, lines[3], "error: boom")
}

func TestStatusRedraw(t *testing.T) {
	var buf bytes.Buffer
	s := NewScheduler(time.Second, &buf).(*scheduler)
	t0 := time.Now()
	s.clock = func() time.Time { return t0 }
	require.NoError(t, s.AddJob(newTestWorkflow("w1", &blockingHost{}), Every(60), Sync))

	s.tick(t0)
	first := buf.Len()
	assert.NotContains(t, buf.String(), "\033[")
	s.tick(t0.Add(time.Second))
	assert.Contains(t, buf.String()[first:], "\033[3A\033[J")
}
