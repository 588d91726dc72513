package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedro-r-marques/taskflow/pkg/config"
	"github.com/pedro-r-marques/taskflow/pkg/scheduler"
)

const testConfig = `
hosts:
  - name: local
notifiers:
  - name: stdout
    type: console
  - name: audit
    type: sqlite
    path: %s
workflows:
  - name: greet
    hosts: [local]
    notifiers: [stdout, audit]
    tasks:
      - name: locate
        command: echo 'echo hello from data'
        capture: cmd
        onSuccess:
          name: greet
          dataCommand: cmd
          onFailure:
            name: apologize
            command: echo sorry
  - name: broken
    hosts: [local]
    tasks:
      - name: fail
        command: exit 4
jobs:
  - workflow: greet
    interval: 60
  - workflow: broken
    dailyAt: "03:30"
    mode: async
`

func buildTestEnvironment(t *testing.T) (*environment, *config.Config, *bytes.Buffer, string) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	cfg, err := config.Parse([]byte(fmt.Sprintf(testConfig, dbPath)))
	require.NoError(t, err)

	var console bytes.Buffer
	env := newEnvironment(&console)
	require.NoError(t, env.Build(cfg))
	t.Cleanup(env.Close)
	return env, cfg, &console, dbPath
}

func TestBuild(t *testing.T) {
	env, _, _, _ := buildTestEnvironment(t)
	require.Len(t, env.workflows, 2)
	assert.Len(t, env.hosts, 1)
	assert.Len(t, env.notifiers, 2)
	// the sqlite notifier is closed with the environment
	assert.Len(t, env.closers, 1)

	greet := env.workflow("greet")
	require.NotNil(t, greet)
	require.Len(t, greet.Hosts(), 1)
	assert.Equal(t, "local", greet.Hosts()[0].Name())
	roots := greet.Tasks()
	require.Len(t, roots, 1)
	next := roots[0].Next(true)
	require.NotNil(t, next)
	assert.Equal(t, "greet", next.Name)
	assert.Equal(t, "cmd", next.DataKey)
	assert.Equal(t, roots[0], next.Predecessor())
	assert.Equal(t, "apologize", next.Next(false).Name)
	assert.Nil(t, env.workflow("missing"))
}

func TestRunOnce(t *testing.T) {
	env, _, console, dbPath := buildTestEnvironment(t)

	var out bytes.Buffer
	ok := runOnce(context.Background(), &out, env.workflows)
	assert.False(t, ok)

	trace := out.String()
	assert.Contains(t, trace, "workflow: greet")
	assert.Contains(t, trace, "host: local")
	assert.Contains(t, trace, "[succeeded] greet")
	assert.Contains(t, trace, "[not run] apologize")
	assert.Contains(t, trace, "workflow: broken")

	result, exists := env.workflow("greet").Result("greet", "local")
	require.True(t, exists)
	assert.True(t, result.Success)
	assert.Equal(t, "hello from data\n", result.Output)

	assert.Equal(t, 2, strings.Count(console.String(), "== task "))
	env.Close()

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM notifications`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestRegisterJobs(t *testing.T) {
	env, cfg, _, _ := buildTestEnvironment(t)

	s := scheduler.NewScheduler(0, nil)
	require.NoError(t, env.RegisterJobs(s, cfg))
	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "greet", jobs[0].Name)
	assert.Equal(t, "every 1m0s", jobs[0].Schedule)
	assert.Equal(t, scheduler.Sync, jobs[0].Mode)
	assert.Equal(t, "daily at 03:30", jobs[1].Schedule)
	assert.Equal(t, scheduler.Async, jobs[1].Mode)

	// registering the same jobs twice is a configuration error
	assert.Error(t, env.RegisterJobs(s, cfg))
}

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, setupLogging("loud", &buf))
	require.NoError(t, setupLogging("debug", &buf))
}
