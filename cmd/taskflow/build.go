package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pedro-r-marques/taskflow/pkg/config"
	"github.com/pedro-r-marques/taskflow/pkg/engine"
	"github.com/pedro-r-marques/taskflow/pkg/host"
	"github.com/pedro-r-marques/taskflow/pkg/notify"
	"github.com/pedro-r-marques/taskflow/pkg/scheduler"
)

// environment holds the objects built from a configuration file.
type environment struct {
	hosts     map[string]engine.Host
	notifiers map[string]engine.Notifier
	workflows []*engine.Workflow
	closers   []io.Closer
	console   io.Writer
}

func newEnvironment(console io.Writer) *environment {
	if console == nil {
		console = os.Stdout
	}
	return &environment{
		hosts:     make(map[string]engine.Host),
		notifiers: make(map[string]engine.Notifier),
		console:   console,
	}
}

func (env *environment) Close() {
	for i := len(env.closers) - 1; i >= 0; i-- {
		env.closers[i].Close()
	}
	env.closers = nil
}

func (env *environment) buildHost(hc *config.Host) (engine.Host, error) {
	switch hc.Type {
	case config.HostSSH:
		h, err := host.NewSSHHost(host.SSHConfig{
			Name:       hc.Name,
			Address:    hc.Address,
			Port:       hc.Port,
			User:       hc.User,
			Password:   hc.Password,
			KeyFile:    hc.KeyFile,
			KnownHosts: hc.KnownHosts,
		})
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, h)
		return h, nil
	default:
		return host.NewLocalHost(hc.Name), nil
	}
}

func (env *environment) buildNotifier(nc *config.Notifier) (engine.Notifier, error) {
	switch nc.Type {
	case config.NotifierConsole:
		return notify.NewConsole(env.console), nil
	case config.NotifierEmail:
		return notify.NewEmail(notify.EmailConfig{
			Server:   nc.Server,
			Port:     nc.Port,
			Username: nc.Username,
			Password: nc.Password,
			From:     nc.From,
			To:       nc.To,
		})
	case config.NotifierAMQP:
		n := notify.NewAMQP(nc.URL, nc.Queue)
		env.closers = append(env.closers, n)
		return n, nil
	case config.NotifierSQLite:
		n, err := notify.NewSQLite(nc.Path)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, n)
		return n, nil
	}
	return nil, fmt.Errorf("%w: unknown notifier type %q", engine.ErrConfiguration, nc.Type)
}

func buildTask(tc *config.Task) *engine.Task {
	task := engine.NewShellTask(tc.Name, tc.Command).WithDescription(tc.Description)
	if tc.DataCommand != "" {
		task.WithData(tc.DataCommand)
	}
	if tc.Capture != "" {
		task.WithCapture(tc.Capture)
	}
	if tc.OnSuccess != nil {
		task.OnSuccess(buildTask(tc.OnSuccess))
	}
	if tc.OnFailure != nil {
		task.OnFailure(buildTask(tc.OnFailure))
	}
	return task
}

func (env *environment) buildWorkflow(wc *config.Workflow) *engine.Workflow {
	wf := engine.NewWorkflow(wc.Name, wc.Description)
	wf.Workers = wc.Workers
	for _, name := range wc.Hosts {
		wf.AddHost(env.hosts[name])
	}
	for _, name := range wc.Notifiers {
		wf.AddNotifier(env.notifiers[name])
	}
	for _, tc := range wc.Tasks {
		wf.AddTask(buildTask(tc))
	}
	return wf
}

// Build creates the hosts, notifiers and workflows of a validated config.
func (env *environment) Build(cfg *config.Config) error {
	for _, hc := range cfg.Hosts {
		h, err := env.buildHost(hc)
		if err != nil {
			return fmt.Errorf("host %s: %w", hc.Name, err)
		}
		env.hosts[hc.Name] = h
	}
	for _, nc := range cfg.Notifiers {
		n, err := env.buildNotifier(nc)
		if err != nil {
			return fmt.Errorf("notifier %s: %w", nc.Name, err)
		}
		env.notifiers[nc.Name] = n
	}
	for _, wc := range cfg.Workflows {
		wf := env.buildWorkflow(wc)
		if err := wf.Validate(); err != nil {
			return err
		}
		env.workflows = append(env.workflows, wf)
	}
	return nil
}

func (env *environment) workflow(name string) *engine.Workflow {
	for _, wf := range env.workflows {
		if wf.Name == name {
			return wf
		}
	}
	return nil
}

func jobTrigger(jc *config.Job) (scheduler.Trigger, error) {
	if jc.DailyAt != "" {
		return scheduler.ParseDailyAt(jc.DailyAt)
	}
	return scheduler.Every(jc.Interval), nil
}

// RegisterJobs adds one scheduler job per configured job.
func (env *environment) RegisterJobs(s scheduler.Scheduler, cfg *config.Config) error {
	for _, jc := range cfg.Jobs {
		trigger, err := jobTrigger(jc)
		if err != nil {
			return fmt.Errorf("job %s: %w", jc.Workflow, err)
		}
		mode, err := scheduler.ParseMode(jc.Mode)
		if err != nil {
			return fmt.Errorf("job %s: %w", jc.Workflow, err)
		}
		if err := s.AddJob(env.workflow(jc.Workflow), trigger, mode); err != nil {
			return err
		}
	}
	return nil
}
