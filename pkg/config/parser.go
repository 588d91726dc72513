package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/pedro-r-marques/taskflow/pkg/scheduler"
)

type configValidator struct {
	namePattern *regexp.Regexp
}

func newConfigValidator() *configValidator {
	return &configValidator{
		namePattern: regexp.MustCompile(`[a-zA-Z][\w\-\.]*`),
	}
}

func fullMatchString(re *regexp.Regexp, str string) bool {
	locs := re.FindStringIndex(str)
	return reflect.DeepEqual(locs, []int{0, len(str)})
}

func (v *configValidator) validateHost(host *Host) error {
	if !fullMatchString(v.namePattern, host.Name) {
		return fmt.Errorf("invalid host name: %s", host.Name)
	}
	switch host.Type {
	case HostLocal:
	case HostSSH:
		if host.Address == "" {
			return fmt.Errorf("address required")
		}
		if host.User == "" {
			return fmt.Errorf("user required")
		}
		if host.Password == "" && host.KeyFile == "" {
			return fmt.Errorf("password or keyFile required")
		}
	default:
		return fmt.Errorf("unknown host type %q", host.Type)
	}
	return nil
}

func (v *configValidator) validateNotifier(n *Notifier) error {
	if !fullMatchString(v.namePattern, n.Name) {
		return fmt.Errorf("invalid notifier name: %s", n.Name)
	}
	switch n.Type {
	case NotifierConsole:
	case NotifierEmail:
		if n.Server == "" || len(n.To) == 0 {
			return fmt.Errorf("server and to are required")
		}
	case NotifierAMQP:
		if n.URL == "" {
			return fmt.Errorf("url required")
		}
	case NotifierSQLite:
		if n.Path == "" {
			return fmt.Errorf("path required")
		}
	default:
		return fmt.Errorf("unknown notifier type %q", n.Type)
	}
	return nil
}

// validateTasks walks the task trees of a workflow. Task names must be
// unique within the workflow since results are keyed by name.
func (v *configValidator) validateTasks(tasks []*Task) error {
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks defined")
	}
	names := make(map[string]bool)
	stack := make([]*Task, 0, len(tasks))
	for i := len(tasks) - 1; i >= 0; i-- {
		stack = append(stack, tasks[i])
	}
	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if task == nil {
			return fmt.Errorf("empty task definition")
		}
		if !fullMatchString(v.namePattern, task.Name) {
			return fmt.Errorf("invalid task name: %s", task.Name)
		}
		if names[task.Name] {
			return fmt.Errorf("duplicate task name: %s", task.Name)
		}
		names[task.Name] = true
		if task.Command == "" && task.DataCommand == "" {
			return fmt.Errorf("task %s: command or dataCommand required", task.Name)
		}
		if task.OnFailure != nil {
			stack = append(stack, task.OnFailure)
		}
		if task.OnSuccess != nil {
			stack = append(stack, task.OnSuccess)
		}
	}
	return nil
}

func (v *configValidator) validateWorkflow(workflow *Workflow, hosts, notifiers map[string]bool) error {
	if !fullMatchString(v.namePattern, workflow.Name) {
		return fmt.Errorf("invalid workflow name: %s", workflow.Name)
	}
	if workflow.Workers < 0 {
		return fmt.Errorf("invalid workers value %d", workflow.Workers)
	}
	if len(workflow.Hosts) == 0 {
		return fmt.Errorf("no hosts defined")
	}
	for _, h := range workflow.Hosts {
		if !hosts[h] {
			return fmt.Errorf("host %s not defined", h)
		}
	}
	for _, n := range workflow.Notifiers {
		if !notifiers[n] {
			return fmt.Errorf("notifier %s not defined", n)
		}
	}
	return v.validateTasks(workflow.Tasks)
}

func (v *configValidator) validateJob(job *Job, workflows map[string]bool) error {
	if !workflows[job.Workflow] {
		return fmt.Errorf("workflow %s not defined", job.Workflow)
	}
	switch {
	case job.Interval != 0 && job.DailyAt != "":
		return fmt.Errorf("only one of interval and dailyAt may be set")
	case job.Interval < 0:
		return fmt.Errorf("invalid interval %d", job.Interval)
	case job.Interval == 0 && job.DailyAt == "":
		return fmt.Errorf("interval or dailyAt required")
	case job.DailyAt != "":
		if _, err := time.Parse("15:04", job.DailyAt); err != nil {
			return fmt.Errorf("invalid dailyAt %q, expected HH:MM", job.DailyAt)
		}
	}
	if _, err := scheduler.ParseMode(job.Mode); err != nil {
		return err
	}
	return nil
}

func (v *configValidator) Validate(config *Config) error {
	hosts := make(map[string]bool, len(config.Hosts))
	for _, host := range config.Hosts {
		if err := v.validateHost(host); err != nil {
			return fmt.Errorf("error in host %s: %w", host.Name, err)
		}
		if hosts[host.Name] {
			return fmt.Errorf("duplicate host name: %s", host.Name)
		}
		hosts[host.Name] = true
	}

	notifiers := make(map[string]bool, len(config.Notifiers))
	for _, n := range config.Notifiers {
		if err := v.validateNotifier(n); err != nil {
			return fmt.Errorf("error in notifier %s: %w", n.Name, err)
		}
		if notifiers[n.Name] {
			return fmt.Errorf("duplicate notifier name: %s", n.Name)
		}
		notifiers[n.Name] = true
	}

	workflows := make(map[string]bool, len(config.Workflows))
	for _, wrk := range config.Workflows {
		if err := v.validateWorkflow(wrk, hosts, notifiers); err != nil {
			return fmt.Errorf("error in workflow %s: %w", wrk.Name, err)
		}
		if workflows[wrk.Name] {
			return fmt.Errorf("duplicate workflow name: %s", wrk.Name)
		}
		workflows[wrk.Name] = true
	}

	jobs := make(map[string]bool, len(config.Jobs))
	for _, job := range config.Jobs {
		if err := v.validateJob(job, workflows); err != nil {
			return fmt.Errorf("error in job %s: %w", job.Workflow, err)
		}
		if jobs[job.Workflow] {
			return fmt.Errorf("duplicate job for workflow %s", job.Workflow)
		}
		jobs[job.Workflow] = true
	}
	return nil
}

// expandEnv substitutes $VAR references in connection settings so that
// credentials can be kept out of the config file.
func expandEnv(config *Config) {
	for _, host := range config.Hosts {
		host.Address = os.ExpandEnv(host.Address)
		host.User = os.ExpandEnv(host.User)
		host.Password = os.ExpandEnv(host.Password)
		host.KeyFile = os.ExpandEnv(host.KeyFile)
		host.KnownHosts = os.ExpandEnv(host.KnownHosts)
	}
	for _, n := range config.Notifiers {
		n.Server = os.ExpandEnv(n.Server)
		n.Username = os.ExpandEnv(n.Username)
		n.Password = os.ExpandEnv(n.Password)
		n.URL = os.ExpandEnv(n.URL)
		n.Path = os.ExpandEnv(n.Path)
	}
}

func setDefaults(config *Config) {
	for _, host := range config.Hosts {
		if host.Type == "" {
			host.Type = HostLocal
		}
	}
	for _, job := range config.Jobs {
		job.Mode = strings.ToLower(job.Mode)
		if job.Mode == "" {
			job.Mode = "sync"
		}
	}
}

func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return nil, err
	}
	setDefaults(&config)
	expandEnv(&config)

	v := newConfigValidator()
	if err := v.Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func ParseConfig(filename string) (*Config, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading %v: %w", filename, err)
	}
	return Parse(data)
}
