package config

const (
	HostLocal = "local"
	HostSSH   = "ssh"
)

const (
	NotifierConsole = "console"
	NotifierEmail   = "email"
	NotifierAMQP    = "amqp"
	NotifierSQLite  = "sqlite"
)

type Host struct {
	Name string
	// local (default) or ssh
	Type       string
	Address    string
	Port       int
	User       string
	Password   string
	KeyFile    string `yaml:"keyFile"`
	KnownHosts string `yaml:"knownHosts"`
}

type Notifier struct {
	Name string
	Type string

	// email
	Server   string
	Port     int
	Username string
	Password string
	From     string
	To       []string

	// amqp
	URL   string `yaml:"url"`
	Queue string

	// sqlite
	Path string
}

// Task is a shell task with its success and failure continuations.
type Task struct {
	Name        string
	Description string
	Command     string
	// Name of the field of the predecessor's result holding the command to
	// run instead of Command.
	DataCommand string `yaml:"dataCommand"`
	// Stores the trimmed stdout under this key of the task result.
	Capture   string
	OnSuccess *Task `yaml:"onSuccess"`
	OnFailure *Task `yaml:"onFailure"`
}

type Workflow struct {
	Name        string
	Description string
	Workers     int
	Hosts       []string
	Notifiers   []string
	Tasks       []*Task
}

type Job struct {
	Workflow string
	// Period in seconds.
	Interval int
	// Time of day, HH:MM.
	DailyAt string `yaml:"dailyAt"`
	// sync (default) or async
	Mode string
}

type Config struct {
	Hosts     []*Host
	Notifiers []*Notifier
	Workflows []*Workflow
	Jobs      []*Job
}
