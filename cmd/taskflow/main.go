package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pedro-r-marques/taskflow/pkg/api"
	"github.com/pedro-r-marques/taskflow/pkg/config"
	"github.com/pedro-r-marques/taskflow/pkg/engine"
	"github.com/pedro-r-marques/taskflow/pkg/scheduler"
)

type options struct {
	Config   string
	EnvFile  string
	Once     bool
	Port     int
	Status   bool
	Tick     time.Duration
	LogLevel string
}

func (opt *options) Register() {
	flag.StringVar(&opt.Config, "config", "taskflow.yaml", "workflow configuration file")
	flag.StringVar(&opt.EnvFile, "env-file", ".env", "environment file loaded before parsing the configuration")
	flag.BoolVar(&opt.Once, "once", false, "execute every workflow once and exit")
	flag.IntVar(&opt.Port, "port", 8080, "api port (0 disables the api)")
	flag.BoolVar(&opt.Status, "status", false, "redraw the job status table on stdout after every tick")
	flag.DurationVar(&opt.Tick, "tick", scheduler.DefaultResolution, "scheduler tick resolution")
	flag.StringVar(&opt.LogLevel, "log-level", "info", "log level")
}

func loadDotEnv(filename string) error {
	if _, err := os.Stat(filename); err == nil {
		return godotenv.Load(filename)
	}
	return nil
}

func setupLogging(level string, out io.Writer) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	return nil
}

// runOnce executes every workflow and prints its trace. It returns false if
// any workflow failed.
func runOnce(ctx context.Context, w io.Writer, workflows []*engine.Workflow) bool {
	ok := true
	for _, wf := range workflows {
		run, err := wf.Run(ctx)
		if err != nil {
			log.Error().Err(err).Str("workflow", wf.Name).Msg("run")
			ok = false
			continue
		}
		fmt.Fprintf(w, "workflow: %s (%s)\n", wf.Name, run.End.Sub(run.Start).Round(time.Millisecond))
		engine.RenderTrace(w, run)
		if !run.Success {
			ok = false
		}
	}
	return ok
}

func serve(s scheduler.Scheduler, opt *options) error {
	var server *http.Server
	if opt.Port != 0 {
		mux := http.NewServeMux()
		mux.Handle("/api/", api.NewApiServer(s))
		server = &http.Server{Addr: fmt.Sprintf(":%d", opt.Port), Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("api server")
			}
		}()
		log.Info().Int("port", opt.Port).Msg("api listening")
	}

	if err := s.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	s.Stop()
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
	s.Wait()
	return nil
}

func main() {
	var opt options
	opt.Register()
	flag.Parse()

	if err := setupLogging(opt.LogLevel, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := loadDotEnv(opt.EnvFile); err != nil {
		log.Fatal().Err(err).Str("file", opt.EnvFile).Msg("env file")
	}

	cfg, err := config.ParseConfig(opt.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	env := newEnvironment(os.Stdout)
	defer env.Close()
	if err := env.Build(cfg); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	if opt.Once {
		ok := runOnce(context.Background(), os.Stdout, env.workflows)
		env.Close()
		if !ok {
			os.Exit(1)
		}
		return
	}

	var status io.Writer
	if opt.Status {
		status = os.Stdout
	}
	sched := scheduler.NewScheduler(opt.Tick, status)
	if err := env.RegisterJobs(sched, cfg); err != nil {
		log.Fatal().Err(err).Msg("jobs")
	}
	if err := serve(sched, &opt); err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}
}
