package rundeck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"envdash/api/config"
	"envdash/api/hub"
)

const (
	submitFailedMessage = "Creating the environment failed! Check that you entered a valid environment name, then consult the Rundeck logs."
	unknownErrorMessage = "Unknown error while running the Rundeck job"
)

var ErrNoJob = errors.New("no rundeck job configured")

type Reason string

const (
	ReasonSubmit  Reason = "submit"
	ReasonPoll    Reason = "poll"
	ReasonTimeout Reason = "timeout"
	ReasonFailed  Reason = "failed"
)

// JobError is a job run that did not end in succeeded. Message is meant for
// the person who asked for the run.
type JobError struct {
	Reason    Reason
	Message   string
	Execution *Execution
	Err       error
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rundeck job %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("rundeck job %s: %s", e.Reason, e.Message)
}

func (e *JobError) Unwrap() error { return e.Err }

// JobParams identify the environment a job acts on. Options are passed to
// the job as-is, next to the server and environment options.
type JobParams struct {
	Server      string            `json:"server"`
	Environment string            `json:"environment"`
	Options     map[string]string `json:"options,omitempty"`
}

type Notifier interface {
	Broadcast(evt hub.Event)
}

// Runner submits deploy and delete jobs and polls them to an outcome.
type Runner struct {
	Client            *Client
	Jobs              map[string]config.Jobs
	ServerOption      string
	EnvironmentOption string
	PollInterval      time.Duration
	Timeout           time.Duration
	Notifier          Notifier
	Log               logrus.FieldLogger
}

func NewRunner(cfg config.Rundeck, n Notifier) *Runner {
	return &Runner{
		Client:            NewClient(cfg),
		Jobs:              cfg.Jobs,
		ServerOption:      cfg.ServerOption,
		EnvironmentOption: cfg.EnvironmentOption,
		PollInterval:      cfg.PollInterval,
		Timeout:           cfg.PollTimeout,
		Notifier:          n,
		Log:               logrus.WithField("component", "rundeck"),
	}
}

// MissingJobs returns the environment types that lack a deploy or a delete
// job, in the order given.
func (r *Runner) MissingJobs(envTypes []string) []string {
	var missing []string
	for _, t := range envTypes {
		jobs := r.Jobs[t]
		if jobs.Deploy == "" || jobs.Delete == "" {
			missing = append(missing, t)
		}
	}
	return missing
}

func (r *Runner) Deploy(ctx context.Context, envType string, p JobParams) (*Execution, error) {
	jobs, ok := r.Jobs[envType]
	if !ok || jobs.Deploy == "" {
		return nil, fmt.Errorf("deploy %q: %w", envType, ErrNoJob)
	}
	return r.run(ctx, "deploy", jobs.Deploy, p)
}

func (r *Runner) Delete(ctx context.Context, envType string, p JobParams) (*Execution, error) {
	jobs, ok := r.Jobs[envType]
	if !ok || jobs.Delete == "" {
		return nil, fmt.Errorf("delete %q: %w", envType, ErrNoJob)
	}
	return r.run(ctx, "delete", jobs.Delete, p)
}

func (r *Runner) run(ctx context.Context, kind, jobID string, p JobParams) (*Execution, error) {
	interval, timeout := r.PollInterval, r.Timeout
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	runID := uuid.NewString()
	log := r.logger().WithFields(logrus.Fields{
		"run":         runID,
		"job":         kind,
		"server":      p.Server,
		"environment": p.Environment,
	})
	target := p.Server + "/" + p.Environment

	options := make(map[string]string, len(p.Options)+2)
	for k, v := range p.Options {
		options[k] = v
	}
	options[optionName(r.ServerOption, "Server")] = p.Server
	options[optionName(r.EnvironmentOption, "Environment")] = p.Environment

	exec, err := r.Client.RunJob(ctx, jobID, "name: "+p.Server, options)
	if err != nil {
		log.WithError(err).Warn("job submit failed")
		jerr := &JobError{Reason: ReasonSubmit, Message: submitFailedMessage, Err: err}
		r.notify("job.failed", target, runID, kind, nil, jerr.Message)
		return nil, jerr
	}
	log = log.WithField("execution", exec.ID)
	log.Info("job submitted")
	r.notify("job.submitted", target, runID, kind, exec, "")

	start := time.Now()
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// stopped reports a poll that ended because the ceiling passed or the
	// caller gave up.
	stopped := func(cause error) (*Execution, error) {
		reason := ReasonPoll
		if ctx.Err() == nil && pollCtx.Err() != nil {
			reason = ReasonTimeout
			log.Warn("job timed out")
		} else {
			log.WithError(cause).Warn("job poll failed")
		}
		jerr := &JobError{Reason: reason, Message: failureMessage(exec), Execution: exec, Err: cause}
		r.notify("job.failed", target, runID, kind, exec, jerr.Message)
		return exec, jerr
	}

	for exec.Status == StatusRunning {
		select {
		case <-pollCtx.Done():
			return stopped(pollCtx.Err())
		case <-time.After(interval):
		}

		next, err := r.Client.Execution(pollCtx, exec.ID)
		if err != nil {
			return stopped(err)
		}
		exec = next
		r.notify("job.status", target, runID, kind, exec, "")
	}

	if exec.Status != StatusSucceeded {
		log.WithField("status", exec.Status).Warn("job failed")
		jerr := &JobError{Reason: ReasonFailed, Message: failureMessage(exec), Execution: exec}
		r.notify("job.failed", target, runID, kind, exec, jerr.Message)
		return exec, jerr
	}

	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("job succeeded")
	r.notify("job.completed", target, runID, kind, exec, "")
	return exec, nil
}

func failureMessage(exec *Execution) string {
	if exec != nil && exec.Permalink != "" {
		return "Something went wrong while running the Rundeck job, see the logs here: " + exec.Permalink
	}
	return unknownErrorMessage
}

func (r *Runner) notify(typ, target, runID, kind string, exec *Execution, message string) {
	if r.Notifier == nil {
		return
	}
	payload := map[string]interface{}{
		"runId": runID,
		"job":   kind,
	}
	if exec != nil {
		payload["executionId"] = exec.ID
		payload["status"] = exec.Status
		payload["permalink"] = exec.Permalink
	}
	if message != "" {
		payload["message"] = message
	}
	r.Notifier.Broadcast(hub.Event{Type: typ, Target: target, Payload: payload})
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

func optionName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
