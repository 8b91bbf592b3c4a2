package procctl

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// Result records the outcome of one termination attempt.
type Result struct {
	PID  int32
	Name string
	Err  error
}

// target is the slice of process behaviour the controller needs; it exists so
// tests can stand in for live OS processes.
type target interface {
	PID() int32
	Name() (string, error)
	Terminate() error
}

type listFunc func() ([]target, error)

// Controller enumerates and terminates OS processes by exact name.
type Controller struct {
	logger zerolog.Logger
	list   listFunc
}

// New constructs a controller backed by the live process table.
func New(logger zerolog.Logger) *Controller {
	return &Controller{
		logger: logger.With().Str("component", "procctl").Logger(),
		list:   liveProcesses,
	}
}

// TerminateByName sends a terminate signal to every process whose name matches
// exactly. Each attempt is independent: one failure never aborts the rest.
// Zero matches is a successful no-op. The returned error covers only a failure
// to enumerate the process table.
func (c *Controller) TerminateByName(name string) ([]Result, error) {
	procs, err := c.list()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var results []Result
	for _, p := range procs {
		procName, err := p.Name()
		if err != nil {
			// The process likely exited between listing and inspection.
			continue
		}
		if procName != name {
			continue
		}

		res := Result{PID: p.PID(), Name: procName, Err: p.Terminate()}
		if res.Err != nil {
			c.logger.Error().Err(res.Err).Int32("pid", res.PID).Str("name", name).
				Msg("failed to terminate process")
		} else {
			c.logger.Info().Int32("pid", res.PID).Str("name", name).
				Msg("process terminated")
		}
		results = append(results, res)
	}

	if len(results) == 0 {
		c.logger.Info().Str("name", name).Msg("no matching processes")
	}
	return results, nil
}

type liveProcess struct {
	p *process.Process
}

func (l liveProcess) PID() int32            { return l.p.Pid }
func (l liveProcess) Name() (string, error) { return l.p.Name() }
func (l liveProcess) Terminate() error      { return l.p.Terminate() }

func liveProcesses() ([]target, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	targets := make([]target, 0, len(procs))
	for _, p := range procs {
		targets = append(targets, liveProcess{p: p})
	}
	return targets, nil
}
