// Package scan orchestrates batch runs over many radios: credentials are
// split into batches, each batch is worked concurrently, and results are
// flushed to the configured sinks after every batch so a crash loses at
// most one batch of work.
package scan

import (
	"context"
	"sync"
	"time"

	"github.com/radioscan-network/radioscan/pkg/commander"
	"github.com/radioscan-network/radioscan/pkg/credentials"
	"github.com/radioscan-network/radioscan/pkg/family"
	"github.com/radioscan-network/radioscan/pkg/session"
	"github.com/radioscan-network/radioscan/pkg/util"
)

// Action selects what a run does to each radio it reaches.
type Action string

const (
	// ActionScan only identifies radios.
	ActionScan Action = "scan"
	// ActionCollect gathers metric records.
	ActionCollect Action = "collect"
	// ActionScript executes a user-supplied command script.
	ActionScript Action = "script"
	// ActionSyncClock sets each radio's date and time.
	ActionSyncClock Action = "set-clock"
)

// Options configures a run.
type Options struct {
	Action Action

	// RunID labels all results of this run.
	RunID string

	// BatchSize is how many radios go into one batch. Non-positive means
	// a single batch.
	BatchSize int

	// Concurrency bounds the number of radios worked at once within a
	// batch. Values below two mean strictly sequential operation.
	Concurrency int

	// Script holds the commands for ActionScript.
	Script []string

	// Include flags gate which families the action is applied to.
	// Radios of excluded families are still identified and reported.
	IncludeEH bool
	IncludeBU bool
	IncludeTU bool
	IncludeTG bool

	// IncludeRemotes extends the action over the tunnel-reachable client
	// nodes of each mesh radio. Remote nodes often have no routable
	// address of their own, so tunneling is the only way to reach them.
	IncludeRemotes bool

	// TimeShift is added to the local clock before it is pushed to
	// radios in other time zones.
	TimeShift time.Duration

	// Session overrides the per-session timeout parameters.
	Session session.Params
}

// DeviceResult is everything a run learned about one address.
type DeviceResult struct {
	Addr     string
	Family   family.Family
	Model    string
	Name     string
	Serial   string
	Software string

	// Error is the most recent failure that was not a direct consequence
	// of a script command, or "".
	Error string

	Commands []commander.Command
	Metrics  []commander.MetricRow
	Errors   []string
}

// Runner executes batch runs.
type Runner struct {
	opts  Options
	sinks Sink
	dial  session.Dialer
}

// RunnerOption adjusts a Runner.
type RunnerOption func(*Runner)

// WithDialer substitutes the transport dialer. Used by tests.
func WithDialer(d session.Dialer) RunnerOption {
	return func(r *Runner) { r.dial = d }
}

// NewRunner creates a runner writing to the given sinks.
func NewRunner(opts Options, sink Sink, ropts ...RunnerOption) *Runner {
	if opts.Session == (session.Params{}) {
		opts.Session = session.DefaultParams()
	}
	r := &Runner{opts: opts, sinks: sink, dial: session.DialSSH}
	for _, o := range ropts {
		o(r)
	}
	return r
}

// Run works through all credentials batch by batch. Each batch's results
// are flushed to the sinks before the next batch starts; no result is
// sunk while its batch is still in flight. Cancellation is honored
// between batches, never mid-batch.
func (r *Runner) Run(ctx context.Context, creds credentials.List) error {
	batches := creds.Batches(r.opts.BatchSize)
	for num, batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := util.WithBatch(num)
		if r.opts.RunID != "" {
			log = log.WithField("run", r.opts.RunID)
		}
		log.Infof("starting batch of %d radios", len(batch))

		results := r.runBatch(batch)

		if err := r.sinks.WriteBatch(ctx, num, results); err != nil {
			log.Errorf("flushing results: %v", err)
			return err
		}
		log.Infof("batch done, %d results flushed", len(results))
	}
	return nil
}

// runBatch works one batch, bounded by the concurrency limit, and returns
// results in credential order.
func (r *Runner) runBatch(batch credentials.List) []DeviceResult {
	results := make([]DeviceResult, len(batch))

	if r.opts.Concurrency <= 1 {
		for i, cred := range batch {
			results[i] = r.workOne(cred)
		}
		return results
	}

	sem := make(chan struct{}, r.opts.Concurrency)
	var wg sync.WaitGroup
	for i, cred := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, cred credentials.Credential) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.workOne(cred)
		}(i, cred)
	}
	wg.Wait()
	return results
}

// included reports whether the run's action applies to the family.
func (r *Runner) included(f family.Family) bool {
	switch f {
	case family.EH:
		return r.opts.IncludeEH
	case family.BU:
		return r.opts.IncludeBU
	case family.TU:
		return r.opts.IncludeTU
	case family.TG:
		return r.opts.IncludeTG
	default:
		return false
	}
}

// workOne runs the configured action against one radio. It never returns
// an error: whatever went wrong is part of the result.
func (r *Runner) workOne(cred credentials.Credential) DeviceResult {
	res := DeviceResult{Addr: cred.Addr.String(), Family: family.Unknown}
	log := util.WithTarget(cred.String())
	log.Debug("checking radio")

	sess := session.New(cred.Addr.String(), cred.Username, cred.Password,
		session.WithParams(r.opts.Session),
		session.WithDialer(r.dial))
	if err := sess.Connect(); err != nil {
		res.Error = sess.LastError()
		return res
	}
	defer sess.Disconnect()

	// A failed identification still yields a result row; the radio may
	// be an SSH host that is not a radio at all.
	_ = sess.Identify()
	id := sess.Identity()
	res.Model, res.Name, res.Serial, res.Software = id.Model, id.Name, id.Serial, id.Software

	cmdr := commander.New(sess, cred)
	res.Family = cmdr.Family

	if r.included(cmdr.Family) {
		if cmdr.Family == family.TG && r.opts.IncludeRemotes && r.opts.Action != ActionScan {
			cmdr.DiscoverRemotes()
		}
		switch r.opts.Action {
		case ActionScan:
			// Identification already happened.
		case ActionCollect:
			cmdr.CollectMetrics(r.opts.IncludeRemotes)
		case ActionScript:
			cmdr.Run(r.opts.Script, "")
			if cmdr.Family == family.TG && r.opts.IncludeRemotes {
				cmdr.RunOnRemotes(r.opts.Script)
			}
		case ActionSyncClock:
			cmdr.SyncClock(r.opts.TimeShift, r.opts.IncludeRemotes)
		}
	}

	res.Commands = cmdr.Commands
	res.Metrics = cmdr.Metrics
	res.Errors = cmdr.Errors
	res.Error = lastNonCommandError(cmdr.Errors)
	return res
}

// lastNonCommandError picks the most recent error that was not raised by
// an individual script command; those are reported per command instead.
func lastNonCommandError(errs []string) string {
	for i := len(errs) - 1; i >= 0; i-- {
		if len(errs[i]) >= 8 && errs[i][:8] == "Command:" {
			continue
		}
		return errs[i]
	}
	return ""
}
