package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/model"
)

// TickerFunc starts a one-second ticker and returns its channel and a stop
// function.
type TickerFunc func() (<-chan time.Time, func())

// SecondTicker is the production TickerFunc.
func SecondTicker() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

type submitOutcome struct {
	sub *model.Submission
	res *model.SubmissionResult
	err error
}

// Runner owns a Session and serialises input, clock ticks and submission
// results onto a single goroutine.
type Runner struct {
	session    *Session
	authority  Authority
	examID     string
	input      <-chan Command
	newTicker  TickerFunc
	render     func(View)
	submitDone chan submitOutcome
	log        zerolog.Logger

	tickC    <-chan time.Time
	stopTick func()
}

// RunnerOptions wires a Runner. NewTicker defaults to SecondTicker and
// Render may be nil.
type RunnerOptions struct {
	Input     <-chan Command
	NewTicker TickerFunc
	Render    func(View)
}

func NewRunner(s *Session, opts RunnerOptions) *Runner {
	if opts.NewTicker == nil {
		opts.NewTicker = SecondTicker
	}
	if opts.Render == nil {
		opts.Render = func(View) {}
	}
	return &Runner{
		session:    s,
		authority:  s.opts.Authority,
		examID:     s.opts.ExamID,
		input:      opts.Input,
		newTicker:  opts.NewTicker,
		render:     opts.Render,
		submitDone: make(chan submitOutcome, 1),
		log:        s.log.With().Str("component", "runner").Logger(),
	}
}

// Run drives the session until the subject quits, the input closes or ctx
// is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	defer r.syncTicker(false)

	r.session.Start(ctx)
	r.render(r.session.View())

	for {
		r.syncTicker(r.session.ClockRunning())

		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd, ok := <-r.input:
			if !ok || cmd.Kind == CmdQuit {
				r.log.Info().Str("state", string(r.session.State())).Msg("Runner stopped by subject")
				return nil
			}
			if sub, ok := r.session.Handle(ctx, cmd); ok {
				r.dispatch(ctx, sub)
			}

		case <-r.tickC:
			if sub, ok := r.session.Tick(); ok {
				r.dispatch(ctx, sub)
			}

		case out := <-r.submitDone:
			r.session.CompleteSubmission(ctx, out.sub, out.res, out.err)
		}

		r.render(r.session.View())
	}
}

// dispatch sends the submission off the loop so the clock and acknowledgement
// keep being serviced. At most one submission is ever in flight.
func (r *Runner) dispatch(ctx context.Context, sub *model.Submission) {
	go func() {
		res, err := r.authority.Submit(ctx, r.examID, *sub)
		select {
		case r.submitDone <- submitOutcome{sub: sub, res: res, err: err}:
		case <-ctx.Done():
		}
	}()
}

// syncTicker keeps a ticker alive exactly while the clock runs.
func (r *Runner) syncTicker(running bool) {
	switch {
	case running && r.stopTick == nil:
		r.tickC, r.stopTick = r.newTicker()
	case !running && r.stopTick != nil:
		r.stopTick()
		r.tickC, r.stopTick = nil, nil
	}
}
