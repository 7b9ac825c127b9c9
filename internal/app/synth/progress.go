package synth

import "context"

// Progress is one synthesis progress event. Percent never decreases within a
// run and no event follows the one with Done set.
type Progress struct {
	Phase   string `json:"phase"`
	Percent int    `json:"percent"`
	Done    bool   `json:"done"`
	Err     string `json:"error,omitempty"`
}

type reporter struct {
	ctx  context.Context
	ch   chan<- Progress
	last int
	done bool
}

func newReporter(ctx context.Context, ch chan<- Progress) *reporter {
	return &reporter{ctx: ctx, ch: ch}
}

func (r *reporter) emit(phase string, pct int) {
	if r.done {
		return
	}
	if pct > 99 {
		pct = 99
	}
	if pct < r.last {
		pct = r.last
	}
	r.last = pct
	r.send(Progress{Phase: phase, Percent: pct})
}

func (r *reporter) finish(err error) {
	if r.done {
		return
	}
	r.done = true
	p := Progress{Phase: "OK", Percent: 100, Done: true}
	if err != nil {
		p = Progress{Phase: "failed", Percent: r.last, Done: true, Err: err.Error()}
	}
	if r.ch == nil {
		return
	}
	select {
	case r.ch <- p:
	case <-r.ctx.Done():
		select {
		case r.ch <- p:
		default:
		}
	}
	close(r.ch)
}

func (r *reporter) send(p Progress) {
	if r.ch == nil {
		return
	}
	select {
	case r.ch <- p:
	case <-r.ctx.Done():
	}
}
