package taskgroup

import "sync"

// A Progress forwards percentage values (0-100) to a sink, clamping
// them so the reported sequence never decreases. A nil *Progress is a
// valid no-op sink.
type Progress struct {
	mu   sync.Mutex
	fn   func(pct int)
	last int
}

// NewProgress wraps a sink callback; fn may be nil.
func NewProgress(fn func(pct int)) *Progress {
	return &Progress{fn: fn, last: -1}
}

// Report forwards pct if it advances the sequence. Repeats and
// regressions are dropped.
func (p *Progress) Report(pct int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if pct <= p.last {
		return
	}
	if pct > 100 {
		pct = 100
	}
	p.last = pct
	if p.fn != nil {
		p.fn(pct)
	}
}
