package batch

import "sync/atomic"

// Progress is the single point of synchronization for one batch's counters.
// Workers only ever call Increment and TrySealComplete.
type Progress struct {
	total     int64
	completed atomic.Int64
	sealed    atomic.Bool
}

// NewProgress creates a counter for total source URLs
func NewProgress(total int) *Progress {
	return &Progress{total: int64(total)}
}

// Increment counts one attempted URL and returns the new count.
// Calls past total are ignored.
func (p *Progress) Increment() int {
	for {
		cur := p.completed.Load()
		if cur >= p.total {
			return int(cur)
		}
		if p.completed.CompareAndSwap(cur, cur+1) {
			return int(cur + 1)
		}
	}
}

// TrySealComplete returns true exactly once, for the first caller that
// observes every URL counted
func (p *Progress) TrySealComplete() bool {
	if p.completed.Load() < p.total {
		return false
	}
	return p.sealed.CompareAndSwap(false, true)
}

// Completed returns the current count
func (p *Progress) Completed() int { return int(p.completed.Load()) }

// Total returns the number of URLs in the batch
func (p *Progress) Total() int { return int(p.total) }
