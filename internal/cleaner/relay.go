package cleaner

import "time"

type progressUpdate struct {
	completed, total int
}

// progressRelay hands progress to a callback on its own goroutine. The
// buffer holds one value and a newer value replaces an unread one, so the
// sender never blocks.
type progressRelay struct {
	ch   chan progressUpdate
	done chan struct{}
}

func newProgressRelay(fn ProgressFunc) *progressRelay {
	if fn == nil {
		return nil
	}

	r := &progressRelay{
		ch:   make(chan progressUpdate, 1),
		done: make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		for u := range r.ch {
			fn(u.completed, u.total)
		}
	}()
	return r
}

func (r *progressRelay) send(completed, total int) {
	if r == nil {
		return
	}
	u := progressUpdate{completed, total}
	for {
		select {
		case r.ch <- u:
			return
		default:
		}
		// Drop the stale value
		select {
		case <-r.ch:
		default:
		}
	}
}

// flush closes the relay and waits up to timeout for the callback to
// drain the final value
func (r *progressRelay) flush(timeout time.Duration) {
	if r == nil {
		return
	}
	close(r.ch)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-r.done:
	case <-timer.C:
	}
}
