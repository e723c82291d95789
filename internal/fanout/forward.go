package fanout

import "sync"

// Forward returns a channel that yields initial followed by everything
// received on in. The returned cancel stops forwarding, calls upstream and
// closes the output channel once the forwarder exits. The output channel is
// also closed when in is closed.
func Forward[T any](initial []T, in <-chan T, upstream func()) (<-chan T, func()) {
	out := make(chan T, len(initial)+DefaultBuffer)
	for _, v := range initial {
		out <- v
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			upstream()
		})
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-done:
					return
				}
			}
		}
	}()

	return out, cancel
}
