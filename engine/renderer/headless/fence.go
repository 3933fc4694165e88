package headless

import "fmt"

// Fence covers every draw submitted before it was inserted.
type Fence struct {
	backend   *Backend
	sequence  uint64
	remaining uint32
	signaled  bool
	destroyed bool
}

// Wait ignores the timeout: each unsuccessful call stands for one expired poll.
func (f *Fence) Wait(timeoutNs uint64) (bool, error) {
	if f.destroyed {
		return false, fmt.Errorf("wait on a destroyed fence")
	}
	f.backend.fenceWaits++
	if f.signaled {
		return true, nil
	}
	if f.remaining > 0 {
		f.remaining--
		return false, nil
	}
	f.signaled = true
	f.backend.complete(f.sequence)
	return true, nil
}

func (f *Fence) Destroy() {
	f.destroyed = true
}
