package transport

import "sync"

// refCount tracks the handles sharing one underlying resource. release runs
// when the last handle drops its reference.
type refCount struct {
	mu      sync.Mutex
	refs    int
	release func() error
}

func newRefCount(release func() error) *refCount {
	return &refCount{refs: 1, release: release}
}

// retain adds a reference. It fails once the resource has been released.
func (r *refCount) retain() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs == 0 {
		return false
	}
	r.refs++
	return true
}

func (r *refCount) drop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs == 0 {
		return nil
	}
	r.refs--
	if r.refs > 0 {
		return nil
	}
	return r.release()
}
