package inbound

import "sync"

// PhoneLocks serializes concurrent webhook processing for the same phone
// number: two webhooks from different phones never contend, two
// webhooks from the same phone never interleave.
type PhoneLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewPhoneLocks() *PhoneLocks {
	return &PhoneLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the per-phone lock, creating it on first use. The
// returned func releases it.
func (p *PhoneLocks) Lock(phone string) func() {
	p.mu.Lock()
	lock, ok := p.locks[phone]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[phone] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
