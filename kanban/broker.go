package kanban

import "sync"

type broker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[chan struct{}]struct{})}
}

func (b *broker) subscribe(owner string) chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	if b.subs[owner] == nil {
		b.subs[owner] = make(map[chan struct{}]struct{})
	}
	b.subs[owner][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broker) unsubscribe(owner string, ch chan struct{}) {
	b.mu.Lock()
	delete(b.subs[owner], ch)
	if len(b.subs[owner]) == 0 {
		delete(b.subs, owner)
	}
	b.mu.Unlock()
}

func (b *broker) notify(owner string) {
	b.mu.Lock()
	for ch := range b.subs[owner] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}
