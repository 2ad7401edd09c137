package identity

import "sync"

// broadcaster fans auth events out to subscribers. Callbacks run on their own
// goroutines so a slow subscriber cannot stall the provider.
type broadcaster struct {
	mu   sync.Mutex
	subs map[uint64]func(Event)
	next uint64
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[uint64]func(Event))}
}

func (b *broadcaster) subscribe(fn func(Event)) Subscription {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once

	return subscription{cancel: func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}}
}

func (b *broadcaster) emit(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		go fn(ev)
	}
}

type subscription struct {
	cancel func()
}

func (s subscription) Unsubscribe() {
	s.cancel()
}
