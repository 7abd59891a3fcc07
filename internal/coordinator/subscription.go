package coordinator

import "sync"

// Update is one delivery to an observer. A non-nil Err is terminal: the
// Updates channel is closed right after it.
type Update[V Entity] struct {
	Values []V
	Err    error
}

// Subscription is one observer of a key.
type Subscription[V Entity] struct {
	id      string
	ch      chan Update[V]
	once    sync.Once
	onClose func()

	// done is guarded by the owning coordinator's mutex.
	done bool
}

func newSubscription[V Entity](id string, buffer int, onClose func()) *Subscription[V] {
	if buffer < 1 {
		buffer = 1
	}
	return &Subscription[V]{id: id, ch: make(chan Update[V], buffer), onClose: onClose}
}

func (s *Subscription[V]) ID() string { return s.id }

// Updates is closed when the subscription is closed or after a terminal error.
func (s *Subscription[V]) Updates() <-chan Update[V] { return s.ch }

// Close detaches the observer. It is safe to call more than once.
func (s *Subscription[V]) Close() {
	s.once.Do(s.onClose)
}

// offer never blocks: a full buffer drops its oldest update.
func (s *Subscription[V]) offer(u Update[V]) {
	if s.done {
		return
	}
	for {
		select {
		case s.ch <- u:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *Subscription[V]) terminate(err error) {
	if s.done {
		return
	}
	if err != nil {
		s.offer(Update[V]{Err: err})
	}
	s.done = true
	close(s.ch)
}
