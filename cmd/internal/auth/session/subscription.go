package session

import "sync"

const defaultSubscriptionBuffer = 16

// Subscription delivers session snapshots in transition order.
//
// Concurrency guarantees:
// - Delivery never blocks the controller; when the queue is full the oldest snapshot is
//   dropped so the latest state always arrives.
// - C is closed by Close or by Controller.Close. Close is idempotent.
type Subscription struct {
	ctrl      *Controller
	ch        chan Session
	closeOnce sync.Once
}

// C returns the snapshot channel.
func (s *Subscription) C() <-chan Session {
	return s.ch
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		s.ctrl.unsubscribe(s)
	})
}

// offer must be called with the controller lock held; it is the only sender on ch.
func (s *Subscription) offer(v Session) {
	for {
		select {
		case s.ch <- v:
			return
		default:
		}

		select {
		case <-s.ch:
		default:
		}
	}
}
