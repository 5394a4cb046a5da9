package viewstate

import (
	"context"
	"errors"
	"sync"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("view state store is closed")

type request struct {
	action Action
	reply  chan State
}

// Store owns a State on one goroutine. Dispatch, Update and Snapshot may be
// called from any goroutine; actions apply in arrival order.
type Store struct {
	requests chan request
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	mu   sync.Mutex
	subs map[int]chan State
	next int
}

// NewStore starts the store goroutine with initial as the first state.
func NewStore(initial State) *Store {
	s := &Store{
		requests: make(chan request),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		subs:     make(map[int]chan State),
	}
	go s.run(initial.Clone())
	return s
}

func (s *Store) run(state State) {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			s.mu.Lock()
			for id, ch := range s.subs {
				close(ch)
				delete(s.subs, id)
			}
			s.mu.Unlock()
			return
		case req := <-s.requests:
			if req.action != nil {
				req.action.Apply(&state)
				s.publish(state)
			}
			if req.reply != nil {
				req.reply <- state.Clone()
			}
		}
	}
}

// publish hands the latest state to every subscriber. A subscriber that has
// not read the previous state gets it replaced.
func (s *Store) publish(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		snapshot := state.Clone()
		select {
		case ch <- snapshot:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (s *Store) submit(ctx context.Context, req request) error {
	select {
	case s.requests <- req:
		return nil
	case <-s.done:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch queues an action and returns once the store has accepted it.
func (s *Store) Dispatch(a Action) error {
	return s.submit(context.Background(), request{action: a})
}

// Update applies a and returns the resulting state.
func (s *Store) Update(ctx context.Context, a Action) (State, error) {
	reply := make(chan State, 1)
	if err := s.submit(ctx, request{action: a, reply: reply}); err != nil {
		return State{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-s.stopped:
		return State{}, ErrStoreClosed
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	st, err := s.Update(context.Background(), nil)
	if err != nil {
		return NewState()
	}
	return st
}

// Subscribe returns a channel that always holds the latest state after each
// change, and a function that ends the subscription.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}
}

// Close stops the store and closes every subscription.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.done) })
	<-s.stopped
}
