package viewstate

import (
	"context"
	"errors"
)

// Optimistic is a change shown before the backend confirms it.
//
// Apply runs on the store and returns the action that undoes it. Remote does
// the backend call outside the store. Reconcile, when set, folds the backend's
// answer back in. When Remote fails the undo runs and Alert(err) is shown.
type Optimistic[T any] struct {
	Apply     func(s *State) Action
	Remote    func(ctx context.Context) (T, error)
	Reconcile func(s *State, result T)
	Alert     func(err error) string
}

// Run executes the command against store.
func (o Optimistic[T]) Run(ctx context.Context, store *Store) (T, error) {
	var zero T
	if o.Remote == nil {
		return zero, errors.New("optimistic command has no remote call")
	}

	var undo Action
	if o.Apply != nil {
		if _, err := store.Update(ctx, Func(func(s *State) { undo = o.Apply(s) })); err != nil {
			return zero, err
		}
	}

	result, err := o.Remote(ctx)
	if err != nil {
		message := err.Error()
		if o.Alert != nil {
			message = o.Alert(err)
		}
		_, _ = store.Update(context.WithoutCancel(ctx), Func(func(s *State) {
			if undo != nil {
				undo.Apply(s)
			}
			s.Alert = message
		}))
		return zero, err
	}

	if o.Reconcile != nil {
		if _, err := store.Update(context.WithoutCancel(ctx), Func(func(s *State) { o.Reconcile(s, result) })); err != nil {
			return result, err
		}
	}
	return result, nil
}
