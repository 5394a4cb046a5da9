package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrUnsupported is returned by a ShareTarget the device cannot use.
var ErrUnsupported = errors.New("share method not supported on this device")

// ShareTarget delivers a share card one way: a native share sheet, an app
// deep link, or a saved file.
type ShareTarget interface {
	Share(ctx context.Context, card *ShareCard, step ShareStep) error
}

// ShareTargetFunc adapts a function to ShareTarget.
type ShareTargetFunc func(ctx context.Context, card *ShareCard, step ShareStep) error

func (f ShareTargetFunc) Share(ctx context.Context, card *ShareCard, step ShareStep) error {
	return f(ctx, card, step)
}

// ShareOutcome reports which step delivered the card.
type ShareOutcome struct {
	Method       string
	Instructions string
	Path         string
	Skipped      []error
}

// FileTarget saves the card into Dir under the plan's file name.
type FileTarget struct {
	Dir string

	lastPath string
}

func (t *FileTarget) Share(_ context.Context, card *ShareCard, _ ShareStep) error {
	if len(card.Image) == 0 {
		return errors.New("share card has no image")
	}
	name := filepath.Base(card.Plan.FileName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "workit_post.png"
	}
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return fmt.Errorf("creating download dir: %w", err)
	}
	path := filepath.Join(t.Dir, name)
	if err := os.WriteFile(path, card.Image, 0o644); err != nil {
		return fmt.Errorf("saving share card: %w", err)
	}
	t.lastPath = path
	return nil
}

// ExecutePlan walks the plan's steps in order. A step with no target, or
// whose target fails, falls through to the next one.
func ExecutePlan(ctx context.Context, card *ShareCard, targets map[string]ShareTarget) (*ShareOutcome, error) {
	if card == nil {
		return nil, errors.New("nil share card")
	}
	out := &ShareOutcome{}
	for _, step := range card.Plan.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target, ok := targets[step.Method]
		if !ok || target == nil {
			out.Skipped = append(out.Skipped, fmt.Errorf("%s: %w", step.Method, ErrUnsupported))
			continue
		}
		if err := target.Share(ctx, card, step); err != nil {
			out.Skipped = append(out.Skipped, fmt.Errorf("%s: %w", step.Method, err))
			continue
		}
		out.Method = step.Method
		out.Instructions = step.Instructions
		if ft, ok := target.(*FileTarget); ok {
			out.Path = ft.lastPath
		}
		return out, nil
	}
	if len(out.Skipped) == 0 {
		return out, errors.New("share plan has no steps")
	}
	return out, fmt.Errorf("no share method succeeded: %w", errors.Join(out.Skipped...))
}
