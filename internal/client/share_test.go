package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockShareTarget struct {
	mock.Mock
}

func (m *mockShareTarget) Share(ctx context.Context, card *ShareCard, step ShareStep) error {
	args := m.Called(ctx, card, step)
	return args.Error(0)
}

func TestExecutePlan_StopsAtFirstSuccess(t *testing.T) {
	ctx := context.Background()
	card := &ShareCard{
		Plan: SharePlan{Steps: []ShareStep{
			{Method: MethodNativeShare},
			{Method: MethodDeepLink, URL: "instagram-stories://share"},
			{Method: MethodDownload, Instructions: "Open Instagram"},
		}},
		Image: []byte("\x89PNG"),
	}

	native := new(mockShareTarget)
	native.On("Share", ctx, card, card.Plan.Steps[0]).Return(nil).Once()
	download := new(mockShareTarget)

	out, err := ExecutePlan(ctx, card, map[string]ShareTarget{
		MethodNativeShare: native,
		MethodDownload:    download,
	})
	require.NoError(t, err)
	assert.Equal(t, MethodNativeShare, out.Method)
	assert.Empty(t, out.Skipped)
	assert.Empty(t, out.Path)

	native.AssertExpectations(t)
	download.AssertNotCalled(t, "Share", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutePlan_PassesStepToTarget(t *testing.T) {
	ctx := context.Background()
	card := &ShareCard{Plan: SharePlan{Steps: []ShareStep{
		{Method: MethodDeepLink, URL: "intent://share#Intent;package=com.instagram.android;end"},
	}}}

	link := new(mockShareTarget)
	link.On("Share", ctx, card, mock.MatchedBy(func(s ShareStep) bool {
		return s.URL == "intent://share#Intent;package=com.instagram.android;end"
	})).Return(nil)

	out, err := ExecutePlan(ctx, card, map[string]ShareTarget{MethodDeepLink: link})
	require.NoError(t, err)
	assert.Equal(t, MethodDeepLink, out.Method)
	link.AssertExpectations(t)
}

func TestExecutePlan_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := new(mockShareTarget)
	card := &ShareCard{Plan: SharePlan{Steps: []ShareStep{{Method: MethodDownload}}}}
	_, err := ExecutePlan(ctx, card, map[string]ShareTarget{MethodDownload: target})
	assert.ErrorIs(t, err, context.Canceled)
	target.AssertNotCalled(t, "Share", mock.Anything, mock.Anything, mock.Anything)
}
