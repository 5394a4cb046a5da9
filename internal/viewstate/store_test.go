package viewstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"workit/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st := NewStore(NewState())
	t.Cleanup(st.Close)
	return st
}

func loggedIn(t *testing.T, st *Store, id uint) {
	t.Helper()
	_, err := st.Update(context.Background(), LoggedIn{User: models.User{ID: id, Username: "alice"}})
	require.NoError(t, err)
}

func TestStore_AppliesInOrder(t *testing.T) {
	st := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.Dispatch(Func(func(s *State) { s.Stats.TotalProjects++ }))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, st.Snapshot().Stats.TotalProjects)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Update(context.Background(), ProjectsLoaded{Projects: []models.Project{
		{ID: 1, Features: []models.Feature{{Name: "Hero"}}},
	}})
	require.NoError(t, err)

	snap := st.Snapshot()
	snap.Projects[0].Features[0].Name = "changed"
	snap.Online[99] = true

	again := st.Snapshot()
	assert.Equal(t, "Hero", again.Projects[0].Features[0].Name)
	assert.False(t, again.Online[99])
}

func TestStore_SubscribeCoalesces(t *testing.T) {
	st := newTestStore(t)
	updates, cancel := st.Subscribe()
	defer cancel()

	for i := 1; i <= 5; i++ {
		n := i
		_, err := st.Update(context.Background(), Func(func(s *State) { s.Stats.TotalProjects = n }))
		require.NoError(t, err)
	}

	select {
	case latest := <-updates:
		assert.Equal(t, 5, latest.Stats.TotalProjects, "only the newest state is kept")
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}

	cancel()
	_, ok := <-updates
	assert.False(t, ok)
}

func TestStore_Close(t *testing.T) {
	st := NewStore(NewState())
	updates, _ := st.Subscribe()
	st.Close()
	st.Close()

	_, ok := <-updates
	assert.False(t, ok)
	assert.ErrorIs(t, st.Dispatch(AlertCleared{}), ErrStoreClosed)
	_, err := st.Update(context.Background(), AlertCleared{})
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestProjectRemoved_ClosesDetail(t *testing.T) {
	st := newTestStore(t)
	loggedIn(t, st, 1)
	_, err := st.Update(context.Background(), ProjectsLoaded{Projects: []models.Project{{ID: 1}, {ID: 2}}})
	require.NoError(t, err)
	_, err = st.Update(context.Background(), Navigate{Screen: ScreenProjectDetail, ProjectID: 2})
	require.NoError(t, err)

	got, err := st.Update(context.Background(), ProjectRemoved{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, ScreenProjectDetail, got.Screen, "another project's detail stays open")
	assert.Len(t, got.Projects, 1)

	got, err = st.Update(context.Background(), ProjectRemoved{ID: 2})
	require.NoError(t, err)
	assert.Equal(t, ScreenDashboard, got.Screen)
	assert.Zero(t, got.SelectedProject)
	assert.Empty(t, got.Projects)
}

func TestPushActions_Dedup(t *testing.T) {
	st := newTestStore(t)
	loggedIn(t, st, 1)

	post := models.PostView{ID: 10, Content: "hi"}
	_, _ = st.Update(context.Background(), PostAdded{Post: post})
	got, _ := st.Update(context.Background(), PostAdded{Post: post})
	assert.Len(t, got.Posts, 1)

	_, _ = st.Update(context.Background(), CommentsLoaded{PostID: 10})
	c := models.Comment{ID: 3, PostID: 10, Content: "yo"}
	_, _ = st.Update(context.Background(), CommentAdded{Comment: c})
	got, _ = st.Update(context.Background(), CommentAdded{Comment: c})
	assert.Len(t, got.Comments[10], 1)

	got, _ = st.Update(context.Background(), CommentAdded{Comment: models.Comment{ID: 4, PostID: 11}})
	_, loaded := got.Comments[11]
	assert.False(t, loaded, "threads that were never opened stay unloaded")

	_, _ = st.Update(context.Background(), ConversationOpened{PeerID: 2})
	msg := models.Message{ID: 5, SenderID: 2, ReceiverID: 1, Content: "hey"}
	_, _ = st.Update(context.Background(), MessageReceived{Message: msg})
	got, _ = st.Update(context.Background(), MessageReceived{Message: msg})
	assert.Len(t, got.Conversation.Messages, 1)

	got, _ = st.Update(context.Background(), MessageReceived{Message: models.Message{ID: 6, SenderID: 3, ReceiverID: 1}})
	assert.Equal(t, int64(1), got.Unread[3])
	assert.Len(t, got.Conversation.Messages, 1)

	got, _ = st.Update(context.Background(), MessageReceived{Message: models.Message{ID: 7, SenderID: 3, ReceiverID: 4}})
	assert.Equal(t, int64(1), got.Unread[3], "messages between other users are ignored")
}

func TestPostCountersUpdated_KeepsLocalLiked(t *testing.T) {
	st := newTestStore(t)
	loggedIn(t, st, 1)
	_, _ = st.Update(context.Background(), PostsLoaded{Posts: []models.PostView{{ID: 10, Likes: 5, Liked: true}}})

	got, _ := st.Update(context.Background(), PostCountersUpdated{Update: models.PostUpdatePayload{PostID: 10, Likes: 4, ActorID: 2}})
	assert.Equal(t, 4, got.Posts[0].Likes)
	assert.True(t, got.Posts[0].Liked, "another user's toggle does not touch our flag")

	got, _ = st.Update(context.Background(), PostCountersUpdated{Update: models.PostUpdatePayload{PostID: 10, Likes: 3, ActorID: 1, Liked: false}})
	assert.Equal(t, 3, got.Posts[0].Likes)
	assert.False(t, got.Posts[0].Liked)
}

func TestPresenceActions(t *testing.T) {
	st := newTestStore(t)
	_, _ = st.Update(context.Background(), OnlineSynced{UserIDs: []uint{3, 1}})
	_, _ = st.Update(context.Background(), PresenceChanged{UserID: 2, Online: true})
	got, _ := st.Update(context.Background(), PresenceChanged{UserID: 3})
	assert.Equal(t, []uint{1, 2}, got.OnlineIDs())
}

func TestExpenses_SurviveStatsReload(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	_, _ = st.Update(ctx, StatsLoaded{Stats: models.ComputeStats([]models.Project{
		{ID: 1, TotalAmount: decimal.NewFromInt(100), IsPaid: true},
	})})

	got, err := st.Update(ctx, ExpensesSet{Amount: decimal.NewFromInt(300)})
	require.NoError(t, err)
	assert.Equal(t, "-200", got.Stats.RemainingBalance.String())

	got, _ = st.Update(ctx, StatsLoaded{Stats: models.ComputeStats([]models.Project{
		{ID: 1, TotalAmount: decimal.NewFromInt(100), IsPaid: true},
		{ID: 2, TotalAmount: decimal.NewFromInt(400), IsPaid: true},
	})})
	assert.Equal(t, "300", got.Stats.Expenses.String())
	assert.Equal(t, "200", got.Stats.RemainingBalance.String())

	got, _ = st.Update(ctx, LoggedOut{})
	assert.True(t, got.Stats.Expenses.IsZero())
}

func TestOptimistic_ReconcileOnSuccess(t *testing.T) {
	st := newTestStore(t)
	_, _ = st.Update(context.Background(), PostsLoaded{Posts: []models.PostView{{ID: 10, Likes: 5}}})

	var duringRemote State
	cmd := Optimistic[models.LikeResult]{
		Apply: func(s *State) Action {
			prev := s.Posts[0]
			s.Posts[0].Likes++
			s.Posts[0].Liked = true
			return Func(func(s *State) { s.Posts[0] = prev })
		},
		Remote: func(context.Context) (models.LikeResult, error) {
			duringRemote = st.Snapshot()
			return models.LikeResult{PostID: 10, Likes: 7, Liked: true}, nil
		},
		Reconcile: func(s *State, r models.LikeResult) { LikeSettled{Result: r}.Apply(s) },
	}

	res, err := cmd.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Likes)
	assert.Equal(t, 6, duringRemote.Posts[0].Likes, "the change is visible before the backend answers")
	assert.Equal(t, 7, st.Snapshot().Posts[0].Likes)
}

func TestOptimistic_UndoOnFailure(t *testing.T) {
	st := newTestStore(t)
	_, _ = st.Update(context.Background(), PostsLoaded{Posts: []models.PostView{{ID: 10, Likes: 5}}})

	cmd := Optimistic[struct{}]{
		Apply: func(s *State) Action {
			prev := s.Posts[0]
			s.Posts[0].Likes++
			s.Posts[0].Liked = true
			return Func(func(s *State) { s.Posts[0] = prev })
		},
		Remote: func(context.Context) (struct{}, error) { return struct{}{}, errors.New("storage down") },
		Alert:  func(err error) string { return "Failed to like post: " + err.Error() },
	}

	_, err := cmd.Run(context.Background(), st)
	require.Error(t, err)
	got := st.Snapshot()
	assert.Equal(t, 5, got.Posts[0].Likes)
	assert.False(t, got.Posts[0].Liked)
	assert.Equal(t, "Failed to like post: storage down", got.Alert)
}
