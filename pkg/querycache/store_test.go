package querycache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type post struct {
	ID        string `json:"id"`
	LikeCount int    `json:"like_count"`
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ofType(t EventType) []Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Key
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev.Key)
		}
	}
	return out
}

func TestKeyHasPrefix(t *testing.T) {
	k := NewKey("notifications", "count", "guitar")
	assert.True(t, k.HasPrefix(NewKey("notifications")))
	assert.True(t, k.HasPrefix(NewKey("notifications", "count")))
	assert.True(t, k.HasPrefix(k))
	assert.False(t, k.HasPrefix(NewKey("posts")))
	assert.False(t, NewKey("posts").HasPrefix(NewKey("posts", "guitar")))
	assert.Equal(t, "[posts, guitar]", NewKey("posts", "guitar").String())
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	s := New()
	key := NewKey("post", "p1")
	require.NoError(t, s.Set(key, post{ID: "p1", LikeCount: 4}))

	var a post
	ok, err := s.Get(key, &a)
	require.NoError(t, err)
	require.True(t, ok)
	a.LikeCount = 99

	var b post
	_, err = s.Get(key, &b)
	require.NoError(t, err)
	assert.Equal(t, 4, b.LikeCount)

	ok, err = s.Get(NewKey("post", "missing"), &b)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidateRefetchesMatchingEntries(t *testing.T) {
	s := New()
	defer s.Close()
	rec := &recorder{}
	s.Subscribe(rec.record)

	calls := map[string]int{}
	var mu sync.Mutex
	s.Register(NewKey("post"), func(ctx context.Context, key Key) (interface{}, error) {
		mu.Lock()
		calls[key[1]]++
		mu.Unlock()
		return post{ID: key[1], LikeCount: 10}, nil
	})

	require.NoError(t, s.Set(NewKey("post", "p1"), post{ID: "p1", LikeCount: 1}))
	require.NoError(t, s.Set(NewKey("posts", "guitar"), []post{{ID: "p1"}}))

	s.Invalidate(NewKey("post", "p1"))
	s.Wait()

	var got post
	_, err := s.Get(NewKey("post", "p1"), &got)
	require.NoError(t, err)
	assert.Equal(t, 10, got.LikeCount)
	assert.False(t, s.IsStale(NewKey("post", "p1")))
	assert.Equal(t, 1, calls["p1"])

	assert.Equal(t, []Key{NewKey("post", "p1")}, rec.ofType(EventInvalidated))
	assert.Equal(t, []Key{NewKey("post", "p1")}, rec.ofType(EventFetched))
}

func TestInvalidateWithoutFetcherMarksStale(t *testing.T) {
	s := New()
	rec := &recorder{}
	s.Subscribe(rec.record)

	require.NoError(t, s.Set(NewKey("members", "guitar"), []string{"a"}))
	s.Invalidate(NewKey("members"))
	s.Invalidate(NewKey("videos", "guitar"))

	assert.True(t, s.IsStale(NewKey("members", "guitar")))
	assert.Equal(t, []Key{NewKey("members"), NewKey("videos", "guitar")}, rec.ofType(EventInvalidated))
}

func TestLongestPrefixRouting(t *testing.T) {
	s := New()
	defer s.Close()
	s.Register(NewKey("notifications"), func(ctx context.Context, key Key) (interface{}, error) {
		return "list", nil
	})
	s.Register(NewKey("notifications", "count"), func(ctx context.Context, key Key) (interface{}, error) {
		return 3, nil
	})

	require.NoError(t, s.Fetch(context.Background(), NewKey("notifications", "count", "guitar")))
	require.NoError(t, s.Fetch(context.Background(), NewKey("notifications", "guitar")))

	var n int
	_, err := s.Get(NewKey("notifications", "count", "guitar"), &n)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var list string
	_, err = s.Get(NewKey("notifications", "guitar"), &list)
	require.NoError(t, err)
	assert.Equal(t, "list", list)

	assert.Error(t, s.Fetch(context.Background(), NewKey("unknown")))
}

func TestCancelInFlightDiscardsLateResult(t *testing.T) {
	s := New()
	defer s.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	s.Register(NewKey("post"), func(ctx context.Context, key Key) (interface{}, error) {
		close(started)
		<-release
		return post{ID: "p1", LikeCount: 100}, nil
	})

	key := NewKey("post", "p1")
	require.NoError(t, s.Set(key, post{ID: "p1", LikeCount: 4}))
	s.Invalidate(key)
	<-started

	s.CancelInFlight(NewKey("post"))
	require.NoError(t, s.Set(key, post{ID: "p1", LikeCount: 5}))
	close(release)
	s.Wait()

	var got post
	_, err := s.Get(key, &got)
	require.NoError(t, err)
	assert.Equal(t, 5, got.LikeCount)
}

func TestFetchErrorKeepsValue(t *testing.T) {
	s := New()
	rec := &recorder{}
	s.Subscribe(rec.record)
	boom := errors.New("boom")
	s.Register(NewKey("post"), func(ctx context.Context, key Key) (interface{}, error) {
		return nil, boom
	})

	key := NewKey("post", "p1")
	require.NoError(t, s.Set(key, post{ID: "p1", LikeCount: 2}))
	assert.ErrorIs(t, s.Fetch(context.Background(), key), boom)

	var got post
	_, _ = s.Get(key, &got)
	assert.Equal(t, 2, got.LikeCount)
	assert.Equal(t, []Key{key}, rec.ofType(EventFetchFailed))
}

func TestRemoveDropsSubtree(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(NewKey("post", "p1"), post{ID: "p1"}))
	require.NoError(t, s.Set(NewKey("post", "p1", "attachments"), []string{}))
	require.NoError(t, s.Set(NewKey("post", "p2"), post{ID: "p2"}))

	s.Remove(NewKey("post", "p1"))

	assert.Equal(t, []Key{NewKey("post", "p2")}, s.Keys(NewKey("post")))
}

func TestAtomicallyRollsBackOnError(t *testing.T) {
	s := New()
	rec := &recorder{}
	require.NoError(t, s.Set(NewKey("post", "p1"), post{ID: "p1", LikeCount: 1}))
	before, _ := s.Raw(NewKey("post", "p1"))
	s.Subscribe(rec.record)

	errApply := errors.New("apply failed")
	err := s.Atomically(func(tx *Tx) error {
		_, err := Update(tx, NewKey("post", "p1"), func(p *post) { p.LikeCount = 50 })
		require.NoError(t, err)
		require.NoError(t, tx.Set(NewKey("post", "new"), post{ID: "new"}))
		return errApply
	})

	assert.ErrorIs(t, err, errApply)
	after, _ := s.Raw(NewKey("post", "p1"))
	assert.Equal(t, before, after)
	_, ok := s.Raw(NewKey("post", "new"))
	assert.False(t, ok)
	assert.Empty(t, rec.ofType(EventSet))
}

func TestUpdateSkipsAbsentKey(t *testing.T) {
	s := New()
	err := s.Atomically(func(tx *Tx) error {
		ok, err := Update(tx, NewKey("post", "nope"), func(p *post) { p.LikeCount++ })
		assert.False(t, ok)
		return err
	})
	require.NoError(t, err)
	assert.Empty(t, s.Keys(NewKey("post")))
}

func TestRestoreAbsentDeletesExactKey(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(NewKey("post", "p1"), post{ID: "p1"}))
	require.NoError(t, s.Set(NewKey("post", "p1", "extra"), 1))

	require.NoError(t, s.Atomically(func(tx *Tx) error {
		tx.Restore(NewKey("post", "p1"), nil, false)
		return nil
	}))

	assert.Equal(t, []Key{NewKey("post", "p1", "extra")}, s.Keys(NewKey("post")))
}

func TestObserverPanicIsContained(t *testing.T) {
	s := New()
	rec := &recorder{}
	s.Subscribe(func(Event) { panic("bad observer") })
	s.Subscribe(rec.record)

	require.NoError(t, s.Set(NewKey("a"), 1))
	assert.Len(t, rec.ofType(EventSet), 1)
}

func TestUnsubscribe(t *testing.T) {
	s := New()
	rec := &recorder{}
	unsub := s.Subscribe(rec.record)
	require.NoError(t, s.Set(NewKey("a"), 1))
	unsub()
	require.NoError(t, s.Set(NewKey("a"), 2))
	assert.Len(t, rec.ofType(EventSet), 1)
}
