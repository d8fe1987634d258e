package chat

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreGetCreatesOnFirstAccess(t *testing.T) {
	store := NewSessionStore()
	id := uuid.New()

	session := store.Get(id)
	require.NotNil(t, session)
	assert.Equal(t, id, session.ID())
	assert.Empty(t, session.History())
	assert.Equal(t, 1, store.Len())
}

func TestSessionStoreGetReturnsSameSession(t *testing.T) {
	store := NewSessionStore()
	id := uuid.New()

	first := store.Get(id)
	first.Append("q1", "a1")

	second := store.Get(id)
	assert.Same(t, first, second)
	assert.Len(t, second.History(), 1)
}

func TestSessionStoreDelete(t *testing.T) {
	store := NewSessionStore()
	id := uuid.New()
	store.Get(id)

	assert.True(t, store.Delete(id))
	assert.False(t, store.Delete(id))
	assert.Equal(t, 0, store.Len())
}

func TestSessionStoreDeleteThenGetStartsFresh(t *testing.T) {
	store := NewSessionStore()
	id := uuid.New()
	store.Get(id).Append("q1", "a1")

	require.True(t, store.Delete(id))

	// 同じIDで再アクセスすると履歴のない新しいセッションになる
	assert.Empty(t, store.Get(id).History())
}

func TestSessionHistoryReturnsCopy(t *testing.T) {
	session := newSession(uuid.New())
	session.Append("q1", "a1")

	history := session.History()
	history[0].Answer = "tampered"

	assert.Equal(t, "a1", session.History()[0].Answer)
}

func TestSessionHistoryPreservesOrder(t *testing.T) {
	session := newSession(uuid.New())
	session.Append("q1", "a1")
	session.Append("q2", "a2")
	session.Append("q3", "a3")

	history := session.History()
	require.Len(t, history, 3)
	assert.Equal(t, "q1", history[0].Question)
	assert.Equal(t, "q3", history[2].Question)
}

func TestSessionStoreConcurrentGet(t *testing.T) {
	store := NewSessionStore()
	id := uuid.New()

	const goroutines = 16
	sessions := make([]*Session, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = store.Get(id)
		}(i)
	}
	wg.Wait()

	// 全goroutineが同一のセッションを受け取る
	for i := 1; i < goroutines; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
	assert.Equal(t, 1, store.Len())
}

func TestSessionConcurrentAppend(t *testing.T) {
	session := newSession(uuid.New())

	const turns = 50
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session.BeginTurn()
			defer session.EndTurn()
			session.Append("q", "a")
		}()
	}
	wg.Wait()

	assert.Len(t, session.History(), turns)
}
