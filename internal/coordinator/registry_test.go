package coordinator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumilive/seminar/internal/core"
)

func TestRegistryGetOrCreateSingleFlight(t *testing.T) {
	eng := newStubEngine()
	registry := NewRegistry(&stubStore{}, eng)

	const callers = 16
	rooms := make([]*Room, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = registry.GetOrCreate("meeting-1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, rooms[0], rooms[i])
	}
	assert.Equal(t, 1, eng.routerCalls)
}

func TestRegistryGetUnknownRoom(t *testing.T) {
	registry := NewRegistry(&stubStore{}, newStubEngine())

	_, err := registry.Get("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegistrySeedsMeetingRecord(t *testing.T) {
	store := &stubStore{
		meeting: &core.Meeting{
			ID:      "meeting-1",
			CoHosts: []string{"user-2"},
			Broadcasts: []core.ChatBroadcast{
				{Name: "Alice", Message: "welcome back"},
			},
		},
	}
	registry := NewRegistry(store, newStubEngine())

	room := registry.GetOrCreate("meeting-1")

	history := room.History()
	require.Len(t, history, 1)
	assert.Equal(t, "welcome back", history[0].Message)
	assert.True(t, room.isPersistedCoHost("user-2"))
	assert.False(t, room.isPersistedCoHost("user-9"))
	require.NotNil(t, room.Router())
}

func TestRegistrySeedsWithoutMeetingRecord(t *testing.T) {
	registry := NewRegistry(&stubStore{}, newStubEngine())

	room := registry.GetOrCreate("ad-hoc")

	assert.Empty(t, room.History())
	assert.False(t, room.isPersistedCoHost("anyone"))
}

func TestRegistryRemoveClosesRouter(t *testing.T) {
	eng := newStubEngine()
	registry := NewRegistry(&stubStore{}, eng)

	registry.GetOrCreate("meeting-1")
	registry.Remove("meeting-1")

	_, err := registry.Get("meeting-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.True(t, eng.routers["meeting-1"].closed)

	// unknown ids are a no-op
	registry.Remove("meeting-1")
}

func TestRegistryRooms(t *testing.T) {
	registry := NewRegistry(&stubStore{}, newStubEngine())

	registry.GetOrCreate("a")
	registry.GetOrCreate("b")

	assert.Len(t, registry.Rooms(), 2)
}
