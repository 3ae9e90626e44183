package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/eventbus/rpc"
)

func TestCreatePollDeniedForUser(t *testing.T) {
	d, bus, _ := newTestDispatcher(&stubStore{})
	join(t, d, "conn-user", "Bob", core.RoleUser, "meeting-1")

	err := d.CreatePoll("conn-user", rpc.CreatePollParams{
		RoomID:   "meeting-1",
		Question: "allowed?",
		Options:  []string{"yes", "no"},
		Duration: 10,
	})
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
	assert.Empty(t, bus.roomEvents("meeting-1", rpc.PollUpdateMethod))
}

func TestCreatePollFansOutSnapshot(t *testing.T) {
	d, bus, _ := newTestDispatcher(&stubStore{})
	join(t, d, "conn-host", "Alice", core.RoleHost, "meeting-1")

	require.NoError(t, d.CreatePoll("conn-host", rpc.CreatePollParams{
		RoomID:   "meeting-1",
		Question: "favorite color?",
		Options:  []string{"red", "blue"},
		Duration: 60,
	}))

	events := bus.roomEvents("meeting-1", rpc.PollUpdateMethod)
	require.Len(t, events, 1)
	poll := events[0].(*rpc.Event).Params.(core.Poll)
	assert.Equal(t, "favorite color?", poll.Question)
	assert.True(t, poll.IsActive)
	assert.Equal(t, 60, poll.TimeLeft)
	require.Len(t, poll.Options, 2)
	assert.Equal(t, "red", poll.Options[0].Text)
	assert.Zero(t, poll.Options[0].Votes)
}

func TestVotePoll(t *testing.T) {
	d, bus, _ := newTestDispatcher(&stubStore{})
	join(t, d, "conn-host", "Alice", core.RoleHost, "meeting-1")
	join(t, d, "conn-user", "Bob", core.RoleUser, "meeting-1")

	require.NoError(t, d.CreatePoll("conn-host", rpc.CreatePollParams{
		RoomID:   "meeting-1",
		Question: "q",
		Options:  []string{"a", "b"},
		Duration: 60,
	}))

	require.NoError(t, d.VotePoll("conn-user", rpc.VotePollParams{RoomID: "meeting-1", OptionIndex: 1}))

	event, ok := bus.lastRoomEvent("meeting-1", rpc.PollUpdateMethod)
	require.True(t, ok)
	poll := event.Params.(core.Poll)
	assert.Equal(t, 1, poll.Options[1].Votes)
	assert.Zero(t, poll.Options[0].Votes)
}

func TestVotePollIgnoresInvalidVotes(t *testing.T) {
	d, bus, _ := newTestDispatcher(&stubStore{})
	join(t, d, "conn-host", "Alice", core.RoleHost, "meeting-1")
	join(t, d, "conn-user", "Bob", core.RoleUser, "meeting-1")

	// no poll open yet
	require.NoError(t, d.VotePoll("conn-user", rpc.VotePollParams{RoomID: "meeting-1", OptionIndex: 0}))
	assert.Empty(t, bus.roomEvents("meeting-1", rpc.PollUpdateMethod))

	require.NoError(t, d.CreatePoll("conn-host", rpc.CreatePollParams{
		RoomID:   "meeting-1",
		Question: "q",
		Options:  []string{"a", "b"},
		Duration: 60,
	}))
	before := len(bus.roomEvents("meeting-1", rpc.PollUpdateMethod))

	require.NoError(t, d.VotePoll("conn-user", rpc.VotePollParams{RoomID: "meeting-1", OptionIndex: 2}))
	require.NoError(t, d.VotePoll("conn-user", rpc.VotePollParams{RoomID: "meeting-1", OptionIndex: -1}))

	assert.Len(t, bus.roomEvents("meeting-1", rpc.PollUpdateMethod), before)

	// unknown room is silent too
	require.NoError(t, d.VotePoll("conn-user", rpc.VotePollParams{RoomID: "nope", OptionIndex: 0}))
}

func TestPollCountdownExpiresAndArchives(t *testing.T) {
	store := &stubStore{}
	d, bus, _ := newTestDispatcher(store)
	join(t, d, "conn-host", "Alice", core.RoleHost, "meeting-1")
	join(t, d, "conn-user", "Bob", core.RoleUser, "meeting-1")

	require.NoError(t, d.CreatePoll("conn-host", rpc.CreatePollParams{
		RoomID:   "meeting-1",
		Question: "q",
		Options:  []string{"a", "b"},
		Duration: 3,
	}))
	require.NoError(t, d.VotePoll("conn-user", rpc.VotePollParams{RoomID: "meeting-1", OptionIndex: 0}))

	require.Eventually(t, func() bool {
		return len(bus.roomEvents("meeting-1", rpc.PollEndMethod)) == 1
	}, time.Second, 5*time.Millisecond)

	event, ok := bus.lastRoomEvent("meeting-1", rpc.PollEndMethod)
	require.True(t, ok)
	final := event.Params.(core.Poll)
	assert.False(t, final.IsActive)
	assert.Zero(t, final.TimeLeft)
	assert.Equal(t, 1, final.Options[0].Votes)

	timers := bus.roomEvents("meeting-1", rpc.PollTimerMethod)
	assert.Len(t, timers, 3)

	saved := store.savedPolls()
	require.Len(t, saved, 1)
	assert.False(t, saved[0].IsActive)

	// a closed poll rejects further votes silently
	before := len(bus.roomEvents("meeting-1", rpc.PollUpdateMethod))
	require.NoError(t, d.VotePoll("conn-user", rpc.VotePollParams{RoomID: "meeting-1", OptionIndex: 0}))
	assert.Len(t, bus.roomEvents("meeting-1", rpc.PollUpdateMethod), before)
}

func TestCreatePollSupersedesActivePoll(t *testing.T) {
	store := &stubStore{}
	d, bus, _ := newTestDispatcher(store)
	join(t, d, "conn-host", "Alice", core.RoleHost, "meeting-1")

	require.NoError(t, d.CreatePoll("conn-host", rpc.CreatePollParams{
		RoomID:   "meeting-1",
		Question: "first",
		Options:  []string{"a"},
		Duration: 600,
	}))
	require.NoError(t, d.CreatePoll("conn-host", rpc.CreatePollParams{
		RoomID:   "meeting-1",
		Question: "second",
		Options:  []string{"b"},
		Duration: 2,
	}))

	require.Eventually(t, func() bool {
		return len(bus.roomEvents("meeting-1", rpc.PollEndMethod)) >= 1
	}, time.Second, 5*time.Millisecond)

	// only the second poll ever closes; the superseded one is cancelled
	// without a terminal event
	ends := bus.roomEvents("meeting-1", rpc.PollEndMethod)
	require.Len(t, ends, 1)
	assert.Equal(t, "second", ends[0].(*rpc.Event).Params.(core.Poll).Question)

	saved := store.savedPolls()
	require.Len(t, saved, 1)
	assert.Equal(t, "second", saved[0].Question)
}
