package coordinator

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/eventbus/rpc"
)

// poll wraps the wire-visible poll state with its countdown task. The
// stop channel is closed exactly once, either by expiry or by the poll
// being superseded.
type poll struct {
	core.Poll

	stop chan struct{}
	once sync.Once
}

func newPoll(id, question string, options []string, duration int) *poll {
	opts := make([]core.PollOption, 0, len(options))
	for _, text := range options {
		opts = append(opts, core.PollOption{Text: text})
	}

	return &poll{
		Poll: core.Poll{
			ID:       id,
			Question: question,
			Options:  opts,
			IsActive: true,
			Duration: duration,
			TimeLeft: duration,
		},
		stop: make(chan struct{}),
	}
}

func (p *poll) cancel() {
	p.once.Do(func() {
		close(p.stop)
	})
}

// snapshotLocked copies the poll state for publishing outside the room
// lock. Callers must hold the owning room's mutex.
func (p *poll) snapshotLocked() core.Poll {
	snapshot := p.Poll
	snapshot.Options = make([]core.PollOption, len(p.Options))
	copy(snapshot.Options, p.Options)
	return snapshot
}

// runPollTimer drives the countdown of one poll: every tick decrements
// the remaining time and broadcasts it; at zero the poll closes, a
// terminal poll-end is fanned out and the result is archived
// best-effort. The task exits when its poll is superseded or cancelled.
func (d *Dispatcher) runPollTimer(room *Room, p *poll) {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			room.mu.Lock()
			if room.activePoll != p {
				// superseded between tick delivery and lock acquisition
				room.mu.Unlock()
				return
			}

			if p.TimeLeft > 0 {
				p.TimeLeft--
				timeLeft := p.TimeLeft
				room.mu.Unlock()

				d.publishRoom(room.ID, rpc.NewEvent(rpc.PollTimerMethod, rpc.PollTimerParams{TimeLeft: timeLeft}))
				continue
			}

			p.IsActive = false
			snapshot := p.snapshotLocked()
			room.mu.Unlock()

			p.cancel()
			d.publishRoom(room.ID, rpc.NewEvent(rpc.PollEndMethod, snapshot))

			if err := d.store.SavePollResult(room.ID, &snapshot); err != nil {
				log.Error().Err(err).Str("service", "coordinator").Str("roomID", string(room.ID)).Str("pollID", snapshot.ID).Msg("archive poll result")
			}
			return
		}
	}
}
