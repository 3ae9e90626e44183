package coordinator

import (
	"errors"
	"fmt"

	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/engine"
	"github.com/lumilive/seminar/internal/eventbus/rpc"
)

// Media session handlers. Engine calls never run under a room lock: the
// handlers validate under the lock, release it for the engine call and
// re-check the guarding condition before committing the result.

// RouterCapabilities returns the codec capabilities clients need before
// opening transports.
func (d *Dispatcher) RouterCapabilities(roomID core.RoomID) (engine.RTPCapabilities, error) {
	room, err := d.registry.Get(roomID)
	if err != nil {
		return engine.RTPCapabilities{}, err
	}

	router := room.Router()
	if router == nil {
		return engine.RTPCapabilities{}, fmt.Errorf("room %s has no router: %w", roomID, core.ErrEngineFailure)
	}
	return router.Capabilities(), nil
}

// CreateTransport allocates a transport owned by the connection. The
// transport deregisters itself from the room when it closes.
func (d *Dispatcher) CreateTransport(connID core.ConnectionID, roomID core.RoomID) (engine.TransportParams, error) {
	room, err := d.registry.Get(roomID)
	if err != nil {
		return engine.TransportParams{}, err
	}
	if _, ok := room.findParticipant(connID); !ok {
		return engine.TransportParams{}, fmt.Errorf("participant %s: %w", connID, core.ErrNotFound)
	}

	router := room.Router()
	if router == nil {
		return engine.TransportParams{}, fmt.Errorf("room %s has no router: %w", roomID, core.ErrEngineFailure)
	}

	transport, err := router.CreateTransport()
	if err != nil {
		return engine.TransportParams{}, fmt.Errorf("create transport: %v: %w", err, core.ErrEngineFailure)
	}

	room.mu.Lock()
	if _, ok := room.findParticipantLocked(connID); !ok {
		// owner left while the engine call ran
		room.mu.Unlock()
		transport.Close()
		return engine.TransportParams{}, fmt.Errorf("participant %s: %w", connID, core.ErrNotFound)
	}
	room.transports[transport.ID()] = transportEntry{transport: transport, owner: connID}
	room.mu.Unlock()

	transport.OnClose(func() {
		room.removeTransport(transport.ID())
	})

	return transport.Params(), nil
}

// ConnectTransport applies the client's offer and delivers the answer
// asynchronously on the connection's channel.
func (d *Dispatcher) ConnectTransport(connID core.ConnectionID, p rpc.TransportConnectParams) error {
	room, err := d.registry.Get(p.RoomID)
	if err != nil {
		return err
	}

	transport, ok := room.findTransport(p.TransportID)
	if !ok {
		return fmt.Errorf("transport %s: %w", p.TransportID, core.ErrNotFound)
	}

	answer, err := transport.Connect(p.DtlsParameters)
	if err != nil {
		return fmt.Errorf("connect transport %s: %v: %w", p.TransportID, err, core.ErrEngineFailure)
	}

	d.publishClient(connID, rpc.NewEvent(rpc.TransportAnswerMethod, rpc.TransportAnswerParams{
		TransportID:    p.TransportID,
		DtlsParameters: *answer,
	}))
	return nil
}

// Produce starts a media stream on the caller's transport. Audio
// requires the can-produce-audio capability; as the capability may be
// revoked during the engine call, it is re-checked before the producer
// is committed, and a stale producer is closed instead of registered.
func (d *Dispatcher) Produce(connID core.ConnectionID, p rpc.TransportProduceParams) (string, error) {
	room, err := d.registry.Get(p.RoomID)
	if err != nil {
		return "", err
	}

	room.mu.Lock()
	participant, ok := room.findParticipantLocked(connID)
	if !ok {
		room.mu.Unlock()
		return "", fmt.Errorf("participant %s: %w", connID, core.ErrNotFound)
	}
	if p.Kind == engine.KindAudio && !participant.CanProduceAudio {
		room.mu.Unlock()
		return "", fmt.Errorf("produce audio without grant: %w", core.ErrPermissionDenied)
	}
	entry, ok := room.transports[p.TransportID]
	if !ok {
		room.mu.Unlock()
		return "", fmt.Errorf("transport %s: %w", p.TransportID, core.ErrNotFound)
	}
	room.mu.Unlock()

	producer, err := entry.transport.Produce(p.Kind, p.RtpParameters)
	if err != nil {
		return "", fmt.Errorf("produce %s: %v: %w", p.Kind, err, core.ErrEngineFailure)
	}

	room.mu.Lock()
	participant, ok = room.findParticipantLocked(connID)
	if !ok || (p.Kind == engine.KindAudio && !participant.CanProduceAudio) {
		room.mu.Unlock()
		producer.Close()
		if !ok {
			return "", fmt.Errorf("participant %s: %w", connID, core.ErrNotFound)
		}
		return "", fmt.Errorf("produce audio without grant: %w", core.ErrPermissionDenied)
	}
	room.producers[producer.ID()] = producerEntry{producer: producer, owner: connID}
	others := make([]core.ConnectionID, 0, len(room.participants))
	for _, participant := range room.participants {
		if participant.ID != connID {
			others = append(others, participant.ID)
		}
	}
	room.mu.Unlock()

	producer.OnTransportClose(func() {
		room.removeProducer(producer.ID())
	})

	// the producing connection must not be told about its own stream
	announcement := rpc.NewEvent(rpc.NewProducerMethod, rpc.NewProducerParams{
		ProducerID:   producer.ID(),
		ConnectionID: connID,
	})
	for _, other := range others {
		d.publishClient(other, announcement)
	}

	return producer.ID(), nil
}

// Consume subscribes the caller's transport to a producer. The consumer
// starts paused; the client resumes it once its receiving side is
// ready.
func (d *Dispatcher) Consume(connID core.ConnectionID, p rpc.ConsumeParams) (rpc.ConsumerCreatedParams, error) {
	room, err := d.registry.Get(p.RoomID)
	if err != nil {
		return rpc.ConsumerCreatedParams{}, err
	}

	transport, ok := room.findTransport(p.TransportID)
	if !ok {
		return rpc.ConsumerCreatedParams{}, fmt.Errorf("transport %s: %w", p.TransportID, core.ErrNotFound)
	}

	router := room.Router()
	if router == nil {
		return rpc.ConsumerCreatedParams{}, fmt.Errorf("room %s has no router: %w", p.RoomID, core.ErrEngineFailure)
	}
	if !router.CanConsume(p.ProducerID, p.RtpCapabilities) {
		return rpc.ConsumerCreatedParams{}, fmt.Errorf("producer %s with offered capabilities: %w", p.ProducerID, core.ErrIncompatibleCapabilities)
	}

	consumer, err := transport.Consume(p.ProducerID, p.RtpCapabilities)
	if err != nil {
		if errors.Is(err, engine.ErrProducerNotFound) {
			return rpc.ConsumerCreatedParams{}, fmt.Errorf("producer %s: %w", p.ProducerID, core.ErrNotFound)
		}
		return rpc.ConsumerCreatedParams{}, fmt.Errorf("consume producer %s: %v: %w", p.ProducerID, err, core.ErrEngineFailure)
	}

	room.mu.Lock()
	room.consumers[consumer.ID()] = consumerEntry{consumer: consumer, owner: connID}
	room.mu.Unlock()

	consumer.OnTransportClose(func() {
		room.removeConsumer(consumer.ID())
	})
	consumer.OnProducerClose(func() {
		room.removeConsumer(consumer.ID())
		d.publishClient(connID, rpc.NewEvent(rpc.ConsumerClosedMethod, rpc.ConsumerClosedParams{ConsumerID: consumer.ID()}))
	})

	return rpc.ConsumerCreatedParams{
		ID:            consumer.ID(),
		ProducerID:    consumer.ProducerID(),
		Kind:          consumer.Kind(),
		RtpParameters: consumer.RTPParameters(),
	}, nil
}

// ResumeConsumer starts delivery on a paused consumer.
func (d *Dispatcher) ResumeConsumer(connID core.ConnectionID, p rpc.ConsumerResumeParams) error {
	room, err := d.registry.Get(p.RoomID)
	if err != nil {
		return err
	}

	consumer, ok := room.findConsumer(p.ConsumerID)
	if !ok {
		return fmt.Errorf("consumer %s: %w", p.ConsumerID, core.ErrNotFound)
	}
	if err := consumer.Resume(); err != nil {
		return fmt.Errorf("resume consumer %s: %v: %w", p.ConsumerID, err, core.ErrEngineFailure)
	}
	return nil
}
