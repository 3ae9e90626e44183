package eventbus

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/eventbus/rpc"
)

type Channel string

const (
	// ClientMessages carries frames addressed to a single connection
	ClientMessages Channel = "client_messages"
	// RoomMessages carries frames fanned out to every connection of a room
	RoomMessages Channel = "room_messages"
)

func (c Channel) buildChannel(id string) string {
	return string(c) + ":" + id
}

type Publisher interface {
	PublishClient(connID core.ConnectionID, rpc rpc.Rpc) error
	PublishRoom(roomID core.RoomID, rpc rpc.Rpc) error
}

type Subscriber interface {
	SubscribeClient(connID core.ConnectionID) (*Subscription, error)
	SubscribeRoom(roomID core.RoomID) (*Subscription, error)
}

type Subscription struct {
	pubsub *redis.PubSub
}

func (s *Subscription) Channel() <-chan *redis.Message {
	return s.pubsub.Channel()
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

type Eventbus struct {
	rdb *redis.Client
}

// RedisPubSub is factory for building Eventbus based on redis pubsub
func RedisPubSub(rdb *redis.Client) *Eventbus {
	return &Eventbus{rdb: rdb}
}

func (e *Eventbus) PublishClient(connID core.ConnectionID, rpc rpc.Rpc) error {
	return e.publish(ClientMessages.buildChannel(string(connID)), rpc)
}

func (e *Eventbus) PublishRoom(roomID core.RoomID, rpc rpc.Rpc) error {
	return e.publish(RoomMessages.buildChannel(string(roomID)), rpc)
}

func (e *Eventbus) SubscribeClient(connID core.ConnectionID) (*Subscription, error) {
	return e.subscribe(ClientMessages.buildChannel(string(connID)))
}

func (e *Eventbus) SubscribeRoom(roomID core.RoomID) (*Subscription, error) {
	return e.subscribe(RoomMessages.buildChannel(string(roomID)))
}

func (e *Eventbus) publish(channel string, rpc rpc.Rpc) error {
	msg, err := rpc.ToJSON()
	if err != nil {
		return err
	}
	return e.rdb.Publish(context.Background(), channel, msg).Err()
}

func (e *Eventbus) subscribe(channel string) (*Subscription, error) {
	ctx := context.Background()
	pubsub := e.rdb.Subscribe(ctx, channel)
	// Wait until subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, err
	}

	return &Subscription{pubsub: pubsub}, nil
}
