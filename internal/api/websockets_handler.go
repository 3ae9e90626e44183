package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/isqad/melody"
	"github.com/rs/zerolog/log"

	"github.com/lumilive/seminar/internal/coordinator"
	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/eventbus/rpc"
)

const (
	wsConnIDSessionKey = "connId"
	wsUserIDSessionKey = "userId"
)

// WebsocketsHandler upgrades the request. Each connection gets a fresh
// connection id; the authenticated user id rides along, empty for
// guests.
func WebsocketsHandler(websocket *melody.Melody) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := extractUserID(r)
		if err != nil {
			log.Error().Err(err).Str("service", "api").Msg("can't get the user from request context")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		sessKeys := make(map[string]interface{})
		sessKeys[wsConnIDSessionKey] = core.ConnectionID(uuid.NewString())
		sessKeys[wsUserIDSessionKey] = userID

		if err := websocket.HandleRequestWithKeys(w, r, sessKeys); err != nil {
			log.Error().Err(err).Str("service", "api").Msg("can't handle request")
		}
	}
}

func ConnectHandler(h *hub) func(session *melody.Session) {
	return func(session *melody.Session) {
		connID, err := connIDFromSession(session)
		if err != nil {
			log.Error().Err(err).Str("service", "api").Msg("extract connection id")
			closeWsSession(session)
			return
		}

		if err := h.register(connID, session); err != nil {
			log.Error().Err(err).Str("service", "api").Str("connID", string(connID)).Msg("subscribe client channel")
			closeWsSession(session)
		}
	}
}

func DisconnectHandler(h *hub, dispatcher *coordinator.Dispatcher) func(session *melody.Session) {
	return func(session *melody.Session) {
		connID, err := connIDFromSession(session)
		if err != nil {
			log.Error().Err(err).Str("service", "api").Msg("extract connection id")
			return
		}

		dispatcher.Disconnect(connID)
		h.drop(connID)
	}
}

func HandleMessage(dispatcher *coordinator.Dispatcher) func(s *melody.Session, msg []byte) {
	return func(s *melody.Session, msg []byte) {
		connID, err := connIDFromSession(s)
		if err != nil {
			log.Error().Err(err).Str("service", "api").Msg("extract connection id")
			closeWsSession(s)
			return
		}
		userID, err := userIDFromSession(s)
		if err != nil {
			log.Error().Err(err).Str("service", "api").Str("connID", string(connID)).Msg("extract user id")
			closeWsSession(s)
			return
		}

		request, err := rpc.FromReader(bytes.NewReader(msg))
		if err != nil {
			if errors.Is(err, rpc.ErrUnknownRpcType) {
				log.Warn().Str("service", "api").Str("connID", string(connID)).Msg("unknown rpc method")
				return
			}
			log.Error().Err(err).Str("service", "api").Str("connID", string(connID)).Msg("parse rpc")
			return
		}

		dispatcher.Handle(connID, userID, request)
	}
}

func connIDFromSession(s *melody.Session) (core.ConnectionID, error) {
	value, ok := s.Keys[wsConnIDSessionKey]
	if !ok {
		return "", fmt.Errorf("no connection id for given session: %+v", s)
	}
	connID, ok := value.(core.ConnectionID)
	if !ok {
		return "", fmt.Errorf("can't convert connection id: %+v", value)
	}
	return connID, nil
}

func userIDFromSession(s *melody.Session) (string, error) {
	value, ok := s.Keys[wsUserIDSessionKey]
	if !ok {
		return "", fmt.Errorf("no user id for given session: %+v", s)
	}
	userID, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("can't convert user id: %+v", value)
	}
	return userID, nil
}

func closeWsSession(s *melody.Session) {
	if err := s.Close(); err != nil {
		log.Error().Err(err).Str("service", "api").Msg("close websocket session")
	}
}
