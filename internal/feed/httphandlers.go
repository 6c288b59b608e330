package feed

import (
	"clinic-booking/internal/logging"
	"clinic-booking/internal/session"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/websocket"
)

const EventSubscribed = "SUBSCRIBED"

type subscribedMessage struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
}

type httpHandler struct {
	logger     *log.Logger
	authorizer session.Authorizer
	broker     *RedisBroker
}

// Setup setups the websocket route of the change feed.
func Setup(router *chi.Mux, logger *log.Logger, authorizer session.Authorizer, broker *RedisBroker) {
	handler := &httpHandler{logger: logger, authorizer: authorizer, broker: broker}

	// protected routes, patients and doctors
	router.Group(func(group chi.Router) {
		group.Use(session.Validator(authorizer))
		group.Get("/api/v1/feed", handler.Follow)
	})
}

// Follow upgrades the request to a websocket and relays the events of the caller's channel.
func (h httpHandler) Follow(w http.ResponseWriter, r *http.Request) {
	requestID := r.Context().Value(middleware.RequestIDKey)
	s, err := h.authorizer.GetAuthenticatedSession(r.Context())
	if err != nil {
		logging.PrintlnError(h.logger, fmt.Sprint(requestID, " ", err))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	channel, ok := ChannelFor(s)
	if !ok {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.relay(conn, r, channel)
	}).ServeHTTP(w, r)
}

func (h httpHandler) relay(conn *websocket.Conn, r *http.Request, channel string) {
	requestID := r.Context().Value(middleware.RequestIDKey)
	// the server read and write timeouts are left on the hijacked connection
	_ = conn.SetDeadline(time.Time{})
	sub, err := h.broker.Subscribe(r.Context(), channel)
	if err != nil {
		logging.PrintlnError(h.logger, fmt.Sprint(requestID, " ", err))
		return
	}
	defer func() {
		_ = sub.Close()
	}()
	if err = websocket.JSON.Send(conn, subscribedMessage{Event: EventSubscribed, Channel: channel}); err != nil {
		return
	}

	// inbound frames are ignored, reading only detects the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	messages := sub.Messages()
	for {
		select {
		case <-closed:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err = websocket.Message.Send(conn, msg.Payload); err != nil {
				logging.PrintlnWarn(h.logger, fmt.Sprint(requestID, " ", err))
				return
			}
		}
	}
}
