package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"timed-quiz/internal/app"
	"timed-quiz/internal/domain"
)

const closeTimeout = 5 * time.Second

type WSHandler struct {
	service  *app.QuizService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Choice string `json:"choice"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// attachment is one quiz session bound to the connection.
type attachment struct {
	id        string
	cancel    func()
	forwarded chan struct{}
}

// ServeWS upgrades HTTP requests to websockets and runs one quiz session per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				// keep draining so producers never block on a dead socket
				failed = true
			}
		}
	}()

	current, err := h.attach(r.Context(), send, closeSignals)
	if err != nil {
		send <- errorMessage(err.Error())
	} else {
		h.readLoop(r.Context(), conn, send, closeSignals, &current)
	}

	close(closeSignals)
	if current != nil {
		h.detach(current)
	}
	close(send)
	<-writerDone
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, send chan<- outboundMessage[any], closeSignals <-chan struct{}, current **attachment) {
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		id := (*current).id
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid select payload")
				continue
			}
			choice, err := domain.ParseChoice(payload.Choice)
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			h.reply(send, h.service.Select(ctx, id, choice))
		case "advance":
			h.reply(send, h.service.Advance(ctx, id))
		case "restart":
			h.reply(send, h.service.Restart(ctx, id))
		case "reload":
			view, err := h.service.View(ctx, id)
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			if view.Phase != domain.PhaseError {
				send <- errorMessage("reload is only available after a load failure")
				continue
			}
			h.detach(*current)
			*current = nil
			next, err := h.attach(ctx, send, closeSignals)
			if err != nil {
				send <- errorMessage(err.Error())
				return
			}
			*current = next
		default:
			send <- errorMessage("unsupported message type")
		}
	}
}

// attach starts a fresh session and forwards its views to the socket.
func (h *WSHandler) attach(ctx context.Context, send chan<- outboundMessage[any], closeSignals <-chan struct{}) (*attachment, error) {
	id, err := h.service.StartSession(ctx)
	if err != nil {
		return nil, err
	}
	updates, cancel, err := h.service.Subscribe(ctx, id)
	if err != nil {
		return nil, err
	}
	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{SessionID: id}}

	a := &attachment{id: id, cancel: cancel, forwarded: make(chan struct{})}
	go func() {
		defer close(a.forwarded)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "view", Payload: view}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()
	return a, nil
}

func (h *WSHandler) detach(a *attachment) {
	a.cancel()
	<-a.forwarded
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := h.service.Close(ctx, a.id); err != nil {
		h.log.Warn("failed to close session", zap.String("session", a.id), zap.Error(err))
	}
}

func (h *WSHandler) reply(send chan<- outboundMessage[any], err error) {
	if err != nil {
		send <- errorMessage(err.Error())
	}
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
