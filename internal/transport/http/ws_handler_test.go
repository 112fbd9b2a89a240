package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timed-quiz/internal/app"
	"timed-quiz/internal/domain"
	"timed-quiz/internal/infra/memory"
)

func TestWebSocketQuizFlow(t *testing.T) {
	service := app.NewQuizService(memory.NewSessionStore(), memory.NewStaticQuestionLoader(sampleQuestions()), nil)
	defer service.Shutdown(context.Background())
	conn := dial(t, service)

	readUntil(t, conn, func(msg wsMessage) bool { return msg.Type == "session" })
	readUntil(t, conn, isPhase(domain.PhaseActive))

	send(t, conn, "select", map[string]any{"choice": "b"})
	readUntil(t, conn, func(msg wsMessage) bool {
		return msg.Type == "view" && msg.Payload.Question != nil && msg.Payload.Question.CanAdvance
	})
	send(t, conn, "advance", nil)
	readUntil(t, conn, func(msg wsMessage) bool {
		return msg.Type == "view" && msg.Payload.Question != nil && msg.Payload.Question.Number == 2
	})

	send(t, conn, "select", map[string]any{"choice": "A"})
	send(t, conn, "advance", nil)
	done := readUntil(t, conn, isPhase(domain.PhaseComplete))
	require.NotNil(t, done.Payload.Result)
	assert.Equal(t, app.ResultView{Score: 1, Total: 2, Percent: 50}, *done.Payload.Result)

	send(t, conn, "restart", nil)
	restarted := readUntil(t, conn, isPhase(domain.PhaseActive))
	assert.Equal(t, 1, restarted.Payload.Question.Number)
}

func TestWebSocketRejectsBadInput(t *testing.T) {
	service := app.NewQuizService(memory.NewSessionStore(), memory.NewStaticQuestionLoader(sampleQuestions()), nil)
	defer service.Shutdown(context.Background())
	conn := dial(t, service)

	readUntil(t, conn, isPhase(domain.PhaseActive))

	send(t, conn, "select", map[string]any{"choice": "E"})
	msg := readUntil(t, conn, func(msg wsMessage) bool { return msg.Type == "error" })
	assert.Equal(t, domain.ErrInvalidChoice.Error(), msg.Error.Message)

	send(t, conn, "reload", nil)
	msg = readUntil(t, conn, func(msg wsMessage) bool { return msg.Type == "error" })
	assert.Contains(t, msg.Error.Message, "reload")

	send(t, conn, "dance", nil)
	msg = readUntil(t, conn, func(msg wsMessage) bool { return msg.Type == "error" })
	assert.Equal(t, "unsupported message type", msg.Error.Message)
}

func TestWebSocketReloadAfterLoadFailure(t *testing.T) {
	var calls int32
	loader := loaderFunc(func(context.Context) ([]domain.Question, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, nil
		}
		return sampleQuestions(), nil
	})
	service := app.NewQuizService(memory.NewSessionStore(), loader, nil)
	defer service.Shutdown(context.Background())
	conn := dial(t, service)

	first := readUntil(t, conn, func(msg wsMessage) bool { return msg.Type == "session" })
	failed := readUntil(t, conn, isPhase(domain.PhaseError))
	assert.Equal(t, "no questions found", failed.Payload.Error.Message)

	send(t, conn, "reload", nil)
	second := readUntil(t, conn, func(msg wsMessage) bool { return msg.Type == "session" })
	assert.NotEqual(t, first.Session.SessionID, second.Session.SessionID)
	readUntil(t, conn, isPhase(domain.PhaseActive))

	_, err := service.View(context.Background(), first.Session.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type loaderFunc func(ctx context.Context) ([]domain.Question, error)

func (f loaderFunc) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	return f(ctx)
}

// wsMessage decodes every outbound payload shape.
type wsMessage struct {
	Type    string
	Payload app.View
	Session sessionPayload
	Error   errorPayload
}

func dial(t *testing.T, service *app.QuizService) *websocket.Conn {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(service, nil).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": typ, "payload": payload}))
}

func isPhase(phase domain.Phase) func(wsMessage) bool {
	return func(msg wsMessage) bool { return msg.Type == "view" && msg.Payload.Phase == phase }
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(wsMessage) bool) wsMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		var raw struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(deadline)
		require.NoError(t, conn.ReadJSON(&raw))

		msg := wsMessage{Type: raw.Type}
		switch raw.Type {
		case "view":
			require.NoError(t, json.Unmarshal(raw.Payload, &msg.Payload))
		case "session":
			require.NoError(t, json.Unmarshal(raw.Payload, &msg.Session))
		case "error":
			require.NoError(t, json.Unmarshal(raw.Payload, &msg.Error))
		}
		if match(msg) {
			return msg
		}
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Question: "What is 2 + 2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "6", CorrectAnswer: "B"},
		{Question: "Largest ocean?", OptionA: "Atlantic", OptionB: "Pacific", OptionC: "Indian", OptionD: "Arctic", CorrectAnswer: "B"},
	}
}
