package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/services"
	fws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

type stubTokens struct{}

func (stubTokens) VerifyJWT(ctx context.Context, token string) (models.Principal, error) {
	switch token {
	case "patient-token":
		return models.Principal{ID: "u1", Role: models.RoleUser}, nil
	case "admin-token":
		return models.Principal{ID: "admin@clinic.test", Role: models.RoleAdmin}, nil
	}
	return models.Principal{}, errors.New("invalid token")
}

type stubChat struct {
	broker  *LocalBroker
	allowed string
}

func (s *stubChat) Authorize(ctx context.Context, actor models.Principal, appointmentID string) error {
	if appointmentID != s.allowed {
		return services.ErrChatForbidden
	}
	return nil
}

func (s *stubChat) Send(ctx context.Context, actor models.Principal, appointmentID, text, transport string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.ErrEmptyMessage
	}
	msg := models.Message{
		ID:          bson.NewObjectID(),
		SenderModel: models.SenderUser,
		Message:     text,
		Timestamp:   time.Now().UTC(),
	}
	return &msg, s.broker.PublishMessage(ctx, models.MessageEvent{AppointmentID: appointmentID, Message: msg})
}

func newSocketApp(hub *Hub) *fiber.App {
	chat := &stubChat{broker: NewLocalBroker(hub), allowed: "appt-1"}
	handler := NewSocketHandler(hub, chat, stubTokens{}, zap.NewNop())
	app := fiber.New()
	app.Use("/ws", handler.Upgrade())
	app.Get("/ws", handler.Handle())
	return app
}

func TestSocketHandshake(t *testing.T) {
	app := newSocketApp(NewHub(zap.NewNop()))

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{name: "plain request", target: "/ws", status: fiber.StatusUpgradeRequired},
		{name: "missing token", target: "/ws", header: "upgrade", status: fiber.StatusUnauthorized},
		{name: "bad token", target: "/ws?token=forged", header: "upgrade", status: fiber.StatusUnauthorized},
		{name: "admin cannot chat", target: "/ws?token=admin-token", header: "upgrade", status: fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, tt.target, nil)
			if tt.header == "upgrade" {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
				req.Header.Set("Sec-WebSocket-Version", "13")
				req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func readEnvelope(t *testing.T, conn *fws.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestSocketJoinAndSend(t *testing.T) {
	hub := NewHub(zap.NewNop())
	app := newSocketApp(hub)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	conn, _, err := fws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws?token=patient-token", nil)
	require.NoError(t, err)
	defer conn.Close()

	// joining someone else's chat is refused
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": EventJoinChat, "data": "appt-9"}))
	env := readEnvelope(t, conn)
	assert.Equal(t, EventError, env.Event)
	assert.JSONEq(t, `{"message":"You are not authorized to access this chat."}`, string(env.Data))

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": EventJoinChat, "data": "appt-1"}))
	require.Eventually(t, func() bool { return hub.RoomSize("appt-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": EventSendMessage,
		"data":  map[string]string{"appointmentId": "appt-1", "message": "hello doctor"},
	}))
	env = readEnvelope(t, conn)
	require.Equal(t, EventNewMessage, env.Event)
	var event models.MessageEvent
	require.NoError(t, json.Unmarshal(env.Data, &event))
	assert.Equal(t, "appt-1", event.AppointmentID)
	assert.Equal(t, "hello doctor", event.Message.Message)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": EventSendMessage,
		"data":  map[string]string{"appointmentId": "appt-1", "message": "   "},
	}))
	env = readEnvelope(t, conn)
	assert.Equal(t, EventError, env.Event)
	assert.JSONEq(t, `{"message":"Message cannot be empty."}`, string(env.Data))

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": "dance", "data": nil}))
	env = readEnvelope(t, conn)
	assert.Equal(t, EventError, env.Event)

	conn.Close()
	require.Eventually(t, func() bool { return hub.RoomSize("appt-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
