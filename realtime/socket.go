package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/VanitasCaesar1/clinic/metrics"
	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/services"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	principalLocal    = "principal"
	defaultSendBuffer = 64
	eventTimeout      = 10 * time.Second
)

// TokenVerifier resolves a bearer token to the caller it was issued for.
type TokenVerifier interface {
	VerifyJWT(ctx context.Context, token string) (models.Principal, error)
}

// ChatGateway is the part of the chat service the socket drives.
type ChatGateway interface {
	Authorize(ctx context.Context, actor models.Principal, appointmentID string) error
	Send(ctx context.Context, actor models.Principal, appointmentID, text, transport string) (*models.Message, error)
}

type sendPayload struct {
	AppointmentID string `json:"appointmentId"`
	Message       string `json:"message"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// SocketHandler serves GET /ws. Upgrade authenticates the handshake and
// Handle runs the connection.
type SocketHandler struct {
	hub        *Hub
	chat       ChatGateway
	tokens     TokenVerifier
	logger     *zap.Logger
	sendBuffer int
}

func NewSocketHandler(hub *Hub, chat ChatGateway, tokens TokenVerifier, logger *zap.Logger) *SocketHandler {
	return &SocketHandler{
		hub:        hub,
		chat:       chat,
		tokens:     tokens,
		logger:     logger,
		sendBuffer: defaultSendBuffer,
	}
}

func handshakeToken(c *fiber.Ctx) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	auth := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// Upgrade rejects non-websocket requests and unauthenticated handshakes
// before any upgrade takes place.
func (h *SocketHandler) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
				"success": false,
				"message": "Websocket upgrade required",
			})
		}

		token := handshakeToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Authentication error",
			})
		}
		principal, err := h.tokens.VerifyJWT(c.UserContext(), token)
		if err != nil {
			h.logger.Debug("socket handshake rejected", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Authentication error",
			})
		}
		if _, ok := principal.SenderModel(); !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Only patients and doctors can use chat",
			})
		}

		c.Locals(principalLocal, principal)
		return c.Next()
	}
}

func (h *SocketHandler) Handle() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *SocketHandler) serve(conn *websocket.Conn) {
	principal, _ := conn.Locals(principalLocal).(models.Principal)
	client := NewClient(principal, h.sendBuffer)

	metrics.SocketConnections.Inc()
	defer metrics.SocketConnections.Dec()
	h.logger.Info("socket connected",
		zap.String("client_id", client.ID),
		zap.String("principal_id", principal.ID),
		zap.String("role", string(principal.Role)))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, client)
	}()
	defer func() {
		h.hub.Leave(client)
		client.Close()
		<-writerDone
		h.logger.Info("socket disconnected", zap.String("client_id", client.ID))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("socket read failed", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.sendError(client, "Invalid event format")
			continue
		}
		h.dispatch(client, env)
	}
}

func (h *SocketHandler) writeLoop(conn *websocket.Conn, client *Client) {
	for frame := range client.Frames() {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Warn("socket write failed", zap.String("client_id", client.ID), zap.Error(err))
			conn.Close()
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// dispatch handles one client event. Events of a connection are processed in
// the order they arrive.
func (h *SocketHandler) dispatch(client *Client, env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	switch env.Event {
	case EventJoinChat:
		var appointmentID string
		if err := json.Unmarshal(env.Data, &appointmentID); err != nil || appointmentID == "" {
			h.sendError(client, services.ErrInvalidAppointmentID.Message)
			return
		}
		if err := h.chat.Authorize(ctx, client.Principal, appointmentID); err != nil {
			h.sendError(client, clientMessage(err, "Failed to join chat"))
			return
		}
		h.hub.Join(appointmentID, client)

	case EventSendMessage:
		var payload sendPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(client, "Invalid message payload")
			return
		}
		if _, err := h.chat.Send(ctx, client.Principal, payload.AppointmentID, payload.Message, services.TransportSocket); err != nil {
			if services.KindOf(err) == services.KindInternal {
				h.logger.Error("socket send failed",
					zap.String("client_id", client.ID),
					zap.String("appointment_id", payload.AppointmentID),
					zap.Error(err))
			}
			h.sendError(client, clientMessage(err, "Failed to send message"))
		}

	default:
		h.sendError(client, "Unknown event: "+env.Event)
	}
}

func (h *SocketHandler) sendError(client *Client, message string) {
	frame, err := Encode(EventError, errorPayload{Message: message})
	if err != nil {
		return
	}
	if !client.Deliver(frame) {
		h.logger.Debug("error event not delivered", zap.String("client_id", client.ID))
	}
}

// clientMessage exposes caller-facing errors and hides internal ones.
func clientMessage(err error, fallback string) string {
	var svcErr *services.Error
	if errors.As(err, &svcErr) && svcErr.Kind != services.KindInternal {
		return svcErr.Message
	}
	return fallback
}
