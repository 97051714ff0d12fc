package handlers

import (
	"time"

	"github.com/VanitasCaesar1/clinic/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MessageHandler is the REST side of chat. Sends made here are broadcast to
// the appointment room like socket sends.
type MessageHandler struct {
	handlerBase
	chat *services.ChatService
}

func NewMessageHandler(chat *services.ChatService, logger *zap.Logger, timeout time.Duration) *MessageHandler {
	return &MessageHandler{
		handlerBase: newHandlerBase(logger, timeout),
		chat:        chat,
	}
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

func (h *MessageHandler) GetChatByAppointment(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	chat, err := h.chat.Open(ctx, actor, c.Params("appointmentId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "chat": chat})
}

func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	msg, err := h.chat.Send(ctx, actor, c.Params("appointmentId"), req.Message, services.TransportREST)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": msg})
}

func (h *MessageHandler) MyChats(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	chats, err := h.chat.Inbox(ctx, actor)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "chats": chats})
}
