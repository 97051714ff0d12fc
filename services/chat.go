package services

import (
	"context"
	"strings"
	"time"

	"github.com/VanitasCaesar1/clinic/metrics"
	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/store"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// Ingress transports, used as a metrics label.
const (
	TransportREST   = "rest"
	TransportSocket = "socket"
)

// MessagePublisher fans a stored message out to everyone joined to its room.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, event models.MessageEvent) error
}

// ChatService owns per-appointment chat threads. Send is the only write path
// for messages and always publishes what it stored, whichever transport
// delivered the message.
type ChatService struct {
	store     store.Store
	publisher MessagePublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewChatService(st store.Store, publisher MessagePublisher, logger *zap.Logger) *ChatService {
	return &ChatService{
		store:     st,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *ChatService) participantAppointment(ctx context.Context, actor models.Principal, appointmentID string) (*models.Appointment, error) {
	id, err := parseID(appointmentID, ErrInvalidAppointmentID.Message)
	if err != nil {
		return nil, err
	}
	appointment, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("Appointment not found.")
		}
		return nil, err
	}
	if !appointment.HasParticipant(actor) {
		return nil, ErrChatForbidden
	}
	return appointment, nil
}

// Open returns the appointment's chat, creating an empty one on first access.
func (s *ChatService) Open(ctx context.Context, actor models.Principal, appointmentID string) (*models.Chat, error) {
	appointment, err := s.participantAppointment(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}
	return s.store.OpenChat(ctx, appointment)
}

// Authorize checks that actor may follow the appointment's chat room.
func (s *ChatService) Authorize(ctx context.Context, actor models.Principal, appointmentID string) error {
	_, err := s.participantAppointment(ctx, actor, appointmentID)
	return err
}

// Send appends a message from actor and publishes it to the room.
func (s *ChatService) Send(ctx context.Context, actor models.Principal, appointmentID, text, transport string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	id, err := parseID(appointmentID, ErrInvalidAppointmentID.Message)
	if err != nil {
		return nil, err
	}
	senderModel, ok := actor.SenderModel()
	if !ok {
		return nil, ErrSendForbidden
	}
	sender, err := store.ParseID(actor.ID)
	if err != nil {
		return nil, ErrSendForbidden
	}

	chat, err := s.store.GetChatByAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if !chat.HasParticipant(actor) {
		return nil, ErrSendForbidden
	}

	msg := models.Message{
		ID:          bson.NewObjectID(),
		Sender:      sender,
		SenderModel: senderModel,
		Message:     text,
		// Mongo keeps milliseconds; truncate so stored and returned values match.
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.store.AppendMessage(ctx, id, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues(transport).Inc()

	event := models.MessageEvent{AppointmentID: appointmentID, Message: msg}
	if err := s.publisher.PublishMessage(ctx, event); err != nil {
		metrics.BroadcastFailures.Inc()
		s.logger.Warn("failed to publish chat message",
			zap.String("appointment_id", appointmentID),
			zap.String("message_id", msg.ID.Hex()),
			zap.Error(err))
	}

	return &msg, nil
}

// Inbox lists the caller's chats, most recently active first, with a summary
// of each appointment.
func (s *ChatService) Inbox(ctx context.Context, actor models.Principal) ([]models.InboxEntry, error) {
	id, err := store.ParseID(actor.ID)
	if err != nil {
		return nil, Unauthorized("Not Authorized Login Again")
	}

	var filter store.ChatFilter
	switch actor.Role {
	case models.RoleUser:
		filter.PatientID = &id
	case models.RoleDoctor:
		filter.DoctorID = &id
	default:
		return nil, ErrChatForbidden
	}

	chats, err := s.store.ListChats(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return []models.InboxEntry{}, nil
	}

	ids := make([]bson.ObjectID, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.AppointmentID)
	}
	appointments, err := s.store.ListAppointments(ctx, store.AppointmentFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	byID := make(map[bson.ObjectID]*models.AppointmentSummary, len(appointments))
	for _, a := range appointments {
		byID[a.ID] = &models.AppointmentSummary{
			ID:       a.ID,
			SlotDate: a.SlotDate,
			SlotTime: a.SlotTime,
			DocData:  a.DocData,
			UserData: a.UserData,
		}
	}

	entries := make([]models.InboxEntry, 0, len(chats))
	for _, c := range chats {
		entries = append(entries, models.InboxEntry{Chat: c, Appointment: byID[c.AppointmentID]})
	}
	return entries, nil
}
