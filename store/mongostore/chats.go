package mongostore

import (
	"context"
	"time"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/store"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func (s *Store) OpenChat(ctx context.Context, appointment *models.Appointment) (*models.Chat, error) {
	now := time.Now().UTC()
	filter := bson.M{"appointmentId": appointment.ID}
	update := bson.M{"$setOnInsert": bson.M{
		"appointmentId":   appointment.ID,
		"doctorId":        appointment.DocID,
		"patientId":       appointment.UserID,
		"messages":        bson.A{},
		"lastMessage":     "",
		"lastMessageTime": now,
		"createdAt":       now,
		"updatedAt":       now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var chat models.Chat
	err := s.chats.FindOneAndUpdate(ctx, filter, update, opts).Decode(&chat)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// Lost the upsert race against another opener; their chat is the one.
		err = s.chats.FindOne(ctx, filter).Decode(&chat)
	}
	if err != nil {
		return nil, mapErr(err, "failed to open chat")
	}
	return &chat, nil
}

func (s *Store) GetChatByAppointment(ctx context.Context, appointmentID bson.ObjectID) (*models.Chat, error) {
	var chat models.Chat
	if err := s.chats.FindOne(ctx, bson.M{"appointmentId": appointmentID}).Decode(&chat); err != nil {
		return nil, mapErr(err, "failed to find chat")
	}
	return &chat, nil
}

func (s *Store) AppendMessage(ctx context.Context, appointmentID bson.ObjectID, msg models.Message) error {
	res, err := s.chats.UpdateOne(ctx,
		bson.M{"appointmentId": appointmentID},
		bson.M{
			"$push": bson.M{"messages": msg},
			"$set": bson.M{
				"lastMessage":     msg.Message,
				"lastMessageTime": msg.Timestamp,
				"updatedAt":       msg.Timestamp,
			},
		},
	)
	if err != nil {
		return mapErr(err, "failed to append message")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(store.ErrNotFound, "chat not found")
	}
	return nil
}

func (s *Store) ListChats(ctx context.Context, filter store.ChatFilter) ([]models.Chat, error) {
	query := bson.M{}
	if filter.PatientID != nil {
		query["patientId"] = *filter.PatientID
	}
	if filter.DoctorID != nil {
		query["doctorId"] = *filter.DoctorID
	}
	chats, err := findAll[models.Chat](ctx, s.chats, query,
		options.Find().SetSort(bson.D{{Key: "lastMessageTime", Value: -1}}))
	if err != nil {
		return nil, mapErr(err, "failed to list chats")
	}
	return chats, nil
}
