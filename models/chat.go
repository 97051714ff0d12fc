package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type SenderModel string

const (
	SenderUser   SenderModel = "User"
	SenderDoctor SenderModel = "Doctor"
)

type Message struct {
	ID          bson.ObjectID `json:"_id" bson:"_id"`
	Sender      bson.ObjectID `json:"sender" bson:"sender"`
	SenderModel SenderModel   `json:"senderModel" bson:"senderModel"`
	Message     string        `json:"message" bson:"message"`
	Timestamp   time.Time     `json:"timestamp" bson:"timestamp"`
	IsRead      bool          `json:"isRead" bson:"isRead"`
}

type Chat struct {
	ID              bson.ObjectID `json:"_id" bson:"_id,omitempty"`
	AppointmentID   bson.ObjectID `json:"appointmentId" bson:"appointmentId"`
	DoctorID        bson.ObjectID `json:"doctorId" bson:"doctorId"`
	PatientID       bson.ObjectID `json:"patientId" bson:"patientId"`
	Messages        []Message     `json:"messages" bson:"messages"`
	LastMessage     string        `json:"lastMessage" bson:"lastMessage"`
	LastMessageTime time.Time     `json:"lastMessageTime" bson:"lastMessageTime"`
	CreatedAt       time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// HasParticipant checks the caller against the participants recorded on the chat.
func (c *Chat) HasParticipant(p Principal) bool {
	switch p.Role {
	case RoleUser:
		return c.PatientID.Hex() == p.ID
	case RoleDoctor:
		return c.DoctorID.Hex() == p.ID
	}
	return false
}

type AppointmentSummary struct {
	ID       bson.ObjectID `json:"_id"`
	SlotDate string        `json:"slotDate"`
	SlotTime string        `json:"slotTime"`
	DocData  DoctorProfile `json:"docData"`
	UserData UserProfile   `json:"userData"`
}

// InboxEntry is a chat with a summary of its appointment attached.
type InboxEntry struct {
	Chat
	Appointment *AppointmentSummary `json:"appointment,omitempty"`
}

// MessageEvent is what gets broadcast to a chat room after a message is stored.
type MessageEvent struct {
	AppointmentID string `json:"appointmentId"`
	Message
}
