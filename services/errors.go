package services

import (
	"github.com/VanitasCaesar1/clinic/store"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Kind classifies a failure for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindPayment
)

// Error is a failure whose Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error   { return &Error{Kind: KindValidation, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) *Error    { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }

var (
	ErrSlotAlreadyBooked = Conflict("Slot already booked")
	ErrDoctorUnavailable = Validation("Doctor not found or not available")
	ErrInvalidSlotDate   = Validation("Invalid slot date")
	ErrUserNotFound      = NotFound("User not found")
	ErrDoctorNotFound    = NotFound("Doctor not found")
	ErrAppointmentAbsent = NotFound("Appointment not found")
	ErrInvalidSignature  = &Error{Kind: KindPayment, Message: "Invalid payment signature"}
	ErrInvalidCredential = Unauthorized("Invalid email or password")

	ErrInvalidAppointmentID = Validation("Invalid Appointment ID.")
	ErrEmptyMessage         = Validation("Message cannot be empty.")
	ErrChatNotFound         = NotFound("Chat not found. Please access the chat through the appointment first.")
	ErrChatForbidden        = Forbidden("You are not authorized to access this chat.")
	ErrSendForbidden        = Forbidden("You cannot send messages in this chat.")
)

// KindOf returns the classification of err, KindInternal when it has none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, store.ErrInvalidID), errors.Is(err, store.ErrInvalidSlot), errors.Is(err, store.ErrDuplicate):
		return KindValidation
	}
	return KindInternal
}

// parseID wraps store.ParseID with a caller facing message.
func parseID(id, msg string) (bson.ObjectID, error) {
	oid, err := store.ParseID(id)
	if err != nil {
		return bson.NilObjectID, &Error{Kind: KindValidation, Message: msg, Err: err}
	}
	return oid, nil
}
