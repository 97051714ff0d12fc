// Package store defines the persistence contracts of the clinic backend.
// The mongostore package backs them with MongoDB and memstore keeps
// everything in process.
package store

import (
	"context"
	"strings"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidSlot       = errors.New("invalid slot date")
	ErrSlotTaken         = errors.New("slot already booked")
	ErrDoctorUnavailable = errors.New("doctor not found or not available")
	ErrAlreadyPaid       = errors.New("order already paid")
)

// ParseID converts a hex string into an ObjectID, mapping failures to ErrInvalidID.
func ParseID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return bson.NilObjectID, errors.Wrapf(ErrInvalidID, "%q", id)
	}
	return oid, nil
}

// ValidSlotDate rejects dates that cannot be used as a document field name.
func ValidSlotDate(date string) bool {
	return date != "" && !strings.ContainsAny(date, ".$")
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id bson.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id bson.ObjectID, update models.UserProfileUpdate) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

type DoctorStore interface {
	CreateDoctor(ctx context.Context, doctor *models.Doctor) error
	GetDoctor(ctx context.Context, id bson.ObjectID) (*models.Doctor, error)
	GetDoctorByEmail(ctx context.Context, email string) (*models.Doctor, error)
	ListDoctors(ctx context.Context, onlyAvailable bool) ([]models.Doctor, error)
	SetAvailability(ctx context.Context, id bson.ObjectID, available bool) error
	UpdateDoctorProfile(ctx context.Context, id bson.ObjectID, update models.DoctorProfileUpdate) error
	CountDoctors(ctx context.Context) (int64, error)

	// ReserveSlot appends time to the ledger entry for date in one atomic step.
	// It fails with ErrSlotTaken when the time is already present and with
	// ErrDoctorUnavailable when the doctor is missing or not available.
	ReserveSlot(ctx context.Context, doctorID bson.ObjectID, date, time string) error
	// ReleaseSlot removes time from the ledger entry for date.
	ReleaseSlot(ctx context.Context, doctorID bson.ObjectID, date, time string) error
}

type AppointmentFilter struct {
	UserID      *bson.ObjectID
	DocID       *bson.ObjectID
	IDs         []bson.ObjectID
	NewestFirst bool
	Limit       int64
}

type AppointmentStore interface {
	CreateAppointment(ctx context.Context, appointment *models.Appointment) error
	GetAppointment(ctx context.Context, id bson.ObjectID) (*models.Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error)
	// MarkCancelled reports whether the appointment flipped from active to cancelled.
	MarkCancelled(ctx context.Context, id bson.ObjectID) (bool, error)
	MarkCompleted(ctx context.Context, id, doctorID bson.ObjectID) error
	// SetPaymentOrder records the gateway order opened for the appointment.
	SetPaymentOrder(ctx context.Context, id bson.ObjectID, orderID string) error
	MarkPaid(ctx context.Context, id bson.ObjectID, payment models.PaymentConfirmation) (*models.Appointment, error)
	CountAppointments(ctx context.Context) (int64, error)
}

type ChatFilter struct {
	PatientID *bson.ObjectID
	DoctorID  *bson.ObjectID
}

type ChatStore interface {
	// OpenChat returns the chat for the appointment, creating it from the
	// appointment participants when none exists. Concurrent callers observe
	// the same chat.
	OpenChat(ctx context.Context, appointment *models.Appointment) (*models.Chat, error)
	GetChatByAppointment(ctx context.Context, appointmentID bson.ObjectID) (*models.Chat, error)
	// AppendMessage pushes msg and updates lastMessage/lastMessageTime together.
	AppendMessage(ctx context.Context, appointmentID bson.ObjectID, msg models.Message) error
	ListChats(ctx context.Context, filter ChatFilter) ([]models.Chat, error)
}

type MedicineStore interface {
	CreateMedicine(ctx context.Context, medicine *models.Medicine) error
	GetMedicine(ctx context.Context, id bson.ObjectID) (*models.Medicine, error)
	GetMedicineByName(ctx context.Context, name string) (*models.Medicine, error)
	ListMedicines(ctx context.Context) ([]models.Medicine, error)
	UpdateMedicine(ctx context.Context, id bson.ObjectID, update models.MedicineUpdate) (*models.Medicine, error)
	AdjustStock(ctx context.Context, id bson.ObjectID, delta int) error
	DeleteMedicine(ctx context.Context, id bson.ObjectID) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id bson.ObjectID) (*models.Order, error)
	// ListOrders lists every order, or only the user's when userID is set.
	ListOrders(ctx context.Context, userID *bson.ObjectID) ([]models.Order, error)
	// ConfirmOrderPayment marks an unpaid order as paid and Confirmed.
	// An order that is already paid yields ErrAlreadyPaid.
	ConfirmOrderPayment(ctx context.Context, id bson.ObjectID, payment models.PaymentConfirmation) (*models.Order, error)
}

type Store interface {
	UserStore
	DoctorStore
	AppointmentStore
	ChatStore
	MedicineStore
	OrderStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
