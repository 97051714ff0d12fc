// Package memstore is an in-process store.Store. Every collection lives behind
// one mutex, which gives the same single-document atomicity the Mongo store
// gets from conditional updates.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/store"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type Store struct {
	mu           sync.Mutex
	users        map[bson.ObjectID]models.User
	doctors      map[bson.ObjectID]models.Doctor
	appointments map[bson.ObjectID]models.Appointment
	chats        map[bson.ObjectID]models.Chat // keyed by appointment id
	medicines    map[bson.ObjectID]models.Medicine
	orders       map[bson.ObjectID]models.Order
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:        make(map[bson.ObjectID]models.User),
		doctors:      make(map[bson.ObjectID]models.Doctor),
		appointments: make(map[bson.ObjectID]models.Appointment),
		chats:        make(map[bson.ObjectID]models.Chat),
		medicines:    make(map[bson.ObjectID]models.Medicine),
		orders:       make(map[bson.ObjectID]models.Order),
	}
}

func (s *Store) Ping(ctx context.Context) error  { return ctx.Err() }
func (s *Store) Close(ctx context.Context) error { return nil }

func notFound(what string) error {
	return errors.Wrap(store.ErrNotFound, what+" not found")
}

func copyLedger(l models.SlotLedger) models.SlotLedger {
	out := make(models.SlotLedger, len(l))
	for date, times := range l {
		out[date] = append([]string(nil), times...)
	}
	return out
}

func copyDoctor(d models.Doctor) *models.Doctor {
	d.SlotsBooked = copyLedger(d.SlotsBooked)
	return &d
}

func copyChat(c models.Chat) *models.Chat {
	c.Messages = append([]models.Message{}, c.Messages...)
	return &c
}

// Users

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return errors.Wrap(store.ErrDuplicate, "user email")
		}
	}
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, notFound("user")
}

func (s *Store) UpdateUserProfile(ctx context.Context, id bson.ObjectID, update models.UserProfileUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user")
	}
	u.Name = update.Name
	u.Phone = update.Phone
	u.Address = update.Address
	u.Gender = update.Gender
	u.DOB = update.DOB
	if update.Image != "" {
		u.Image = update.Image
	}
	s.users[id] = u
	return &u, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

// Doctors

func (s *Store) CreateDoctor(ctx context.Context, doctor *models.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.doctors {
		if d.Email == doctor.Email {
			return errors.Wrap(store.ErrDuplicate, "doctor email")
		}
	}
	if doctor.ID.IsZero() {
		doctor.ID = bson.NewObjectID()
	}
	if doctor.SlotsBooked == nil {
		doctor.SlotsBooked = models.SlotLedger{}
	}
	s.doctors[doctor.ID] = *copyDoctor(*doctor)
	return nil
}

func (s *Store) GetDoctor(ctx context.Context, id bson.ObjectID) (*models.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doctors[id]
	if !ok {
		return nil, notFound("doctor")
	}
	return copyDoctor(d), nil
}

func (s *Store) GetDoctorByEmail(ctx context.Context, email string) (*models.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.doctors {
		if d.Email == email {
			return copyDoctor(d), nil
		}
	}
	return nil, notFound("doctor")
}

func (s *Store) ListDoctors(ctx context.Context, onlyAvailable bool) ([]models.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Doctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		if onlyAvailable && !d.Available {
			continue
		}
		out = append(out, *copyDoctor(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (s *Store) SetAvailability(ctx context.Context, id bson.ObjectID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doctors[id]
	if !ok {
		return notFound("doctor")
	}
	d.Available = available
	s.doctors[id] = d
	return nil
}

func (s *Store) UpdateDoctorProfile(ctx context.Context, id bson.ObjectID, update models.DoctorProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doctors[id]
	if !ok {
		return notFound("doctor")
	}
	d.Fees = update.Fees
	d.Address = update.Address
	d.Available = update.Available
	s.doctors[id] = d
	return nil
}

func (s *Store) CountDoctors(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.doctors)), nil
}

func (s *Store) ReserveSlot(ctx context.Context, doctorID bson.ObjectID, date, time string) error {
	if !store.ValidSlotDate(date) {
		return errors.Wrapf(store.ErrInvalidSlot, "%q", date)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doctors[doctorID]
	if !ok || !d.Available {
		return store.ErrDoctorUnavailable
	}
	if d.SlotsBooked.Has(date, time) {
		return store.ErrSlotTaken
	}
	d.SlotsBooked = copyLedger(d.SlotsBooked)
	d.SlotsBooked[date] = append(d.SlotsBooked[date], time)
	s.doctors[doctorID] = d
	return nil
}

func (s *Store) ReleaseSlot(ctx context.Context, doctorID bson.ObjectID, date, time string) error {
	if !store.ValidSlotDate(date) {
		return errors.Wrapf(store.ErrInvalidSlot, "%q", date)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doctors[doctorID]
	if !ok {
		return notFound("doctor")
	}
	d.SlotsBooked = copyLedger(d.SlotsBooked)
	kept := make([]string, 0, len(d.SlotsBooked[date]))
	for _, t := range d.SlotsBooked[date] {
		if t != time {
			kept = append(kept, t)
		}
	}
	d.SlotsBooked[date] = kept
	s.doctors[doctorID] = d
	return nil
}

// Appointments

func (s *Store) CreateAppointment(ctx context.Context, appointment *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appointment.ID.IsZero() {
		appointment.ID = bson.NewObjectID()
	}
	s.appointments[appointment.ID] = *appointment
	return nil
}

func (s *Store) GetAppointment(ctx context.Context, id bson.ObjectID) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, notFound("appointment")
	}
	return &a, nil
}

func (s *Store) ListAppointments(ctx context.Context, filter store.AppointmentFilter) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids map[bson.ObjectID]bool
	if filter.IDs != nil {
		ids = make(map[bson.ObjectID]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}

	out := make([]models.Appointment, 0)
	for _, a := range s.appointments {
		if filter.UserID != nil && a.UserID != *filter.UserID {
			continue
		}
		if filter.DocID != nil && a.DocID != *filter.DocID {
			continue
		}
		if ids != nil && !ids[a.ID] {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date == out[j].Date {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		if filter.NewestFirst {
			return out[i].Date > out[j].Date
		}
		return out[i].Date < out[j].Date
	})
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) MarkCancelled(ctx context.Context, id bson.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok || a.Cancelled {
		return false, nil
	}
	a.Cancelled = true
	s.appointments[id] = a
	return true, nil
}

func (s *Store) MarkCompleted(ctx context.Context, id, doctorID bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok || a.DocID != doctorID {
		return notFound("appointment")
	}
	a.IsCompleted = true
	s.appointments[id] = a
	return nil
}

func (s *Store) SetPaymentOrder(ctx context.Context, id bson.ObjectID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return notFound("appointment")
	}
	a.RazorpayOrderID = orderID
	s.appointments[id] = a
	return nil
}

func (s *Store) MarkPaid(ctx context.Context, id bson.ObjectID, payment models.PaymentConfirmation) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, notFound("appointment")
	}
	a.Payment = true
	a.PaymentID = payment.PaymentID
	a.RazorpayOrderID = payment.OrderID
	a.RazorpaySignature = payment.Signature
	s.appointments[id] = a
	return &a, nil
}

func (s *Store) CountAppointments(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.appointments)), nil
}

// Chats

func (s *Store) OpenChat(ctx context.Context, appointment *models.Appointment) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[appointment.ID]; ok {
		return copyChat(c), nil
	}
	now := time.Now().UTC()
	c := models.Chat{
		ID:              bson.NewObjectID(),
		AppointmentID:   appointment.ID,
		DoctorID:        appointment.DocID,
		PatientID:       appointment.UserID,
		Messages:        []models.Message{},
		LastMessageTime: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.chats[appointment.ID] = c
	return copyChat(c), nil
}

func (s *Store) GetChatByAppointment(ctx context.Context, appointmentID bson.ObjectID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[appointmentID]
	if !ok {
		return nil, notFound("chat")
	}
	return copyChat(c), nil
}

func (s *Store) AppendMessage(ctx context.Context, appointmentID bson.ObjectID, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[appointmentID]
	if !ok {
		return notFound("chat")
	}
	c.Messages = append(append([]models.Message{}, c.Messages...), msg)
	c.LastMessage = msg.Message
	c.LastMessageTime = msg.Timestamp
	c.UpdatedAt = msg.Timestamp
	s.chats[appointmentID] = c
	return nil
}

func (s *Store) ListChats(ctx context.Context, filter store.ChatFilter) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Chat, 0)
	for _, c := range s.chats {
		if filter.PatientID != nil && c.PatientID != *filter.PatientID {
			continue
		}
		if filter.DoctorID != nil && c.DoctorID != *filter.DoctorID {
			continue
		}
		out = append(out, *copyChat(c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}

// Pharmacy

func (s *Store) CreateMedicine(ctx context.Context, medicine *models.Medicine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.medicines {
		if m.Name == medicine.Name {
			return errors.Wrap(store.ErrDuplicate, "medicine name")
		}
	}
	if medicine.ID.IsZero() {
		medicine.ID = bson.NewObjectID()
	}
	s.medicines[medicine.ID] = *medicine
	return nil
}

func (s *Store) GetMedicine(ctx context.Context, id bson.ObjectID) (*models.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.medicines[id]
	if !ok {
		return nil, notFound("medicine")
	}
	return &m, nil
}

func (s *Store) GetMedicineByName(ctx context.Context, name string) (*models.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.medicines {
		if m.Name == name {
			return &m, nil
		}
	}
	return nil, notFound("medicine")
}

func (s *Store) ListMedicines(ctx context.Context) ([]models.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Medicine, 0, len(s.medicines))
	for _, m := range s.medicines {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateMedicine(ctx context.Context, id bson.ObjectID, update models.MedicineUpdate) (*models.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.medicines[id]
	if !ok {
		return nil, notFound("medicine")
	}
	if update.Name != nil {
		for otherID, other := range s.medicines {
			if otherID != id && other.Name == *update.Name {
				return nil, errors.Wrap(store.ErrDuplicate, "medicine name")
			}
		}
		m.Name = *update.Name
	}
	if update.Image != nil {
		m.Image = *update.Image
	}
	if update.Brand != nil {
		m.Brand = *update.Brand
	}
	if update.Form != nil {
		m.Form = *update.Form
	}
	if update.Dose != nil {
		m.Dose = *update.Dose
	}
	if update.Price != nil {
		m.Price = *update.Price
	}
	if update.Stock != nil {
		m.Stock = *update.Stock
	}
	if update.ExpiryDate != nil {
		m.ExpiryDate = *update.ExpiryDate
	}
	s.medicines[id] = m
	return &m, nil
}

func (s *Store) AdjustStock(ctx context.Context, id bson.ObjectID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.medicines[id]
	if !ok {
		return notFound("medicine")
	}
	m.Stock += delta
	s.medicines[id] = m
	return nil
}

func (s *Store) DeleteMedicine(ctx context.Context, id bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.medicines[id]; !ok {
		return notFound("medicine")
	}
	delete(s.medicines, id)
	return nil
}

// Orders

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = bson.NewObjectID()
	}
	if order.OrderedAt.IsZero() {
		order.OrderedAt = time.Now().UTC()
	}
	o := *order
	o.Medicines = append([]models.OrderItem(nil), order.Medicines...)
	s.orders[order.ID] = o
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id bson.ObjectID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, notFound("order")
	}
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, userID *bson.ObjectID) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0)
	for _, o := range s.orders {
		if userID != nil && o.UserID != *userID {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderedAt.After(out[j].OrderedAt) })
	return out, nil
}

func (s *Store) ConfirmOrderPayment(ctx context.Context, id bson.ObjectID, payment models.PaymentConfirmation) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, notFound("order")
	}
	if o.Payment {
		return nil, store.ErrAlreadyPaid
	}
	o.Payment = true
	o.PaymentID = payment.PaymentID
	o.RazorpaySignature = payment.Signature
	o.Status = models.OrderConfirmed
	s.orders[id] = o
	return &o, nil
}
