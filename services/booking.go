package services

import (
	"context"
	"time"

	"github.com/VanitasCaesar1/clinic/cache"
	"github.com/VanitasCaesar1/clinic/metrics"
	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/payments"
	"github.com/VanitasCaesar1/clinic/store"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

const latestAppointmentsLimit = 5

// BookingService owns appointments and the per-doctor slot ledger. Every
// ledger change drops the cached public doctor list, which embeds the ledger.
type BookingService struct {
	store   store.Store
	gateway payments.Gateway
	doctors *cache.Cache
	logger  *zap.Logger
	now     func() time.Time
}

func NewBookingService(st store.Store, gateway payments.Gateway, doctorCache *cache.Cache, logger *zap.Logger) *BookingService {
	return &BookingService{
		store:   st,
		gateway: gateway,
		doctors: doctorCache,
		logger:  logger,
		now:     time.Now,
	}
}

// Book reserves (doctor, date, time) for the calling user and records the appointment.
// The reservation is one conditional update, so two bookings for the same slot
// cannot both succeed.
func (s *BookingService) Book(ctx context.Context, actor models.Principal, docID, slotDate, slotTime string) (*models.Appointment, error) {
	if docID == "" || slotDate == "" || slotTime == "" {
		return nil, Validation("All fields are required")
	}
	if !store.ValidSlotDate(slotDate) {
		return nil, ErrInvalidSlotDate
	}
	doctorID, err := store.ParseID(docID)
	if err != nil {
		return nil, ErrDoctorUnavailable
	}
	userID, err := store.ParseID(actor.ID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	doctor, err := s.store.GetDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDoctorUnavailable
		}
		return nil, err
	}
	if !doctor.Available {
		return nil, ErrDoctorUnavailable
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := s.store.ReserveSlot(ctx, doctorID, slotDate, slotTime); err != nil {
		switch {
		case errors.Is(err, store.ErrSlotTaken):
			metrics.SlotConflicts.Inc()
			return nil, ErrSlotAlreadyBooked
		case errors.Is(err, store.ErrDoctorUnavailable):
			return nil, ErrDoctorUnavailable
		}
		return nil, err
	}
	dropDoctorList(ctx, s.doctors, s.logger)

	appointment := &models.Appointment{
		UserID:   userID,
		DocID:    doctorID,
		SlotDate: slotDate,
		SlotTime: slotTime,
		UserData: user.UserProfile,
		DocData:  doctor.DoctorProfile,
		Amount:   doctor.Fees,
		Date:     s.now().UnixMilli(),
	}
	if err := s.store.CreateAppointment(ctx, appointment); err != nil {
		if releaseErr := s.store.ReleaseSlot(ctx, doctorID, slotDate, slotTime); releaseErr != nil {
			s.logger.Error("failed to release slot after appointment insert failed",
				zap.String("doctor_id", docID),
				zap.String("slot_date", slotDate),
				zap.String("slot_time", slotTime),
				zap.Error(releaseErr))
		} else {
			dropDoctorList(ctx, s.doctors, s.logger)
		}
		return nil, errors.Wrap(err, "failed to create appointment")
	}

	metrics.AppointmentsBooked.Inc()
	s.logger.Info("appointment booked",
		zap.String("appointment_id", appointment.ID.Hex()),
		zap.String("doctor_id", docID),
		zap.String("user_id", actor.ID),
		zap.String("slot_date", slotDate),
		zap.String("slot_time", slotTime))

	return appointment, nil
}

// Cancel flips the appointment to cancelled and frees its slot. Users may cancel
// their own appointments, doctors the ones booked with them, admins any.
// Cancelling twice is a no-op.
func (s *BookingService) Cancel(ctx context.Context, actor models.Principal, appointmentID string) (*models.Appointment, error) {
	if appointmentID == "" {
		return nil, Validation("Appointment ID is required")
	}
	id, err := parseID(appointmentID, "Invalid Appointment ID.")
	if err != nil {
		return nil, err
	}

	appointment, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAppointmentAbsent
		}
		return nil, err
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleUser:
		if appointment.UserID.Hex() != actor.ID {
			return nil, Forbidden("You are not authorized to cancel this appointment")
		}
	case models.RoleDoctor:
		if appointment.DocID.Hex() != actor.ID {
			return nil, NotFound("Appointment not found or not authorized")
		}
	default:
		return nil, Forbidden("You are not authorized to cancel this appointment")
	}

	changed, err := s.store.MarkCancelled(ctx, id)
	if err != nil {
		return nil, err
	}
	appointment.Cancelled = true
	if !changed {
		return appointment, nil
	}

	if err := s.store.ReleaseSlot(ctx, appointment.DocID, appointment.SlotDate, appointment.SlotTime); err != nil {
		return nil, errors.Wrap(err, "appointment cancelled but slot was not released")
	}
	dropDoctorList(ctx, s.doctors, s.logger)

	metrics.AppointmentsCancelled.WithLabelValues(string(actor.Role)).Inc()
	s.logger.Info("appointment cancelled",
		zap.String("appointment_id", appointmentID),
		zap.String("role", string(actor.Role)),
		zap.String("actor_id", actor.ID))

	return appointment, nil
}

// Complete marks a doctor's own appointment as completed. The slot stays consumed.
func (s *BookingService) Complete(ctx context.Context, actor models.Principal, appointmentID string) (*models.Appointment, error) {
	if appointmentID == "" {
		return nil, Validation("Appointment ID is required")
	}
	notFound := NotFound("Appointment not found or not authorized")
	id, err := store.ParseID(appointmentID)
	if err != nil {
		return nil, notFound
	}
	doctorID, err := store.ParseID(actor.ID)
	if err != nil || actor.Role != models.RoleDoctor {
		return nil, notFound
	}

	if err := s.store.MarkCompleted(ctx, id, doctorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound
		}
		return nil, err
	}
	return s.store.GetAppointment(ctx, id)
}

func (s *BookingService) UserAppointments(ctx context.Context, actor models.Principal) ([]models.Appointment, error) {
	userID, err := store.ParseID(actor.ID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return s.store.ListAppointments(ctx, store.AppointmentFilter{UserID: &userID})
}

func (s *BookingService) DoctorAppointments(ctx context.Context, actor models.Principal) ([]models.Appointment, error) {
	doctorID, err := store.ParseID(actor.ID)
	if err != nil {
		return nil, ErrDoctorNotFound
	}
	return s.store.ListAppointments(ctx, store.AppointmentFilter{DocID: &doctorID, NewestFirst: true})
}

func (s *BookingService) AllAppointments(ctx context.Context) ([]models.Appointment, error) {
	return s.store.ListAppointments(ctx, store.AppointmentFilter{NewestFirst: true})
}

func (s *BookingService) AdminDashboard(ctx context.Context) (*models.AdminDashboard, error) {
	doctors, err := s.store.CountDoctors(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	appointments, err := s.store.CountAppointments(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.ListAppointments(ctx, store.AppointmentFilter{NewestFirst: true, Limit: latestAppointmentsLimit})
	if err != nil {
		return nil, err
	}
	return &models.AdminDashboard{
		Doctors:            doctors,
		Users:              users,
		Appointments:       appointments,
		LatestAppointments: latest,
	}, nil
}

// DoctorDashboard counts earnings from completed or paid appointments and
// patients from completed ones.
func (s *BookingService) DoctorDashboard(ctx context.Context, actor models.Principal) (*models.DoctorDashboard, error) {
	appointments, err := s.DoctorAppointments(ctx, actor)
	if err != nil {
		return nil, err
	}

	dash := &models.DoctorDashboard{Appointments: len(appointments)}
	patients := make(map[bson.ObjectID]struct{})
	for _, a := range appointments {
		if a.IsCompleted || a.Payment {
			dash.Earnings += a.Amount
		}
		if a.IsCompleted {
			patients[a.UserID] = struct{}{}
		}
	}
	dash.Patients = len(patients)

	latest := appointments
	if len(latest) > latestAppointmentsLimit {
		latest = latest[:latestAppointmentsLimit]
	}
	dash.LatestAppointments = latest
	return dash, nil
}

// CreatePayment opens a gateway order for an active appointment.
func (s *BookingService) CreatePayment(ctx context.Context, actor models.Principal, appointmentID string) (*payments.Order, error) {
	notFound := Validation("Appointment not found or cancelled")
	id, err := store.ParseID(appointmentID)
	if err != nil {
		return nil, notFound
	}
	appointment, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound
		}
		return nil, err
	}
	if appointment.Cancelled {
		return nil, notFound
	}
	if appointment.UserID.Hex() != actor.ID {
		return nil, Forbidden("Unauthorized to pay for this appointment")
	}

	order, err := s.gateway.CreateOrder(ctx, appointment.Amount, appointmentID, map[string]string{
		"appointmentId": appointmentID,
		"doctorId":      appointment.DocID.Hex(),
		"userId":        appointment.UserID.Hex(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.SetPaymentOrder(ctx, id, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

// VerifyPayment checks the gateway signature and marks the appointment paid.
// The signed order must be the one CreatePayment opened for this appointment.
func (s *BookingService) VerifyPayment(ctx context.Context, actor models.Principal, appointmentID string, payment models.PaymentConfirmation) (*models.Appointment, error) {
	if appointmentID == "" || payment.PaymentID == "" || payment.OrderID == "" || payment.Signature == "" {
		return nil, Validation("Missing required payment verification data")
	}
	id, err := parseID(appointmentID, "Invalid Appointment ID.")
	if err != nil {
		return nil, err
	}
	appointment, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAppointmentAbsent
		}
		return nil, err
	}
	if appointment.UserID.Hex() != actor.ID {
		return nil, Forbidden("Unauthorized to verify this payment")
	}

	if !s.gateway.VerifySignature(payment.OrderID, payment.PaymentID, payment.Signature) {
		metrics.PaymentVerifications.WithLabelValues("appointment", "rejected").Inc()
		s.logger.Warn("payment signature mismatch",
			zap.String("appointment_id", appointmentID),
			zap.String("razorpay_order_id", payment.OrderID))
		return nil, &Error{Kind: KindPayment, Message: "Payment verification failed - Invalid signature"}
	}
	if appointment.RazorpayOrderID == "" || appointment.RazorpayOrderID != payment.OrderID {
		metrics.PaymentVerifications.WithLabelValues("appointment", "rejected").Inc()
		s.logger.Warn("payment order mismatch",
			zap.String("appointment_id", appointmentID),
			zap.String("razorpay_order_id", payment.OrderID))
		return nil, &Error{Kind: KindPayment, Message: "Payment verification failed - Order mismatch"}
	}
	metrics.PaymentVerifications.WithLabelValues("appointment", "verified").Inc()

	return s.store.MarkPaid(ctx, id, payment)
}
