package services

import (
	"context"
	"sync"
	"testing"

	"github.com/VanitasCaesar1/clinic/cache"
	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/payments"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

func TestBookCancelScenario(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	docID := f.doctor.ID.Hex()

	appt, err := f.booking.Book(ctx, f.userPrincipal(), docID, "10-06-2025", "10:00 AM")
	require.NoError(t, err)
	assert.False(t, appt.Cancelled)
	assert.False(t, appt.IsCompleted)
	assert.Equal(t, 500.0, appt.Amount)
	assert.Equal(t, "Asha", appt.UserData.Name)
	assert.Equal(t, "Dr. Rao", appt.DocData.Name)

	doc, err := f.store.GetDoctor(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Contains(t, doc.SlotsBooked["10-06-2025"], "10:00 AM")

	_, err = f.booking.Book(ctx, f.userPrincipal(), docID, "10-06-2025", "10:00 AM")
	require.Error(t, err)
	assert.Equal(t, ErrSlotAlreadyBooked, err)
	assert.Equal(t, "Slot already booked", err.Error())

	_, err = f.booking.Cancel(ctx, f.userPrincipal(), appt.ID.Hex())
	require.NoError(t, err)

	doc, err = f.store.GetDoctor(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.NotContains(t, doc.SlotsBooked["10-06-2025"], "10:00 AM")

	stored, err := f.store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.True(t, stored.Cancelled)
}

func TestBookCreatesExactlyOneAppointment(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "11-06-2025", "09:00 AM")
	require.NoError(t, err)

	list, err := f.booking.UserAppointments(ctx, f.userPrincipal())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestConcurrentBookingsSingleWinner(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "12-06-2025", "10:00 AM")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		if err == nil {
			ok++
		} else if err == ErrSlotAlreadyBooked {
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 19, conflicts)

	all, err := f.booking.AllAppointments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBookValidation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.booking.Book(ctx, f.userPrincipal(), "", "d", "t")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.booking.Book(ctx, f.userPrincipal(), bson.NewObjectID().Hex(), "d", "t")
	assert.Equal(t, ErrDoctorUnavailable, err)

	_, err = f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "10.06.2025", "t")
	assert.Equal(t, ErrInvalidSlotDate, err)

	require.NoError(t, f.store.SetAvailability(ctx, f.doctor.ID, false))
	_, err = f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "d", "t")
	assert.Equal(t, ErrDoctorUnavailable, err)
}

func TestCancelAuthorization(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	appt, err := f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "d1", "t1")
	require.NoError(t, err)

	stranger := models.Principal{ID: bson.NewObjectID().Hex(), Role: models.RoleUser}
	_, err = f.booking.Cancel(ctx, stranger, appt.ID.Hex())
	assert.Equal(t, KindForbidden, KindOf(err))

	otherDoctor := models.Principal{ID: bson.NewObjectID().Hex(), Role: models.RoleDoctor}
	_, err = f.booking.Cancel(ctx, otherDoctor, appt.ID.Hex())
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.booking.Cancel(ctx, f.userPrincipal(), bson.NewObjectID().Hex())
	assert.Equal(t, ErrAppointmentAbsent, err)
}

func TestDoctorAndAdminCancelReleaseSlot(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	a1, err := f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "d", "t1")
	require.NoError(t, err)
	a2, err := f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "d", "t2")
	require.NoError(t, err)

	_, err = f.booking.Cancel(ctx, f.doctorPrincipal(), a1.ID.Hex())
	require.NoError(t, err)
	_, err = f.booking.Cancel(ctx, models.Principal{ID: "admin@clinic.test", Role: models.RoleAdmin}, a2.ID.Hex())
	require.NoError(t, err)

	doc, err := f.store.GetDoctor(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Empty(t, doc.SlotsBooked["d"])
}

func TestCancelTwiceLeavesRebookedSlot(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	docID := f.doctor.ID.Hex()

	first, err := f.booking.Book(ctx, f.userPrincipal(), docID, "d", "t")
	require.NoError(t, err)
	_, err = f.booking.Cancel(ctx, f.userPrincipal(), first.ID.Hex())
	require.NoError(t, err)

	_, err = f.booking.Book(ctx, f.userPrincipal(), docID, "d", "t")
	require.NoError(t, err)

	// a repeated cancel of the old appointment must not free the new booking
	_, err = f.booking.Cancel(ctx, f.userPrincipal(), first.ID.Hex())
	require.NoError(t, err)

	doc, err := f.store.GetDoctor(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.True(t, doc.SlotsBooked.Has("d", "t"))
}

func TestCompleteKeepsSlot(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	appt, err := f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "d", "t")
	require.NoError(t, err)

	_, err = f.booking.Complete(ctx, models.Principal{ID: bson.NewObjectID().Hex(), Role: models.RoleDoctor}, appt.ID.Hex())
	assert.Equal(t, KindNotFound, KindOf(err))

	done, err := f.booking.Complete(ctx, f.doctorPrincipal(), appt.ID.Hex())
	require.NoError(t, err)
	assert.True(t, done.IsCompleted)

	doc, err := f.store.GetDoctor(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.True(t, doc.SlotsBooked.Has("d", "t"))
}

func TestDoctorDashboard(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	a1, err := f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "d", "t1")
	require.NoError(t, err)
	_, err = f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "d", "t2")
	require.NoError(t, err)
	_, err = f.booking.Complete(ctx, f.doctorPrincipal(), a1.ID.Hex())
	require.NoError(t, err)

	dash, err := f.booking.DoctorDashboard(ctx, f.doctorPrincipal())
	require.NoError(t, err)
	assert.Equal(t, 500.0, dash.Earnings)
	assert.Equal(t, 2, dash.Appointments)
	assert.Equal(t, 1, dash.Patients)
	assert.Len(t, dash.LatestAppointments, 2)

	admin, err := f.booking.AdminDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), admin.Doctors)
	assert.Equal(t, int64(1), admin.Users)
	assert.Equal(t, int64(2), admin.Appointments)
}

func TestAppointmentPayment(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	appt, err := f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "d", "t")
	require.NoError(t, err)

	order, err := f.booking.CreatePayment(ctx, f.userPrincipal(), appt.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(50000), order.Amount)

	stored, err := f.store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.RazorpayOrderID)

	bad := models.PaymentConfirmation{OrderID: order.ID, PaymentID: "pay_1", Signature: "nope"}
	_, err = f.booking.VerifyPayment(ctx, f.userPrincipal(), appt.ID.Hex(), bad)
	assert.Equal(t, KindPayment, KindOf(err))

	good := models.PaymentConfirmation{OrderID: order.ID, PaymentID: "pay_1", Signature: payments.Sign(order.ID, "pay_1", testGatewaySecret)}
	_, err = f.booking.VerifyPayment(ctx, f.doctorPrincipal(), appt.ID.Hex(), good)
	assert.Equal(t, KindForbidden, KindOf(err))

	paid, err := f.booking.VerifyPayment(ctx, f.userPrincipal(), appt.ID.Hex(), good)
	require.NoError(t, err)
	assert.True(t, paid.Payment)
	assert.Equal(t, "pay_1", paid.PaymentID)

	_, err = f.booking.Cancel(ctx, f.userPrincipal(), appt.ID.Hex())
	require.NoError(t, err)
	_, err = f.booking.CreatePayment(ctx, f.userPrincipal(), appt.ID.Hex())
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestLedgerChangesRefreshDoctorList(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	doctors := cache.NewCache(rdb, "doctors:")
	f.booking.doctors = doctors
	accounts := NewAccountService(f.store, &fakeTokens{}, doctors, &fakeUploader{}, AdminCredentials{}, zap.NewNop())

	list, err := accounts.AvailableDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].SlotsBooked.Has("10-06-2025", "10:00 AM"))
	require.True(t, mr.Exists("doctors:available"))

	appt, err := f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "10-06-2025", "10:00 AM")
	require.NoError(t, err)
	assert.False(t, mr.Exists("doctors:available"))

	list, err = accounts.AvailableDoctors(ctx)
	require.NoError(t, err)
	assert.True(t, list[0].SlotsBooked.Has("10-06-2025", "10:00 AM"))

	_, err = f.booking.Cancel(ctx, f.userPrincipal(), appt.ID.Hex())
	require.NoError(t, err)

	list, err = accounts.AvailableDoctors(ctx)
	require.NoError(t, err)
	assert.False(t, list[0].SlotsBooked.Has("10-06-2025", "10:00 AM"))
}

func TestVerifyPaymentRequiresAppointmentOrder(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	cheap, err := f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "d", "09:00 AM")
	require.NoError(t, err)
	costly, err := f.booking.Book(ctx, f.userPrincipal(), f.doctor.ID.Hex(), "d", "10:00 AM")
	require.NoError(t, err)

	// A genuine signature for a different order does not pay this appointment.
	other := models.PaymentConfirmation{OrderID: "order_other", PaymentID: "pay_9", Signature: payments.Sign("order_other", "pay_9", testGatewaySecret)}
	_, err = f.booking.VerifyPayment(ctx, f.userPrincipal(), costly.ID.Hex(), other)
	assert.Equal(t, KindPayment, KindOf(err))

	cheapOrder, err := f.booking.CreatePayment(ctx, f.userPrincipal(), cheap.ID.Hex())
	require.NoError(t, err)
	_, err = f.booking.CreatePayment(ctx, f.userPrincipal(), costly.ID.Hex())
	require.NoError(t, err)

	reused := models.PaymentConfirmation{OrderID: cheapOrder.ID, PaymentID: "pay_2", Signature: payments.Sign(cheapOrder.ID, "pay_2", testGatewaySecret)}
	_, err = f.booking.VerifyPayment(ctx, f.userPrincipal(), costly.ID.Hex(), reused)
	assert.Equal(t, KindPayment, KindOf(err))

	stored, err := f.store.GetAppointment(ctx, costly.ID)
	require.NoError(t, err)
	assert.False(t, stored.Payment)

	paid, err := f.booking.VerifyPayment(ctx, f.userPrincipal(), cheap.ID.Hex(), reused)
	require.NoError(t, err)
	assert.True(t, paid.Payment)
}
