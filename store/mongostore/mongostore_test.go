package mongostore

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// newTestStore connects to MONGODB_URL and works in a throwaway database.
// Tests skip when no server is configured.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		t.Skip("MONGODB_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(options.Client().ApplyURI(url))
	require.NoError(t, err)

	s := New(client, "clinic_test_"+bson.NewObjectID().Hex(), zap.NewNop())
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.EnsureIndexes(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.db.Drop(ctx)
		client.Disconnect(ctx)
	})
	return s
}

func seedDoctor(t *testing.T, s *Store, available bool) *models.Doctor {
	t.Helper()
	doc := &models.Doctor{DoctorProfile: models.DoctorProfile{
		Name:      "Dr. Rao",
		Email:     bson.NewObjectID().Hex() + "@clinic.test",
		Available: available,
		Fees:      500,
	}}
	require.NoError(t, s.CreateDoctor(context.Background(), doc))
	return doc
}

func TestReserveSlot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDoctor(t, s, true)

	require.NoError(t, s.ReserveSlot(ctx, doc.ID, "10_6_2025", "10:00 AM"))
	assert.ErrorIs(t, s.ReserveSlot(ctx, doc.ID, "10_6_2025", "10:00 AM"), store.ErrSlotTaken)
	require.NoError(t, s.ReserveSlot(ctx, doc.ID, "10_6_2025", "10:30 AM"))

	got, err := s.GetDoctor(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00 AM", "10:30 AM"}, got.SlotsBooked["10_6_2025"])

	require.NoError(t, s.ReleaseSlot(ctx, doc.ID, "10_6_2025", "10:00 AM"))
	got, err = s.GetDoctor(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:30 AM"}, got.SlotsBooked["10_6_2025"])

	assert.ErrorIs(t, s.ReserveSlot(ctx, doc.ID, "10.6.2025", "10:00 AM"), store.ErrInvalidSlot)
}

func TestReserveSlotUnavailableDoctor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDoctor(t, s, false)

	assert.ErrorIs(t, s.ReserveSlot(ctx, doc.ID, "10_6_2025", "10:00 AM"), store.ErrDoctorUnavailable)
	assert.ErrorIs(t, s.ReserveSlot(ctx, bson.NewObjectID(), "10_6_2025", "10:00 AM"), store.ErrDoctorUnavailable)
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDoctor(t, s, true)

	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.ReserveSlot(ctx, doc.ID, "10_6_2025", "10:00 AM")
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case assert.ErrorIs(t, err, store.ErrSlotTaken):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(15), conflicts)
}

func TestOpenChatConcurrentlyCreatesOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	appointment := &models.Appointment{ID: bson.NewObjectID(), UserID: bson.NewObjectID(), DocID: bson.NewObjectID()}

	ids := make([]bson.ObjectID, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chat, err := s.OpenChat(ctx, appointment)
			if assert.NoError(t, err) {
				ids[i] = chat.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	n, err := s.chats.CountDocuments(ctx, bson.M{"appointmentId": appointment.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAppendMessageUpdatesLastMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	appointment := &models.Appointment{ID: bson.NewObjectID(), UserID: bson.NewObjectID(), DocID: bson.NewObjectID()}
	_, err := s.OpenChat(ctx, appointment)
	require.NoError(t, err)

	sent := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.AppendMessage(ctx, appointment.ID, models.Message{
		ID:          bson.NewObjectID(),
		Sender:      appointment.UserID,
		SenderModel: models.SenderUser,
		Message:     "hello doctor",
		Timestamp:   sent,
	}))

	chat, err := s.GetChatByAppointment(ctx, appointment.ID)
	require.NoError(t, err)
	require.Len(t, chat.Messages, 1)
	assert.Equal(t, "hello doctor", chat.LastMessage)
	assert.True(t, chat.LastMessageTime.Equal(sent))
}

func TestConfirmOrderPaymentIsOneShot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	order := &models.Order{UserID: bson.NewObjectID(), TotalAmount: 80, Status: models.OrderPending, RazorpayOrderID: "order_1"}
	require.NoError(t, s.CreateOrder(ctx, order))

	payment := models.PaymentConfirmation{PaymentID: "pay_1", OrderID: "order_1", Signature: "sig"}
	confirmed, err := s.ConfirmOrderPayment(ctx, order.ID, payment)
	require.NoError(t, err)
	assert.True(t, confirmed.Payment)
	assert.Equal(t, models.OrderConfirmed, confirmed.Status)

	_, err = s.ConfirmOrderPayment(ctx, order.ID, payment)
	assert.ErrorIs(t, err, store.ErrAlreadyPaid)

	_, err = s.ConfirmOrderPayment(ctx, bson.NewObjectID(), payment)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetPaymentOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	appointment := &models.Appointment{UserID: bson.NewObjectID(), DocID: bson.NewObjectID(), SlotDate: "d", SlotTime: "t"}
	require.NoError(t, s.CreateAppointment(ctx, appointment))

	require.NoError(t, s.SetPaymentOrder(ctx, appointment.ID, "order_9"))
	got, err := s.GetAppointment(ctx, appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, "order_9", got.RazorpayOrderID)

	assert.ErrorIs(t, s.SetPaymentOrder(ctx, bson.NewObjectID(), "order_9"), store.ErrNotFound)
}

func TestDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &models.User{UserProfile: models.UserProfile{Name: "Asha", Email: "asha@clinic.test"}}))
	err := s.CreateUser(ctx, &models.User{UserProfile: models.UserProfile{Name: "Asha", Email: "asha@clinic.test"}})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}
