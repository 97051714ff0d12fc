package services

import (
	"context"
	"mime/multipart"
	"sync"
	"testing"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/payments"
	"github.com/VanitasCaesar1/clinic/store/memstore"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testGatewaySecret = "gateway-secret"

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.MessageEvent
	err    error
}

func (p *recordingPublisher) PublishMessage(ctx context.Context, event models.MessageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []models.MessageEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.MessageEvent(nil), p.events...)
}

type fakeGateway struct {
	mu     sync.Mutex
	orders []payments.Order
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount float64, receipt string, notes map[string]string) (*payments.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := payments.Order{ID: "order_" + receipt, Amount: payments.MinorUnits(amount), Currency: "INR", Receipt: receipt}
	g.orders = append(g.orders, o)
	return &o, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return payments.Sign(orderID, paymentID, testGatewaySecret) == signature
}

type fakeUploader struct{ uploads int }

func (u *fakeUploader) Upload(ctx context.Context, bucket string, file *multipart.FileHeader) (string, error) {
	u.uploads++
	return "https://img.test/" + bucket + "/" + file.Filename, nil
}

type fakeTokens struct {
	revoked []string
}

func (f *fakeTokens) GenerateJWT(ctx context.Context, p models.Principal) (string, error) {
	return string(p.Role) + ":" + p.ID, nil
}

func (f *fakeTokens) InvalidateToken(ctx context.Context, jti string) error {
	f.revoked = append(f.revoked, jti)
	return nil
}

type fixture struct {
	store     *memstore.Store
	publisher *recordingPublisher
	gateway   *fakeGateway
	booking   *BookingService
	chat      *ChatService
	user      *models.User
	doctor    *models.Doctor
}

func (f *fixture) userPrincipal() models.Principal {
	return models.Principal{ID: f.user.ID.Hex(), Role: models.RoleUser}
}

func (f *fixture) doctorPrincipal() models.Principal {
	return models.Principal{ID: f.doctor.ID.Hex(), Role: models.RoleDoctor}
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	logger := zap.NewNop()

	user := &models.User{UserProfile: models.UserProfile{Name: "Asha", Email: "asha@clinic.test"}}
	require.NoError(t, st.CreateUser(ctx, user))
	doctor := &models.Doctor{DoctorProfile: models.DoctorProfile{
		Name:      "Dr. Rao",
		Email:     "rao@clinic.test",
		Available: true,
		Fees:      500,
	}}
	require.NoError(t, st.CreateDoctor(ctx, doctor))

	publisher := &recordingPublisher{}
	gateway := &fakeGateway{}
	return &fixture{
		store:     st,
		publisher: publisher,
		gateway:   gateway,
		booking:   NewBookingService(st, gateway, nil, logger),
		chat:      NewChatService(st, publisher, logger),
		user:      user,
		doctor:    doctor,
	}
}
