package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/VanitasCaesar1/clinic/cache"
	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/payments"
	"github.com/VanitasCaesar1/clinic/services"
	"github.com/VanitasCaesar1/clinic/store/memstore"
	"github.com/VanitasCaesar1/clinic/utils"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const gatewaySecret = "gateway-secret"

// testTimeout covers bcrypt hashing at the default cost, which is slow
// under the race detector.
const testTimeout = 30 * time.Second

type stubGateway struct{}

func (stubGateway) CreateOrder(ctx context.Context, amount float64, receipt string, notes map[string]string) (*payments.Order, error) {
	return &payments.Order{ID: "order_" + receipt, Amount: payments.MinorUnits(amount), Currency: "INR", Receipt: receipt}, nil
}

func (stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return payments.Sign(orderID, paymentID, gatewaySecret) == signature
}

type stubUploader struct{}

func (stubUploader) Upload(ctx context.Context, bucket string, file *multipart.FileHeader) (string, error) {
	return "https://img.test/" + bucket + "/" + file.Filename, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []models.MessageEvent
}

func (p *capturePublisher) PublishMessage(ctx context.Context, event models.MessageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type apiFixture struct {
	t         *testing.T
	app       *fiber.App
	store     *memstore.Store
	publisher *capturePublisher
	doctor    *models.DoctorProfile
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := zap.NewNop()
	st := memstore.New()
	tokens := utils.NewJwtTokenGenerator(rdb, "test-secret", time.Hour)
	publisher := &capturePublisher{}

	doctors := cache.NewCache(rdb, "doctors:")
	accounts := services.NewAccountService(st, tokens, doctors, stubUploader{},
		services.AdminCredentials{Email: "admin@clinic.test", Password: "admin-pass"}, logger)
	booking := services.NewBookingService(st, stubGateway{}, doctors, logger)
	chat := services.NewChatService(st, publisher, logger)
	pharmacy := services.NewPharmacyService(st, stubUploader{}, logger)
	orders := services.NewOrderService(st, stubGateway{}, utils.NewReceiptGenerator("med_"), logger)

	app := fiber.New()
	Routes{
		User:     NewUserHandler(accounts, booking, logger, testTimeout),
		Doctor:   NewDoctorHandler(accounts, booking, logger, testTimeout),
		Admin:    NewAdminHandler(accounts, booking, logger, testTimeout),
		Message:  NewMessageHandler(chat, logger, testTimeout),
		Pharmacy: NewPharmacyHandler(pharmacy, logger, testTimeout),
		Order:    NewOrderHandler(orders, logger, testTimeout),
		Tokens:   tokens,
		Logger:   logger,
	}.Mount(app)

	doctor, err := accounts.AddDoctor(context.Background(), services.NewDoctor{
		Name:       "Dr. Rao",
		Email:      "rao@clinic.test",
		Password:   "password1",
		Speciality: "General physician",
		Fees:       500,
	}, &multipart.FileHeader{Filename: "rao.png"})
	require.NoError(t, err)

	return &apiFixture{t: t, app: app, store: st, publisher: publisher, doctor: doctor}
}

type response struct {
	status int
	body   map[string]interface{}
}

func (r response) str(key string) string {
	s, _ := r.body[key].(string)
	return s
}

func (r response) obj(key string) map[string]interface{} {
	m, _ := r.body[key].(map[string]interface{})
	return m
}

// call sends a JSON request. headers are header name/value pairs.
func (f *apiFixture) call(method, path string, body interface{}, headers ...string) response {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, body: map[string]interface{}{}}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	if len(raw) > 0 {
		require.NoError(f.t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func (f *apiFixture) registerUser(name, email string) string {
	f.t.Helper()
	resp := f.call(fiber.MethodPost, "/api/user/register", map[string]string{
		"name": name, "email": email, "password": "password1",
	})
	require.Equal(f.t, fiber.StatusOK, resp.status, resp.body)
	return resp.str("token")
}

func (f *apiFixture) doctorToken() string {
	f.t.Helper()
	resp := f.call(fiber.MethodPost, "/api/doctor/login", map[string]string{
		"email": "rao@clinic.test", "password": "password1",
	})
	require.Equal(f.t, fiber.StatusOK, resp.status, resp.body)
	return resp.str("token")
}

func (f *apiFixture) adminToken() string {
	f.t.Helper()
	resp := f.call(fiber.MethodPost, "/api/admin/login", map[string]string{
		"email": "admin@clinic.test", "password": "admin-pass",
	})
	require.Equal(f.t, fiber.StatusOK, resp.status, resp.body)
	return resp.str("token")
}

func (f *apiFixture) book(userToken, date, slot string) response {
	f.t.Helper()
	return f.call(fiber.MethodPost, "/api/user/book-appointment", map[string]string{
		"docId": f.doctor.ID.Hex(), "slotDate": date, "slotTime": slot,
	}, "token", userToken)
}

