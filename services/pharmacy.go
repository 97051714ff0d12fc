package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/VanitasCaesar1/clinic/media"
	"github.com/VanitasCaesar1/clinic/metrics"
	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/payments"
	"github.com/VanitasCaesar1/clinic/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PharmacyService manages the medicine catalog.
type PharmacyService struct {
	store  store.Store
	images media.Uploader
	logger *zap.Logger
}

func NewPharmacyService(st store.Store, images media.Uploader, logger *zap.Logger) *PharmacyService {
	return &PharmacyService{store: st, images: images, logger: logger}
}

type NewMedicine struct {
	Name       string
	Brand      string
	Form       models.MedicineForm
	Dose       string
	Price      float64
	Stock      int
	ExpiryDate time.Time
}

var ErrMedicineNotFound = NotFound("Medicine not found")

// CanonicalMedicineName is the stored form of a medicine name.
func CanonicalMedicineName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validForm(form models.MedicineForm) bool {
	return form == models.FormTablet || form == models.FormSyrup
}

func (s *PharmacyService) AddMedicine(ctx context.Context, input NewMedicine, image *multipart.FileHeader) (*models.Medicine, error) {
	if image == nil {
		return nil, Validation("Image is required")
	}
	if !validForm(input.Form) {
		return nil, Validation("Form must be Tablet or Syrup")
	}
	if input.Stock < 0 {
		return nil, Validation("Stock cannot be negative")
	}
	name := CanonicalMedicineName(input.Name)
	if _, err := s.store.GetMedicineByName(ctx, name); err == nil {
		return nil, Validation("Medicine already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	url, err := s.images.Upload(ctx, media.BucketMedicines, image)
	if err != nil {
		return nil, imageError(err)
	}

	medicine := &models.Medicine{
		Name:       name,
		Image:      url,
		Brand:      input.Brand,
		Form:       input.Form,
		Dose:       input.Dose,
		Price:      input.Price,
		Stock:      input.Stock,
		ExpiryDate: input.ExpiryDate,
	}
	if err := s.store.CreateMedicine(ctx, medicine); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, Validation("Medicine already exists")
		}
		return nil, err
	}
	return medicine, nil
}

func (s *PharmacyService) ListMedicines(ctx context.Context) ([]models.Medicine, error) {
	return s.store.ListMedicines(ctx)
}

func (s *PharmacyService) UpdateStock(ctx context.Context, medicineID string, stock int) (*models.Medicine, error) {
	if stock < 0 {
		return nil, Validation("Stock cannot be negative")
	}
	id, err := parseID(medicineID, "Medicine id is required")
	if err != nil {
		return nil, err
	}
	medicine, err := s.store.UpdateMedicine(ctx, id, models.MedicineUpdate{Stock: &stock})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMedicineNotFound
	}
	return medicine, err
}

func (s *PharmacyService) RemoveMedicine(ctx context.Context, medicineID string) error {
	id, err := parseID(medicineID, "Medicine id is required")
	if err != nil {
		return err
	}
	if err := s.store.DeleteMedicine(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMedicineNotFound
		}
		return err
	}
	return nil
}

// EditMedicine applies the non-nil fields of update and an optional new image.
func (s *PharmacyService) EditMedicine(ctx context.Context, medicineID string, update models.MedicineUpdate, image *multipart.FileHeader) (*models.Medicine, error) {
	id, err := parseID(medicineID, "Medicine id is required")
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		name := CanonicalMedicineName(*update.Name)
		update.Name = &name
	}
	if update.Form != nil && !validForm(*update.Form) {
		return nil, Validation("Form must be Tablet or Syrup")
	}
	if update.Stock != nil && *update.Stock < 0 {
		return nil, Validation("Stock cannot be negative")
	}
	if image != nil {
		url, err := s.images.Upload(ctx, media.BucketMedicines, image)
		if err != nil {
			return nil, imageError(err)
		}
		update.Image = &url
	}

	medicine, err := s.store.UpdateMedicine(ctx, id, update)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrMedicineNotFound
	case errors.Is(err, store.ErrDuplicate):
		return nil, Validation("Medicine already exists")
	}
	return medicine, err
}

// OrderService turns carts into gateway orders and confirms them on payment.
type OrderService struct {
	store    store.Store
	gateway  payments.Gateway
	receipts ReceiptGenerator
	logger   *zap.Logger
}

// ReceiptGenerator yields receipt ids for gateway orders.
type ReceiptGenerator interface {
	Generate() (string, error)
}

func NewOrderService(st store.Store, gateway payments.Gateway, receipts ReceiptGenerator, logger *zap.Logger) *OrderService {
	return &OrderService{store: st, gateway: gateway, receipts: receipts, logger: logger}
}

type CartLine struct {
	MedicineID string
	Quantity   int
}

type Checkout struct {
	Order        *models.Order
	GatewayOrder *payments.Order
}

var ErrOrderNotFound = NotFound("Order not found")

// CreateMedicinePayment prices the cart from current catalog data, checks stock
// and opens a gateway order for the total. Stock is only taken on verification.
func (s *OrderService) CreateMedicinePayment(ctx context.Context, actor models.Principal, lines []CartLine, deliveryAddress, phone string) (*Checkout, error) {
	if len(lines) == 0 {
		return nil, Validation("No medicines provided")
	}
	userID, err := store.ParseID(actor.ID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	items := make([]models.OrderItem, 0, len(lines))
	var total float64
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, Validation("Quantity must be at least 1")
		}
		id, err := store.ParseID(line.MedicineID)
		if err != nil {
			return nil, NotFound(fmt.Sprintf("Medicine not found: %s", line.MedicineID))
		}
		medicine, err := s.store.GetMedicine(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, NotFound(fmt.Sprintf("Medicine not found: %s", line.MedicineID))
			}
			return nil, err
		}
		if medicine.Stock < line.Quantity {
			return nil, Validation(fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d",
				medicine.Name, medicine.Stock, line.Quantity))
		}
		subtotal := medicine.Price * float64(line.Quantity)
		total += subtotal
		items = append(items, models.OrderItem{
			MedicineID: medicine.ID,
			Name:       medicine.Name,
			Price:      medicine.Price,
			Quantity:   line.Quantity,
			Subtotal:   subtotal,
		})
	}

	receipt, err := s.receipts.Generate()
	if err != nil {
		return nil, err
	}
	gatewayOrder, err := s.gateway.CreateOrder(ctx, total, receipt, map[string]string{"userId": actor.ID})
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:          userID,
		Medicines:       items,
		TotalAmount:     total,
		RazorpayOrderID: gatewayOrder.ID,
		PaymentMethod:   "Razorpay",
		Status:          models.OrderPending,
		DeliveryAddress: deliveryAddress,
		PhoneNumber:     phone,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("medicine order created",
		zap.String("order_id", order.ID.Hex()),
		zap.String("razorpay_order_id", gatewayOrder.ID),
		zap.Float64("total", total))
	return &Checkout{Order: order, GatewayOrder: gatewayOrder}, nil
}

// VerifyMedicinePayment confirms a paid order and takes its items out of stock.
// A second verification of the same order is rejected before stock is touched.
func (s *OrderService) VerifyMedicinePayment(ctx context.Context, actor models.Principal, orderID string, payment models.PaymentConfirmation) (*models.Order, error) {
	id, err := parseID(orderID, "Order id is required")
	if err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID.Hex() != actor.ID {
		return nil, Forbidden("Unauthorized to verify this payment")
	}
	if payment.OrderID != order.RazorpayOrderID || !s.gateway.VerifySignature(payment.OrderID, payment.PaymentID, payment.Signature) {
		metrics.PaymentVerifications.WithLabelValues("order", "rejected").Inc()
		return nil, ErrInvalidSignature
	}

	confirmed, err := s.store.ConfirmOrderPayment(ctx, id, payment)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyPaid) {
			return nil, Conflict("Order already paid")
		}
		return nil, err
	}
	metrics.PaymentVerifications.WithLabelValues("order", "verified").Inc()

	for _, item := range confirmed.Medicines {
		if err := s.store.AdjustStock(ctx, item.MedicineID, -item.Quantity); err != nil {
			s.logger.Error("failed to take stock for confirmed order",
				zap.String("order_id", orderID),
				zap.String("medicine_id", item.MedicineID.Hex()),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
		}
	}
	return confirmed, nil
}

func (s *OrderService) UserOrders(ctx context.Context, actor models.Principal) ([]models.Order, error) {
	id, err := store.ParseID(actor.ID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return s.store.ListOrders(ctx, &id)
}

func (s *OrderService) AllOrders(ctx context.Context) ([]models.Order, error) {
	return s.store.ListOrders(ctx, nil)
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	id, err := store.ParseID(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	order, err := s.store.GetOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}
