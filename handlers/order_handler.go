package handlers

import (
	"time"

	"github.com/VanitasCaesar1/clinic/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type OrderHandler struct {
	handlerBase
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService, logger *zap.Logger, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		handlerBase: newHandlerBase(logger, timeout),
		orders:      orders,
	}
}

type cartLine struct {
	MedicineID string `json:"medicineId" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
}

type medicinePaymentRequest struct {
	Medicines       []cartLine `json:"medicines" validate:"required,min=1,dive"`
	DeliveryAddress string     `json:"deliveryAddress" validate:"required"`
	PhoneNumber     string     `json:"phoneNumber" validate:"required"`
}

type medicinePaymentVerification struct {
	OrderID string `json:"orderId" validate:"required"`
	paymentVerification
}

// MedicinePayment prices the cart and opens a gateway order for it.
func (h *OrderHandler) MedicinePayment(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req medicinePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	if len(req.Medicines) == 0 {
		return badRequest(c, "No medicines provided")
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": firstValidationMessage(err),
			"details": formatValidationErrors(err),
		})
	}

	lines := make([]services.CartLine, 0, len(req.Medicines))
	for _, l := range req.Medicines {
		lines = append(lines, services.CartLine{MedicineID: l.MedicineID, Quantity: l.Quantity})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	checkout, err := h.orders.CreateMedicinePayment(ctx, actor, lines, req.DeliveryAddress, req.PhoneNumber)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":       true,
		"razorpayOrder": checkout.GatewayOrder,
		"orderId":       checkout.Order.ID,
	})
}

func (h *OrderHandler) VerifyMedicinePayment(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req medicinePaymentVerification
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	if validate.Struct(&req) != nil {
		return badRequest(c, "Missing required payment details")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	order, err := h.orders.VerifyMedicinePayment(ctx, actor, req.OrderID, req.confirmation())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment verified successfully",
		"order":   order,
	})
}

func (h *OrderHandler) UserOrders(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	orders, err := h.orders.UserOrders(ctx, actor)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": orders})
}

func (h *OrderHandler) AllOrders(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	orders, err := h.orders.AllOrders(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": orders})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}
