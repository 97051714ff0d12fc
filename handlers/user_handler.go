package handlers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type UserHandler struct {
	handlerBase
	accounts *services.AccountService
	booking  *services.BookingService
}

func NewUserHandler(accounts *services.AccountService, booking *services.BookingService, logger *zap.Logger, timeout time.Duration) *UserHandler {
	return &UserHandler{
		handlerBase: newHandlerBase(logger, timeout),
		accounts:    accounts,
		booking:     booking,
	}
}

type UserRegister struct {
	Name     string `json:"name" form:"name" validate:"required"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

type Credentials struct {
	Email    string `json:"email" form:"email" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type appointmentRequest struct {
	AppointmentID string `json:"appointmentId" form:"appointmentId" validate:"required"`
}

type bookingRequest struct {
	DocID    string `json:"docId" validate:"required"`
	SlotDate string `json:"slotDate" validate:"required"`
	SlotTime string `json:"slotTime" validate:"required"`
}

type paymentVerification struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

func (p paymentVerification) confirmation() models.PaymentConfirmation {
	return models.PaymentConfirmation{
		OrderID:   p.RazorpayOrderID,
		PaymentID: p.RazorpayPaymentID,
		Signature: p.RazorpaySignature,
	}
}

type appointmentPaymentVerification struct {
	AppointmentID string `json:"appointmentId" validate:"required"`
	paymentVerification
}

func (h *UserHandler) RegisterUser(c *fiber.Ctx) error {
	var req UserRegister
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	token, err := h.accounts.RegisterUser(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "User registered successfully",
		"token":   token,
	})
}

func (h *UserHandler) LoginUser(c *fiber.Ctx) error {
	var req Credentials
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	token, err := h.accounts.LoginUser(ctx, req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "User logged in successfully",
		"token":   token,
	})
}

func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	profile, err := h.accounts.UserProfile(ctx, actor)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": profile})
}

// EditProfile is a multipart form. Empty fields keep their current value and an
// address that is not valid JSON keeps the stored address.
func (h *UserHandler) EditProfile(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	current, err := h.accounts.UserProfile(ctx, actor)
	if err != nil {
		return h.fail(c, err)
	}

	update := models.UserProfileUpdate{
		Name:    firstNonEmpty(c.FormValue("name"), current.Name),
		Phone:   firstNonEmpty(c.FormValue("phone"), current.Phone),
		Gender:  firstNonEmpty(c.FormValue("gender"), current.Gender),
		DOB:     firstNonEmpty(c.FormValue("dob"), current.DOB),
		Address: current.Address,
	}
	if raw := c.FormValue("address"); raw != "" {
		var address models.Address
		if err := json.Unmarshal([]byte(raw), &address); err != nil {
			h.logger.Debug("ignoring malformed address", zap.String("user_id", actor.ID), zap.Error(err))
		} else {
			update.Address = address
		}
	}

	profile, err := h.accounts.UpdateUserProfile(ctx, actor, update, formFile(c, "image"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "User profile updated successfully",
		"data":    profile,
	})
}

func (h *UserHandler) Logout(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.accounts.Logout(ctx, actor); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Logged out successfully"})
}

func (h *UserHandler) BookAppointment(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req bookingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	if validate.Struct(&req) != nil {
		return badRequest(c, "All fields are required")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	appointment, err := h.booking.Book(ctx, actor, req.DocID, req.SlotDate, req.SlotTime)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Appointment booked successfully",
		"data":    appointment,
	})
}

func (h *UserHandler) MyAppointments(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	appointments, err := h.booking.UserAppointments(ctx, actor)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Appointments fetched successfully",
		"data":    appointments,
	})
}

func (h *UserHandler) CancelAppointment(c *fiber.Ctx) error {
	return cancelAppointment(h.handlerBase, h.booking, c)
}

func (h *UserHandler) PaymentRazorpay(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req appointmentRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	order, err := h.booking.CreatePayment(ctx, actor, req.AppointmentID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "order": order})
}

func (h *UserHandler) VerifyPayment(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req appointmentPaymentVerification
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	if validate.Struct(&req) != nil {
		return badRequest(c, "Missing required payment details")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	appointment, err := h.booking.VerifyPayment(ctx, actor, req.AppointmentID, req.confirmation())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "Payment verified successfully",
		"appointment": appointment,
	})
}

// cancelAppointment serves the cancel route of every role. The booking
// service decides whether the caller may cancel.
func cancelAppointment(h handlerBase, booking *services.BookingService, c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req appointmentRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	appointment, err := booking.Cancel(ctx, actor, req.AppointmentID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Appointment cancelled successfully",
		"data":    appointment,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
