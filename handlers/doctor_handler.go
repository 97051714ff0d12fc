package handlers

import (
	"time"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DoctorHandler struct {
	handlerBase
	accounts *services.AccountService
	booking  *services.BookingService
}

func NewDoctorHandler(accounts *services.AccountService, booking *services.BookingService, logger *zap.Logger, timeout time.Duration) *DoctorHandler {
	return &DoctorHandler{
		handlerBase: newHandlerBase(logger, timeout),
		accounts:    accounts,
		booking:     booking,
	}
}

type doctorProfileUpdate struct {
	Fees      float64        `json:"fees" validate:"gte=0"`
	Address   models.Address `json:"address"`
	Available bool           `json:"available"`
}

// AvailableDoctors is public; passwords and emails are never listed.
func (h *DoctorHandler) AvailableDoctors(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	doctors, err := h.accounts.AvailableDoctors(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": doctors})
}

func (h *DoctorHandler) LoginDoctor(c *fiber.Ctx) error {
	var req Credentials
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	if validate.Struct(&req) != nil {
		return badRequest(c, "Email and password are required")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	token, err := h.accounts.LoginDoctor(ctx, req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "token": token})
}

func (h *DoctorHandler) Appointments(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	appointments, err := h.booking.DoctorAppointments(ctx, actor)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": appointments})
}

// ChangeAppointmentStatus marks one of the doctor's appointments completed.
func (h *DoctorHandler) ChangeAppointmentStatus(c *fiber.Ctx) error {
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

	appointment, err := h.booking.Complete(ctx, actor, req.AppointmentID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Appointment marked as completed",
		"data":    appointment,
	})
}

func (h *DoctorHandler) CancelAppointment(c *fiber.Ctx) error {
	return cancelAppointment(h.handlerBase, h.booking, c)
}

func (h *DoctorHandler) Dashboard(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	dash, err := h.booking.DoctorDashboard(ctx, actor)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Dashboard data fetched successfully",
		"data":    dash,
	})
}

func (h *DoctorHandler) GetProfile(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	doctor, err := h.accounts.DoctorProfile(ctx, actor)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": doctor.DoctorProfile})
}

func (h *DoctorHandler) UpdateProfile(c *fiber.Ctx) error {
	actor, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req doctorProfileUpdate
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	err = h.accounts.UpdateDoctorProfile(ctx, actor, models.DoctorProfileUpdate{
		Fees:      req.Fees,
		Address:   req.Address,
		Available: req.Available,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Profile updated successfully"})
}
