package handlers

import (
	"encoding/json"
	"mime/multipart"
	"time"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AdminHandler struct {
	handlerBase
	accounts *services.AccountService
	booking  *services.BookingService
}

func NewAdminHandler(accounts *services.AccountService, booking *services.BookingService, logger *zap.Logger, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		handlerBase: newHandlerBase(logger, timeout),
		accounts:    accounts,
		booking:     booking,
	}
}

// addDoctorForm is the multipart form of add-doctor. Address arrives as a JSON string.
type addDoctorForm struct {
	Name       string  `json:"name" form:"name" validate:"required"`
	Email      string  `json:"email" form:"email" validate:"required,email"`
	Password   string  `json:"password" form:"password" validate:"required,min=8"`
	Speciality string  `json:"speciality" form:"speciality" validate:"required"`
	Degree     string  `json:"degree" form:"degree" validate:"required"`
	Experience string  `json:"experience" form:"experience" validate:"required"`
	About      string  `json:"about" form:"about" validate:"required"`
	Fees       float64 `json:"fees" form:"fees" validate:"required,gt=0"`
	Address    string  `json:"address" form:"address" validate:"required"`
}

type availabilityRequest struct {
	DocID string `json:"docId" validate:"required"`
}

func formFile(c *fiber.Ctx, field string) *multipart.FileHeader {
	file, err := c.FormFile(field)
	if err != nil {
		return nil
	}
	return file
}

func (h *AdminHandler) LoginAdmin(c *fiber.Ctx) error {
	var req Credentials
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	if validate.Struct(&req) != nil {
		return badRequest(c, "Email and password are required")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	token, err := h.accounts.LoginAdmin(ctx, req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Admin logged in successfully",
		"token":   token,
	})
}

func (h *AdminHandler) AddDoctor(c *fiber.Ctx) error {
	var form addDoctorForm
	if err := c.BodyParser(&form); err != nil {
		return badRequest(c, "Invalid request data")
	}
	image := formFile(c, "image")
	if image == nil {
		return badRequest(c, "All fields are required for adding a doctor")
	}
	if err := validate.Struct(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": firstValidationMessage(err),
			"details": formatValidationErrors(err),
		})
	}
	var address models.Address
	if err := json.Unmarshal([]byte(form.Address), &address); err != nil {
		return badRequest(c, "Address must be a JSON object")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	doctor, err := h.accounts.AddDoctor(ctx, services.NewDoctor{
		Name:       form.Name,
		Email:      form.Email,
		Password:   form.Password,
		Speciality: form.Speciality,
		Degree:     form.Degree,
		Experience: form.Experience,
		About:      form.About,
		Fees:       form.Fees,
		Address:    address,
	}, image)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Doctor added successfully",
		"data":    doctor,
	})
}

func (h *AdminHandler) AllDoctors(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	doctors, err := h.accounts.AllDoctors(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Doctors fetched successfully",
		"data":    doctors,
	})
}

func (h *AdminHandler) ChangeAvailability(c *fiber.Ctx) error {
	var req availabilityRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.accounts.ChangeAvailability(ctx, req.DocID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Availability changed successfully"})
}

func (h *AdminHandler) Appointments(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	appointments, err := h.booking.AllAppointments(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Appointments fetched successfully",
		"data":    appointments,
	})
}

func (h *AdminHandler) CancelAppointment(c *fiber.Ctx) error {
	return cancelAppointment(h.handlerBase, h.booking, c)
}

func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	dash, err := h.booking.AdminDashboard(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Dashboard data fetched successfully",
		"data":    dash,
	})
}
