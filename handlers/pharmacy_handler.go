package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PharmacyHandler handles the medicine catalog.
type PharmacyHandler struct {
	handlerBase
	pharmacy *services.PharmacyService
}

func NewPharmacyHandler(pharmacy *services.PharmacyService, logger *zap.Logger, timeout time.Duration) *PharmacyHandler {
	return &PharmacyHandler{
		handlerBase: newHandlerBase(logger, timeout),
		pharmacy:    pharmacy,
	}
}

type medicineForm struct {
	Name       string  `json:"name" form:"name" validate:"required"`
	Brand      string  `json:"brand" form:"brand" validate:"required"`
	Form       string  `json:"form" form:"form" validate:"required,oneof=Tablet Syrup"`
	Dose       string  `json:"dose" form:"dose" validate:"required"`
	Price      float64 `json:"price" form:"price" validate:"required,gt=0"`
	Stock      int     `json:"stock" form:"stock" validate:"required"`
	ExpiryDate string  `json:"expiryDate" form:"expiryDate" validate:"required"`
}

type stockRequest struct {
	MedicineID string `json:"medicineId" validate:"required"`
	Stock      *int   `json:"stock" validate:"required"`
}

type medicineRequest struct {
	MedicineID string `json:"medicineId" validate:"required"`
}

var expiryLayouts = []string{"2006-01-02", time.RFC3339, "02-01-2006"}

func parseExpiry(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (h *PharmacyHandler) AddMedicine(c *fiber.Ctx) error {
	var form medicineForm
	if err := c.BodyParser(&form); err != nil {
		return badRequest(c, "Invalid request data")
	}
	image := formFile(c, "image")
	if image == nil || validate.Struct(&form) != nil {
		return badRequest(c, "All fields are required")
	}
	expiry, ok := parseExpiry(form.ExpiryDate)
	if !ok {
		return badRequest(c, "Invalid expiry date")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	medicine, err := h.pharmacy.AddMedicine(ctx, services.NewMedicine{
		Name:       form.Name,
		Brand:      form.Brand,
		Form:       models.MedicineForm(form.Form),
		Dose:       form.Dose,
		Price:      form.Price,
		Stock:      form.Stock,
		ExpiryDate: expiry,
	}, image)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Medicine added successfully",
		"data":    medicine,
	})
}

func (h *PharmacyHandler) AllMedicines(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	medicines, err := h.pharmacy.ListMedicines(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": medicines})
}

func (h *PharmacyHandler) UpdateStock(c *fiber.Ctx) error {
	var req stockRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if _, err := h.pharmacy.UpdateStock(ctx, req.MedicineID, *req.Stock); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Stock updated successfully"})
}

func (h *PharmacyHandler) RemoveMedicine(c *fiber.Ctx) error {
	var req medicineRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.pharmacy.RemoveMedicine(ctx, req.MedicineID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Medicine removed successfully"})
}

// EditMedicine applies only the form fields that are present.
func (h *PharmacyHandler) EditMedicine(c *fiber.Ctx) error {
	medicineID := c.Params("medicineId")
	if medicineID == "" {
		return badRequest(c, "Medicine id is required")
	}

	var update models.MedicineUpdate
	if v := strings.TrimSpace(c.FormValue("name")); v != "" {
		update.Name = &v
	}
	if v := strings.TrimSpace(c.FormValue("brand")); v != "" {
		update.Brand = &v
	}
	if v := strings.TrimSpace(c.FormValue("form")); v != "" {
		form := models.MedicineForm(v)
		update.Form = &form
	}
	if v := strings.TrimSpace(c.FormValue("dose")); v != "" {
		update.Dose = &v
	}
	if v := strings.TrimSpace(c.FormValue("price")); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return badRequest(c, "Invalid price")
		}
		update.Price = &price
	}
	if v := strings.TrimSpace(c.FormValue("stock")); v != "" {
		stock, err := strconv.Atoi(v)
		if err != nil {
			return badRequest(c, "Invalid stock")
		}
		update.Stock = &stock
	}
	if v := c.FormValue("expiryDate"); v != "" {
		expiry, ok := parseExpiry(v)
		if !ok {
			return badRequest(c, "Invalid expiry date")
		}
		update.ExpiryDate = &expiry
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	medicine, err := h.pharmacy.EditMedicine(ctx, medicineID, update, formFile(c, "image"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Medicine updated successfully",
		"data":    medicine,
	})
}
