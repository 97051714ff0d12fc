package handlers

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/VanitasCaesar1/clinic/middleware"
	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 10 * time.Second

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// handlerBase carries what every handler needs to answer a request.
type handlerBase struct {
	logger  *zap.Logger
	timeout time.Duration
}

func newHandlerBase(logger *zap.Logger, timeout time.Duration) handlerBase {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return handlerBase{logger: logger, timeout: timeout}
}

// requestContext bounds the store calls made for one request.
func (h handlerBase) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.timeout)
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindPayment:
		return fiber.StatusBadRequest
	case services.KindUnauthorized:
		return fiber.StatusUnauthorized
	case services.KindForbidden:
		return fiber.StatusForbidden
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes err as a {success:false, message} envelope. Unclassified errors
// are logged and answered with 500 and their raw message.
func (h handlerBase) fail(c *fiber.Ctx, err error) error {
	var svcErr *services.Error
	if errors.As(err, &svcErr) && svcErr.Kind != services.KindInternal {
		return c.Status(statusFor(svcErr.Kind)).JSON(fiber.Map{
			"success": false,
			"message": svcErr.Message,
		})
	}

	h.logger.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// parseBody decodes and validates the request into req, answering 400 itself
// when either step fails. ok is false when a response was written.
func (h handlerBase) parseBody(c *fiber.Ctx, req interface{}) (ok bool, err error) {
	if err := c.BodyParser(req); err != nil {
		h.logger.Debug("failed to parse request body", zap.String("path", c.Path()), zap.Error(err))
		return false, badRequest(c, "Invalid request data")
	}
	if err := validate.Struct(req); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": firstValidationMessage(err),
			"details": formatValidationErrors(err),
		})
	}
	return true, nil
}

// caller returns the authenticated principal. The auth middleware guarantees
// one on protected routes.
func caller(c *fiber.Ctx) (models.Principal, error) {
	p, ok := middleware.Principal(c)
	if !ok {
		return models.Principal{}, services.Unauthorized("Not Authorized Login Again")
	}
	return p, nil
}

// formatValidationErrors formats validation errors for better response
func formatValidationErrors(err error) interface{} {
	var validationErrors []map[string]string

	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			validationErrors = append(validationErrors, map[string]string{
				"field":   fe.Field(),
				"tag":     fe.Tag(),
				"message": getValidationMessage(fe),
			})
		}
		return validationErrors
	}

	return err.Error()
}

func firstValidationMessage(err error) string {
	if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
		return getValidationMessage(ve[0])
	}
	return "Invalid request data"
}

// getValidationMessage returns user-friendly validation messages
func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "email":
		return "Please enter a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
