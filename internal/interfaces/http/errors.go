package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// El orden importa: TransitionError envuelve ErrInvalidTransition.
var errorMappings = []errorMapping{
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrUnknownKey, fiber.StatusUnprocessableEntity, "UNKNOWN_KEY"},
	{domain.ErrInvalidQuantity, fiber.StatusBadRequest, "INVALID_QUANTITY"},
	{domain.ErrInvalidFolio, fiber.StatusBadRequest, "INVALID_FOLIO"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE"},
	{domain.ErrInvalidTransition, fiber.StatusConflict, "INVALID_TRANSITION"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrInsufficientStock, fiber.StatusUnprocessableEntity, "INSUFFICIENT_STOCK"},
	{domain.ErrLotNotAvailable, fiber.StatusUnprocessableEntity, "LOT_NOT_AVAILABLE"},
	{domain.ErrNoAvailability, fiber.StatusUnprocessableEntity, "NO_AVAILABILITY"},
	{domain.ErrNegativeStock, fiber.StatusConflict, "NEGATIVE_STOCK"},
	{domain.ErrReservationIntegrity, fiber.StatusConflict, "RESERVATION_INTEGRITY"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
}

// writeError traduce un error de dominio a su código HTTP.
func writeError(c *fiber.Ctx, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			body := dto.ErrorResponse{Code: m.code, Message: err.Error()}
			var te *domain.TransitionError
			if errors.As(err, &te) {
				body.Details = map[string]string{"entity": te.Entity, "from": te.From, "to": te.To}
			}
			return c.Status(m.status).JSON(body)
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func badRequest(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: code, Message: msg})
}

func pageParams(c *fiber.Ctx) dto.PageRequest {
	p := dto.PageRequest{Limit: c.QueryInt("limit", dto.DefaultPageLimit), Offset: c.QueryInt("offset", 0)}
	p.Normalize()
	return p
}

// queryDate acepta YYYY-MM-DD o RFC3339; vacío devuelve nil.
func queryDate(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New(key + ": fecha inválida")
}

func queryBool(c *fiber.Ctx, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}
