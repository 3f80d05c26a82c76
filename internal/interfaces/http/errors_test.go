package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain"
)

func TestWriteError_TraduceErroresDeDominio(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("lote x: %w", domain.ErrNotFound), fiber.StatusNotFound, "NOT_FOUND"},
		{domain.NewTransitionError("propuesta", "GENERATED", "DISPATCHED"), fiber.StatusConflict, "INVALID_TRANSITION"},
		{domain.ErrUnknownKey, fiber.StatusUnprocessableEntity, "UNKNOWN_KEY"},
		{domain.ErrInvalidQuantity, fiber.StatusBadRequest, "INVALID_QUANTITY"},
		{domain.ErrReservationIntegrity, fiber.StatusConflict, "RESERVATION_INTEGRITY"},
		{errors.New("fallo de red"), fiber.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error { return writeError(c, tc.err) })
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
		require.NoError(t, err)

		var body dto.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		assert.Equal(t, tc.status, resp.StatusCode, tc.err.Error())
		assert.Equal(t, tc.code, body.Code)
		assert.Equal(t, tc.err.Error(), body.Message)
	}
}

func TestWriteError_TransicionConDetalle(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return writeError(c, fmt.Errorf("despachar: %w", domain.NewTransitionError("propuesta", "GENERATED", "DISPATCHED")))
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body dto.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"entity": "propuesta", "from": "GENERATED", "to": "DISPATCHED"}, body.Details)
}

func TestPageParams_AcotaLimite(t *testing.T) {
	app := fiber.New()
	var got dto.PageRequest
	app.Get("/", func(c *fiber.Ctx) error {
		got = pageParams(c)
		return nil
	})
	_, err := app.Test(httptest.NewRequest("GET", "/?limit=500&offset=-3", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, dto.PageRequest{Limit: dto.MaxPageLimit, Offset: 0}, got)
}
