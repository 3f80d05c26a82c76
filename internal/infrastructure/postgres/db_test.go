package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/Farmacia-api/internal/domain"
)

func TestWrapErr_TraduceSQLState(t *testing.T) {
	cases := []struct {
		err  *pgconn.PgError
		want error
	}{
		{&pgconn.PgError{Code: "23505"}, domain.ErrDuplicate},
		{&pgconn.PgError{Code: "23503"}, domain.ErrNotFound},
		{&pgconn.PgError{Code: "23514", ConstraintName: "lots_quantity_available_check", Message: "violates check constraint"}, domain.ErrNegativeStock},
		{&pgconn.PgError{Code: "23514", ConstraintName: "lots_reserved_bounds"}, domain.ErrReservationIntegrity},
		{&pgconn.PgError{Code: "23514", ConstraintName: "bin_placements_reserved_bounds"}, domain.ErrReservationIntegrity},
	}
	for _, c := range cases {
		got := wrapErr("op", fmt.Errorf("exec: %w", c.err))
		assert.ErrorIs(t, got, c.want, c.err.Code)
	}
}

func TestWrapErr_ConservaOtrosErrores(t *testing.T) {
	base := errors.New("conexión cerrada")
	assert.Nil(t, wrapErr("op", nil))
	got := wrapErr("list lots", base)
	assert.ErrorIs(t, got, base)
	assert.Contains(t, got.Error(), "list lots")
}

func TestWhere_NumeraPlaceholders(t *testing.T) {
	var w where
	assert.Equal(t, "", w.String())
	w.add(`product_id = ?`, "p-1")
	w.raw(`quantity_available > 0`)
	w.add(`(clave_cnis ILIKE ? OR description ILIKE ?)`, "%para%")
	assert.Equal(t, " WHERE product_id = $1 AND quantity_available > 0 AND (clave_cnis ILIKE $2 OR description ILIKE $2)", w.String())
	assert.Equal(t, []any{"p-1", "%para%"}, w.args)
}

func TestPageClause(t *testing.T) {
	assert.Equal(t, "", pageClause(0, 0))
	assert.Equal(t, " LIMIT 20", pageClause(20, 0))
	assert.Equal(t, " LIMIT 20 OFFSET 40", pageClause(20, 40))
}
