package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/Farmacia-api/internal/domain"
)

// Querier lo que comparten *pgxpool.Pool y pgx.Tx; los repositorios aceptan cualquiera.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Códigos SQLSTATE que se traducen a errores de dominio.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	code, _ := sqlState(err)
	return code == codeUniqueViolation
}

func sqlState(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// wrapErr traduce errores de PostgreSQL a errores de dominio conservando el detalle.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	code, constraint := sqlState(err)
	switch code {
	case codeUniqueViolation:
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicate)
	case codeForeignKeyViolation:
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case codeCheckViolation:
		// *_reserved_bounds: reservado fuera de [0, existencia].
		if strings.HasSuffix(constraint, "_reserved_bounds") {
			return fmt.Errorf("%s: %w", op, domain.ErrReservationIntegrity)
		}
		return fmt.Errorf("%s: %w", op, domain.ErrNegativeStock)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// mustAffect devuelve ErrNotFound si la sentencia no tocó ninguna fila.
func mustAffect(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return wrapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

// noRows convierte pgx.ErrNoRows en (nil, nil), la convención de los Get*.
func noRows[T any](v *T, err error, op string) (*T, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(op, err)
	}
	return v, nil
}

// nullable guarda cadenas vacías como NULL (columnas UUID opcionales).
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// pageClause LIMIT/OFFSET; limit 0 devuelve todo.
func pageClause(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String()
}

// where acumula condiciones con placeholders numerados.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) raw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
