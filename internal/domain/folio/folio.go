// Package folio genera y valida folios con formato PREFIJO-AAAA-NNNNNN.
package folio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jhoicas/Farmacia-api/internal/domain"
)

// DefaultPrefix prefijo de los folios de solicitud.
const DefaultPrefix = "IB"

const seqDigits = 6

// MaxSequence mayor consecutivo representable en un año.
const MaxSequence = 999999

// Folio partes de un folio ya validado.
type Folio struct {
	Prefix   string
	Year     int
	Sequence int
}

func (f Folio) String() string {
	return Format(f.Prefix, f.Year, f.Sequence)
}

// Format arma el folio; la secuencia se rellena con ceros a 6 dígitos.
func Format(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%04d-%0*d", prefix, year, seqDigits, seq)
}

// Parse divide por "-" y valida cada parte.
func Parse(s string) (Folio, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return Folio{}, fmt.Errorf("%w: %q", domain.ErrInvalidFolio, s)
	}
	prefix, yearStr, seqStr := parts[0], parts[1], parts[2]
	if prefix == "" || !isUpperAlpha(prefix) {
		return Folio{}, fmt.Errorf("%w: prefijo %q", domain.ErrInvalidFolio, prefix)
	}
	if len(yearStr) != 4 || !isDigits(yearStr) {
		return Folio{}, fmt.Errorf("%w: año %q", domain.ErrInvalidFolio, yearStr)
	}
	if len(seqStr) != seqDigits || !isDigits(seqStr) {
		return Folio{}, fmt.Errorf("%w: consecutivo %q", domain.ErrInvalidFolio, seqStr)
	}
	year, _ := strconv.Atoi(yearStr)
	seq, _ := strconv.Atoi(seqStr)
	if seq < 1 {
		return Folio{}, fmt.Errorf("%w: consecutivo en cero", domain.ErrInvalidFolio)
	}
	return Folio{Prefix: prefix, Year: year, Sequence: seq}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
