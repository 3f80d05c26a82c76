// Package textnorm normaliza identificadores capturados (claves CNIS, CLUES, códigos de ubicación).
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Code recorta espacios (incluidos los no separables) y lleva a forma NFC.
// Conserva mayúsculas y minúsculas tal como se almacenan.
func Code(s string) string {
	s = strings.TrimFunc(s, unicode.IsSpace)
	return norm.NFC.String(s)
}

// Placeholder indica si la clave es un marcador de "sin clave" de las hojas de carga.
func Placeholder(s string) bool {
	switch strings.ToUpper(Code(s)) {
	case "", "S/CLAVE", "NAN", "N/A":
		return true
	}
	return false
}
