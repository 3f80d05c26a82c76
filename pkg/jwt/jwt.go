package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles reconocidos por el motor.
const (
	RoleAdmin     = "admin"
	RoleWarehouse = "almacenista"
	RoleValidator = "validador"
	RoleReadOnly  = "consulta"
)

// ValidRole indica si role es uno de los roles del motor.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleWarehouse, RoleValidator, RoleReadOnly:
		return true
	}
	return false
}

// Claims incluye los claims estándar JWT más los campos propios de la aplicación.
// InstitutionID es la unidad (CLUES) a la que pertenece el usuario.
type Claims struct {
	jwt.RegisteredClaims
	UserID        string `json:"user_id"`
	InstitutionID string `json:"institution_id"`
	Role          string `json:"role"`
}

// Generate genera un token JWT firmado que incluye userID, institutionID y role.
func Generate(secret, userID, institutionID, role, issuer string, expMinutes int) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: secret vacío")
	}
	if role != "" && !ValidRole(role) {
		return "", fmt.Errorf("jwt: rol desconocido %q", role)
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expMinutes) * time.Minute)),
		},
		UserID:        userID,
		InstitutionID: institutionID,
		Role:          role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse valida el token y devuelve userID, institutionID y role.
// Retorna error si el token es inválido, expirado o tiene firma incorrecta.
func Parse(secret, tokenString string) (userID, institutionID, role string, err error) {
	if secret == "" {
		return "", "", "", fmt.Errorf("jwt: secret vacío")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de firma inesperado: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", "", err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", "", "", fmt.Errorf("claims inválidos")
	}
	// sin rol se permite: RequireRole lo rechaza con MISSING_ROLE
	if claims.Role != "" && !ValidRole(claims.Role) {
		return "", "", "", fmt.Errorf("rol desconocido: %q", claims.Role)
	}
	return claims.UserID, claims.InstitutionID, claims.Role, nil
}
