package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/pkg/jwt"
)

// Locals keys para usuario, institución y rol en Fiber.
const (
	LocalUserID        = "user_id"
	LocalInstitutionID = "institution_id"
	LocalRole          = "role"
)

// AuthMiddleware valida el Bearer Token JWT y deja UserID, InstitutionID y Role en c.Locals.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		userID, institutionID, role, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		c.Locals(LocalUserID, userID)
		c.Locals(LocalInstitutionID, institutionID)
		c.Locals(LocalRole, role)
		return c.Next()
	}
}

// RequireRole autoriza sólo a los roles indicados. Debe ir después de AuthMiddleware.
// admin siempre pasa.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		role := GetRole(c)
		if role == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_ROLE", Message: "rol no encontrado en el token"})
		}
		if _, ok := allowed[role]; ok || role == jwt.RoleAdmin {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: "el rol '" + role + "' no tiene acceso a este recurso",
		})
	}
}

func local(c *fiber.Ctx, key string) string {
	s, _ := c.Locals(key).(string)
	return s
}

// GetUserID devuelve el UserID del contexto (después del middleware de auth).
func GetUserID(c *fiber.Ctx) string { return local(c, LocalUserID) }

// GetInstitutionID devuelve la institución del usuario.
func GetInstitutionID(c *fiber.Ctx) string { return local(c, LocalInstitutionID) }

// GetRole devuelve el rol del usuario.
func GetRole(c *fiber.Ctx) string { return local(c, LocalRole) }

// scopedInstitution institución efectiva de la petición: admin puede pedir cualquiera,
// el resto queda acotado a la de su token.
func scopedInstitution(c *fiber.Ctx, requested string) string {
	if GetRole(c) == jwt.RoleAdmin && requested != "" {
		return requested
	}
	if own := GetInstitutionID(c); own != "" {
		return own
	}
	return requested
}
