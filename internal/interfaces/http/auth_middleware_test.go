package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/Farmacia-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/Farmacia-api/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret     = "test-secret-key-for-unit-tests"
	testUserID        = "00000000-0000-0000-0000-000000000001"
	testInstitutionID = "00000000-0000-0000-0000-000000000002"
	testIssuer        = "farmacia-api-test"
	testExpMin        = 60
)

// buildTestApp aplicación mínima: AuthMiddleware + RequireRole + handler que responde 200.
func buildTestApp(allowedRoles ...string) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Get("/protected",
		apphttp.AuthMiddleware(testJWTSecret),
		apphttp.RequireRole(allowedRoles...),
		func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"ok":   true,
				"role": apphttp.GetRole(c),
			})
		},
	)
	return app
}

// tokenFor genera un JWT con la institución y el rol indicados.
func tokenFor(t *testing.T, institutionID, role string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, testUserID, institutionID, role, testIssuer, testExpMin)
	require.NoError(t, err, "debe generarse un token JWT válido")
	return "Bearer " + tok
}

func tokenForRole(t *testing.T, role string) string {
	return tokenFor(t, testInstitutionID, role)
}

func doRequest(t *testing.T, app *fiber.App, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests RequireRole
// ──────────────────────────────────────────────────────────────────────────────

func TestRequireRole_AlmacenistaAccedeRutaDeAlmacen(t *testing.T) {
	app := buildTestApp(pkgjwt.RoleWarehouse)
	resp := doRequest(t, app, tokenForRole(t, pkgjwt.RoleWarehouse))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, pkgjwt.RoleWarehouse, body["role"])
}

// admin pasa aunque no esté en la lista.
func TestRequireRole_AdminSiemprePasa(t *testing.T) {
	app := buildTestApp(pkgjwt.RoleValidator)
	resp := doRequest(t, app, tokenForRole(t, pkgjwt.RoleAdmin))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireRole_ValidadorAccedeRutaMultirol(t *testing.T) {
	app := buildTestApp(pkgjwt.RoleWarehouse, pkgjwt.RoleValidator)
	resp := doRequest(t, app, tokenForRole(t, pkgjwt.RoleValidator))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireRole_ConsultaBloqueadoEnRutaDeAlmacen(t *testing.T) {
	app := buildTestApp(pkgjwt.RoleWarehouse)
	resp := doRequest(t, app, tokenForRole(t, pkgjwt.RoleReadOnly))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "FORBIDDEN")
}

func TestRequireRole_TokenSinRol_Retorna401(t *testing.T) {
	app := buildTestApp(pkgjwt.RoleAdmin)
	resp := doRequest(t, app, tokenForRole(t, ""))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "MISSING_ROLE")
}

func TestRequireRole_SinAuthHeader_Retorna401(t *testing.T) {
	app := buildTestApp(pkgjwt.RoleAdmin)
	resp := doRequest(t, app, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "MISSING_TOKEN")
}

func TestRequireRole_TokenInvalido_Retorna401(t *testing.T) {
	app := buildTestApp(pkgjwt.RoleAdmin)
	resp := doRequest(t, app, "Bearer token.invalido.aqui")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests AuthMiddleware
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_ExtraeClaims(t *testing.T) {
	app := fiber.New()
	app.Get("/me", apphttp.AuthMiddleware(testJWTSecret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id":        apphttp.GetUserID(c),
			"institution_id": apphttp.GetInstitutionID(c),
			"role":           apphttp.GetRole(c),
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", tokenForRole(t, pkgjwt.RoleValidator))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, testUserID, body["user_id"])
	assert.Equal(t, testInstitutionID, body["institution_id"])
	assert.Equal(t, pkgjwt.RoleValidator, body["role"])
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests JWT pkg
// ──────────────────────────────────────────────────────────────────────────────

func TestJWT_GenerateAndParse_ConRol(t *testing.T) {
	tok, err := pkgjwt.Generate(testJWTSecret, testUserID, testInstitutionID, pkgjwt.RoleWarehouse, testIssuer, testExpMin)
	require.NoError(t, err)

	userID, institutionID, role, err := pkgjwt.Parse(testJWTSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, testUserID, userID)
	assert.Equal(t, testInstitutionID, institutionID)
	assert.Equal(t, pkgjwt.RoleWarehouse, role)
}

func TestJWT_TokenExpirado_RetornaError(t *testing.T) {
	tok, err := pkgjwt.Generate(testJWTSecret, testUserID, testInstitutionID, pkgjwt.RoleAdmin, testIssuer, -1)
	require.NoError(t, err)

	_, _, _, err = pkgjwt.Parse(testJWTSecret, tok)
	assert.Error(t, err)
}

func TestJWT_SecretIncorrecto_RetornaError(t *testing.T) {
	tok, err := pkgjwt.Generate(testJWTSecret, testUserID, testInstitutionID, pkgjwt.RoleAdmin, testIssuer, testExpMin)
	require.NoError(t, err)

	_, _, _, err = pkgjwt.Parse("otro-secret-completamente-distinto", tok)
	assert.Error(t, err)
}
