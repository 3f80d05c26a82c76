package jwt_test

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/pkg/jwt"
)

const secret = "secreto-de-prueba"

func TestGenerateParse_IdaYVuelta(t *testing.T) {
	tok, err := jwt.Generate(secret, "u-1", "DFSSA000001", jwt.RoleValidator, "farmacia", 5)
	require.NoError(t, err)

	user, inst, role, err := jwt.Parse(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user)
	assert.Equal(t, "DFSSA000001", inst)
	assert.Equal(t, jwt.RoleValidator, role)
}

func TestGenerate_RolDesconocido(t *testing.T) {
	_, err := jwt.Generate(secret, "u-1", "", "gerente", "farmacia", 5)
	assert.Error(t, err)
}

func TestParse_RechazaRolDesconocido(t *testing.T) {
	claims := jwt.Claims{
		RegisteredClaims: gojwt.RegisteredClaims{ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Minute))},
		UserID:           "u-1",
		Role:             "gerente",
	}
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, _, _, err = jwt.Parse(secret, tok)
	assert.Error(t, err)
}

func TestParse_FirmaIncorrecta(t *testing.T) {
	tok, err := jwt.Generate(secret, "u-1", "", jwt.RoleAdmin, "farmacia", 5)
	require.NoError(t, err)

	_, _, _, err = jwt.Parse("otro-secreto", tok)
	assert.Error(t, err)
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{jwt.RoleAdmin, jwt.RoleWarehouse, jwt.RoleValidator, jwt.RoleReadOnly} {
		assert.True(t, jwt.ValidRole(r), r)
	}
	assert.False(t, jwt.ValidRole(""))
	assert.False(t, jwt.ValidRole("ADMIN"))
}
