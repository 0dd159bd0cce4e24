package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/sqlpulse/internal/auth"
	"github.com/charlesng35/sqlpulse/pkg/response"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *auth.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "0123456789abcdef0123456789abcdef", Issuer: "sqlpulse"})
	require.NoError(t, err)

	r := gin.New()
	r.POST("/runs", Auth(tokens), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString(CtxSubjectKey), "claims_subject": claims.Subject})
	})
	return r, tokens
}

func TestAuthAcceptsValidBearerToken(t *testing.T) {
	r, tokens := newAuthRouter(t)
	token, err := tokens.Issue("ops")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/runs", nil)
	req.Header.Set("Authorization", "bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"subject":"ops","claims_subject":"ops"}`, w.Body.String())
}

func TestAuthRejectsMissingOrInvalidToken(t *testing.T) {
	r, _ := newAuthRouter(t)

	for name, header := range map[string]string{
		"missing":   "",
		"basic":     "Basic b3BzOnNlY3JldA==",
		"malformed": "Bearer not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/runs", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusUnauthorized, w.Code)
			require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			var payload response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
			require.Equal(t, "UNAUTHORIZED", payload.Error.Code)
		})
	}
}
