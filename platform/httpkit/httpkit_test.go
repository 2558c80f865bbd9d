package httpkit

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"workorders_backend/platform/apperr"
	"workorders_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type jwtConfig string

func (c jwtConfig) GetJWTAccessSecret() string { return string(c) }

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func identityEngine(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/me", AuthRequired(jwtConfig(secret)), func(c *gin.Context) {
		id := MustGetIdentity(c)
		if id == nil {
			return
		}
		OK(c, gin.H{"id": id.UserID().String(), "name": id.Name(), "manager": id.HasRole("manager")})
	})
	return engine
}

func TestAuthRequiredAcceptsAccessToken(t *testing.T) {
	userID := uuid.New()
	token := sign(t, "s3cret", jwt.MapClaims{
		"sub":   userID.String(),
		"type":  "access",
		"name":  "  Dana  ",
		"roles": []string{"manager"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	identityEngine("s3cret").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Manager bool   `json:"manager"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != userID.String() || body.Name != "Dana" || !body.Manager {
		t.Fatalf("unexpected identity: %+v", body)
	}
}

func TestAuthRequiredFallsBackToQueryToken(t *testing.T) {
	token := sign(t, "s3cret", jwt.MapClaims{"sub": uuid.NewString(), "type": "access"})

	rec := httptest.NewRecorder()
	identityEngine("s3cret").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequiredRejectsBadTokens(t *testing.T) {
	cases := map[string]string{
		"wrong secret": sign(t, "other", jwt.MapClaims{"sub": uuid.NewString(), "type": "access"}),
		"refresh type": sign(t, "s3cret", jwt.MapClaims{"sub": uuid.NewString(), "type": "refresh"}),
		"bad subject":  sign(t, "s3cret", jwt.MapClaims{"sub": "nope", "type": "access"}),
	}
	for name, token := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		identityEngine("s3cret").ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestHandleErrorMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.NotFound("missing"), http.StatusNotFound, "not_found"},
		{apperr.Forbidden("no"), http.StatusForbidden, "forbidden"},
		{apperr.NotAssigned("not yours"), http.StatusForbidden, "not_assigned"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		if !HandleError(c, tc.err) {
			t.Fatalf("expected %v to be handled", tc.err)
		}
		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rec.Code != tc.status || body.Code != tc.code {
			t.Fatalf("%v: got %d %q, want %d %q", tc.err, rec.Code, body.Code, tc.status, tc.code)
		}
	}
	if HandleError(nil, nil) {
		t.Fatalf("nil error must not be handled")
	}
}

func TestRateLimitRejectsBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewIPRateLimiter(rate.Limit(0.001), 1, nil)
	engine := gin.New()
	engine.POST("/w", limiter.RateLimit(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	first := httptest.NewRecorder()
	engine.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/w", nil))
	second := httptest.NewRecorder()
	engine.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/w", nil))

	if first.Code != http.StatusNoContent || second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 204 then 429, got %d then %d", first.Code, second.Code)
	}
}

func TestRequestLoggerRecordsServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := logger.New("production", logger.WithWriter(&buf))

	engine := gin.New()
	engine.Use(RequestLogger(log))
	engine.GET("/boom", func(c *gin.Context) { HandleError(c, errors.New("db down")) })
	engine.GET("/missing", func(c *gin.Context) { HandleError(c, apperr.NotFound("nope")) })

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	if strings.Contains(buf.String(), "http_error") {
		t.Fatalf("client errors must not be logged as server errors: %s", buf.String())
	}

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	out := buf.String()
	if !strings.Contains(out, "http_error") || !strings.Contains(out, "db down") {
		t.Fatalf("expected http_error with cause, got %s", out)
	}
}
