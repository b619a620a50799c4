package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clipscribe/backend/internal/auth"
)

func newProtectedRouter(jwtService *auth.JWTService, seen *uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWT(jwtService), func(c *gin.Context) {
		*seen = c.MustGet(auth.ContextUserID).(uuid.UUID)
		c.Status(http.StatusOK)
	})
	return r
}

func TestJWT_SetsUserIDUnderSharedContextKey(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 1)
	userID := uuid.New()
	token, err := jwtService.Generate(userID, "user@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var seen uuid.UUID
	r := newProtectedRouter(jwtService, &seen)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if seen != userID {
		t.Errorf("downstream handler saw user id %s, want %s", seen, userID)
	}
}

func TestJWT_RejectsBadCredentials(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 1)
	var seen uuid.UUID
	r := newProtectedRouter(jwtService, &seen)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + mustToken(t, auth.NewJWTService("other-secret", 1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func mustToken(t *testing.T, s *auth.JWTService) string {
	t.Helper()
	token, err := s.Generate(uuid.New(), "user@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}
