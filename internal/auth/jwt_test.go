package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	token, err := GenerateJWT("s3cret", "candidate-42", time.Hour)
	require.NoError(t, err)

	subject, err := ValidateJWT("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "candidate-42", subject)

	_, err = ValidateJWT("other-secret", token)
	assert.Error(t, err)

	expired, err := GenerateJWT("s3cret", "candidate-42", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT("s3cret", expired)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	token, err := GenerateJWT("s3cret", "candidate-42", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"disabled", "", "", http.StatusNoContent},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"bad token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "s3cret", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Middleware(tt.secret)(next).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, "candidate-42", seen)
}
