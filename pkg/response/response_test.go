package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	handler(c)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return resp
}

func TestSuccess(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, map[string]string{"status": "approved"})
	})

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := parseResponse(t, w)
	if resp.Code != 0 || resp.Message != "ok" {
		t.Errorf("unexpected envelope %+v", resp)
	}
}

func TestCreated(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Created(c, map[string]int{"id": 1})
	})

	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	if resp := parseResponse(t, w); resp.Message != "created" {
		t.Errorf("expected message 'created', got %q", resp.Message)
	}
}

func TestBadRequest(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		BadRequest(c, "invalid input")
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	resp := parseResponse(t, w)
	if resp.Code != 400 || resp.Message != "invalid input" {
		t.Errorf("unexpected envelope %+v", resp)
	}
}

func TestError_AppErrors(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{NewBadRequest("bad"), http.StatusBadRequest},
		{NewUnauthorized("who"), http.StatusUnauthorized},
		{NewNotFound("gone"), http.StatusNotFound},
		{NewConflict("moved on"), http.StatusConflict},
		{NewServerError("oops"), http.StatusInternalServerError},
		{NewServiceUnavailable("db down"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.err.Message, func(t *testing.T) {
			w := performRequest(func(c *gin.Context) { Error(c, tt.err) })
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			resp := parseResponse(t, w)
			if resp.Code != tt.status || resp.Message != tt.err.Message {
				t.Errorf("unexpected envelope %+v", resp)
			}
		})
	}
}

func TestError_WithField(t *testing.T) {
	base := NewBadRequest("rating must be between 1 and 5")
	w := performRequest(func(c *gin.Context) {
		Error(c, fmt.Errorf("submit: %w", base.WithField("rating")))
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if resp := parseResponse(t, w); resp.Field != "rating" {
		t.Errorf("expected field 'rating', got %q", resp.Field)
	}
	if base.Field != "" {
		t.Error("WithField must not modify the receiver")
	}
}

func TestError_WithGenericError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, errors.New("something went wrong"))
	})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if resp := parseResponse(t, w); resp.Code != 500 {
		t.Errorf("expected code 500, got %d", resp.Code)
	}
}
