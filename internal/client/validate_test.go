package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"alankar-sync/internal/config"
	"alankar-sync/internal/logging"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func testIdentity() IdentityFunc {
	return func() Identity {
		return Identity{
			UserID:     "user-7",
			FullName:   "Asha Verma",
			Email:      "asha@example.test",
			Department: "finance",
		}
	}
}

func TestValidateSession_SendsIdentityHeadersAndBody(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if got := r.Method; got != http.MethodPost {
				t.Fatalf("method = %q, want POST", got)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
				t.Fatalf("Authorization = %q, want Bearer token-123", got)
			}
			if got := r.Header.Get("X-User-Name"); got != "Asha Verma" {
				t.Fatalf("X-User-Name = %q", got)
			}
			if got := r.Header.Get("X-User-Email"); got != "asha@example.test" {
				t.Fatalf("X-User-Email = %q", got)
			}
			if got := r.Header.Get("X-User-Department"); got != "finance" {
				t.Fatalf("X-User-Department = %q", got)
			}

			var body struct {
				UserID            string `json:"userId"`
				CurrentDepartment string `json:"currentDepartment"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode request body: %v", err)
			}
			if body.UserID != "user-7" {
				t.Fatalf("userId = %q, want user-7", body.UserID)
			}
			if body.CurrentDepartment != "finance" {
				t.Fatalf("currentDepartment = %q, want finance", body.CurrentDepartment)
			}

			return &http.Response{
				StatusCode: http.StatusOK,
				Status:     "200 OK",
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"valid":true}`)),
				Request:    r,
			}, nil
		}),
	}

	c := New(
		httpClient,
		"token-123",
		config.APIEndpoints{SessionValidateURL: "https://example.test/api/auth/validate-session"},
		testIdentity(),
		logging.New(false),
	)
	verdict, err := c.ValidateSession(context.Background())
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if !verdict.Valid {
		t.Fatalf("verdict.Valid = false, want true")
	}
}

func TestValidateSession_DecodesInvalidVerdict(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Status:     "200 OK",
				Header:     make(http.Header),
				Body: io.NopCloser(strings.NewReader(
					`{"valid":false,"reason":"Department changed","new_department":"production"}`,
				)),
				Request: r,
			}, nil
		}),
	}

	c := New(
		httpClient,
		"token-123",
		config.APIEndpoints{SessionValidateURL: "https://example.test/api/auth/validate-session"},
		testIdentity(),
		logging.New(false),
	)
	verdict, err := c.ValidateSession(context.Background())
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if verdict.Valid {
		t.Fatalf("verdict.Valid = true, want false")
	}
	if verdict.Reason != ReasonDepartmentChanged {
		t.Fatalf("verdict.Reason = %q, want %q", verdict.Reason, ReasonDepartmentChanged)
	}
	if verdict.NewDepartment != "production" {
		t.Fatalf("verdict.NewDepartment = %q, want production", verdict.NewDepartment)
	}
}

func TestValidateSession_ErrorStatusReturnsHTTPStatusError(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Status:     "404 Not Found",
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"error":"user missing"}`)),
				Request:    r,
			}, nil
		}),
	}

	c := New(
		httpClient,
		"token-123",
		config.APIEndpoints{SessionValidateURL: "https://example.test/api/auth/validate-session"},
		testIdentity(),
		logging.New(false),
	)
	_, err := c.ValidateSession(context.Background())
	if err == nil {
		t.Fatalf("ValidateSession() error = nil, want status error")
	}
	if !IsHTTPStatus(err) {
		t.Fatalf("IsHTTPStatus(%v) = false, want true", err)
	}
	if IsUnauthorized(err) {
		t.Fatalf("IsUnauthorized(%v) = true for 404, want false", err)
	}
}
