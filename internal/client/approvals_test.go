package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"alankar-sync/internal/config"
	"alankar-sync/internal/logging"
)

func TestFetchApprovalsSummary_DecodesCounts(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if got := r.Method; got != http.MethodGet {
				t.Fatalf("method = %q, want GET", got)
			}
			if got := r.URL.String(); got != "https://example.test/api/approvals/pending" {
				t.Fatalf("url = %q", got)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Status:     "200 OK",
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"pending":4,"approved":11,"rejected":2}`)),
				Request:    r,
			}, nil
		}),
	}

	c := New(
		httpClient,
		"token-123",
		config.APIEndpoints{ApprovalsURL: "https://example.test/api/approvals/pending"},
		testIdentity(),
		logging.New(false),
	)
	summary, err := c.FetchApprovalsSummary(context.Background())
	if err != nil {
		t.Fatalf("FetchApprovalsSummary() error = %v", err)
	}
	if summary.Pending != 4 {
		t.Fatalf("summary.Pending = %d, want 4", summary.Pending)
	}
	if summary.Approved != 11 || summary.Rejected != 2 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestFetchApprovalsSummary_UnauthorizedStatus(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusUnauthorized,
				Status:     "401 Unauthorized",
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"error":"expired"}`)),
				Request:    r,
			}, nil
		}),
	}

	c := New(
		httpClient,
		"token-123",
		config.APIEndpoints{ApprovalsURL: "https://example.test/api/approvals/pending"},
		testIdentity(),
		logging.New(false),
	)
	_, err := c.FetchApprovalsSummary(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("IsUnauthorized(%v) = false, want true", err)
	}
}
