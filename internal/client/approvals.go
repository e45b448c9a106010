package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"alankar-sync/internal/logging"
)

// ApprovalsSummary is the pending-approvals badge data the app polls for.
type ApprovalsSummary struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

func (c *ERPClient) FetchApprovalsSummary(ctx context.Context) (ApprovalsSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.ApprovalsURL, nil)
	if err != nil {
		return ApprovalsSummary{}, err
	}
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return ApprovalsSummary{}, err
	}
	defer resp.Body.Close()
	c.logger.Debugf("GET %s -> %s", c.endpoints.ApprovalsURL, resp.Status)

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("approvals request failed",
			logging.Field("status", resp.Status),
			logging.Field("response", logging.FormatHTTPPayload(data)),
		)
		return ApprovalsSummary{}, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	summary := ApprovalsSummary{}
	if unmarshalErr := json.Unmarshal(data, &summary); unmarshalErr != nil {
		return ApprovalsSummary{}, unmarshalErr
	}
	return summary, nil
}
