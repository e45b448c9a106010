package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"alankar-sync/internal/logging"
)

// SessionVerdict is the server's answer to "is this identity still who it
// claims to be". Reason and NewDepartment are only meaningful when Valid is
// false.
type SessionVerdict struct {
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason"`
	Message       string `json:"message"`
	NewDepartment string `json:"new_department"`
}

// Invalidation reasons the backend reports verbatim.
const (
	ReasonUserNotFound      = "User not found"
	ReasonDepartmentChanged = "Department changed"
)

type validateSessionRequest struct {
	UserID            string `json:"userId"`
	CurrentDepartment string `json:"currentDepartment"`
}

// ValidateSession asks the backend whether the claimed identity is still
// resolvable with its claimed department. A non-2xx response is returned as
// *HTTPStatusError; callers treat that as "identity no longer resolvable".
func (c *ERPClient) ValidateSession(ctx context.Context) (SessionVerdict, error) {
	id := c.identity()
	payload, err := json.Marshal(validateSessionRequest{
		UserID:            id.UserID,
		CurrentDepartment: id.Department,
	})
	if err != nil {
		return SessionVerdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.SessionValidateURL, bytes.NewReader(payload))
	if err != nil {
		return SessionVerdict{}, err
	}
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return SessionVerdict{}, err
	}
	defer resp.Body.Close()
	c.logger.Debugf("POST %s -> %s", c.endpoints.SessionValidateURL, resp.Status)

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("session validation rejected",
			logging.Field("status", resp.Status),
			logging.Field("response", logging.FormatHTTPPayload(data)),
		)
		return SessionVerdict{}, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	verdict := SessionVerdict{}
	if unmarshalErr := json.Unmarshal(data, &verdict); unmarshalErr != nil {
		return SessionVerdict{}, unmarshalErr
	}
	return verdict, nil
}
