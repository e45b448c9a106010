// Package client is the REST surface of the sync layer: identity-stamped
// requests to the ERP backend for session validation and poll targets.
package client

import (
	"net/http"
	"strings"

	"alankar-sync/internal/config"
	"alankar-sync/internal/logging"
)

// Identity is the client-side belief about who is logged in. It is derived
// from the auth context on every use, never stored by this package.
type Identity struct {
	UserID     string
	FullName   string
	Email      string
	Department string
}

func (id Identity) Empty() bool {
	return strings.TrimSpace(id.UserID) == ""
}

// IdentityFunc supplies the current identity for outgoing requests.
type IdentityFunc func() Identity

type ERPClient struct {
	http      *http.Client
	token     string
	endpoints config.APIEndpoints
	identity  IdentityFunc
	logger    *logging.Logger
}

func New(httpClient *http.Client, token string, endpoints config.APIEndpoints, identity IdentityFunc, logger *logging.Logger) *ERPClient {
	if logger == nil {
		panic("client.New: logger must not be nil")
	}
	if identity == nil {
		identity = func() Identity { return Identity{} }
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ERPClient{http: httpClient, token: token, endpoints: endpoints, identity: identity, logger: logger}
}

// Token returns the bearer token used for the realtime handshake.
func (c *ERPClient) Token() string {
	return c.token
}

// Identity returns the current identity snapshot.
func (c *ERPClient) Identity() Identity {
	return c.identity()
}

// Endpoints returns the resolved endpoint set this client talks to.
func (c *ERPClient) Endpoints() config.APIEndpoints {
	return c.endpoints
}

// applyHeaders stamps the de facto auth context on a request: bearer token
// plus the X-User-* identity headers the backend keys on.
func (c *ERPClient) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(c.token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	id := c.identity()
	if id.FullName != "" {
		req.Header.Set("X-User-Name", id.FullName)
	}
	if id.Email != "" {
		req.Header.Set("X-User-Email", id.Email)
	}
	if id.Department != "" {
		req.Header.Set("X-User-Department", id.Department)
	}
}
