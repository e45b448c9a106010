package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type Options struct {
	BaseURL    string `long:"base-url" env:"ALANKAR_BASE_URL" description:"ERP backend base URL (e.g. https://erp.example.com)"`
	Token      string `long:"token" env:"ALANKAR_TOKEN" description:"Bearer token for the realtime handshake"`
	UserID     string `long:"user-id" env:"ALANKAR_USER_ID" description:"Logged-in user id"`
	UserName   string `long:"user-name" env:"ALANKAR_USER_NAME" description:"Logged-in user full name"`
	UserEmail  string `long:"user-email" env:"ALANKAR_USER_EMAIL" description:"Logged-in user email"`
	Department string `long:"department" env:"ALANKAR_DEPARTMENT" description:"Logged-in user department"`

	PollInterval    time.Duration `long:"poll-interval" env:"ALANKAR_POLL_INTERVAL" default:"5s" description:"Dashboard auto-refresh interval"`
	SessionInterval time.Duration `long:"session-interval" env:"ALANKAR_SESSION_INTERVAL" default:"5s" description:"Session liveness check interval"`

	EnvFile string `long:"env-file" env:"ALANKAR_ENV_FILE" description:"Env file to watch for configuration changes"`
	Debug   bool   `long:"debug" env:"ALANKAR_DEBUG" description:"Enable verbose debug output"`
}

type APIEndpoints struct {
	BaseURL            string
	SessionValidateURL string
	ApprovalsURL       string
	RealtimeURL        string
	RealtimePollURL    string
}

const (
	sessionValidatePath = "/auth/validate-session"
	approvalsPath       = "/approvals/pending"
	realtimePath        = "/realtime"
	realtimePollPath    = "/realtime/poll"
)

func ParseOptions() (Options, error) {
	_ = godotenv.Load()
	opts := Options{}
	if _, err := flags.Parse(&opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func ValidateRequired(opts Options) error {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return errors.New("base URL is required")
	}
	if strings.TrimSpace(opts.Token) == "" {
		return errors.New("bearer token is required")
	}
	if strings.TrimSpace(opts.UserID) == "" {
		return errors.New("user id is required")
	}
	return nil
}

func BuildEndpoints(rawBaseURL string) (APIEndpoints, error) {
	parsed, err := parseBaseURL(rawBaseURL)
	if err != nil {
		return APIEndpoints{}, err
	}

	api := *parsed
	api.Path = "/api"
	api.RawPath = ""
	api.RawQuery = ""
	api.Fragment = ""
	apiBase := api.String()

	// The realtime channel hangs off the host root, not /api.
	realtime := *parsed
	realtime.Path = realtimePath
	realtime.RawQuery = ""
	realtime.Fragment = ""
	if strings.EqualFold(parsed.Scheme, "https") {
		realtime.Scheme = "wss"
	} else {
		realtime.Scheme = "ws"
	}

	poll := *parsed
	poll.Path = realtimePollPath
	poll.RawQuery = ""
	poll.Fragment = ""

	return APIEndpoints{
		BaseURL:            apiBase,
		SessionValidateURL: apiBase + sessionValidatePath,
		ApprovalsURL:       apiBase + approvalsPath,
		RealtimeURL:        realtime.String(),
		RealtimePollURL:    poll.String(),
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	value := strings.TrimSpace(raw)
	parsed, err := url.Parse(value)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("expected absolute URL like https://erp.example.com")
	}
	if !strings.EqualFold(parsed.Scheme, "http") && !strings.EqualFold(parsed.Scheme, "https") {
		return nil, errors.New("base URL scheme must be http or https")
	}
	return parsed, nil
}
