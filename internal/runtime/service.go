package runtime

import (
	"context"
	"net/http"
	"time"

	"alankar-sync/internal/app"
	"alankar-sync/internal/client"
	"alankar-sync/internal/config"
	"alankar-sync/internal/logging"
)

const defaultHTTPTimeout = 10 * time.Second

type Service interface {
	RunContext(ctx context.Context) error
}

func NewService(opts config.Options, logger *logging.Logger) (Service, error) {
	return NewServiceWithHooks(opts, logger, StartHooks{})
}

func NewServiceWithHooks(opts config.Options, logger *logging.Logger, hooks StartHooks) (Service, error) {
	if logger == nil {
		panic("runtime.NewServiceWithHooks: logger must not be nil")
	}
	if err := config.ValidateRequired(opts); err != nil {
		return nil, err
	}

	endpoints, err := config.BuildEndpoints(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	logger.Debug("constructed API endpoints",
		logging.Field("session_validate_url", endpoints.SessionValidateURL),
		logging.Field("approvals_url", endpoints.ApprovalsURL),
		logging.Field("realtime_url", endpoints.RealtimeURL),
		logging.Field("realtime_poll_url", endpoints.RealtimePollURL),
	)

	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	erpClient := client.New(httpClient, opts.Token, endpoints, func() client.Identity {
		return client.Identity{
			UserID:     opts.UserID,
			FullName:   opts.UserName,
			Email:      opts.UserEmail,
			Department: opts.Department,
		}
	}, logger)
	return app.New(opts, erpClient, logger, app.Callbacks{
		OnApprovals:    hooks.OnApprovals,
		OnStatusChange: hooks.OnStatus,
		Notify:         hooks.Notify,
		Logout:         hooks.Logout,
	}), nil
}
