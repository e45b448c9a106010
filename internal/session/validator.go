// Package session detects server-side invalidation of the current login:
// identity deleted, department reassigned, or settings changed. It forces a
// clean logout instead of waiting for the next API call to surface a 401.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"alankar-sync/internal/client"
	"alankar-sync/internal/logging"
)

const (
	// DefaultInterval keeps the reaction to a server-side change quick.
	DefaultInterval = 5 * time.Second
	// logoutDelay lets the notification render before navigation tears the
	// component tree down.
	logoutDelay = 500 * time.Millisecond
)

// Hooks are the app-level actions a forced logout drives. Notify runs
// immediately; Logout (session clearing plus redirect) runs after a short
// fixed delay.
type Hooks struct {
	Notify func(title, message string)
	Logout func()
}

// Validator periodically re-validates the claimed identity against the
// backend. At most one logout sequence ever executes, no matter how many
// overlapping checks resolve as invalid.
type Validator struct {
	client   *client.ERPClient
	interval time.Duration
	delay    time.Duration
	hooks    Hooks
	logger   *logging.Logger

	loggingOut atomic.Bool
	stop       chan struct{}
}

func NewValidator(erp *client.ERPClient, interval time.Duration, hooks Hooks, logger *logging.Logger) *Validator {
	if erp == nil {
		panic("session.NewValidator: client must not be nil")
	}
	if logger == nil {
		panic("session.NewValidator: logger must not be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Validator{
		client:   erp,
		interval: interval,
		delay:    logoutDelay,
		hooks:    hooks,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Run validates immediately, then on every tick, until ctx ends or a forced
// logout stops the loop. With an empty identity it returns at once.
func (v *Validator) Run(ctx context.Context) {
	if v.client.Identity().Empty() {
		v.logger.Debug("session validator idle: no identity")
		return
	}

	v.check(ctx)

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			v.logger.Debug("stopping session validator: context canceled")
			return
		case <-v.stop:
			return
		case <-ticker.C:
			v.check(ctx)
		}
	}
}

func (v *Validator) check(ctx context.Context) {
	if v.loggingOut.Load() {
		return
	}

	verdict, err := v.client.ValidateSession(ctx)
	if err != nil {
		if client.IsHTTPStatus(err) {
			// The server answered and could not resolve the identity.
			v.logger.Warn("session validation returned error status, forcing logout", logging.Field("error", err))
			v.forceLogout("Your account has been deleted or is no longer accessible.")
			return
		}
		// Transient connectivity must never log anyone out.
		v.logger.Debug("session validation failed, will retry", logging.Field("error", err))
		return
	}

	if verdict.Valid {
		return
	}
	v.logger.Warn("session invalid", logging.Field("reason", verdict.Reason))
	v.forceLogout(invalidityMessage(verdict))
}

func invalidityMessage(verdict client.SessionVerdict) string {
	switch verdict.Reason {
	case client.ReasonUserNotFound:
		return "Your account has been deleted. Please contact administrator."
	case client.ReasonDepartmentChanged:
		return "Your department has been changed to " + verdict.NewDepartment + ". Please login again."
	}
	if verdict.Message != "" {
		return verdict.Message
	}
	return "Your account settings have been changed. Please login again."
}

// forceLogout runs the logout sequence exactly once: stop the check loop,
// notify, then clear the session after the render delay.
func (v *Validator) forceLogout(message string) {
	if !v.loggingOut.CompareAndSwap(false, true) {
		return
	}
	close(v.stop)

	if v.hooks.Notify != nil {
		v.hooks.Notify("Session Expired", message)
	}
	time.AfterFunc(v.delay, func() {
		if v.hooks.Logout != nil {
			v.hooks.Logout()
		}
	})
}
