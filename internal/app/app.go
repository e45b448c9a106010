package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"alankar-sync/internal/client"
	"alankar-sync/internal/config"
	"alankar-sync/internal/logging"
	"alankar-sync/internal/realtime"
	"alankar-sync/internal/refresh"
	"alankar-sync/internal/runctx"
	"alankar-sync/internal/runstatus"
	"alankar-sync/internal/session"
)

const heartbeatInterval = 30 * time.Second

// SyncApp wires the refresh bus, the polling fallback, the realtime stream,
// and the session liveness checker into one start/stop unit.
type SyncApp struct {
	opts    config.Options
	client  *client.ERPClient
	logger  *logging.Logger
	hooks   Callbacks
	status  runtimeStatusState
	bus     *refresh.Bus
	tracker *refresh.InputTracker
}

type Callbacks struct {
	OnApprovals    func(client.ApprovalsSummary)
	OnStatusChange func(string)
	Notify         func(title, message string)
	Logout         func()
}

func New(opts config.Options, erp *client.ERPClient, logger *logging.Logger, hooks Callbacks) *SyncApp {
	if erp == nil {
		panic("app.New: client must not be nil")
	}
	if logger == nil {
		panic("app.New: logger must not be nil")
	}
	return &SyncApp{
		opts:    opts,
		client:  erp,
		logger:  logger,
		hooks:   hooks,
		bus:     refresh.NewBus(logger),
		tracker: refresh.NewInputTracker(logger),
	}
}

// Bus exposes the refresh bus so embedding surfaces can subscribe their own
// views before Run starts delivering triggers.
func (a *SyncApp) Bus() *refresh.Bus { return a.bus }

// RecordActivity marks the user as actively typing, deferring automatic
// refreshes until the quiet window elapses.
func (a *SyncApp) RecordActivity() { a.tracker.Touch() }

func (a *SyncApp) Run() error {
	return a.RunContext(context.Background())
}

func (a *SyncApp) RunContext(ctx context.Context) error {
	defer a.tracker.Stop()

	identity := a.client.Identity()
	a.logger.Info("sync app starting",
		logging.Field("user_id", identity.UserID),
		logging.Field("department", identity.Department),
	)

	verdict, err := a.client.ValidateSession(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStartupValidation, err)
	}
	if !verdict.Valid {
		return fmt.Errorf("%w: %s", ErrSessionRejected, verdict.Reason)
	}
	a.setRuntimeStatus(runstatus.Validated)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan busUpdate, 16)
	var pumpDone sync.WaitGroup
	pumpDone.Add(1)
	go func() {
		defer pumpDone.Done()
		a.pumpBusUpdates(runCtx, updates)
	}()

	endpoints := a.client.Endpoints()
	rt := realtime.NewManager(realtime.Config{
		RealtimeURL: endpoints.RealtimeURL,
		PollURL:     endpoints.RealtimePollURL,
		Logger:      a.logger,
	})
	defer rt.Disconnect()
	a.registerRealtimeHandlers(runCtx, rt, updates)
	rt.Connect(runCtx, a.client.Token())

	pollOpts := refresh.DefaultOptions()
	pollOpts.Topics = []string{refresh.TopicAdminApprovals}
	poller := refresh.NewPoller(a.fetchApprovals, a.opts.PollInterval, a.bus, a.tracker, a.logger, pollOpts)
	poller.Start(runCtx)
	defer poller.Stop()

	validator := session.NewValidator(a.client, a.opts.SessionInterval, session.Hooks{
		Notify: a.notify,
		Logout: func() {
			a.setRuntimeStatus(runstatus.SessionInvalid)
			if a.hooks.Logout != nil {
				a.hooks.Logout()
			}
			cancel()
		},
	}, a.logger)
	go validator.Run(runCtx)

	go a.runHeartbeatLoop(runCtx, rt)

	if path := strings.TrimSpace(a.opts.EnvFile); path != "" {
		go a.watchEnvFile(runCtx, path)
	}

	<-runCtx.Done()
	cancel()
	pumpDone.Wait()
	a.setRuntimeStatus(runstatus.Disconnected)
	a.logger.Info("sync app stopped")
	return nil
}

type busUpdate struct {
	topic   string
	payload refresh.Payload
}

type runtimeStatusState struct {
	mu      sync.Mutex
	current string
}

func (s *runtimeStatusState) update(status string) (string, string, bool) {
	trimmed := strings.TrimSpace(status)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == trimmed {
		return s.current, trimmed, false
	}
	previous := s.current
	s.current = trimmed
	return previous, trimmed, true
}

// eventTopics maps each realtime business event to the refresh topics whose
// views must reload when it arrives.
var eventTopics = map[string][]string{
	realtime.EventOrderUpdate:      {refresh.TopicStoreOrders},
	realtime.EventApprovalRequest:  {refresh.TopicAdminApprovals},
	realtime.EventApprovalDecision: {refresh.TopicAdminApprovals},
	realtime.EventInventoryAlert:   {refresh.TopicInventory},
	realtime.EventLeaveRequest:     {refresh.TopicHRLeaves},
	realtime.EventTourRequest:      {refresh.TopicTransportDeliveries},
	realtime.EventPaymentUpdate:    {refresh.TopicFinancePayments},
	realtime.EventDispatchUpdate:   {refresh.TopicTransportDeliveries},
	realtime.EventProductionUpdate: {refresh.TopicProductionOrders},
	realtime.EventGuestUpdate:      {refresh.TopicSecurityEntries},
	realtime.EventSystemAlert:      {refresh.TopicAll},
}

func (a *SyncApp) registerRealtimeHandlers(ctx context.Context, rt *realtime.Manager, updates chan<- busUpdate) {
	for name, topics := range eventTopics {
		topics := topics
		rt.On(name, func(data json.RawMessage) {
			payload := realtime.DecodePayload(data)
			for _, topic := range topics {
				if !runctx.SendOrDone(ctx, "realtime event forwarder", a.logger, updates, busUpdate{topic: topic, payload: payload}) {
					return
				}
			}
		})
	}

	rt.On(realtime.EventConnectionStatus, func(data json.RawMessage) {
		status := realtime.DecodeConnectionStatus(data)
		if status.Connected {
			a.setRuntimeStatus(runstatus.Connected)
		} else if ctx.Err() == nil {
			a.setRuntimeStatus(runstatus.Reconnecting)
		}
	})
	rt.On(realtime.EventConnectionFailed, func(data json.RawMessage) {
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("realtime connection abandoned, polling remains active")
		a.setRuntimeStatus(runstatus.Disconnected)
	})
}

// pumpBusUpdates delivers realtime-driven triggers on a single goroutine so
// bus callbacks never run on the transport read loop.
func (a *SyncApp) pumpBusUpdates(ctx context.Context, updates <-chan busUpdate) {
	for {
		update, ok := runctx.RecvOrDone(ctx, "bus update pump", a.logger, updates)
		if !ok {
			return
		}
		a.bus.Trigger(update.topic, update.payload)
	}
}

func (a *SyncApp) fetchApprovals(ctx context.Context) error {
	summary, err := a.client.FetchApprovalsSummary(ctx)
	if err != nil {
		if client.IsUnauthorized(err) {
			a.setRuntimeStatus(runstatus.DisconnectedAuth)
		}
		return err
	}
	if a.hooks.OnApprovals != nil {
		a.hooks.OnApprovals(summary)
	}
	return nil
}

func (a *SyncApp) runHeartbeatLoop(ctx context.Context, rt *realtime.Manager) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.Ping()
		}
	}
}

// watchEnvFile triggers a global refresh when the configuration file changes
// on disk, so every subscribed view reloads against the new settings.
func (a *SyncApp) watchEnvFile(ctx context.Context, path string) {
	err := config.WatchFile(ctx, path, a.logger, func() {
		a.logger.Info("configuration file changed, triggering global refresh", logging.Field("path", path))
		a.bus.Trigger(refresh.TopicAll, nil)
	})
	if err != nil && ctx.Err() == nil {
		a.logger.Warn("config watcher stopped", logging.Field("error", err))
	}
}

func (a *SyncApp) notify(title, message string) {
	if a.hooks.Notify == nil {
		return
	}
	a.hooks.Notify(title, message)
}

func (a *SyncApp) notifyStatus(status string) {
	if a.hooks.OnStatusChange == nil {
		return
	}
	a.hooks.OnStatusChange(status)
}

func (a *SyncApp) setRuntimeStatus(status string) {
	previous, next, changed := a.status.update(status)
	if !changed {
		return
	}
	a.logger.Debug("runtime status transition",
		logging.Field("from", previous),
		logging.Field("to", next),
	)
	a.notifyStatus(status)
}
