package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"alankar-sync/internal/config"
	"alankar-sync/internal/logging"
	"alankar-sync/internal/runstatus"
	"alankar-sync/internal/runtime"

	flags "github.com/jessevdk/go-flags"
)

var BuildVersion = "dev"

const logFileMaxBytes = 5 * 1024 * 1024

func main() {
	rootCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	opts, err := config.ParseOptions()
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lock, lockedByOther, lockErr := acquireInstanceLock()
	if lockErr != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize single-instance lock:", lockErr)
		os.Exit(2)
	}
	if lockedByOther {
		fmt.Fprintln(os.Stderr, "Alankar sync service is already running.")
		os.Exit(1)
	}
	defer func() {
		_ = lock.Release()
	}()

	logger := logging.New(opts.Debug)
	defer func() {
		_ = logger.Close()
	}()
	if err := logger.EnableFilePersistence(logFileMaxBytes); err != nil {
		logger.Warn("log file persistence unavailable", logging.Field("error", err))
	}
	logger.Info("alankar sync service", logging.Field("version", BuildVersion))

	controller := runtime.NewController(rootCtx)
	exited := make(chan error, 1)
	startErr := controller.Start(opts, logger, runtime.StartHooks{
		OnStatus: func(status string) {
			logger.Info("sync status",
				logging.Field("status", status),
				logging.Field("key", runstatus.Key(status)),
			)
		},
		Notify: func(title, message string) {
			logger.Warn(title, logging.Field("message", message))
		},
		OnExit: func(err error) {
			exited <- err
		},
	})
	if startErr != nil {
		fmt.Fprintln(os.Stderr, startErr)
		os.Exit(2)
	}

	select {
	case <-rootCtx.Done():
		controller.StopAndWait(0)
		<-exited
	case err := <-exited:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sync service failed", logging.Field("error", err))
			os.Exit(1)
		}
	}
}
