package main

import (
	"fmt"
	"os"

	"peercam/internal/app"
	"peercam/pkg/config"
	"peercam/pkg/errors"
	"peercam/pkg/logger"
)

func main() {
	os.Exit(run(os.Args))
}

// run is the whole process in testable form: parse, detach if asked,
// wire the logger, and hand over to the orchestrator. The return value
// is the process exit code.
func run(args []string) int {
	settings, err := config.Parse(args, os.Stdout, os.Stderr)
	if err != nil {
		code := errors.ExitCodeOf(err)
		if appErr := errors.GetAppError(err); appErr != nil && code != errors.ExitOK {
			fmt.Fprintln(os.Stderr, appErr.Message)
		}
		return code
	}

	if settings.Daemon && !runningDetached() {
		started, err := detach(args)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to daemonize:", err)
			return errors.ExitFailure
		}
		if started {
			return errors.ExitOK
		}
		// No child was started; keep running in the foreground.
	}

	zapLogger, err := logger.New(settings.LogLevel, ".")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return errors.ExitFailure
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	cfg, err := config.Load(settings.ConfigPath)
	if err != nil {
		log.Errorw("configuration rejected", "error", err)
		return errors.ExitUsage
	}

	if err := app.New(settings, cfg, log).Run(); err != nil {
		log.Errorw("run failed", "error", err)
		return errors.ExitCodeOf(err)
	}
	return errors.ExitOK
}
