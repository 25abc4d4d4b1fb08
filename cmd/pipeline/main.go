package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/user/price-tracker/internal/app"
	"github.com/user/price-tracker/pkg/config"
	"github.com/user/price-tracker/pkg/errs"
	"github.com/user/price-tracker/pkg/logger"
)

// pipeline runs the price tracking pipeline once and exits. The exit code
// tells the scheduler what kind of failure occurred.
func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		return 1
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		return 1
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize", zap.Error(err))
		return 1
	}
	defer a.Close()

	report, err := a.Runner.Run(ctx)
	if err != nil {
		code := errs.ExitCode(err)
		log.Error("Pipeline run failed",
			zap.String("failure_kind", errs.Kind(err)),
			zap.Int("exit_code", code),
			zap.Error(err),
		)
		return code
	}

	log.Info("Pipeline run succeeded",
		zap.String("run_id", report.RunID),
		zap.Int("loaded", report.Loaded),
		zap.Int("alerts", report.Alerts),
	)
	return 0
}
