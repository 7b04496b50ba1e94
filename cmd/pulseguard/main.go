// Command pulseguard runs the endpoint watchdog: it loads its configuration
// document, wires the probe pool, tracker, adaptive controller, notifier,
// scheduler, and inbound HTTP gateway together, and runs until an OS signal
// requests shutdown or a /restart command requests a supervisor relaunch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/opsmind/pulseguard/adaptive"
	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/gateway"
	"github.com/opsmind/pulseguard/notifier"
	"github.com/opsmind/pulseguard/pkg/logger"
	"github.com/opsmind/pulseguard/pool"
	"github.com/opsmind/pulseguard/probe"
	"github.com/opsmind/pulseguard/resilience"
	"github.com/opsmind/pulseguard/scheduler"
	"github.com/opsmind/pulseguard/tracker"
)

// Exit codes per the watchdog's process contract: 0 normal, 1 fatal
// startup/runtime error, 3 a /restart command asking the process supervisor
// to relaunch.
const (
	exitOK      = 0
	exitError   = 1
	exitRestart = 3
)

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration document")
	historyPath := flag.String("history", "error_history.json", "path to the error history store")
	vaultPath := flag.String("vault", "token_vault.json", "path to the token vault store")
	exportDir := flag.String("export-dir", ".", "directory for cf_domains_{token}.{ext} / cf_all_domains.{ext} exports")
	flag.Parse()

	os.Exit(run(*configPath, *historyPath, *vaultPath, *exportDir))
}

func run(configPath, historyPath, vaultPath, exportDir string) int {
	store := gateway.NewStore(configPath)
	cfg, err := store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pulseguard: load config: %v\n", err)
		return exitError
	}
	log := cfg.Logger()
	domainLog := logger.NewZerologAdapter(os.Stdout, cfg.Logging.Level)

	vault, err := gateway.NewVault(vaultPath)
	if err != nil {
		log.Error("load token vault", map[string]interface{}{"error": err.Error()})
		return exitError
	}
	export := gateway.NewExport(exportDir)

	historyStore := tracker.NewFileStore(historyPath)
	trk, err := tracker.New(historyStore, cfg.History.RetentionDays, domainLog)
	if err != nil {
		log.Error("init tracker", map[string]interface{}{"error": err.Error()})
		return exitError
	}

	execCfg := cfg.Snapshot()
	executor := probe.NewExecutor(execCfg.MaxConcurrent, domainLog)
	probePool := pool.NewPool(executor, domainLog)

	controller := adaptive.NewController(adaptive.NewProcHostMetrics(), domainLog)

	var bot *notifier.ResilientClient
	var n scheduler.Notifier
	if cfg.Telegram.BotToken != "" {
		bot = buildNotifier(cfg, domainLog)
		n = bot
	}

	runner := scheduler.NewRunner(cfg, probePool, trk, controller, n, domainLog)
	metrics := gateway.NewMetrics()
	commands := gateway.NewCommands(cfg, store, runner, trk, metrics, vault, export)
	srv := gateway.NewServer(cfg, n, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	actionCh := make(chan gateway.ProcessAction, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Start(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.StartDailyReport(ctx)
	}()

	if bot != nil {
		poll := gateway.NewPollLoop(cfg, bot, commands, func(a gateway.ProcessAction) {
			select {
			case actionCh <- a:
			default:
			}
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			poll.Run(ctx)
		}()
	}

	httpErrCh := make(chan error, 1)
	if cfg.HTTPAPI.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil {
				httpErrCh <- err
			}
		}()
	}

	return waitForShutdown(ctx, cancel, &wg, httpErrCh, actionCh, store, cfg, log)
}

func buildNotifier(cfg *core.Config, log logger.Logger) *notifier.ResilientClient {
	client := notifier.NewClient(cfg.Telegram.BotToken, log)

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Resilience.Retry.MaxAttempts
	retry.InitialDelay = cfg.Resilience.Retry.InitialInterval
	retry.MaxDelay = cfg.Resilience.Retry.MaxInterval
	retry.BackoffFactor = cfg.Resilience.Retry.Multiplier

	var breaker *resilience.CircuitBreaker
	if cfg.Resilience.CircuitBreaker.Enabled {
		b, err := resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
			Name:             "notifier",
			FailureThreshold: cfg.Resilience.CircuitBreaker.Threshold,
			RecoveryTimeout:  cfg.Resilience.CircuitBreaker.Timeout,
		})
		if err == nil {
			breaker = b
		}
	}

	return notifier.NewResilientClient(client, retry, breaker)
}

// waitForShutdown blocks until a termination signal, a /stop or /restart
// command, or an unrecoverable HTTP-server error arrives, then runs a
// budgeted shutdown: one cancel of the shared context stops the scheduler,
// daily-report, poll, and HTTP-server goroutines together, and a single wait
// on the WaitGroup gets up to 10 seconds before the process exits anyway.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, httpErrCh <-chan error, actionCh <-chan gateway.ProcessAction, store *gateway.Store, cfg *core.Config, log core.Logger) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	exitCode := exitOK
waitLoop:
	for {
		select {
		case <-sigCh:
			log.Info("shutdown signal received", nil)
			break waitLoop
		case err := <-httpErrCh:
			log.Error("http gateway failed", map[string]interface{}{"error": err.Error()})
			exitCode = exitError
			break waitLoop
		case action := <-actionCh:
			switch action {
			case gateway.ActionRestart:
				log.Info("restart requested", nil)
				exitCode = exitRestart
				break waitLoop
			case gateway.ActionStop:
				log.Info("stop requested", nil)
				break waitLoop
			case gateway.ActionReload:
				reloadConfig(store, cfg, log)
			}
		}
	}

	const shutdownBudget = 10 * time.Second
	deadline := time.Now().Add(shutdownBudget)

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("shutdown complete", nil)
	case <-time.After(time.Until(deadline)):
		log.Warn("shutdown exceeded budget, exiting anyway", map[string]interface{}{"budget": shutdownBudget.String()})
	}

	return exitCode
}

// reloadConfig re-reads the config document and applies its fields onto the
// live, shared *core.Config in place — everything downstream (scheduler,
// pool, gateway) holds this same pointer, so the swap must not replace it
// wholesale (that would also clobber the embedded mutex and logger).
func reloadConfig(store *gateway.Store, cfg *core.Config, log core.Logger) {
	loaded, err := store.Load()
	if err != nil {
		log.Error("reload config", map[string]interface{}{"error": err.Error()})
		return
	}
	cfg.Mutate(func(c *core.Config) {
		c.Telegram = loaded.Telegram
		c.Domains = loaded.Domains
		c.Check = loaded.Check
		c.Notification = loaded.Notification
		c.History = loaded.History
		c.DailyReport = loaded.DailyReport
		c.HTTPAPI = loaded.HTTPAPI
		c.Logging = loaded.Logging
		c.Development = loaded.Development
		c.Resilience = loaded.Resilience
	})
	log.Info("configuration reloaded", nil)
}
