package gateway

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/scheduler"
	"github.com/opsmind/pulseguard/tracker"
)

// readOnlyCommands never mutate state or process lifetime and are available
// to any caller regardless of admin status.
var readOnlyCommands = map[string]struct{}{
	"/help": {}, "/start": {}, "/status": {}, "/list": {},
	"/config": {}, "/errors": {}, "/history": {},
}

// reentrantGuarded commands refuse to start a second time while one is
// already in flight.
var reentrantGuarded = map[string]struct{}{
	"/check": {}, "/reload": {}, "/stop": {}, "/restart": {},
}

// CommandInput is one parsed messenger command.
type CommandInput struct {
	Name    string
	Args    []string
	From    string // sender identifier, with or without leading '@'
	IsAdmin bool
}

// CommandResult is the thin handler's reply text plus an optional process
// action the caller (the messenger PollLoop) must carry out.
type CommandResult struct {
	Reply  string
	Action ProcessAction
}

// ProcessAction signals a lifecycle effect a command handler can't perform
// itself (the dispatcher has no business calling os.Exit).
type ProcessAction int

const (
	ActionNone ProcessAction = iota
	ActionStop
	ActionRestart
	ActionReload
)

// Commands dispatches the §6.4 command surface into scheduler, tracker,
// the live config, and gateway.Store. Handler bodies are intentionally thin: this is
// a boundary layer, not where check/notification logic lives.
type Commands struct {
	cfg     *core.Config
	store   *Store
	runner  *scheduler.Runner
	tracker *tracker.Tracker
	metrics *Metrics
	vault   *Vault
	export  *Export

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewCommands wires a Commands dispatcher from its dependencies. metrics,
// vault, and export may be nil; the handlers that touch them degrade to
// no-ops rather than panicking.
func NewCommands(cfg *core.Config, store *Store, runner *scheduler.Runner, t *tracker.Tracker, metrics *Metrics, vault *Vault, export *Export) *Commands {
	return &Commands{
		cfg:      cfg,
		store:    store,
		runner:   runner,
		tracker:  t,
		metrics:  metrics,
		vault:    vault,
		export:   export,
		inFlight: make(map[string]bool),
	}
}

// syncExport keeps cf_all_domains.json in step with the live endpoint list.
// Called after every command that mutates cfg.Domains.
func (c *Commands) syncExport() {
	if c.export == nil {
		return
	}
	_, _ = c.export.WriteAll("json", c.cfg.Endpoints())
}

// Dispatch authorizes and runs one command, returning its reply text and any
// process action the caller must apply.
func (c *Commands) Dispatch(in CommandInput) CommandResult {
	name := strings.ToLower(in.Name)

	if c.metrics != nil {
		c.metrics.recordCommand(name)
	}

	if _, ro := readOnlyCommands[name]; !ro && !in.IsAdmin {
		return CommandResult{Reply: "this command requires admin authorization"}
	}

	if _, guarded := reentrantGuarded[name]; guarded {
		if !c.tryEnter(name) {
			return CommandResult{Reply: fmt.Sprintf("%s is already in progress", name)}
		}
		defer c.leave(name)
	}

	handler, ok := handlers[name]
	if !ok {
		return CommandResult{Reply: "unknown command, try /help"}
	}
	return handler(c, in)
}

func (c *Commands) tryEnter(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[name] {
		return false
	}
	c.inFlight[name] = true
	return true
}

func (c *Commands) leave(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, name)
}

type handlerFunc func(*Commands, CommandInput) CommandResult

var handlers = map[string]handlerFunc{
	"/help":        handleHelp,
	"/start":       handleHelp,
	"/status":      handleStatus,
	"/list":        handleList,
	"/add":         handleAdd,
	"/remove":      handleRemove,
	"/clear":       handleClear,
	"/check":       handleCheck,
	"/stopcheck":   handleStopcheck,
	"/config":      handleConfig,
	"/interval":    handleInterval,
	"/timeout":     handleTimeout,
	"/retry":       handleRetry,
	"/concurrent":  handleConcurrent,
	"/notify":      handleNotify,
	"/autoadjust":  handleAutoadjust,
	"/errors":      handleErrors,
	"/history":     handleHistory,
	"/ack":         handleAck,
	"/admin":       handleAdmin,
	"/stop":        handleStop,
	"/restart":     handleRestart,
	"/reload":      handleReload,
	"/dailyreport": handleDailyReport,
	"/apikey":      handleAPIKey,
}

func handleHelp(c *Commands, in CommandInput) CommandResult {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	return CommandResult{Reply: "commands: " + strings.Join(names, " ")}
}

func handleStatus(c *Commands, in CommandInput) CommandResult {
	cfg := c.cfg.Snapshot()
	n := len(c.cfg.Endpoints())
	return CommandResult{Reply: fmt.Sprintf("monitoring %d endpoints, notification level %s", n, cfg.NotificationLevel)}
}

func handleList(c *Commands, in CommandInput) CommandResult {
	return CommandResult{Reply: strings.Join(c.cfg.Endpoints(), "\n")}
}

func handleAdd(c *Commands, in CommandInput) CommandResult {
	if len(in.Args) == 0 {
		return CommandResult{Reply: "usage: /add <endpoint...>"}
	}
	c.cfg.Mutate(func(cfg *core.Config) {
		for _, ep := range in.Args {
			cfg.Domains = append(cfg.Domains, core.NormalizeEndpoint(ep))
		}
	})
	c.persist()
	c.syncExport()
	return CommandResult{Reply: fmt.Sprintf("added %d endpoint(s)", len(in.Args))}
}

func handleRemove(c *Commands, in CommandInput) CommandResult {
	if len(in.Args) == 0 {
		return CommandResult{Reply: "usage: /remove <endpoint...>"}
	}
	toRemove := make(map[string]struct{}, len(in.Args))
	for _, ep := range in.Args {
		toRemove[core.NormalizeEndpoint(ep)] = struct{}{}
	}
	c.cfg.Mutate(func(cfg *core.Config) {
		var kept []string
		for _, d := range cfg.Domains {
			if _, drop := toRemove[d]; !drop {
				kept = append(kept, d)
			}
		}
		cfg.Domains = kept
	})
	c.persist()
	c.syncExport()
	return CommandResult{Reply: fmt.Sprintf("removed %d endpoint(s)", len(in.Args))}
}

func handleClear(c *Commands, in CommandInput) CommandResult {
	c.cfg.Mutate(func(cfg *core.Config) { cfg.Domains = nil })
	c.persist()
	c.syncExport()
	return CommandResult{Reply: "cleared all endpoints"}
}

func handleCheck(c *Commands, in CommandInput) CommandResult {
	if c.runner != nil {
		c.runner.TriggerManual()
	}
	return CommandResult{Reply: "manual check triggered"}
}

func handleStopcheck(c *Commands, in CommandInput) CommandResult {
	return CommandResult{Reply: "/stopcheck does not interrupt a running cycle; it runs to completion"}
}

func handleConfig(c *Commands, in CommandInput) CommandResult {
	cfg := c.cfg.Snapshot()
	return CommandResult{Reply: fmt.Sprintf(
		"interval=%dm timeout=%ds retry=%d concurrent=%d notify=%s",
		cfg.IntervalMinutes, cfg.TimeoutSeconds, cfg.RetryCount, cfg.MaxConcurrent, cfg.NotificationLevel,
	)}
}

func handleInterval(c *Commands, in CommandInput) CommandResult {
	n, ok := parseIntArg(in.Args)
	if !ok || n < 1 || n > 1440 {
		return CommandResult{Reply: "usage: /interval N (1..1440)"}
	}
	c.cfg.Mutate(func(cfg *core.Config) { cfg.Check.IntervalMinutes = n })
	c.persist()
	return CommandResult{Reply: fmt.Sprintf("interval set to %d minutes", n)}
}

func handleTimeout(c *Commands, in CommandInput) CommandResult {
	n, ok := parseIntArg(in.Args)
	if !ok || n < 1 || n > 300 {
		return CommandResult{Reply: "usage: /timeout N (1..300)"}
	}
	c.cfg.Mutate(func(cfg *core.Config) { cfg.Check.TimeoutSeconds = n })
	c.persist()
	return CommandResult{Reply: fmt.Sprintf("timeout set to %d seconds", n)}
}

func handleRetry(c *Commands, in CommandInput) CommandResult {
	n, ok := parseIntArg(in.Args)
	if !ok || n < 0 || n > 10 {
		return CommandResult{Reply: "usage: /retry N (0..10)"}
	}
	c.cfg.Mutate(func(cfg *core.Config) { cfg.Check.RetryCount = n })
	c.persist()
	return CommandResult{Reply: fmt.Sprintf("retry count set to %d", n)}
}

func handleConcurrent(c *Commands, in CommandInput) CommandResult {
	n, ok := parseIntArg(in.Args)
	if !ok || n < 1 || n > 200 {
		return CommandResult{Reply: "usage: /concurrent N (1..200)"}
	}
	c.cfg.Mutate(func(cfg *core.Config) { cfg.Check.MaxConcurrent = n })
	c.persist()
	return CommandResult{Reply: fmt.Sprintf("max concurrent set to %d", n)}
}

func handleNotify(c *Commands, in CommandInput) CommandResult {
	if len(in.Args) == 0 {
		cfg := c.cfg.Snapshot()
		return CommandResult{Reply: "notification level: " + cfg.NotificationLevel}
	}
	level := strings.ToLower(in.Args[0])
	if level != "all" && level != "error" && level != "smart" {
		return CommandResult{Reply: "usage: /notify [all|error|smart]"}
	}
	c.cfg.Mutate(func(cfg *core.Config) { cfg.Notification.Level = level })
	c.persist()
	return CommandResult{Reply: "notification level set to " + level}
}

func handleAutoadjust(c *Commands, in CommandInput) CommandResult {
	var toggled bool
	c.cfg.Mutate(func(cfg *core.Config) {
		cfg.Check.AutoAdjustConcurrent = !cfg.Check.AutoAdjustConcurrent
		toggled = cfg.Check.AutoAdjustConcurrent
	})
	c.persist()
	return CommandResult{Reply: fmt.Sprintf("auto-adjust concurrency: %v", toggled)}
}

func handleErrors(c *Commands, in CommandInput) CommandResult {
	errs := c.tracker.CurrentErrors()
	if len(errs) == 0 {
		return CommandResult{Reply: "no current errors"}
	}
	var b strings.Builder
	for ep, res := range errs {
		fmt.Fprintf(&b, "%s: %s\n", ep, res.Status)
	}
	return CommandResult{Reply: b.String()}
}

func handleHistory(c *Commands, in CommandInput) CommandResult {
	days := 7
	if len(in.Args) > 1 {
		if n, err := strconv.Atoi(in.Args[1]); err == nil {
			days = n
		}
	} else if len(in.Args) == 1 {
		if n, err := strconv.Atoi(in.Args[0]); err == nil {
			days = n
		}
	}
	records := c.tracker.History(days, 0, 50)
	if len(records) == 0 {
		return CommandResult{Reply: "no history in that window"}
	}
	var b strings.Builder
	for _, h := range records {
		fmt.Fprintf(&b, "%s %s %s\n", h.Timestamp.Format(time.RFC3339), h.Endpoint, h.StatusOrRecovered)
	}
	return CommandResult{Reply: b.String()}
}

func handleAck(c *Commands, in CommandInput) CommandResult {
	if len(in.Args) == 0 {
		return CommandResult{Reply: "usage: /ack <endpoint> [note...]"}
	}
	endpoint := core.NormalizeEndpoint(in.Args[0])
	note := strings.Join(in.Args[1:], " ")
	if err := c.tracker.Acknowledge(endpoint, note); err != nil {
		return CommandResult{Reply: err.Error()}
	}
	return CommandResult{Reply: "acknowledged " + endpoint}
}

func handleAdmin(c *Commands, in CommandInput) CommandResult {
	if len(in.Args) == 0 {
		return CommandResult{Reply: "usage: /admin [list|add @user|remove @user]"}
	}
	switch in.Args[0] {
	case "list":
		c.cfg.RLock()
		defer c.cfg.RUnlock()
		return CommandResult{Reply: strings.Join(c.cfg.Telegram.AdminUsers, " ")}
	case "add":
		if len(in.Args) < 2 {
			return CommandResult{Reply: "usage: /admin add @user"}
		}
		c.cfg.Mutate(func(cfg *core.Config) {
			cfg.Telegram.AdminUsers = append(cfg.Telegram.AdminUsers, in.Args[1])
		})
		c.persist()
		return CommandResult{Reply: "added admin " + in.Args[1]}
	case "remove":
		if len(in.Args) < 2 {
			return CommandResult{Reply: "usage: /admin remove @user"}
		}
		c.cfg.Mutate(func(cfg *core.Config) {
			var kept []string
			for _, u := range cfg.Telegram.AdminUsers {
				if u != in.Args[1] {
					kept = append(kept, u)
				}
			}
			cfg.Telegram.AdminUsers = kept
		})
		c.persist()
		return CommandResult{Reply: "removed admin " + in.Args[1]}
	default:
		return CommandResult{Reply: "usage: /admin [list|add @user|remove @user]"}
	}
}

func handleStop(c *Commands, in CommandInput) CommandResult {
	return CommandResult{Reply: "stopping", Action: ActionStop}
}

func handleRestart(c *Commands, in CommandInput) CommandResult {
	return CommandResult{Reply: "restarting", Action: ActionRestart}
}

func handleReload(c *Commands, in CommandInput) CommandResult {
	return CommandResult{Reply: "reloading configuration", Action: ActionReload}
}

func handleDailyReport(c *Commands, in CommandInput) CommandResult {
	if len(in.Args) == 0 {
		return CommandResult{Reply: "usage: /dailyreport [enable|disable|time HH:MM|now]"}
	}
	switch in.Args[0] {
	case "enable", "disable":
		c.cfg.Mutate(func(cfg *core.Config) { cfg.DailyReport.Enabled = in.Args[0] == "enable" })
		c.persist()
		return CommandResult{Reply: "daily report " + in.Args[0] + "d"}
	case "time":
		if len(in.Args) < 2 {
			return CommandResult{Reply: "usage: /dailyreport time HH:MM"}
		}
		c.cfg.Mutate(func(cfg *core.Config) { cfg.DailyReport.Time = in.Args[1] })
		c.persist()
		return CommandResult{Reply: "daily report time set to " + in.Args[1]}
	case "now":
		return CommandResult{Reply: "an on-demand daily report is not available; it is sent at the configured time"}
	default:
		return CommandResult{Reply: "usage: /dailyreport [enable|disable|time HH:MM|now]"}
	}
}

// handleAPIKey reports the configured HTTP API key and tracks it in the
// token vault under the "http_api" label, the same token-storage shell
// cf_domains exports are keyed by.
func handleAPIKey(c *Commands, in CommandInput) CommandResult {
	c.cfg.RLock()
	key := c.cfg.HTTPAPI.Auth.APIKey
	c.cfg.RUnlock()
	if key == "" {
		return CommandResult{Reply: "no API key configured"}
	}
	if c.vault != nil {
		if label, ok := c.vault.Get(key); ok {
			return CommandResult{Reply: fmt.Sprintf("API key: %s (vault label: %s)", key, label)}
		}
		_ = c.vault.Put(key, "http_api")
	}
	return CommandResult{Reply: "API key: " + key}
}

func (c *Commands) persist() {
	if c.store == nil {
		return
	}
	_ = c.store.Save(c.cfg)
}

func parseIntArg(args []string) (int, bool) {
	if len(args) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(args[0])
	return n, err == nil
}
