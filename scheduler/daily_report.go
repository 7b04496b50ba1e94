package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dailyReportRetryDelay = time.Hour

// StartDailyReport runs an independent goroutine that emits one aggregate
// report per day at cfg.DailyReport.Time (local HH:MM), derived from the
// tracker's rolling history. It is entirely decoupled from the check cycle:
// a failed send is retried after dailyReportRetryDelay rather than waiting
// for the next scheduled day.
func (r *Runner) StartDailyReport(ctx context.Context) {
	for {
		cfg := r.dailyReportConfig()
		if !cfg.enabled {
			select {
			case <-time.After(time.Hour):
				continue
			case <-ctx.Done():
				return
			}
		}

		next := nextOccurrence(time.Now(), cfg.hour, cfg.minute)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}

		for {
			err := r.sendDailyReport(ctx)
			if err == nil {
				break
			}
			r.log.Error("daily report failed, retrying in an hour", "error", err)
			select {
			case <-time.After(dailyReportRetryDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (r *Runner) sendDailyReport(ctx context.Context) error {
	stats := r.tracker.Stats(24*time.Hour, 5)
	pages := r.formatter.Report(time.Now(), stats)

	if r.notifier == nil {
		return nil
	}

	var firstErr error
	for _, g := range r.routingGroups() {
		for _, page := range pages {
			if err := r.notifier.SendMessage(ctx, g.ChatID, page); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

type dailyReportConfig struct {
	enabled bool
	hour    int
	minute  int
}

func (r *Runner) dailyReportConfig() dailyReportConfig {
	r.cfg.RLock()
	defer r.cfg.RUnlock()

	cfg := dailyReportConfig{enabled: r.cfg.DailyReport.Enabled}
	hour, minute, err := parseHHMM(r.cfg.DailyReport.Time)
	if err != nil {
		cfg.enabled = false
		return cfg
	}
	cfg.hour, cfg.minute = hour, minute
	return cfg
}

func parseHHMM(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// nextOccurrence returns the next local time at hour:minute strictly after
// now (rolling to tomorrow if that time has already passed today).
func nextOccurrence(now time.Time, hour, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
