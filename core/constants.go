package core

import "time"

// Environment variable names. All are optional; defaults come from
// DefaultConfig. EnvConfigPath is not read by LoadFromEnv.
const (
	EnvTelegramBotToken = "PULSEGUARD_TELEGRAM_TOKEN"
	EnvTelegramChatID   = "PULSEGUARD_TELEGRAM_CHAT_ID"
	EnvConfigPath       = "PULSEGUARD_CONFIG_PATH"
	EnvPort             = "PORT"
	EnvDevMode          = "PULSEGUARD_DEV_MODE"
)

// History retention defaults, referenced by tracker and gateway export.
const (
	// DefaultHistoryCap bounds the in-memory history ring so a flapping
	// endpoint can't grow the process without bound.
	DefaultHistoryCap = 10000

	// DefaultStatusCacheCap bounds LastStatusCache the same way.
	DefaultStatusCacheCap = 1000

	// DefaultHistoryRetention is how long a HistoryRecord survives before
	// the retention sweep drops it.
	DefaultHistoryRetention = 30 * 24 * time.Hour
)
