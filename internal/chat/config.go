package chat

import "time"

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 500
)

// Config defines fields parsed from environment variables
type Config struct {
	PresenceThreshold   time.Duration `env:"PRESENCE_THRESHOLD" envDefault:"15s"`
	DefaultHistoryLimit int           `env:"DEFAULT_HISTORY_LIMIT" envDefault:"100"`
	MaxHistoryLimit     int           `env:"MAX_HISTORY_LIMIT" envDefault:"500"`
}

// historyLimit resolves requested limit, zero means default, values over max are clamped
func (c Config) historyLimit(requested int) int {
	def, max := c.DefaultHistoryLimit, c.MaxHistoryLimit
	if def <= 0 {
		def = DefaultHistoryLimit
	}
	if max <= 0 {
		max = MaxHistoryLimit
	}
	if requested == 0 {
		requested = def
	}
	if requested > max {
		requested = max
	}
	return requested
}
