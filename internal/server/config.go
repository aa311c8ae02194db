package server

import (
	"go.uber.org/zap"
	"net/http"
	"strconv"
	"time"
)

type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// config defines fields used for configuring Server instance
type config struct {
	httpServer    *http.Server
	handlers      map[string]http.Handler
	corsOrigin    string
	afterShutdown []func()
}

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Host        string        `env:"HOST" envDefault:"0.0.0.0"`
	Port        uint16        `env:"PORT" envDefault:"9000"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	HandlerTimeout time.Duration `env:"HANDLER_TIMEOUT" envDefault:"10s"`
	CORSOrigin     string        `env:"CORS_ORIGIN" envDefault:"*"`
}

// WithEnvConfig enables processing exported EnvConfig struct to acts as a source of config parameters for http.Server
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		c.httpServer.Addr = cfg.Host + ":" + strconv.FormatUint(uint64(cfg.Port), 10)
		if cfg.CORSOrigin != "" {
			c.corsOrigin = cfg.CORSOrigin
		}
	})
}

// ReadTimeout sets read timeout for http.Server
func ReadTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.httpServer.ReadTimeout = d
	})
}

// CORSOrigin sets value of Access-Control-Allow-Origin header
func CORSOrigin(origin string) Option {
	return optionFunc(func(c *config) {
		c.corsOrigin = origin
	})
}

// RegisterAfterShutdown registers a function to call after http.Server shutdown
// f will not be called in separated goroutine
func RegisterAfterShutdown(f func()) Option {
	return optionFunc(func(c *config) {
		c.afterShutdown = append(c.afterShutdown, f)
	})
}

// TimeoutHandler wraps each API handler in http.TimeoutHandler with provided duration and message,
// non-positive d leaves handlers as is
func TimeoutHandler(d time.Duration, msg string) Option {
	return optionFunc(func(c *config) {
		if d <= 0 {
			return
		}
		for pattern, h := range c.handlers {
			c.handlers[pattern] = http.TimeoutHandler(h, d, msg)
		}
	})
}

// registerHandlers iterates over a handlers map and registers each handler for newly initialized http.ServeMux
// that http.ServeMux is used as a http.Handler for http.Server in config struct
func registerHandlers(extra map[string]http.Handler) Option {
	return optionFunc(func(c *config) {
		mux := http.NewServeMux()
		for pattern, h := range c.handlers {
			mux.Handle(pattern, h)
		}
		for pattern, h := range extra {
			mux.Handle(pattern, h)
		}
		c.httpServer.Handler = mux
	})
}

// applyAuth wraps each API handler with auth middleware
func applyAuth(ident identifier) Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = authenticate(h, ident)
		}
	})
}

// applyEnforcePostJson wraps each API handler with enforcePostJson middleware
func applyEnforcePostJson() Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = enforcePostJson(h)
		}
	})
}

// applyMetrics wraps each API handler with request metrics labeled by its pattern
func applyMetrics() Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = instrument(h, pattern)
		}
	})
}

// applyLog wraps each API handler with log middleware
func applyLog(logger *zap.Logger) Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = log(h, logger)
		}
	})
}

// applyCORS wraps each API handler with cors middleware, it must be the outermost one to answer preflights
func applyCORS() Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = cors(h, c.corsOrigin)
		}
	})
}
