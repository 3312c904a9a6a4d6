package api

import "time"

type Config struct {
	Addr               string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout        time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout       time.Duration `envconfig:"WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	RateLimitBurst     int           `envconfig:"RATE_LIMIT_BURST" default:"20"`
	MaxBodyBytes       int64         `envconfig:"MAX_BODY_BYTES" default:"10485760"`
}
