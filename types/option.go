package types

import (
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/prometheus/client_golang/prometheus"
)

type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
)

func NewEngineOptions() *EngineOptions {
	opts := &EngineOptions{}
	defaults.SetDefaults(opts)
	return opts
}

type EngineOptions struct {
	/**
	 * default: parallel
	 * sequential runs one node at a time in frontier order.
	 */
	Mode ExecutionMode `default:"parallel"`
	/**
	 * default: 30s
	 * a node whose executor has not returned within this duration fails
	 * the run with NodeTimeout.
	 */
	NodeTimeout time.Duration `default:"30s"`
	/**
	 * default: 16
	 * upper bound of a parallel group, also the size of the worker pool.
	 */
	MaxConcurrentNodes int `default:"16"`
	/**
	 * default: 10000
	 * a run that goes through more levels than this fails with
	 * ExecutionLimitExceeded. It bounds cyclic graphs.
	 */
	MaxLevels int `default:"10000"`
	/**
	 * default: true
	 * run the validator before every CoordinateExecution.
	 */
	ValidateBeforeRun bool `default:"true"`
	/**
	 * default: false, only set it to true when doing testing or developing.
	 */
	MemStore bool `default:"false"`

	// If more than one store is configured, PostgresConfig takes precedence
	// over RedisConfig, which takes precedence over MemStore.
	PostgresConfig *PostgresConfig
	RedisConfig    *RedisConfig

	MetricsNamespace string `default:"graphflow"`
	// Metrics are registered only when a Registerer is given.
	MetricsRegisterer prometheus.Registerer
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // disable, require, verify-ca, verify-full
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string `default:"localhost:6379"`
	Password  string
	DB        int
	KeyPrefix string `default:"graphflow"`
}

type EngineOption func(*EngineOptions)

func WithMode(mode ExecutionMode) EngineOption {
	return func(opts *EngineOptions) {
		opts.Mode = mode
	}
}

func WithSequentialMode() EngineOption {
	return WithMode(ModeSequential)
}

func WithParallelMode() EngineOption {
	return WithMode(ModeParallel)
}

func SetNodeTimeout(timeout time.Duration) EngineOption {
	return func(opts *EngineOptions) {
		opts.NodeTimeout = timeout
	}
}

func SetMaxConcurrentNodes(n int) EngineOption {
	return func(opts *EngineOptions) {
		opts.MaxConcurrentNodes = n
	}
}

func SetMaxLevels(n int) EngineOption {
	return func(opts *EngineOptions) {
		opts.MaxLevels = n
	}
}

func DisableValidation() EngineOption {
	return func(opts *EngineOptions) {
		opts.ValidateBeforeRun = false
	}
}

func EnableMemStore() EngineOption {
	return func(opts *EngineOptions) {
		opts.MemStore = true
	}
}

// WithPostgresConfig configures the engine to persist state in PostgreSQL
func WithPostgresConfig(config *PostgresConfig) EngineOption {
	return func(opts *EngineOptions) {
		opts.PostgresConfig = config
	}
}

// WithRedisConfig configures the engine to persist state in Redis
func WithRedisConfig(config *RedisConfig) EngineOption {
	return func(opts *EngineOptions) {
		defaults.SetDefaults(config)
		opts.RedisConfig = config
	}
}

func WithMetrics(namespace string, registerer prometheus.Registerer) EngineOption {
	return func(opts *EngineOptions) {
		if namespace != "" {
			opts.MetricsNamespace = namespace
		}
		opts.MetricsRegisterer = registerer
	}
}
