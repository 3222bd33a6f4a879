// Package config contains all knobs and defaults used to configure the
// Prolog query service when running as a standalone server.
package config

import (
	"errors"
	"fmt"
	"runtime"
)

const (
	// DefaultHTTPAddr is the listen address of the query endpoint.
	DefaultHTTPAddr = "0.0.0.0:3030"

	// DefaultMetricsAddr is the listen address of the prometheus metrics
	// endpoint.
	DefaultMetricsAddr = "0.0.0.0:2112"

	// DefaultProfilerAddr is the listen address of the pprof endpoint.
	DefaultProfilerAddr = ":3001"

	DefaultTraceOTLPEndpoint = "0.0.0.0:4317"
	DefaultTraceSampleRatio  = 0.2
	DefaultTraceServiceName  = "prolog-service"
)

// DefaultMaxConcurrentEvaluations is the admission budget when none is
// configured: one evaluation per available CPU.
func DefaultMaxConcurrentEvaluations() uint32 {
	return uint32(runtime.NumCPU())
}

// TLSConfig defines configuration specific to Transport Layer Security (TLS) settings.
type TLSConfig struct {
	Enabled  bool
	CertPath string `mapstructure:"cert"`
	KeyPath  string `mapstructure:"key"`
}

// HTTPConfig defines configuration for the query-serving HTTP endpoint.
type HTTPConfig struct {
	Addr string
	TLS  *TLSConfig

	CORSAllowedOrigins []string
	CORSAllowedHeaders []string
}

// LogConfig defines the log format, level, and optional output file.
type LogConfig struct {
	// Format is one of ['text', 'json'].
	Format string

	// Level is one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal'].
	Level string

	// File, when set, routes log output to the given path instead of stderr.
	// Rotation is left to the process supervisor.
	File string
}

// MetricConfig defines configuration for the prometheus metrics endpoint.
type MetricConfig struct {
	Enabled bool
	Addr    string
}

// ProfilerConfig defines configuration for the pprof endpoint.
type ProfilerConfig struct {
	Enabled bool
	Addr    string
}

type OTLPTraceConfig struct {
	Endpoint string
	TLS      OTLPTraceTLSConfig
}

type OTLPTraceTLSConfig struct {
	Enabled bool
}

// TraceConfig defines configuration for OTLP tracing.
type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
	ServiceName string
}

// Config is the whole server configuration, populated from flags,
// environment variables, or config.yaml.
type Config struct {
	// MaxConcurrentEvaluations is the admission budget: the maximum number
	// of evaluations running at once. Zero means one per available CPU.
	MaxConcurrentEvaluations uint32

	HTTP     HTTPConfig
	Log      LogConfig
	Trace    TraceConfig
	Metrics  MetricConfig
	Profiler ProfilerConfig
}

func (cfg *Config) Verify() error {
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("config 'log.format' must be one of ['text', 'json']")
	}

	if cfg.Log.Level != "none" &&
		cfg.Log.Level != "debug" &&
		cfg.Log.Level != "info" &&
		cfg.Log.Level != "warn" &&
		cfg.Log.Level != "error" &&
		cfg.Log.Level != "panic" &&
		cfg.Log.Level != "fatal" {
		return fmt.Errorf(
			"config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		)
	}

	if cfg.HTTP.Addr == "" {
		return errors.New("config 'http.addr' must not be empty")
	}

	if cfg.HTTP.TLS.Enabled {
		if cfg.HTTP.TLS.CertPath == "" || cfg.HTTP.TLS.KeyPath == "" {
			return errors.New("'http.tls.cert' and 'http.tls.key' configs must be set")
		}
	}

	if cfg.Trace.Enabled {
		if cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1 {
			return errors.New("config 'trace.sampleRatio' must be in the range [0, 1]")
		}
	}

	return nil
}

// MaxConcurrentEvaluationsOrDefault resolves the configured admission
// budget, substituting the CPU-count default for zero.
func (cfg *Config) MaxConcurrentEvaluationsOrDefault() int {
	if cfg.MaxConcurrentEvaluations == 0 {
		return int(DefaultMaxConcurrentEvaluations())
	}
	return int(cfg.MaxConcurrentEvaluations)
}

// DefaultConfig is the service's default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrentEvaluations: DefaultMaxConcurrentEvaluations(),
		HTTP: HTTPConfig{
			Addr:               DefaultHTTPAddr,
			TLS:                &TLSConfig{Enabled: false},
			CORSAllowedOrigins: []string{"*"},
			CORSAllowedHeaders: []string{"*"},
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: DefaultTraceOTLPEndpoint,
				TLS: OTLPTraceTLSConfig{
					Enabled: false,
				},
			},
			SampleRatio: DefaultTraceSampleRatio,
			ServiceName: DefaultTraceServiceName,
		},
		Metrics: MetricConfig{
			Enabled: false,
			Addr:    DefaultMetricsAddr,
		},
		Profiler: ProfilerConfig{
			Enabled: false,
			Addr:    DefaultProfilerAddr,
		},
	}
}
