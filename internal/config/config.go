// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServiceConfig holds service identity and listener settings.
type ServiceConfig struct {
	Name      string
	Principal string
	HTTPPort  string
}

// RecognizerConfig holds speech-recognition source settings.
type RecognizerConfig struct {
	Provider           string // mock, google
	LanguageMode       string // auto or a fixed BCP-47 code
	CandidateLanguages []string
	SampleRateHz       int
	InterimResults     bool
}

// AggregatorConfig holds transcript aggregation settings.
type AggregatorConfig struct {
	GapThreshold      time.Duration
	DefaultConfidence float64
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicSegments string
	TopicSessions string
	Principal     string
}

// ExportConfig holds transcript file export settings.
type ExportConfig struct {
	Enabled bool
	Dir     string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	MetricsPort string
}

// Configuration is the root configuration for the service.
type Configuration struct {
	Service       ServiceConfig
	Recognizer    RecognizerConfig
	Aggregator    AggregatorConfig
	Kafka         KafkaConfig
	Export        ExportConfig
	Observability ObservabilityConfig
}

// Load reads configuration from the environment, applying defaults for
// anything unset or unparsable. A .env file in the working directory is
// honored when present.
func Load() *Configuration {
	_ = godotenv.Load()

	cfg := &Configuration{
		Service: ServiceConfig{
			Name:      envOrDefault("SERVICE_NAME", "meeting-transcription-service"),
			Principal: envOrDefault("SERVICE_PRINCIPAL", "svc-meeting-transcription"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		Recognizer: RecognizerConfig{
			Provider:           envOrDefault("RECOGNIZER_PROVIDER", "mock"),
			LanguageMode:       envOrDefault("RECOGNIZER_LANGUAGE", "auto"),
			CandidateLanguages: envOrDefaultList("RECOGNIZER_CANDIDATE_LANGUAGES", []string{"es-ES", "de-DE", "en-US"}),
			SampleRateHz:       envOrDefaultInt("RECOGNIZER_SAMPLE_RATE_HZ", 16000),
			InterimResults:     envOrDefaultBool("RECOGNIZER_INTERIM_RESULTS", false),
		},
		Aggregator: AggregatorConfig{
			GapThreshold:      envOrDefaultDuration("AGGREGATOR_GAP_THRESHOLD", 3*time.Second),
			DefaultConfidence: envOrDefaultFloat("AGGREGATOR_DEFAULT_CONFIDENCE", 0.95),
		},
		Kafka: KafkaConfig{
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envOrDefaultList("KAFKA_BROKERS", nil),
			TopicSegments: envOrDefault("KAFKA_TOPIC_SEGMENTS", "meeting.transcript.segments"),
			TopicSessions: envOrDefault("KAFKA_TOPIC_SESSIONS", "meeting.transcript.sessions"),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", ""),
		},
		Export: ExportConfig{
			Enabled: envOrDefaultBool("EXPORT_ENABLED", true),
			Dir:     envOrDefault("EXPORT_DIR", "transcripts"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
	}

	// Kafka events are attributed to the service principal unless overridden.
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
