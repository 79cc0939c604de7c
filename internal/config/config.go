// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration is the root configuration of the service.
type Configuration struct {
	Service       ServiceConfig
	STT           STTConfig
	Audio         AudioConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	GRPCPort    string
	MetricsAddr string
}

// STTConfig holds recognition engine settings.
type STTConfig struct {
	Provider          string // vosk, google, simulated
	Languages         []string
	ChunkSamples      int
	ModelPaths        map[string][]string
	SimulatedAccuracy float64
	SimulatedSeed     uint64
}

// AudioConfig holds audio normalization settings.
type AudioConfig struct {
	MaxBytes         int64
	MaxDuration      time.Duration
	FFmpegPath       string
	TranscodeTimeout time.Duration
	TempDir          string
}

// KafkaConfig holds analysis event publishing settings.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicReports  string
	TopicFailures string
	Principal     string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// DefaultModelPaths lists the candidate model directories per language.
// The first existing directory wins.
func DefaultModelPaths() map[string][]string {
	return map[string][]string{
		"zh-CN": {
			"vosk-model-small-cn-0.22",
			"model/vosk-model-small-cn-0.22",
			"ml_models/vosk-models/vosk-model-small-cn-0.22",
			"/usr/share/vosk/vosk-model-small-cn-0.22",
		},
		"en-US": {
			"vosk-model-small-en-us-0.15",
			"vosk-model-en-us-0.15",
			"model/vosk-model-small-en-us-0.15",
			"ml_models/vosk-models/vosk-model-small-en-us-0.15",
			"/usr/share/vosk/vosk-model-small-en-us-0.15",
		},
	}
}

// Load builds a Configuration from environment variables.
// Values that fail to parse fall back to their defaults.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-speech-rehab")

	cfg := &Configuration{
		Service: ServiceConfig{
			Principal:   principal,
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
		STT: STTConfig{
			Provider:          envOrDefault("STT_PROVIDER", "vosk"),
			Languages:         envOrDefaultList("STT_LANGUAGES", []string{"zh-CN", "en-US"}),
			ChunkSamples:      envOrDefaultInt("STT_CHUNK_SAMPLES", 4000),
			ModelPaths:        DefaultModelPaths(),
			SimulatedAccuracy: envOrDefaultFloat("STT_SIMULATED_ACCURACY", 0.8),
			SimulatedSeed:     uint64(envOrDefaultInt("STT_SIMULATED_SEED", 0)),
		},
		Audio: AudioConfig{
			MaxBytes:         int64(envOrDefaultInt("AUDIO_MAX_BYTES", 10*1024*1024)),
			MaxDuration:      envOrDefaultDuration("AUDIO_MAX_DURATION", 5*time.Minute),
			FFmpegPath:       envOrDefault("AUDIO_FFMPEG_PATH", "ffmpeg"),
			TranscodeTimeout: envOrDefaultDuration("AUDIO_TRANSCODE_TIMEOUT", 30*time.Second),
			TempDir:          os.Getenv("AUDIO_TEMP_DIR"),
		},
		Kafka: KafkaConfig{
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envOrDefaultList("KAFKA_BROKERS", nil),
			TopicReports:  envOrDefault("KAFKA_TOPIC_REPORTS", "speech.analysis.completed"),
			TopicFailures: envOrDefault("KAFKA_TOPIC_FAILURES", "speech.analysis.failed"),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}

	for lang, paths := range modelPathsFromEnv() {
		cfg.STT.ModelPaths[lang] = paths
	}

	if file := os.Getenv("STT_MODEL_CONFIG"); file != "" {
		if paths, err := LoadModelCatalog(file); err == nil {
			for lang, p := range paths {
				cfg.STT.ModelPaths[lang] = p
			}
		}
	}

	return cfg
}

// modelCatalog is the on-disk layout of STT_MODEL_CONFIG.
//
//	languages:
//	  zh-CN:
//	    name: Chinese
//	    paths: [vosk-model-small-cn-0.22, /models/cn]
type modelCatalog struct {
	Languages map[string]struct {
		Name  string   `yaml:"name"`
		Paths []string `yaml:"paths"`
	} `yaml:"languages"`
}

// LoadModelCatalog reads per-language model search paths from a YAML file.
func LoadModelCatalog(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}
	return ParseModelCatalog(raw)
}

// ParseModelCatalog parses the YAML model catalog format.
func ParseModelCatalog(raw []byte) (map[string][]string, error) {
	var catalog modelCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse model catalog: %w", err)
	}
	out := make(map[string][]string, len(catalog.Languages))
	for lang, entry := range catalog.Languages {
		if len(entry.Paths) == 0 {
			continue
		}
		out[lang] = entry.Paths
	}
	return out, nil
}

// modelPathsFromEnv reads VOSK_MODEL_PATHS_<LANG> overrides, e.g.
// VOSK_MODEL_PATHS_ZH_CN=/models/cn,/opt/cn.
func modelPathsFromEnv() map[string][]string {
	out := make(map[string][]string)
	for lang := range DefaultModelPaths() {
		key := "VOSK_MODEL_PATHS_" + strings.ToUpper(strings.ReplaceAll(lang, "-", "_"))
		if paths := envOrDefaultList(key, nil); len(paths) > 0 {
			out[lang] = paths
		}
	}
	return out
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
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
