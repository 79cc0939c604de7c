package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear relevant env vars
	envVars := []string{
		"SERVICE_PRINCIPAL", "HTTP_PORT", "GRPC_PORT", "METRICS_ADDR", "LOG_LEVEL",
		"STT_PROVIDER", "STT_LANGUAGES", "STT_CHUNK_SAMPLES", "STT_SIMULATED_ACCURACY",
		"STT_SIMULATED_SEED", "STT_MODEL_CONFIG", "VOSK_MODEL_PATHS_ZH_CN",
		"AUDIO_MAX_BYTES", "AUDIO_FFMPEG_PATH", "AUDIO_TRANSCODE_TIMEOUT",
		"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_PRINCIPAL",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	// Service defaults
	if cfg.Service.Principal != "svc-speech-rehab" {
		t.Errorf("expected default principal 'svc-speech-rehab', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default HTTP port '8080', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.Service.GRPCPort)
	}

	// STT defaults
	if cfg.STT.Provider != "vosk" {
		t.Errorf("expected default STT provider 'vosk', got %s", cfg.STT.Provider)
	}
	if !reflect.DeepEqual(cfg.STT.Languages, []string{"zh-CN", "en-US"}) {
		t.Errorf("expected default languages [zh-CN en-US], got %v", cfg.STT.Languages)
	}
	if cfg.STT.ChunkSamples != 4000 {
		t.Errorf("expected default chunk size 4000, got %d", cfg.STT.ChunkSamples)
	}
	if cfg.STT.SimulatedAccuracy != 0.8 {
		t.Errorf("expected default simulated accuracy 0.8, got %v", cfg.STT.SimulatedAccuracy)
	}
	if len(cfg.STT.ModelPaths["zh-CN"]) == 0 || len(cfg.STT.ModelPaths["en-US"]) == 0 {
		t.Errorf("expected default model paths for zh-CN and en-US, got %v", cfg.STT.ModelPaths)
	}

	// Audio defaults
	if cfg.Audio.MaxBytes != 10*1024*1024 {
		t.Errorf("expected default max bytes 10MB, got %d", cfg.Audio.MaxBytes)
	}
	if cfg.Audio.MaxDuration != 5*time.Minute {
		t.Errorf("expected default max duration 5m, got %s", cfg.Audio.MaxDuration)
	}
	if cfg.Audio.FFmpegPath != "ffmpeg" {
		t.Errorf("expected default ffmpeg path 'ffmpeg', got %s", cfg.Audio.FFmpegPath)
	}
	if cfg.Audio.TranscodeTimeout != 30*time.Second {
		t.Errorf("expected default transcode timeout 30s, got %v", cfg.Audio.TranscodeTimeout)
	}

	// Kafka defaults
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Kafka.TopicReports != "speech.analysis.completed" {
		t.Errorf("unexpected default report topic %s", cfg.Kafka.TopicReports)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	// Set custom env vars
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("GRPC_PORT", "9999")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("STT_PROVIDER", "google")
	os.Setenv("STT_LANGUAGES", "en-US, zh-CN")
	os.Setenv("STT_CHUNK_SAMPLES", "8000")
	os.Setenv("STT_SIMULATED_SEED", "42")
	os.Setenv("VOSK_MODEL_PATHS_ZH_CN", "/models/cn,/opt/cn")
	os.Setenv("AUDIO_MAX_BYTES", "1048576")
	os.Setenv("AUDIO_TRANSCODE_TIMEOUT", "5s")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "kafka-0:9092,kafka-1:9092")

	defer func() {
		// Clean up
		os.Unsetenv("SERVICE_PRINCIPAL")
		os.Unsetenv("GRPC_PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("STT_PROVIDER")
		os.Unsetenv("STT_LANGUAGES")
		os.Unsetenv("STT_CHUNK_SAMPLES")
		os.Unsetenv("STT_SIMULATED_SEED")
		os.Unsetenv("VOSK_MODEL_PATHS_ZH_CN")
		os.Unsetenv("AUDIO_MAX_BYTES")
		os.Unsetenv("AUDIO_TRANSCODE_TIMEOUT")
		os.Unsetenv("KAFKA_ENABLED")
		os.Unsetenv("KAFKA_BROKERS")
	}()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if !reflect.DeepEqual(cfg.STT.Languages, []string{"en-US", "zh-CN"}) {
		t.Errorf("expected languages [en-US zh-CN], got %v", cfg.STT.Languages)
	}
	if cfg.STT.ChunkSamples != 8000 {
		t.Errorf("expected chunk size 8000, got %d", cfg.STT.ChunkSamples)
	}
	if cfg.STT.SimulatedSeed != 42 {
		t.Errorf("expected simulated seed 42, got %d", cfg.STT.SimulatedSeed)
	}
	if !reflect.DeepEqual(cfg.STT.ModelPaths["zh-CN"], []string{"/models/cn", "/opt/cn"}) {
		t.Errorf("expected zh-CN model path override, got %v", cfg.STT.ModelPaths["zh-CN"])
	}
	if cfg.Audio.MaxBytes != 1048576 {
		t.Errorf("expected max bytes 1048576, got %d", cfg.Audio.MaxBytes)
	}
	if cfg.Audio.TranscodeTimeout != 5*time.Second {
		t.Errorf("expected transcode timeout 5s, got %v", cfg.Audio.TranscodeTimeout)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("expected 2 brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	// Set invalid env vars
	os.Setenv("STT_CHUNK_SAMPLES", "not-a-number")
	os.Setenv("STT_SIMULATED_ACCURACY", "invalid")
	os.Setenv("AUDIO_MAX_BYTES", "invalid")
	os.Setenv("AUDIO_TRANSCODE_TIMEOUT", "invalid")
	os.Setenv("KAFKA_ENABLED", "invalid")

	defer func() {
		os.Unsetenv("STT_CHUNK_SAMPLES")
		os.Unsetenv("STT_SIMULATED_ACCURACY")
		os.Unsetenv("AUDIO_MAX_BYTES")
		os.Unsetenv("AUDIO_TRANSCODE_TIMEOUT")
		os.Unsetenv("KAFKA_ENABLED")
	}()

	cfg := Load()

	// Should fall back to defaults on parse errors
	if cfg.STT.ChunkSamples != 4000 {
		t.Errorf("expected default chunk size on invalid input, got %d", cfg.STT.ChunkSamples)
	}
	if cfg.STT.SimulatedAccuracy != 0.8 {
		t.Errorf("expected default accuracy on invalid input, got %v", cfg.STT.SimulatedAccuracy)
	}
	if cfg.Audio.MaxBytes != 10*1024*1024 {
		t.Errorf("expected default max bytes on invalid input, got %d", cfg.Audio.MaxBytes)
	}
	if cfg.Audio.TranscodeTimeout != 30*time.Second {
		t.Errorf("expected default transcode timeout on invalid input, got %v", cfg.Audio.TranscodeTimeout)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected default Kafka disabled on invalid input")
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	os.Unsetenv("KAFKA_PRINCIPAL")

	defer os.Unsetenv("SERVICE_PRINCIPAL")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestParseModelCatalog(t *testing.T) {
	raw := []byte(`
languages:
  zh-CN:
    name: Chinese
    paths:
      - /models/cn-small
      - /models/cn-large
  en-US:
    name: English
    paths: []
`)

	paths, err := ParseModelCatalog(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(paths["zh-CN"], []string{"/models/cn-small", "/models/cn-large"}) {
		t.Errorf("unexpected zh-CN paths: %v", paths["zh-CN"])
	}
	if _, ok := paths["en-US"]; ok {
		t.Error("expected languages without paths to be skipped")
	}

	if _, err := ParseModelCatalog([]byte("languages: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected []string
	}{
		{"single", "a", []string{"a"}},
		{"trimmed", " a , b ", []string{"a", "b"}},
		{"empty items", ",,", []string{"def"}},
		{"unset", "", []string{"def"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_LIST_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultList(key, []string{"def"})
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("envOrDefaultList(%q) = %v, want %v", tt.envValue, got, tt.expected)
			}
		})
	}
}
