package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
transcription:
  endpoint: https://api.example.com
  api_key: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Expected default sample rate 16000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.VAD.Threshold != 0.5 || cfg.VAD.WindowSize != 512 {
		t.Errorf("Wrong VAD defaults: %+v", cfg.VAD)
	}
	if cfg.Segmenter.MaxDuration != 8.0 || cfg.Segmenter.MaxGap != 1.0 {
		t.Errorf("Wrong segmenter defaults: %+v", cfg.Segmenter)
	}
	if cfg.Segmenter.MinSegmentDuration != 1.0 {
		t.Errorf("Wrong min segment duration default: %f", cfg.Segmenter.MinSegmentDuration)
	}
	if cfg.Transcription.PollSeconds != 5 || cfg.Transcription.MaxPollAttempts != 30 {
		t.Errorf("Wrong poll defaults: %+v", cfg.Transcription)
	}
	if cfg.Workers.Count != 4 {
		t.Errorf("Expected default worker count 4, got %d", cfg.Workers.Count)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
audio:
  sample_rate: 8000
vad:
  threshold: 0.7
  window_size: 256
segmenter:
  max_duration: 12.0
  max_gap: 2.0
  filter_short: true
transcription:
  endpoint: https://api.example.com
  api_key: secret
  language_code: uk-UA
workers:
  count: 8
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Audio.SampleRate != 8000 || cfg.VAD.Threshold != 0.7 {
		t.Errorf("Explicit values not honored: %+v", cfg)
	}
	if !cfg.Segmenter.FilterShort {
		t.Error("filter_short not honored")
	}
	if cfg.Transcription.LanguageCode != "uk-UA" {
		t.Errorf("Wrong language code: %q", cfg.Transcription.LanguageCode)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
transcription:
  endpoint: https://api.example.com
  api_key: from-file
`)

	t.Setenv("TRANSCRIBE_API_KEY", "from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Transcription.APIKey != "from-env" {
		t.Errorf("Expected env override, got %q", cfg.Transcription.APIKey)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing endpoint",
			content: `
transcription:
  api_key: secret
`,
		},
		{
			name: "missing api key",
			content: `
transcription:
  endpoint: https://api.example.com
`,
		},
		{
			name: "threshold out of range",
			content: `
vad:
  threshold: 1.5
transcription:
  endpoint: https://api.example.com
  api_key: secret
`,
		},
		{
			name: "gap exceeds duration",
			content: `
segmenter:
  max_gap: 10
  max_duration: 8
transcription:
  endpoint: https://api.example.com
  api_key: secret
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "{{not yaml")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}
