package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration, loaded once at startup and
// passed explicitly into every component.
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Segmenter     SegmenterConfig     `yaml:"segmenter"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Workers       WorkersConfig       `yaml:"workers"`
	Storage       StorageConfig       `yaml:"storage"`
	Cleanup       CleanupConfig       `yaml:"cleanup"`
	GoogleDrive   GoogleDriveConfig   `yaml:"google_drive"`
}

// AudioConfig describes the expected input waveform.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
}

// VADConfig holds voice activity detection parameters.
type VADConfig struct {
	Threshold  float32 `yaml:"threshold"`
	WindowSize int     `yaml:"window_size"` // samples
}

// SegmenterConfig holds the merge and filter constraints.
type SegmenterConfig struct {
	MaxDuration        float64 `yaml:"max_duration"`         // seconds
	MaxGap             float64 `yaml:"max_gap"`              // seconds
	MinSegmentDuration float64 `yaml:"min_segment_duration"` // seconds
	FilterShort        bool    `yaml:"filter_short"`
}

// TranscriptionConfig holds the remote batch service settings.
type TranscriptionConfig struct {
	Endpoint        string `yaml:"endpoint"`
	APIKey          string `yaml:"api_key"`
	LanguageCode    string `yaml:"language_code"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	PollSeconds     int    `yaml:"poll_seconds"`
	MaxPollAttempts int    `yaml:"max_poll_attempts"`
	DebugDir        string `yaml:"debug_dir"`
}

// WorkersConfig sizes the slice worker pool.
type WorkersConfig struct {
	Count int `yaml:"count"`
}

// StorageConfig holds local persistence paths.
type StorageConfig struct {
	TempDir   string `yaml:"temp_dir"`
	OutputDir string `yaml:"output_dir"`
	Database  string `yaml:"database"`
}

// CleanupConfig controls temp file housekeeping.
type CleanupConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
	MaxAgeHours     int `yaml:"max_age_hours"`
}

// GoogleDriveConfig holds optional archival upload settings.
type GoogleDriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	FolderName      string `yaml:"folder_name"`
}

// Load reads a YAML configuration file, applies defaults and the
// TRANSCRIBE_API_KEY environment override, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if key := os.Getenv("TRANSCRIBE_API_KEY"); key != "" {
		cfg.Transcription.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.VAD.Threshold == 0 {
		c.VAD.Threshold = 0.5
	}
	if c.VAD.WindowSize == 0 {
		c.VAD.WindowSize = 512
	}
	if c.Segmenter.MaxDuration == 0 {
		c.Segmenter.MaxDuration = 8.0
	}
	if c.Segmenter.MaxGap == 0 {
		c.Segmenter.MaxGap = 1.0
	}
	if c.Segmenter.MinSegmentDuration == 0 {
		c.Segmenter.MinSegmentDuration = 1.0
	}
	if c.Transcription.TimeoutSeconds == 0 {
		c.Transcription.TimeoutSeconds = 30
	}
	if c.Transcription.PollSeconds == 0 {
		c.Transcription.PollSeconds = 5
	}
	if c.Transcription.MaxPollAttempts == 0 {
		c.Transcription.MaxPollAttempts = 30
	}
	if c.Workers.Count == 0 {
		c.Workers.Count = 4
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = "temp"
	}
	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = "outputs"
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "sessions.db"
	}
	if c.Cleanup.IntervalMinutes == 0 {
		c.Cleanup.IntervalMinutes = 30
	}
	if c.Cleanup.MaxAgeHours == 0 {
		c.Cleanup.MaxAgeHours = 24
	}
}

// Validate rejects configurations the pipeline cannot run with. Missing
// credentials are a hard error here, never a silent empty result later.
func (c *Config) Validate() error {
	if c.Transcription.Endpoint == "" {
		return fmt.Errorf("transcription.endpoint is required")
	}
	if c.Transcription.APIKey == "" {
		return fmt.Errorf("transcription.api_key is required (or set TRANSCRIBE_API_KEY)")
	}
	if c.VAD.Threshold <= 0 || c.VAD.Threshold >= 1 {
		return fmt.Errorf("vad.threshold must be between 0 and 1, got %f", c.VAD.Threshold)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Segmenter.MaxGap > c.Segmenter.MaxDuration {
		return fmt.Errorf("segmenter.max_gap cannot exceed segmenter.max_duration")
	}
	return nil
}
