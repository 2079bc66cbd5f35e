package model

import (
	"path/filepath"
	"runtime"
	"time"
)

// Config is the complete poseprep configuration.
// Field tags serve both yaml.v3 (config init/show) and viper (loading).
type Config struct {
	ArtifactsRoot string              `yaml:"artifacts_root" mapstructure:"artifacts_root"`
	DataIngestion DataIngestionConfig `yaml:"data_ingestion" mapstructure:"data_ingestion"`
	Conversion    ConversionConfig    `yaml:"conversion" mapstructure:"conversion"`
	HTTP          HTTPConfig          `yaml:"http" mapstructure:"http"`
	RateLimiting  RateLimitConfig     `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Logging       LoggingConfig       `yaml:"logging" mapstructure:"logging"`
}

// DataIngestionConfig locates the dataset archive and where it is unpacked
type DataIngestionConfig struct {
	RootDir       string `yaml:"root_dir" mapstructure:"root_dir"`
	SourceURL     string `yaml:"source_url" mapstructure:"source_url"`           // Empty: archive must already exist locally
	LocalDataFile string `yaml:"local_data_file" mapstructure:"local_data_file"` // Downloaded / expected zip path
	UnzipDir      string `yaml:"unzip_dir" mapstructure:"unzip_dir"`
	Force         bool   `yaml:"force" mapstructure:"force"` // Re-download even if the archive exists
}

// ConversionConfig controls the annotation conversion stage
type ConversionConfig struct {
	AnnotationGlob string `yaml:"annotation_glob" mapstructure:"annotation_glob"` // doublestar pattern, relative to the unzip dir
	OutputDir      string `yaml:"output_dir" mapstructure:"output_dir"`
	Workers        int    `yaml:"workers" mapstructure:"workers"`
}

// HTTPConfig configures dataset downloads
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	ShowProgress  bool          `yaml:"show_progress" mapstructure:"show_progress"`
}

// RateLimitConfig bounds requests per host
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
	// Hosts override the default rate for individual hosts
	Hosts []HostRateLimit `yaml:"hosts,omitempty" mapstructure:"hosts"`
}

// HostRateLimit is the rate for a single host
type HostRateLimit struct {
	Host              string  `yaml:"host" mapstructure:"host"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig controls caching of converted annotations
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// DefaultConfig returns the built-in defaults, rooted at ./artifacts
func DefaultConfig() *Config {
	root := "artifacts"
	ingestDir := filepath.Join(root, "data_ingestion")

	return &Config{
		ArtifactsRoot: root,
		DataIngestion: DataIngestionConfig{
			RootDir:       ingestDir,
			LocalDataFile: filepath.Join(ingestDir, "data.zip"),
			UnzipDir:      ingestDir,
		},
		Conversion: ConversionConfig{
			AnnotationGlob: "**/*.xml",
			OutputDir:      filepath.Join(root, "annotations"),
			Workers:        runtime.NumCPU(),
		},
		HTTP: HTTPConfig{
			Timeout:       10 * time.Minute,
			UserAgent:     "poseprep/0.1 (+https://github.com/ppiankov/poseprep)",
			MaxBodyBytes:  4 << 30,
			RespectRobots: true,
			ShowProgress:  true,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         2,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       filepath.Join(root, ".cache"),
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
