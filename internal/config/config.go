package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yuya-takeyama/strict-dir-sync/pkg/planner"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote/s3store"
)

// EnvPrefix is prepended to every environment variable, e.g. STRICT_DIR_SYNC_BUCKET
const EnvPrefix = "STRICT_DIR_SYNC"

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

type Config struct {
	Source       string        `mapstructure:"source"`
	Destination  string        `mapstructure:"destination"`
	Verification string        `mapstructure:"verification"`
	PostCheck    bool          `mapstructure:"post-check"`
	Excludes     []string      `mapstructure:"exclude"`
	Force        bool          `mapstructure:"force"`
	DryRun       bool          `mapstructure:"dryrun"`
	Quiet        bool          `mapstructure:"quiet"`
	Backend      string        `mapstructure:"backend"`
	Bucket       string        `mapstructure:"bucket"`
	Profile      string        `mapstructure:"profile"`
	Region       string        `mapstructure:"region"`
	Endpoint     string        `mapstructure:"endpoint"`
	AccessKey    string        `mapstructure:"access-key"`
	SecretKey    string        `mapstructure:"secret-key"`
	ReportDir    string        `mapstructure:"report-dir"`
	LogFile      string        `mapstructure:"log-file"`
	LogLevel     string        `mapstructure:"log-level"`
	Every        time.Duration `mapstructure:"every"`
	SNSTopic     string        `mapstructure:"sns-topic"`
}

// Load merges, from lowest to highest precedence: defaults, the config file,
// environment variables (a .env file is loaded first if present) and flags
// the user set explicitly.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: .env: %v", ErrInvalidConfig, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", "")
	v.SetDefault("destination", "")
	v.SetDefault("verification", string(planner.ModeSize))
	v.SetDefault("post-check", false)
	v.SetDefault("exclude", []string{})
	v.SetDefault("force", false)
	v.SetDefault("dryrun", false)
	v.SetDefault("quiet", false)
	v.SetDefault("backend", BackendS3)
	v.SetDefault("bucket", "")
	v.SetDefault("profile", "")
	v.SetDefault("region", "")
	v.SetDefault("endpoint", "")
	v.SetDefault("access-key", "")
	v.SetDefault("secret-key", "")
	v.SetDefault("report-dir", ".")
	v.SetDefault("log-file", "")
	v.SetDefault("log-level", "info")
	v.SetDefault("every", time.Duration(0))
	v.SetDefault("sns-topic", "")
}

// Mode returns the parsed verification mode
func (c *Config) Mode() (planner.Mode, error) {
	mode, err := planner.ParseMode(c.Verification)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return mode, nil
}

// Normalize resolves an s3:// destination into bucket and remote path
func (c *Config) Normalize() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))

	if strings.HasPrefix(c.Destination, "s3://") {
		bucket, remotePath, err := s3store.ParseDestination(c.Destination)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if c.Bucket != "" && c.Bucket != bucket {
			return fmt.Errorf("%w: bucket %q conflicts with destination %s", ErrInvalidConfig, c.Bucket, c.Destination)
		}
		c.Bucket = bucket
		c.Destination = remotePath
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidConfig)
	}
	if c.Destination == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidConfig)
	}
	if _, err := c.Mode(); err != nil {
		return err
	}

	switch c.Backend {
	case BackendS3:
	case BackendMinio:
		if c.Endpoint == "" {
			return fmt.Errorf("%w: --endpoint is required for the minio backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q (want s3 or minio)", ErrInvalidConfig, c.Backend)
	}
	if c.Bucket == "" {
		return fmt.Errorf("%w: bucket is required", ErrInvalidConfig)
	}

	if c.Every < 0 {
		return fmt.Errorf("%w: --every must not be negative", ErrInvalidConfig)
	}
	return nil
}
