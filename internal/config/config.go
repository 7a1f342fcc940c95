package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/wb-go/wbf/retry"
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	Env    string       `yaml:"env" env:"APP_ENV" env-default:"development"`
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Minio  MinioConfig  `yaml:"minio"`
	Worker WorkerConfig `yaml:"worker"`
	Render RenderConfig `yaml:"render"`
	Retry  RetryConfig  `yaml:"retry"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"120s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"15s"`
	MaxUploadSize   int64         `yaml:"max_upload_size" env:"SERVER_MAX_UPLOAD_SIZE" env-default:"268435456"`
	MaxRequestSize  int64         `yaml:"max_request_size" env:"SERVER_MAX_REQUEST_SIZE" env-default:"2147483648"`
}

type DBConfig struct {
	Host            string        `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string        `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password        string        `yaml:"password" env:"DB_PASSWORD" env-default:"postgres"`
	Name            string        `yaml:"name" env:"DB_NAME" env-default:"video_batcher"`
	SSLMode         string        `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
}

type KafkaConfig struct {
	Brokers    []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	BatchTopic string   `yaml:"batch_topic" env:"KAFKA_BATCH_TOPIC" env-default:"video-batches"`
	GroupID    string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"video-batcher-group"`
	Partitions int      `yaml:"partitions" env:"KAFKA_PARTITIONS" env-default:"3"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY" env-default:"minioadmin"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY" env-default:"minioadmin"`
	Bucket    string `yaml:"bucket" env:"MINIO_BUCKET" env-default:"video-batcher"`
	UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" env:"WORKER_CONCURRENCY" env-default:"1"`
}

type RenderConfig struct {
	Width           int     `yaml:"width" env:"RENDER_WIDTH" env-default:"1080"`
	Height          int     `yaml:"height" env:"RENDER_HEIGHT" env-default:"1920"`
	FPS             float64 `yaml:"fps" env:"RENDER_FPS" env-default:"24"`
	VideoCodec      string  `yaml:"video_codec" env:"RENDER_VIDEO_CODEC" env-default:"libx264"`
	AudioCodec      string  `yaml:"audio_codec" env:"RENDER_AUDIO_CODEC" env-default:"aac"`
	Preset          string  `yaml:"preset" env:"RENDER_PRESET" env-default:"ultrafast"`
	Threads         int     `yaml:"threads" env:"RENDER_THREADS" env-default:"1"`
	FFmpegBinary    string  `yaml:"ffmpeg_binary" env:"RENDER_FFMPEG_BINARY" env-default:"ffmpeg"`
	TempDir         string  `yaml:"temp_dir" env:"RENDER_TEMP_DIR" env-default:""`
	OutputPrefix    string  `yaml:"output_prefix" env:"RENDER_OUTPUT_PREFIX" env-default:"OMEGA"`
	MinPhotos       int     `yaml:"min_photos" env:"RENDER_MIN_PHOTOS" env-default:"5"`
	DefaultCaption  string  `yaml:"default_caption" env:"RENDER_DEFAULT_CAPTION" env-default:"OMEGA"`
	ChunkSize       int     `yaml:"chunk_size" env:"RENDER_CHUNK_SIZE" env-default:"70"`
	CoverHoldFactor int     `yaml:"cover_hold_factor" env:"RENDER_COVER_HOLD_FACTOR" env-default:"3"`
	FontPath        string  `yaml:"font_path" env:"RENDER_FONT_PATH" env-default:""`
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts" env:"RETRY_ATTEMPTS" env-default:"3"`
	Delay    time.Duration `yaml:"delay" env:"RETRY_DELAY" env-default:"200ms"`
	Backoff  float64       `yaml:"backoff" env:"RETRY_BACKOFF" env-default:"2"`
}

// MustLoad reads the YAML file pointed to by CONFIG_PATH (or the default path) and
// overlays environment variables. A missing file is not an error: env and defaults apply.
func MustLoad() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read env config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", c.Render.Width, c.Render.Height)
	}
	if c.Render.FPS <= 0 {
		return fmt.Errorf("invalid fps %v", c.Render.FPS)
	}
	if c.Render.CoverHoldFactor < 1 {
		return fmt.Errorf("cover hold factor must be >= 1")
	}
	if c.Worker.Concurrency < 1 {
		c.Worker.Concurrency = 1
	}
	return nil
}

func (c *Config) DBDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

func (c *Config) DefaultRetryStrategy() retry.Strategy {
	return retry.Strategy{
		Attempts: c.Retry.Attempts,
		Delay:    c.Retry.Delay,
		Backoff:  c.Retry.Backoff,
	}
}
