package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// MaxUploadExpiry is the longest validity a presigned URL may have
	MaxUploadExpiry = 7 * 24 * time.Hour
)

// Store backends
const (
	StoreBackendPostgres = "postgres"
	StoreBackendDynamoDB = "dynamodb"
	StoreBackendMemory   = "memory"
)

// Inference providers
const (
	InferenceProviderBedrock = "bedrock"
	InferenceProviderOpenAI  = "openai"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	AWS       AWSConfig       `yaml:"aws"`
	DynamoDB  DynamoDBConfig  `yaml:"dynamodb"`
	Storage   StorageConfig   `yaml:"storage"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Worker    WorkerConfig    `yaml:"worker"`
	Inference InferenceConfig `yaml:"inference"`
	Poller    PollerConfig    `yaml:"poller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// StoreConfig selects the job store backend
type StoreConfig struct {
	Backend      string `yaml:"backend"`
	EnsureSchema bool   `yaml:"ensure_schema"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// AWSConfig holds settings shared by the AWS SDK clients
type AWSConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// DynamoDBConfig holds DynamoDB job table configuration
type DynamoDBConfig struct {
	TableName string `yaml:"table_name"`
	Endpoint  string `yaml:"endpoint"`
}

// StorageConfig holds S3-compatible object storage configuration
type StorageConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Region         string        `yaml:"region"`
	Bucket         string        `yaml:"bucket"`
	AccessKey      string        `yaml:"access_key"`
	SecretKey      string        `yaml:"secret_key"`
	UseSSL         bool          `yaml:"use_ssl"`
	CreateBucket   bool          `yaml:"create_bucket"`
	UploadExpiry   time.Duration `yaml:"upload_expiry"`
	MaxObjectBytes int64         `yaml:"max_object_bytes"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host               string           `yaml:"host"`
	Port               int              `yaml:"port"`
	User               string           `yaml:"user"`
	Password           string           `yaml:"password"`
	VHost              string           `yaml:"vhost"`
	Exchange           ExchangeConfig   `yaml:"exchange"`
	Queue              QueueConfig      `yaml:"queue"`
	RoutingKey         string           `yaml:"routing_key"`
	DeadLetterExchange string           `yaml:"dead_letter_exchange"`
	Connection         ConnectionConfig `yaml:"connection"`
	Consumer           ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// WorkerConfig holds OCR worker configuration
type WorkerConfig struct {
	ID              string        `yaml:"id"`
	Concurrency     int           `yaml:"concurrency"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// InferenceConfig selects and configures the inference service
type InferenceConfig struct {
	Provider  string        `yaml:"provider"`
	ModelID   string        `yaml:"model_id"`
	Region    string        `yaml:"region"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PollerConfig configures the polling client
type PollerConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Interval          time.Duration `yaml:"interval"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	MaxInterval       time.Duration `yaml:"max_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with environment values. Bare $VAR is left alone.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := envRef.FindSubmatch(ref)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(expandEnv(data), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendPostgres
	}
	c.Store.Backend = strings.ToLower(c.Store.Backend)

	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	if c.Storage.UploadExpiry == 0 {
		c.Storage.UploadExpiry = time.Hour
	}
	if c.Storage.MaxObjectBytes == 0 {
		c.Storage.MaxObjectBytes = 10 << 20
	}
	if c.Storage.Region == "" {
		c.Storage.Region = c.AWS.Region
	}

	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "direct"
	}
	if c.RabbitMQ.Connection.RetryAttempts == 0 {
		c.RabbitMQ.Connection.RetryAttempts = 5
	}
	if c.RabbitMQ.Connection.RetryInterval == 0 {
		c.RabbitMQ.Connection.RetryInterval = 2 * time.Second
	}

	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 4
	}
	if c.Worker.JobTimeout == 0 {
		c.Worker.JobTimeout = 4 * time.Minute
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
	if c.RabbitMQ.Consumer.PrefetchCount == 0 {
		c.RabbitMQ.Consumer.PrefetchCount = c.Worker.Concurrency
	}

	if c.Inference.Provider == "" {
		c.Inference.Provider = InferenceProviderBedrock
	}
	c.Inference.Provider = strings.ToLower(c.Inference.Provider)
	if c.Inference.MaxTokens == 0 {
		c.Inference.MaxTokens = 1000
	}
	if c.Inference.Timeout == 0 {
		c.Inference.Timeout = 60 * time.Second
	}
	if c.Inference.Region == "" {
		c.Inference.Region = c.AWS.Region
	}

	if c.Poller.Interval == 0 {
		c.Poller.Interval = 10 * time.Second
	}
	if c.Poller.MaxAttempts == 0 {
		c.Poller.MaxAttempts = 30
	}
	if c.Poller.BackoffMultiplier == 0 {
		c.Poller.BackoffMultiplier = 1
	}
	if c.Poller.RequestTimeout == 0 {
		c.Poller.RequestTimeout = 10 * time.Second
	}
}

// ValidateAPIConfig checks the settings the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.Storage.UploadExpiry < 0 || c.Storage.UploadExpiry > MaxUploadExpiry {
		return fmt.Errorf("invalid storage upload_expiry: %s (must be at most %s)", c.Storage.UploadExpiry, MaxUploadExpiry)
	}

	return nil
}

// ValidateProcessorConfig checks the settings the OCR pipeline needs, whatever delivers the events
func (c *Config) ValidateProcessorConfig() error {
	if err := c.validateStore(); err != nil {
		return err
	}

	if c.Store.Backend == StoreBackendMemory {
		return fmt.Errorf("store backend %q cannot be shared with the api service", StoreBackendMemory)
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.Storage.MaxObjectBytes < 0 {
		return fmt.Errorf("storage max_object_bytes must not be negative")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	switch c.Inference.Provider {
	case InferenceProviderBedrock:
		if c.Inference.ModelID == "" {
			return fmt.Errorf("inference model_id is required")
		}
	case InferenceProviderOpenAI:
		if c.Inference.BaseURL == "" {
			return fmt.Errorf("inference base_url is required for provider %q", InferenceProviderOpenAI)
		}
		if c.Inference.ModelID == "" {
			return fmt.Errorf("inference model_id is required")
		}
	default:
		return fmt.Errorf("unknown inference provider: %q", c.Inference.Provider)
	}

	if c.Inference.MaxTokens <= 0 {
		return fmt.Errorf("inference max_tokens must be greater than 0")
	}

	return nil
}

// ValidateWorkerConfig checks the settings the RabbitMQ-driven worker service needs
func (c *Config) ValidateWorkerConfig() error {
	if err := c.ValidateProcessorConfig(); err != nil {
		return err
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	return nil
}

// ValidateClientConfig checks the polling client settings
func (c *Config) ValidateClientConfig() error {
	if c.Poller.BaseURL == "" {
		return fmt.Errorf("poller base_url is required")
	}

	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller interval must be greater than 0")
	}

	if c.Poller.MaxAttempts <= 0 {
		return fmt.Errorf("poller max_attempts must be greater than 0")
	}

	if c.Poller.BackoffMultiplier < 1 {
		return fmt.Errorf("poller backoff_multiplier must be at least 1")
	}

	if c.Poller.MaxInterval != 0 && c.Poller.MaxInterval < c.Poller.Interval {
		return fmt.Errorf("poller max_interval must not be shorter than interval")
	}

	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreBackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	case StoreBackendDynamoDB:
		if c.DynamoDB.TableName == "" {
			return fmt.Errorf("dynamodb table_name is required")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("unknown store backend: %q", c.Store.Backend)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Endpoint == "" {
		return fmt.Errorf("storage endpoint is required")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	return nil
}
