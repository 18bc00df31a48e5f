package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gradebook/apiserver/types"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Host           string
	ServerPort     int
	AllowedOrigins []string
	DataDir        string
	Log            LogConfig
	AdminUsers     []string
	Policy         types.Policy
	Storage        StorageConfig
	MQ             MQConfig

	problems []error
}

type LogConfig struct {
	Level  string
	Format string
}

type StorageConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
	S3      S3Config
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type MQConfig struct {
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL           string
	PrefetchCount int
	QueueDurable  bool
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

// LoadConfig reads configuration from the environment, after loading a .env
// file when ENV=dev or DOTENV_PATH is set.
func LoadConfig() Config {
	if path := os.Getenv("DOTENV_PATH"); path != "" {
		_ = godotenv.Load(path)
	} else if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.AutomaticEnv()

	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8000)
	_ = v.BindEnv("PORT", "PORT", "SERVER_PORT")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("DATA_DIR", "DumpData")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ADMIN_USERS", "")
	v.SetDefault("LOGIN_IDENTIFIER_MODE", string(types.LoginUsernameOrEmail))
	v.SetDefault("DELETE_REQUIRES_AUTH", true)
	v.SetDefault("CLASS_ID_SCOPE", string(types.ClassIDScopeGlobal))
	v.SetDefault("UPSERT_OWNERSHIP", string(types.UpsertForbid))
	v.SetDefault("HIDE_FOREIGN_CLASSES", false)
	v.SetDefault("STORAGE_BACKEND", "")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MQ_BACKEND", "")
	v.SetDefault("EVENTS_CHANNEL", "gradebook.events")
	v.SetDefault("RABBITMQ_PREFETCH", 10)
	v.SetDefault("RABBITMQ_DURABLE", true)
	v.SetDefault("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub")

	cfg := Config{
		Host:           v.GetString("HOST"),
		ServerPort:     v.GetInt("PORT"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		DataDir:        v.GetString("DATA_DIR"),
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		AdminUsers: splitList(strings.ToLower(v.GetString("ADMIN_USERS"))),
		Storage: StorageConfig{
			Backend: strings.ToLower(v.GetString("STORAGE_BACKEND")),
			Minio: MinioConfig{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: v.GetString("MINIO_SECRET_KEY"),
				Bucket:    v.GetString("MINIO_BUCKET"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
			},
			GCS: GCSConfig{
				Bucket:          v.GetString("GCS_BUCKET"),
				ProjectID:       v.GetString("GCS_PROJECT_ID"),
				CredentialsFile: v.GetString("GCS_CREDENTIALS_FILE"),
			},
			S3: S3Config{
				Bucket:    v.GetString("S3_BUCKET"),
				Region:    v.GetString("S3_REGION"),
				Endpoint:  v.GetString("S3_ENDPOINT"),
				AccessKey: v.GetString("S3_ACCESS_KEY"),
				SecretKey: v.GetString("S3_SECRET_KEY"),
			},
		},
		MQ: MQConfig{
			Backend: strings.ToLower(v.GetString("MQ_BACKEND")),
			Channel: v.GetString("EVENTS_CHANNEL"),
			RabbitMQ: RabbitMQConfig{
				URL:           v.GetString("RABBITMQ_URL"),
				PrefetchCount: v.GetInt("RABBITMQ_PREFETCH"),
				QueueDurable:  v.GetBool("RABBITMQ_DURABLE"),
			},
			PubSub: PubSubConfig{
				ProjectID:          v.GetString("PUBSUB_PROJECT_ID"),
				CredentialsFile:    v.GetString("PUBSUB_CREDENTIALS_FILE"),
				SubscriptionSuffix: v.GetString("PUBSUB_SUBSCRIPTION_SUFFIX"),
			},
		},
	}
	cfg.Policy = cfg.loadPolicy(v)
	return cfg
}

func (c *Config) loadPolicy(v *viper.Viper) types.Policy {
	p := types.DefaultPolicy()
	p.DeleteRequiresAuth = v.GetBool("DELETE_REQUIRES_AUTH")
	p.HideForeignClasses = v.GetBool("HIDE_FOREIGN_CLASSES")

	switch mode := types.LoginIdentifierMode(strings.ToLower(v.GetString("LOGIN_IDENTIFIER_MODE"))); mode {
	case types.LoginUsernameOrEmail, types.LoginEmailOnly:
		p.LoginIdentifierMode = mode
	default:
		c.problems = append(c.problems, fmt.Errorf("LOGIN_IDENTIFIER_MODE: unknown value %q", mode))
	}

	switch scope := types.ClassIDScope(strings.ToLower(v.GetString("CLASS_ID_SCOPE"))); scope {
	case types.ClassIDScopeGlobal, types.ClassIDScopeOwner:
		p.ClassIDScope = scope
	default:
		c.problems = append(c.problems, fmt.Errorf("CLASS_ID_SCOPE: unknown value %q", scope))
	}

	switch own := types.UpsertOwnership(strings.ToLower(v.GetString("UPSERT_OWNERSHIP"))); own {
	case types.UpsertForbid, types.UpsertReassign:
		p.UpsertOwnership = own
	default:
		c.problems = append(c.problems, fmt.Errorf("UPSERT_OWNERSHIP: unknown value %q", own))
	}
	return p
}

// Validate reports every invalid setting found while loading.
func (c Config) Validate() error {
	errs := append([]error(nil), c.problems...)
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %d out of range", c.ServerPort))
	}
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("DATA_DIR: must not be empty"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: unknown value %q", c.Log.Format))
	}
	switch c.Storage.Backend {
	case "", "minio", "gcs", "s3":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND: unknown value %q", c.Storage.Backend))
	}
	switch c.MQ.Backend {
	case "", "rabbitmq", "pubsub":
	default:
		errs = append(errs, fmt.Errorf("MQ_BACKEND: unknown value %q", c.MQ.Backend))
	}
	if c.MQ.Backend != "" && strings.TrimSpace(c.MQ.Channel) == "" {
		errs = append(errs, errors.New("EVENTS_CHANNEL: must not be empty"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.ServerPort)
}

// AllowsAnyOrigin reports whether CORS is open to every origin.
func (c Config) AllowsAnyOrigin() bool {
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return len(c.AllowedOrigins) == 0
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
