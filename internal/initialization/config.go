package initialization

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const (
	EnvPrefix      = "FLOWENGINE"
	ConfigFileName = "flowengine"

	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreS3       = "s3"

	SinkLog   = "log"
	SinkRedis = "redis"
	SinkNATS  = "nats"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Runs      RunsConfig      `mapstructure:"runs"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Events    EventsConfig    `mapstructure:"events"`
	Trace     TraceConfig     `mapstructure:"trace"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Executors ExecutorsConfig `mapstructure:"executors"`
	AI        AIConfig        `mapstructure:"ai"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Channels  ChannelsConfig  `mapstructure:"channels"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	JWTSecret       string        `mapstructure:"jwtSecret"`
	BodyLimit       int           `mapstructure:"bodyLimit"`
	AccessLog       bool          `mapstructure:"accessLog"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type RunsConfig struct {
	Store           string        `mapstructure:"store"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type EventsConfig struct {
	Sinks        []string   `mapstructure:"sinks"`
	RedisChannel string     `mapstructure:"redisChannel"`
	NATS         NATSConfig `mapstructure:"nats"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Token   string `mapstructure:"token"`
}

type TraceConfig struct {
	Store         string `mapstructure:"store"`
	PostgresURI   string `mapstructure:"postgresUri"`
	TablePrefix   string `mapstructure:"tablePrefix"`
	MongoURI      string `mapstructure:"mongoUri"`
	MongoDatabase string `mapstructure:"mongoDatabase"`
}

type ArtifactsConfig struct {
	Store string   `mapstructure:"store"`
	S3    S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"accessKeyId"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
	ForcePathStyle  bool   `mapstructure:"forcePathStyle"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sampleRatio"`
	Environment string  `mapstructure:"environment"`
}

type ExecutorsConfig struct {
	HTTPTimeout         time.Duration `mapstructure:"httpTimeout"`
	APIConnectorTimeout time.Duration `mapstructure:"apiConnectorTimeout"`
	CodeTimeout         time.Duration `mapstructure:"codeTimeout"`
	MaxDelay            time.Duration `mapstructure:"maxDelay"`
	AITimeout           time.Duration `mapstructure:"aiTimeout"`
}

type AIConfig struct {
	DefaultProvider string          `mapstructure:"defaultProvider"`
	OpenAI          OpenAIConfig    `mapstructure:"openai"`
	Anthropic       AnthropicConfig `mapstructure:"anthropic"`
	Gemini          GeminiConfig    `mapstructure:"gemini"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"apiKey"`
	BaseURL string `mapstructure:"baseUrl"`
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"apiKey"`
	BaseURL string `mapstructure:"baseUrl"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"apiKey"`
}

type KnowledgeConfig struct {
	BaseURL string `mapstructure:"baseUrl"`
	APIKey  string `mapstructure:"apiKey"`
}

type ChannelsConfig struct {
	Directory []domain.ChannelRef `mapstructure:"directory"`
	Slack     TokenConfig         `mapstructure:"slack"`
	Discord   TokenConfig         `mapstructure:"discord"`
	Telegram  TokenConfig         `mapstructure:"telegram"`
	Email     EmailConfig         `mapstructure:"email"`
}

type TokenConfig struct {
	Token string `mapstructure:"token"`
}

type EmailConfig struct {
	APIKey string `mapstructure:"apiKey"`
	From   string `mapstructure:"from"`
}

// LoadConfig reads defaults, the optional config file and FLOWENGINE_*
// environment variables. An explicit configFile must exist.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	secretEnvs := map[string][]string{
		"server.jwtSecret":             {"FLOWENGINE_SERVER_JWT_SECRET"},
		"redis.password":               {"FLOWENGINE_REDIS_PASSWORD"},
		"events.nats.token":            {"FLOWENGINE_NATS_TOKEN"},
		"trace.postgresUri":            {"FLOWENGINE_POSTGRES_URI", "DATABASE_URL"},
		"trace.mongoUri":               {"FLOWENGINE_MONGO_URI"},
		"artifacts.s3.accessKeyId":     {"FLOWENGINE_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"},
		"artifacts.s3.secretAccessKey": {"FLOWENGINE_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"},
		"ai.openai.apiKey":             {"FLOWENGINE_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"ai.anthropic.apiKey":          {"FLOWENGINE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"ai.gemini.apiKey":             {"FLOWENGINE_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"knowledge.apiKey":             {"FLOWENGINE_KNOWLEDGE_API_KEY"},
		"channels.slack.token":         {"FLOWENGINE_SLACK_TOKEN"},
		"channels.discord.token":       {"FLOWENGINE_DISCORD_TOKEN"},
		"channels.telegram.token":      {"FLOWENGINE_TELEGRAM_TOKEN"},
		"channels.email.apiKey":        {"FLOWENGINE_RESEND_API_KEY", "RESEND_API_KEY"},
	}

	for key, envs := range secretEnvs {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variables for %s", key)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.flowengine")
		v.AddConfigPath("/etc/flowengine")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("server.address", ":8081")
	v.SetDefault("server.jwtSecret", "")
	v.SetDefault("server.bodyLimit", 4*1024*1024)
	v.SetDefault("server.accessLog", true)
	v.SetDefault("server.shutdownTimeout", 30*time.Second)

	v.SetDefault("runs.store", StoreMemory)
	v.SetDefault("runs.ttl", time.Hour)
	v.SetDefault("runs.cleanupInterval", time.Minute)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "flowengine:run:")

	v.SetDefault("events.sinks", []string{SinkLog})
	v.SetDefault("events.redisChannel", "flowengine:events")
	v.SetDefault("events.nats.url", "")
	v.SetDefault("events.nats.subject", "flowengine.events")
	v.SetDefault("events.nats.token", "")

	v.SetDefault("trace.store", StoreMemory)
	v.SetDefault("trace.postgresUri", "")
	v.SetDefault("trace.tablePrefix", "")
	v.SetDefault("trace.mongoUri", "")
	v.SetDefault("trace.mongoDatabase", "flowengine")

	v.SetDefault("artifacts.store", StoreMemory)
	v.SetDefault("artifacts.s3.region", "us-east-1")
	v.SetDefault("artifacts.s3.bucket", "")
	v.SetDefault("artifacts.s3.prefix", "artifacts")
	v.SetDefault("artifacts.s3.endpoint", "")
	v.SetDefault("artifacts.s3.accessKeyId", "")
	v.SetDefault("artifacts.s3.secretAccessKey", "")
	v.SetDefault("artifacts.s3.forcePathStyle", false)

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sampleRatio", 1.0)
	v.SetDefault("tracing.environment", "development")

	v.SetDefault("executors.httpTimeout", 30*time.Second)
	v.SetDefault("executors.apiConnectorTimeout", 30*time.Second)
	v.SetDefault("executors.codeTimeout", 5*time.Second)
	v.SetDefault("executors.maxDelay", 24*time.Hour)
	v.SetDefault("executors.aiTimeout", 60*time.Second)

	v.SetDefault("ai.defaultProvider", "openai")
	v.SetDefault("ai.openai.apiKey", "")
	v.SetDefault("ai.openai.baseUrl", "")
	v.SetDefault("ai.anthropic.apiKey", "")
	v.SetDefault("ai.anthropic.baseUrl", "")
	v.SetDefault("ai.gemini.apiKey", "")

	v.SetDefault("knowledge.baseUrl", "")
	v.SetDefault("knowledge.apiKey", "")

	v.SetDefault("channels.slack.token", "")
	v.SetDefault("channels.discord.token", "")
	v.SetDefault("channels.telegram.token", "")
	v.SetDefault("channels.email.apiKey", "")
	v.SetDefault("channels.email.from", "")
}

func (c *Config) normalize() {
	c.Runs.Store = strings.ToLower(strings.TrimSpace(c.Runs.Store))
	c.Trace.Store = strings.ToLower(strings.TrimSpace(c.Trace.Store))
	c.Artifacts.Store = strings.ToLower(strings.TrimSpace(c.Artifacts.Store))
	c.AI.DefaultProvider = strings.ToLower(strings.TrimSpace(c.AI.DefaultProvider))

	sinks := make([]string, 0, len(c.Events.Sinks))
	for _, sink := range c.Events.Sinks {
		for _, part := range strings.Split(sink, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				sinks = append(sinks, part)
			}
		}
	}
	c.Events.Sinks = sinks
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if !slices.Contains([]string{StoreMemory, StoreRedis}, c.Runs.Store) {
		problems = append(problems, fmt.Sprintf("runs.store must be memory or redis, got %q", c.Runs.Store))
	}

	if !slices.Contains([]string{StoreMemory, StorePostgres, StoreMongo}, c.Trace.Store) {
		problems = append(problems, fmt.Sprintf("trace.store must be memory, postgres or mongo, got %q", c.Trace.Store))
	}

	if c.Trace.Store == StorePostgres && c.Trace.PostgresURI == "" {
		problems = append(problems, "trace.postgresUri is required for the postgres trace store")
	}

	if c.Trace.Store == StoreMongo && c.Trace.MongoURI == "" {
		problems = append(problems, "trace.mongoUri is required for the mongo trace store")
	}

	if !slices.Contains([]string{StoreMemory, StoreS3}, c.Artifacts.Store) {
		problems = append(problems, fmt.Sprintf("artifacts.store must be memory or s3, got %q", c.Artifacts.Store))
	}

	if c.Artifacts.Store == StoreS3 && c.Artifacts.S3.Bucket == "" {
		problems = append(problems, "artifacts.s3.bucket is required for the s3 artifact store")
	}

	for _, sink := range c.Events.Sinks {
		switch sink {
		case SinkLog, SinkRedis:
		case SinkNATS:
			if c.Events.NATS.URL == "" {
				problems = append(problems, "events.nats.url is required for the nats event sink")
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown event sink %q", sink))
		}
	}

	if c.Runs.TTL <= 0 {
		problems = append(problems, "runs.ttl must be positive")
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		problems = append(problems, "tracing.sampleRatio must be between 0 and 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}

// UsesRedis reports whether any configured component needs a redis client.
func (c *Config) UsesRedis() bool {
	return c.Runs.Store == StoreRedis || slices.Contains(c.Events.Sinks, SinkRedis)
}
