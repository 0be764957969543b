package initialization

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/controllers"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/managers"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/managers/channels"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/server"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/telemetry"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/version"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain/executor"
)

const serviceName = "flowengine"

// Container owns every long-lived component of the engine.
type Container struct {
	Config          *Config
	Registry        *domain.ExecutorRegistry
	ExecutorService executor.FlowExecutorService
	Metrics         *telemetry.Metrics
	App             *fiber.App

	closers []func(ctx context.Context) error
}

type ContainerOverrides struct {
	// Transport replaces the outbound HTTP transport used by plugins.
	Transport   http.RoundTripper
	RedisClient redis.UniversalClient
}

func NewContainer(ctx context.Context, config *Config) (*Container, error) {
	return NewContainerWithOverrides(ctx, config, ContainerOverrides{})
}

func NewContainerWithOverrides(ctx context.Context, config *Config, overrides ContainerOverrides) (_ *Container, err error) {
	log.Info().Msg("Building flow engine dependencies")

	container := &Container{Config: config}

	defer func() {
		if err != nil {
			_ = container.Close(context.Background())
		}
	}()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		Environment:    config.Tracing.Environment,
		Endpoint:       config.Tracing.Endpoint,
		Insecure:       config.Tracing.Insecure,
		SampleRatio:    config.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	container.addCloser(shutdownTracing)

	redisClient := overrides.RedisClient
	if redisClient == nil && config.UsesRedis() {
		client := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Address,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		container.addCloser(func(context.Context) error { return client.Close() })
		redisClient = client
	}

	runStore, err := container.buildRunStore(redisClient)
	if err != nil {
		return nil, err
	}

	eventSink, err := container.buildEventSink(redisClient)
	if err != nil {
		return nil, err
	}

	traceStore, err := container.buildTraceStore(ctx)
	if err != nil {
		return nil, err
	}

	artifactStore, err := container.buildArtifactStore()
	if err != nil {
		return nil, err
	}

	artifactManager := managers.NewArtifactManager(managers.ArtifactManagerDependencies{
		Store: artifactStore,
	})

	directory, err := channels.NewStaticDirectory(config.Channels.Directory)
	if err != nil {
		return nil, fmt.Errorf("invalid channel directory: %w", err)
	}

	router, err := buildChannelRouter(config.Channels)
	if err != nil {
		return nil, err
	}

	transport := overrides.Transport
	if transport == nil {
		transport = NewOutboundTransport()
	}

	var knowledgeBase domain.KnowledgeBase
	if config.Knowledge.BaseURL != "" {
		knowledgeBase = managers.NewKnowledgeClient(managers.KnowledgeClientDependencies{
			BaseURL:    config.Knowledge.BaseURL,
			APIKey:     config.Knowledge.APIKey,
			HTTPClient: &http.Client{Transport: transport},
		})
	}

	container.Registry = BuildExecutorRegistry(ExecutorRegistryDependencies{
		Config:           config.Executors,
		AI:               config.AI,
		Transport:        transport,
		ArtifactManager:  artifactManager,
		ChannelDirectory: directory,
		ChannelDelivery:  router,
		KnowledgeBase:    knowledgeBase,
	})

	container.Metrics = telemetry.NewMetrics()

	container.ExecutorService = executor.NewFlowExecutorService(executor.FlowExecutorServiceDependencies{
		Registry:        container.Registry,
		EventSink:       eventSink,
		TraceStore:      traceStore,
		RunStore:        runStore,
		ArtifactManager: artifactManager,
		Metrics:         container.Metrics,
	})

	// Closers run in reverse, so in-flight runs drain before stores close.
	container.addCloser(container.ExecutorService.Shutdown)

	runController := controllers.NewRunController(controllers.RunControllerDependencies{
		FlowExecutorService: container.ExecutorService,
	})

	container.App = server.NewHTTPServer(server.HTTPServerDependencies{
		RunController:  runController,
		MetricsHandler: container.Metrics.Handler(),
		JWTSecret:      config.Server.JWTSecret,
		BodyLimit:      config.Server.BodyLimit,
		EnableHTTPLog:  config.Server.AccessLog,
	})

	log.Info().
		Str("run_store", config.Runs.Store).
		Str("trace_store", config.Trace.Store).
		Str("artifact_store", config.Artifacts.Store).
		Strs("event_sinks", config.Events.Sinks).
		Msg("Flow engine dependencies built successfully")

	return container, nil
}

func (c *Container) buildRunStore(redisClient redis.UniversalClient) (domain.RunStore, error) {
	switch c.Config.Runs.Store {
	case StoreRedis:
		if redisClient == nil {
			return nil, errors.New("redis run store requires a redis client")
		}

		return managers.NewRedisRunStore(managers.RedisRunStoreDependencies{
			Client: redisClient,
			Prefix: c.Config.Redis.Prefix,
			TTL:    c.Config.Runs.TTL,
		}), nil
	default:
		store := managers.NewMemoryRunStore(managers.MemoryRunStoreDependencies{
			TTL:             c.Config.Runs.TTL,
			CleanupInterval: c.Config.Runs.CleanupInterval,
		})

		c.addCloser(func(context.Context) error {
			store.Close()
			return nil
		})

		return store, nil
	}
}

func (c *Container) buildEventSink(redisClient redis.UniversalClient) (domain.EventSink, error) {
	sinks := make([]domain.EventSink, 0, len(c.Config.Events.Sinks))

	for _, name := range c.Config.Events.Sinks {
		switch name {
		case SinkLog:
			sinks = append(sinks, managers.NewLogEventSink())
		case SinkRedis:
			if redisClient == nil {
				return nil, errors.New("redis event sink requires a redis client")
			}

			sinks = append(sinks, managers.NewPublisherEventSink(managers.NewRedisEventPublisher(managers.RedisEventPublisherDependencies{
				Client:  redisClient,
				Channel: c.Config.Events.RedisChannel,
			})))
		case SinkNATS:
			conn, err := managers.ConnectNATS(managers.NATSConnectionConfig{
				URL:   c.Config.Events.NATS.URL,
				Name:  serviceName,
				Token: c.Config.Events.NATS.Token,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to connect to nats: %w", err)
			}

			c.addCloser(func(context.Context) error { return conn.Drain() })

			sinks = append(sinks, managers.NewPublisherEventSink(managers.NewNATSEventPublisher(managers.NATSEventPublisherDependencies{
				Conn:    conn,
				Subject: c.Config.Events.NATS.Subject,
			})))
		default:
			return nil, fmt.Errorf("unknown event sink %q", name)
		}
	}

	return managers.NewMultiEventSink(sinks...), nil
}

func (c *Container) buildTraceStore(ctx context.Context) (domain.TraceStore, error) {
	switch c.Config.Trace.Store {
	case StorePostgres:
		pool, err := managers.ConnectPostgres(ctx, c.Config.Trace.PostgresURI)
		if err != nil {
			return nil, err
		}

		c.addCloser(func(context.Context) error {
			pool.Close()
			return nil
		})

		return managers.NewPostgresTraceStore(ctx, managers.PostgresTraceStoreDependencies{
			Conn:        pool,
			TablePrefix: c.Config.Trace.TablePrefix,
		})
	case StoreMongo:
		client, err := managers.ConnectMongo(ctx, c.Config.Trace.MongoURI)
		if err != nil {
			return nil, err
		}

		c.addCloser(client.Disconnect)

		return managers.NewMongoTraceStore(managers.MongoTraceStoreDependencies{
			Database: client.Database(c.Config.Trace.MongoDatabase),
		}), nil
	default:
		return managers.NewMemoryTraceStore(), nil
	}
}

func (c *Container) buildArtifactStore() (domain.ArtifactStore, error) {
	if c.Config.Artifacts.Store != StoreS3 {
		return managers.NewMemoryArtifactStore(), nil
	}

	s3Config := c.Config.Artifacts.S3

	store, err := managers.NewS3ArtifactStore(managers.S3ArtifactStoreConfig{
		Region:          s3Config.Region,
		Bucket:          s3Config.Bucket,
		Prefix:          s3Config.Prefix,
		Endpoint:        s3Config.Endpoint,
		AccessKeyID:     s3Config.AccessKeyID,
		SecretAccessKey: s3Config.SecretAccessKey,
		ForcePathStyle:  s3Config.ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 artifact store: %w", err)
	}

	return store, nil
}

// buildChannelRouter registers a sender for every provider with credentials.
func buildChannelRouter(config ChannelsConfig) (*channels.Router, error) {
	router := channels.NewRouter()

	if config.Slack.Token != "" {
		router.Register(domain.ChannelTypeSlack, channels.NewSlackSender(channels.SlackConfig{
			Token: config.Slack.Token,
		}))
	}

	if config.Discord.Token != "" {
		sender, err := channels.NewDiscordSender(config.Discord.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create discord sender: %w", err)
		}
		router.Register(domain.ChannelTypeDiscord, sender)
	}

	if config.Telegram.Token != "" {
		router.Register(domain.ChannelTypeTelegram, channels.NewTelegramSender(channels.TelegramConfig{
			Token: config.Telegram.Token,
		}))
	}

	if config.Email.APIKey != "" {
		sender, err := channels.NewEmailSender(channels.EmailConfig{
			APIKey: config.Email.APIKey,
			From:   config.Email.From,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create email sender: %w", err)
		}
		router.Register(domain.ChannelTypeEmail, sender)
	}

	return router, nil
}

func (c *Container) addCloser(closer func(ctx context.Context) error) {
	c.closers = append(c.closers, closer)
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	c.closers = nil

	return errors.Join(errs...)
}
