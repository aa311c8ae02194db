package main

import (
	"auxchat/internal/auth"
	"auxchat/internal/chat"
	"auxchat/internal/media"
	"auxchat/internal/presence"
	"auxchat/internal/push"
	"auxchat/internal/server"
	"auxchat/internal/storage"
	"auxchat/internal/typing"
	"context"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
	"log"
	"os"
	"time"
)

type tracingConfig struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"auxchat"`
}

// initTracing installs OTLP/HTTP tracer provider, it returns nil shutdown when tracing is disabled
func initTracing(ctx context.Context, cfg tracingConfig) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("LOG_FORMAT") == "json" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Application is starting")

	var (
		serverCfg  server.EnvConfig
		storageCfg storage.Config
		chatCfg    chat.Config
		typingCfg  typing.Config
		pushCfg    push.Config
		authCfg    auth.Config
		mediaCfg   media.Config
		tracingCfg tracingConfig
	)
	for _, cfg := range []interface{}{&serverCfg, &storageCfg, &chatCfg, &typingCfg, &pushCfg, &authCfg, &mediaCfg, &tracingCfg} {
		if err := env.Parse(cfg); err != nil {
			sugar.Fatalf("Cannot parse env config: %v", err)
		}
	}

	ctx := context.Background()

	shutdownTracing, err := initTracing(ctx, tracingCfg)
	if err != nil {
		sugar.Fatalf("Cannot init tracing: %v", err)
	}

	store, err := storage.New(ctx, sugar, storageCfg, storage.ConnectionTimeout(storageCfg.ConnectTimeout))
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}

	var tracker typing.Tracker
	switch typingCfg.Backend {
	case "redis":
		client := typing.NewRedisClient(typingCfg)
		if err := client.Ping(ctx).Err(); err != nil {
			sugar.Fatalf("Cannot connect to redis: %v", err)
		}
		defer client.Close()
		tracker = typing.NewRedisTracker(client, typingCfg)
	case "", "memory":
		tracker = typing.NewMemoryTracker(typingCfg)
	default:
		sugar.Fatalf("Unknown typing backend %q", typingCfg.Backend)
	}

	gateway, err := push.NewGateway(pushCfg)
	if err != nil {
		sugar.Fatalf("Cannot create push gateway: %v", err)
	}
	dispatcher := push.NewDispatcher(sugar, store, gateway, pushCfg.Timeout)

	evaluator := presence.NewEvaluator(presence.WithThreshold(chatCfg.PresenceThreshold))
	svc := chat.NewService(sugar, store, tracker, dispatcher, evaluator, chatCfg)

	verifier := auth.NewVerifier(authCfg)
	if authCfg.JWTSecret == "" {
		sugar.Warn("JWT_SECRET is empty, bearer tokens are rejected")
	}

	var presigner *media.Presigner
	if mediaCfg.AccessKey != "" {
		presigner, err = media.NewPresigner(mediaCfg)
		if err != nil {
			sugar.Fatalf("Cannot create media presigner: %v", err)
		}
		if err := presigner.EnsureBucket(ctx); err != nil {
			sugar.Warnf("Cannot ensure media bucket: %v", err)
		}
	}

	serverOpts := []server.Option{
		server.WithEnvConfig(serverCfg),
		server.ReadTimeout(serverCfg.ReadTimeout),
		server.TimeoutHandler(serverCfg.HandlerTimeout, "request timed out"),
		server.RegisterAfterShutdown(func() {
			sugar.Info("Waiting for push dispatches")
			dispatcher.Wait()
			if err := gateway.Close(); err != nil {
				sugar.Errorf("gateway.Close: %v", err)
			}
		}),
		server.RegisterAfterShutdown(func() {
			sugar.Info("Closing store")
			store.Close()
			sugar.Info("Store is closed")
		}),
	}
	if shutdownTracing != nil {
		serverOpts = append(serverOpts, server.RegisterAfterShutdown(func() {
			c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(c); err != nil {
				sugar.Errorf("tracer shutdown: %v", err)
			}
		}))
	}

	var srv *server.Server
	if presigner != nil {
		srv, err = server.NewServer(sugar, svc, verifier, presigner, serverOpts...)
	} else {
		srv, err = server.NewServer(sugar, svc, verifier, nil, serverOpts...)
	}
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	if err := srv.Start(); err != nil {
		sugar.Fatalf("Cannot start http srv: %v", err)
	}
}
