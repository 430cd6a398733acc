package extd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/satori/uuid"
	"github.com/yusufsyaifudin/katalog/container"
	"github.com/yusufsyaifudin/katalog/pkg/errtrack"
	"github.com/yusufsyaifudin/katalog/pkg/metric"
	"github.com/yusufsyaifudin/katalog/pkg/tracer"
	"github.com/yusufsyaifudin/katalog/transport/restapi"
	"github.com/yusufsyaifudin/ylog"
	jaegerPropagator "go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/contrib/propagators/ot"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// RunServer located in extd (extended) to add capability extends the server with custom dependencies.
// It blocks until SIGINT/SIGTERM or the listener fails.
func RunServer(ctx context.Context, cfg container.Config) (err error) {
	if ctx == nil {
		ctx = context.TODO()
	}

	ctx = SetupLog(ctx)

	// ** error tracking, a no-op without dsn
	errTrackCfg := cfg.ErrTrack
	if errTrackCfg.Release == "" {
		errTrackCfg.Release = fmt.Sprintf("%s@%s", cfg.App.Name, cfg.App.Version)
	}

	if errTrackCfg.Environment == "" {
		errTrackCfg.Environment = cfg.App.Environment
	}

	errTracker, err := errtrack.New(errTrackCfg)
	if err != nil {
		ylog.Error(ctx, "error tracker preparation: failed", ylog.KV("error", err))
		return
	}

	defer func() {
		if err != nil {
			errTracker.Capture(ctx, err, "server stopped with error")
		}

		errTracker.Flush(2 * time.Second)
	}()

	// ** tracing
	if !cfg.Tracing.Disable {
		shutdownTracer, _err := setupTracer(cfg)
		if _err != nil {
			err = _err
			ylog.Error(ctx, "tracer preparation: failed", ylog.KV("error", err))
			return
		}

		defer func() {
			if _err := shutdownTracer(context.Background()); _err != nil {
				ylog.Error(ctx, "tracer shutdown: failed", ylog.KV("error", _err))
			}
		}()
	}

	// register ot propagator
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		&ot.OT{},
		&jaegerPropagator.Jaeger{},
	))

	// ** setup repositories
	ylog.Info(ctx, "container preparation: starting")
	var repositories *container.RepositoryImpl
	repositories, err = container.SetupRepositories(ctx, cfg.DatabaseResources, cfg.Cache)
	defer func() {
		ylog.Info(ctx, "closing container: starting")
		if repositories == nil {
			ylog.Info(ctx, "closing container: no need to close")
			return
		}

		if _err := repositories.Close(); _err != nil {
			ylog.Error(ctx, "closing container: failed", ylog.KV("error", _err))
		}

		ylog.Info(ctx, "closing container: done")
	}()

	if err != nil {
		ylog.Error(ctx, "container preparation: failed", ylog.KV("error", err))
		return
	}

	if err = repositories.Ping(ctx); err != nil {
		ylog.Error(ctx, "container preparation: ping failed", ylog.KV("error", err))
		return
	}

	ylog.Info(ctx, "container preparation: done")

	// ** START SERVICES using configured repositories
	ylog.Info(ctx, "services preparation: starting")
	services, err := container.SetupServices(cfg.Services, repositories)
	if err != nil {
		ylog.Error(ctx, "service preparation: failed", ylog.KV("error", err))
		return
	}

	// deferred after the repositories, so queued notifications drain while the db is still open
	defer func() {
		ylog.Info(ctx, "closing services: starting")
		if _err := services.Close(); _err != nil {
			ylog.Error(ctx, "closing services: failed", ylog.KV("error", _err))
		}

		ylog.Info(ctx, "closing services: done")
	}()

	// ** HTTP TRANSPORT
	ylog.Info(ctx, "transport preparation: starting")
	httpCfg := cfg.Transport.HTTP
	serverConfig := restapi.Config{
		AppServiceName: cfg.App.Name,
		AppVersion:     cfg.App.Version,
		AppService:     services.App(),
		ReportService:  services.Report(),
		AuthService:    services.Auth(),
		Metrics:        metric.New(cfg.App.Name),
		ErrTracker:     errTracker,
		AllowedOrigins: httpCfg.AllowedOrigins,
		RateLimit: restapi.RateLimitConfig{
			RequestsPerSecond: httpCfg.RateLimit.RequestsPerSecond,
			Burst:             httpCfg.RateLimit.Burst,
			IdleTTL:           httpCfg.RateLimit.IdleTTL,
		},
		TrustProxy:     httpCfg.TrustProxy,
		RequestTimeout: httpCfg.RequestTimeout,
	}

	ylog.Info(ctx, "http transport: starting")
	server, err := restapi.NewHTTPTransport(serverConfig)
	if err != nil {
		ylog.Error(ctx, "http transport: failed", ylog.KV("error", err))
		return
	}

	httpPort := fmt.Sprintf(":%d", httpCfg.Port)
	h2s := &http2.Server{}
	httpServer := &http.Server{
		Addr:              httpPort,
		Handler:           h2c.NewHandler(server.Server(), h2s), // HTTP/2 Cleartext handler
		ReadHeaderTimeout: 10 * time.Second,
	}

	var apiErrChan = make(chan error, 1)
	go func() {
		ylog.Info(ctx, fmt.Sprintf("http transport: done running on port %d", httpCfg.Port))
		apiErrChan <- httpServer.ListenAndServe()
	}()

	ylog.Info(ctx, "system: up and running...")

	// ** listen for sigterm signal
	var signalChan = make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	select {
	case <-ctx.Done():
		ylog.Info(ctx, "system: context done, exiting...")
		err = shutdown(ctx, httpServer, httpCfg.ShutdownTimeout)

	case <-signalChan:
		ylog.Info(ctx, "system: exiting...")
		err = shutdown(ctx, httpServer, httpCfg.ShutdownTimeout)

	case _err := <-apiErrChan:
		if _err != nil && !errors.Is(_err, http.ErrServerClosed) {
			ylog.Error(ctx, "http transport: error", ylog.KV("error", _err))
			err = _err
		}
	}

	return
}

func shutdown(ctx context.Context, httpServer *http.Server, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ylog.Info(ctx, "http transport: exiting...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		ylog.Error(ctx, "http transport: shutdown failed", ylog.KV("error", err))
		return err
	}

	return nil
}

func setupTracer(cfg container.Config) (func(context.Context) error, error) {
	exp, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Tracing.CollectorEndpoint)),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot setup jaeger exporter: %w", err)
	}

	tp, err := tracer.InitTraceProvider(exp, tracer.ProviderConfig{
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})
	if err != nil {
		return nil, err
	}

	return tp.Shutdown, nil
}

// SetupLog sets the global zap-backed logger and returns ctx carrying a "system" tracer.
func SetupLog(ctx context.Context) context.Context {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			TimeKey:        "ts",
			MessageKey:     "msg",
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			LineEnding:     zapcore.DefaultLineEnding,
			LevelKey:       "level",
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
		}),
		zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout)), // pipe to multiple writer
		zapcore.DebugLevel,
	)

	zapLog := zap.New(core)

	propagateData := tracer.LogData{
		RemoteAddr: "system",
		TraceID:    uuid.NewV4().String(),
	}

	traceLog, err := ylog.NewTracer(propagateData, ylog.WithTag("tracer"))
	if err != nil {
		log.Fatalf("error prepare tracer system data: %s", err)
		return ctx
	}

	// inject context
	ctx = ylog.Inject(ctx, traceLog)

	// ** set global logger
	ylog.SetGlobalLogger(ylog.NewZap(zapLog))

	return ctx
}
