package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"job-recommender/internal/api/handler"
	"job-recommender/internal/api/router"
	"job-recommender/internal/config"
	"job-recommender/internal/constants"
	appCoreLogger "job-recommender/internal/logger"
	"job-recommender/internal/metrics"
	"job-recommender/internal/outbox"
	"job-recommender/internal/parser"
	"job-recommender/internal/ratelimit"
	"job-recommender/internal/recommend"
	"job-recommender/internal/similarity"
	"job-recommender/internal/storage"
	"job-recommender/internal/tracing"
)

const retrainLockTTL = 2 * time.Minute

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("加载配置失败")
	}

	logCloser := initLogger(cfg.Logger)
	if logCloser != nil {
		defer logCloser.Close()
	}
	glog.Infof("配置加载成功, 环境: %s", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     constants.AlgorithmVersion,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	engine := recommend.NewEngine(cfg, storageManager.Repository, engineOptions(cfg, storageManager)...)
	if err := engine.Initialize(ctx); err != nil {
		glog.Fatalf("初始化推荐引擎失败: %v", err)
	}
	glog.Infof("推荐引擎初始化成功, 相似度策略: %s", engine.BackendName())

	metricsServer := metrics.NewServer(cfg.Metrics.Address)
	metricsServer.Start()

	var messageRelay *outbox.MessageRelay
	if storageManager.RabbitMQ != nil {
		messageRelay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ,
			outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.RelayInterval, 5*time.Second)),
			outbox.WithBatchSize(cfg.RabbitMQ.RelayBatchSize),
		)
		messageRelay.Start()
		glog.Info("消息中继服务已启动")
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		glog.CtxDebugf(c, "%s %s -> %d (%s)", string(ctx.Method()), string(ctx.Path()),
			ctx.Response.StatusCode(), time.Since(start))
	})

	recommendHandler := handler.NewRecommendHandler(engine, storageManager.Repository, storageManager)
	router.RegisterRoutes(h, recommendHandler, cfg.Security.AdminAPIKey)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	// 等待异步推荐日志写完后再停止中继
	engine.Close()
	if messageRelay != nil {
		messageRelay.Stop()
		glog.Info("消息中继服务已停止")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		glog.Warnf("指标服务关闭失败: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Warnf("链路追踪关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// engineOptions 根据可用的外部组件组装引擎选项
func engineOptions(cfg *config.Config, s *storage.Storage) []recommend.Option {
	var (
		opts        []recommend.Option
		vectorCache []similarity.EmbeddingOption
	)

	if s.Redis != nil {
		opts = append(opts, recommend.WithLocker(s.Redis, retrainLockTTL))
		vectorCache = append(vectorCache, similarity.WithVectorCache(s.Redis, cfg.Performance.CacheTTL()))
	}

	embedder := newEmbedder(cfg)
	opts = append(opts, recommend.WithBackendFactory(func(ctx context.Context) similarity.Backend {
		return similarity.Select(ctx, cfg.Similarity, embedder, vectorCache...)
	}))
	return opts
}

// newEmbedder 创建带限流与熔断的向量化客户端，未配置或关闭语义相似度时返回 nil
func newEmbedder(cfg *config.Config) embedding.Embedder {
	if !cfg.Similarity.UseSemanticSimilarity || cfg.Embedding.BaseURL == "" {
		glog.Info("未启用向量化服务，使用词法相似度")
		return nil
	}
	httpEmbedder, err := parser.NewHTTPEmbedder(cfg.Embedding)
	if err != nil {
		glog.Warnf("初始化向量化客户端失败，使用词法相似度: %v", err)
		return nil
	}
	limiter := ratelimit.NewLimiter(cfg.Embedding.RequestsPerSec, cfg.Embedding.Burst).
		WithRetryPolicy(200*time.Millisecond, cfg.Embedding.MaxRetries)
	return ratelimit.NewRateLimitedEmbedder(httpEmbedder, limiter, 5, 30*time.Second)
}

func initLogger(cfg config.LoggerConfig) io.Closer {
	closer, err := appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		TimeFormat:   cfg.TimeFormat,
		ReportCaller: cfg.ReportCaller,
		File:         cfg.File,
	})
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("初始化日志失败")
	}

	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	glog.SetLevel(hlogLevel(cfg.Level))
	return closer
}

func hlogLevel(level string) glog.Level {
	switch level {
	case "debug":
		return glog.LevelDebug
	case "warn":
		return glog.LevelWarn
	case "error":
		return glog.LevelError
	default:
		return glog.LevelInfo
	}
}
