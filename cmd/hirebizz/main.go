package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hirebizz-go/internal/api/handler"
	"hirebizz-go/internal/api/router"
	"hirebizz-go/internal/config"
	"hirebizz-go/internal/indexer"
	"hirebizz-go/internal/matcher"
	"hirebizz-go/internal/metrics"
	"hirebizz-go/internal/resume"
	"hirebizz-go/internal/storage"
	"hirebizz-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	appLogger "hirebizz-go/internal/logger"

	hertzadapter "github.com/hertz-contrib/logger/zerolog"
)

var (
	version     = "1.0.0"       //nolint:gochecknoglobals
	serviceName = "hirebizz-go" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("加载配置失败")
	}

	initLogger(cfg.Logger)
	glog.Infof("配置加载成功，服务版本: %s", version)

	if err := cfg.Validate(); err != nil {
		glog.Fatalf("配置校验失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 链路追踪
	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.InitTracerProvider(ctx, serviceName, cfg.Tracing.OTLPEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			glog.Fatalf("初始化链路追踪失败: %v", err)
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := shutdownTracing(shutdownCtx); err != nil {
				glog.Errorf("关闭链路追踪失败: %v", err)
			}
		}()
		glog.Info("链路追踪初始化成功")
	}

	// 指标
	if cfg.Metrics.Enabled {
		go func() {
			glog.Infof("指标服务启动中，监听地址: %s", cfg.Metrics.Address)
			if err := metrics.Serve(cfg.Metrics.Address); err != nil {
				glog.Errorf("指标服务退出: %v", err)
			}
		}()
	}

	storageManager, err := storage.NewStorage(cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	// 岗位向量索引消费者
	indexConsumer := indexer.NewConsumer(storageManager.RabbitMQ, storageManager.Qdrant, &cfg.RabbitMQ)
	if err := indexConsumer.Start(); err != nil {
		glog.Fatalf("启动岗位向量索引消费者失败: %v", err)
	}
	defer indexConsumer.Stop()
	glog.Info("岗位向量索引消费者已启动")

	// 匹配编排器
	ranker := matcher.NewRanker(storageManager.Qdrant)
	matchSvc := matcher.NewService(storageManager.ResumeDB, ranker,
		matcher.WithLimit(cfg.Matching.Limit),
		matcher.WithCandidatePoolSize(cfg.Matching.CandidatePoolSize),
	)
	glog.Info("匹配编排器初始化成功")

	// 简历生命周期管理器
	resumeManager := resume.NewManager(
		storageManager.UserDB,
		storageManager.MinIO,
		storageManager.RabbitMQ,
		storageManager.Redis,
	)
	glog.Info("简历生命周期管理器初始化成功")

	resumeHandler := handler.NewResumeHandler(resumeManager, storageManager.Redis)
	jobHandler := handler.NewJobHandler(matchSvc, storageManager.UserDB, storageManager.Redis,
		time.Duration(cfg.Matching.CacheTTLMinutes)*time.Minute)

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, resumeHandler, jobHandler, cfg.Server.APIKey)
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

	indexConsumer.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog并桥接到Hertz的hlog
func initLogger(cfg config.LoggerConfig) {
	appLogger.Init(appLogger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		TimeFormat:   cfg.TimeFormat,
		ReportCaller: cfg.ReportCaller,
	})

	hertzCompatibleLogger := hertzadapter.From(appLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)

	switch cfg.Level {
	case "debug":
		glog.SetLevel(glog.LevelDebug)
	case "warn":
		glog.SetLevel(glog.LevelWarn)
	case "error":
		glog.SetLevel(glog.LevelError)
	default:
		glog.SetLevel(glog.LevelInfo)
	}
}
