package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"alarmtrail/internal/config"
	"alarmtrail/internal/consumer"
	"alarmtrail/internal/database"
	"alarmtrail/internal/httpapi"
	"alarmtrail/internal/models"
	"alarmtrail/internal/mqtt"
	"alarmtrail/internal/notify"
	"alarmtrail/internal/parser"
	"alarmtrail/internal/reconciler"
	"alarmtrail/internal/redis"
	"alarmtrail/internal/registry"
	"alarmtrail/internal/repository"
	"alarmtrail/internal/retention"
)

// AlarmTrailService 告警日志服务
// 组装摄取链路（MQTT→解析→落库）、保留窗口清扫和查询 API
type AlarmTrailService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *goredis.Client
	mqttClient *mqtt.Client
	consumer   *consumer.Consumer
	sweeper    *retention.Sweeper
	httpServer *Server
}

// NewAlarmTrailService 创建告警日志服务
func NewAlarmTrailService(cfg *config.Config, logger *zap.Logger) (*AlarmTrailService, error) {
	// 初始化数据库（启动期存储不可用是唯一的致命错误）
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化Redis（缓存不可用时降级为直接查库，不阻止启动）
	redisClient := redis.NewRedisClient(&cfg.Redis)
	if err := redis.Ping(context.Background(), redisClient); err != nil {
		logger.Warn("redis unavailable, serial cache disabled until it recovers", zap.Error(err))
	}

	// 事件时间戳使用固定时区偏移
	loc, err := parser.FixedOffset(cfg.Alarm.EventTimeOffset)
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_TIME_OFFSET: %w", err)
	}

	// 初始化MQTT（惰性拨号，Start 时才连接）
	mqttClient := mqtt.NewClient(&cfg.MQTT, logger)

	// 创建Repository
	alarmRepo := repository.NewAlarmRecordsRepository(db, logger)
	registryRepo := repository.NewDeviceRegistryRepository(db, logger)

	// 序列号解析：注册表 + Redis 缓存
	kv := registry.NewRedisKVStore(redisClient)
	resolver := registry.NewResolver(registryRepo, kv, cfg.Alarm.Cache.SerialKeyPrefix, cfg.Alarm.Cache.SerialTTL, logger)

	// Webhook 通知（未配置 URL 则禁用）
	var notifier reconciler.Notifier
	if cfg.Alarm.Webhook.URL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Alarm.Webhook.URL, cfg.Alarm.Webhook.Timeout, logger)
	}

	// 摄取链路
	rec := reconciler.NewReconciler(alarmRepo, resolver, notifier, logger)
	mqttConsumer := consumer.NewConsumer(&cfg.MQTT, mqttClient, parser.NewParser(loc), rec, logger)

	// 保留窗口清扫
	retentionWindow := time.Duration(cfg.Alarm.RetentionDays) * 24 * time.Hour
	sweeper := retention.NewSweeper(alarmRepo, retentionWindow, cfg.Alarm.SweepInterval, logger)

	// 查询 API
	queryService := NewAlarmQueryService(alarmRepo, retentionWindow, logger)
	registryService := NewRegistryService(registryRepo, alarmRepo, resolver, logger)

	router := httpapi.NewRouter(logger)
	router.RegisterAlarmRoutes(httpapi.NewAlarmHandler(queryService, models.NewStatusTable(models.DefaultStatusCodes()), logger))
	router.RegisterDeviceRoutes(httpapi.NewDeviceHandler(registryService, logger))

	httpServer := NewServer(cfg.HTTP.Addr, router, logger)

	return &AlarmTrailService{
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		mqttClient: mqttClient,
		consumer:   mqttConsumer,
		sweeper:    sweeper,
		httpServer: httpServer,
	}, nil
}

// Start 启动服务组件，阻塞直到上下文取消
func (s *AlarmTrailService) Start(ctx context.Context) error {
	s.logger.Info("starting alarmtrail service components")

	// 连接 broker（内部按固定间隔重试直到成功）
	if err := s.mqttClient.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	go func() {
		if err := s.sweeper.Start(ctx); err != nil {
			s.logger.Error("retention sweeper exited", zap.Error(err))
		}
	}()

	go func() {
		if err := s.httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server exited", zap.Error(err))
		}
	}()

	// 消费者阻塞在订阅上直到取消
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MQTT consumer: %w", err)
	}

	s.logger.Info("alarmtrail service stopped accepting events")
	return nil
}

// Stop 停止服务
func (s *AlarmTrailService) Stop(ctx context.Context) error {
	s.logger.Info("stopping alarmtrail service")

	// 停止Consumer
	if s.consumer != nil {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("error stopping consumer", zap.Error(err))
		}
	}

	// 断开MQTT
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	// 停止HTTP服务器
	if s.httpServer != nil {
		if err := s.httpServer.Stop(ctx); err != nil {
			s.logger.Error("error stopping HTTP server", zap.Error(err))
		}
	}

	// 关闭Redis
	if s.redis != nil {
		redis.Close(s.redis)
	}

	// 关闭数据库
	if s.db != nil {
		database.Close(s.db)
	}

	s.logger.Info("alarmtrail service stopped")
	return nil
}
