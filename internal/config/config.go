package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Topic    string // 报警事件主题
}

// Config 报警日志服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	HTTP struct {
		Addr string
	}

	// 报警日志特定配置
	Alarm struct {
		// 事件时间戳的固定时区偏移，如 "+08:00"（通道本身不携带时区）
		EventTimeOffset string
		// 记录保留窗口（天），按 started_at 计，对 active 状态不做区分
		RetentionDays int
		// 过期记录清理间隔
		SweepInterval time.Duration

		Cache struct {
			SerialKeyPrefix string // 序列号缓存键前缀，如 "alarmtrail:serial:"
			SerialTTL       time.Duration
		}

		Webhook struct {
			URL     string // 为空则禁用通知
			Timeout time.Duration
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量 + 默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "alarmtrail")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "alarmtrail")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1 // at-least-once
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "devices/alarm/events")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Alarm.EventTimeOffset = getEnv("EVENT_TIME_OFFSET", "+00:00")
	cfg.Alarm.RetentionDays = parseInt(getEnv("ALARM_RETENTION_DAYS", "30"), 30)
	cfg.Alarm.SweepInterval = time.Duration(parseInt(getEnv("ALARM_SWEEP_INTERVAL_MIN", "60"), 60)) * time.Minute

	cfg.Alarm.Cache.SerialKeyPrefix = getEnv("CACHE_SERIAL_PREFIX", "alarmtrail:serial:")
	cfg.Alarm.Cache.SerialTTL = time.Duration(parseInt(getEnv("CACHE_SERIAL_TTL_SEC", "300"), 300)) * time.Second

	cfg.Alarm.Webhook.URL = getEnv("WEBHOOK_URL", "")
	cfg.Alarm.Webhook.Timeout = time.Duration(parseInt(getEnv("WEBHOOK_TIMEOUT_SEC", "5"), 5)) * time.Second

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
