package config

import (
	"fmt"
	"os"
	"strconv"
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

// DSN 获取数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MonitoringConfig 监控配置（全局默认值，站点可逐项覆盖）
type MonitoringConfig struct {
	Timezone                string  // 站点未配置时区时的默认时区
	OfflineThresholdMinutes int     // 离线判定阈值（分钟）
	ZeroWindowMinutes       int     // 零功率检测的滑动窗口长度（分钟）
	ZeroMinReadings         int     // 窗口内最少样本数（防止稀疏数据误报）
	ZeroThresholdKw         float64 // 零功率阈值（kW）
	DaylightStart           string  // 日照窗口开始 "HH:mm"
	DaylightEnd             string  // 日照窗口结束 "HH:mm"

	// 各后台任务的运行间隔（秒）
	OfflineScanIntervalSec int
	ZeroScanIntervalSec    int
	AggregateIntervalSec   int
	LiveTickIntervalSec    int

	// 启动时如果库为空，自动播种的默认站点/设备
	SeedSiteName   string
	SeedDeviceName string
}

// WhatsAppConfig WhatsApp Cloud API 配置
type WhatsAppConfig struct {
	Enabled          bool
	APIBase          string // 如 https://graph.facebook.com/v19.0
	Token            string
	PhoneNumberID    string
	DefaultRecipient string // 站点未配置收件人时的全局默认号码
	DefaultTemplate  string // 默认模板名
}

// SMTPConfig 邮件发送配置
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Config 服务配置
type Config struct {
	Server struct {
		Addr string
	}
	Database   DatabaseConfig
	Redis      RedisConfig
	Monitoring MonitoringConfig
	WhatsApp   WhatsAppConfig
	SMTP       SMTPConfig

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Server.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "solarmon")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Monitoring.Timezone = getEnv("MONITOR_TIMEZONE", "Asia/Kolkata")
	cfg.Monitoring.OfflineThresholdMinutes = getEnvInt("MONITOR_OFFLINE_THRESHOLD_MIN", 10)
	cfg.Monitoring.ZeroWindowMinutes = getEnvInt("MONITOR_ZERO_WINDOW_MIN", 5)
	cfg.Monitoring.ZeroMinReadings = getEnvInt("MONITOR_ZERO_MIN_READINGS", 3)
	cfg.Monitoring.ZeroThresholdKw = getEnvFloat("MONITOR_ZERO_THRESHOLD_KW", 0.10)
	cfg.Monitoring.DaylightStart = getEnv("MONITOR_DAYLIGHT_START", "09:00")
	cfg.Monitoring.DaylightEnd = getEnv("MONITOR_DAYLIGHT_END", "17:00")
	cfg.Monitoring.OfflineScanIntervalSec = getEnvInt("MONITOR_OFFLINE_SCAN_SEC", 120)
	cfg.Monitoring.ZeroScanIntervalSec = getEnvInt("MONITOR_ZERO_SCAN_SEC", 120)
	cfg.Monitoring.AggregateIntervalSec = getEnvInt("MONITOR_AGGREGATE_SEC", 300)
	cfg.Monitoring.LiveTickIntervalSec = getEnvInt("MONITOR_LIVE_TICK_SEC", 15)
	cfg.Monitoring.SeedSiteName = getEnv("MONITOR_SEED_SITE_NAME", "Legha Krishi Farm")
	cfg.Monitoring.SeedDeviceName = getEnv("MONITOR_SEED_DEVICE_NAME", "Main Inverter")

	cfg.WhatsApp.Enabled = getEnvBool("WHATSAPP_ENABLED", false)
	cfg.WhatsApp.APIBase = getEnv("WHATSAPP_API_BASE", "https://graph.facebook.com/v19.0")
	cfg.WhatsApp.Token = getEnv("WHATSAPP_TOKEN", "")
	cfg.WhatsApp.PhoneNumberID = getEnv("WHATSAPP_PHONE_NUMBER_ID", "")
	cfg.WhatsApp.DefaultRecipient = getEnv("WHATSAPP_DEFAULT_RECIPIENT", "")
	cfg.WhatsApp.DefaultTemplate = getEnv("WHATSAPP_DEFAULT_TEMPLATE", "hello_world")

	cfg.SMTP.Host = getEnv("SMTP_HOST", "")
	cfg.SMTP.Port = getEnvInt("SMTP_PORT", 587)
	cfg.SMTP.Username = getEnv("SMTP_USERNAME", "")
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", "")
	cfg.SMTP.From = getEnv("SMTP_FROM", "alerts@leghakrishifarm.example")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
