package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（对应 config/config.yaml）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 管理接口配置
	Database DatabaseConfig `mapstructure:"database"` // 数据库配置
	Log      LogConfig      `mapstructure:"log"`      // 日志配置
	CRM      CRMConfig      `mapstructure:"crm"`      // 远端CRM配置
	Sync     SyncConfig     `mapstructure:"sync"`     // 同步调度配置
}

// ServerConfig 管理接口（手动触发、同步状态）
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"` // 是否启动HTTP服务
	Port    int    `mapstructure:"port"`    // 服务端口
	Mode    string `mapstructure:"mode"`    // Gin运行模式：debug/release/test
}

// DatabaseConfig PostgreSQL配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（URL形式）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	LogLevel        string        `mapstructure:"log_level"`         // GORM日志级别：silent/error/warn/info
}

// LogConfig logrus配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug/info/warn/error
	Format string `mapstructure:"format"` // text/json
}

// CRMConfig 远端CRM接口配置（凭证按租户存放在 tenants 表）
type CRMConfig struct {
	BaseURL          string `mapstructure:"base_url"`           // API基础地址
	Timeout          int    `mapstructure:"timeout"`            // 请求超时（秒）
	Proxy            string `mapstructure:"proxy"`              // 代理地址
	RetryCount       int    `mapstructure:"retry_count"`        // 最大尝试次数
	ProspectTypeCode string `mapstructure:"prospect_type_code"` // 线索（prospect）联系人类型编码
}

// SyncConfig 同步调度配置
type SyncConfig struct {
	Cron            string        `mapstructure:"cron"`             // 定时同步Cron表达式
	Workers         int           `mapstructure:"workers"`          // 并发租户数，1为串行
	SnapshotWeekday string        `mapstructure:"snapshot_weekday"` // 周快照日（周结束日）
	Timezone        string        `mapstructure:"timezone"`         // 判断周快照日所用时区
	StaleAfter      time.Duration `mapstructure:"stale_after"`      // 超过该时长未成功同步视为过期
	HotStages       []string      `mapstructure:"hot_stages"`       // 重点商机所属的后段阶段
	TenantTimeout   time.Duration `mapstructure:"tenant_timeout"`   // 单租户整轮同步（拉取+归一化）超时
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("./config")
}

// LoadConfigFrom 从指定目录加载 config.yaml
func LoadConfigFrom(dir string) (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("crm.timeout", 30)
	v.SetDefault("crm.retry_count", 3)
	v.SetDefault("crm.prospect_type_code", "P")
	v.SetDefault("sync.cron", "0 * * * *")
	v.SetDefault("sync.workers", 1)
	v.SetDefault("sync.snapshot_weekday", "sunday")
	v.SetDefault("sync.timezone", "UTC")
	v.SetDefault("sync.stale_after", "2h")
	v.SetDefault("sync.hot_stages", []string{"Proposal", "Negotiation", "Contract Sent", "Verbal Commitment"})
	v.SetDefault("sync.tenant_timeout", "10m")
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("CRM_BASE_URL"); v != "" {
		cfg.CRM.BaseURL = v
	}
	if v := os.Getenv("CRM_PROXY"); v != "" {
		cfg.CRM.Proxy = v
	}
	if v := os.Getenv("SYNC_CRON"); v != "" {
		cfg.Sync.Cron = v
	}
}

// Validate 启动前检查必填项
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn 未配置")
	}
	if c.CRM.BaseURL == "" {
		return fmt.Errorf("crm.base_url 未配置")
	}
	if _, err := c.Sync.Location(); err != nil {
		return err
	}
	if _, err := c.Sync.Weekday(); err != nil {
		return err
	}
	return nil
}

// Location 解析 sync.timezone
func (s SyncConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("sync.timezone 无效: %w", err)
	}
	return loc, nil
}

// Weekday 解析 sync.snapshot_weekday（不区分大小写，如 sunday / Sun）
func (s SyncConfig) Weekday() (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s.SnapshotWeekday))
	if name == "" {
		return time.Sunday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("sync.snapshot_weekday 无效: %s", s.SnapshotWeekday)
}
