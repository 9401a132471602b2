package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	globalConfig *Config
	once         sync.Once
)

// LoadConfig 加载配置文件，只在首次调用时读取
func LoadConfig(configFile string) (*Config, error) {
	var err error

	once.Do(func() {
		var cfg *Config
		cfg, err = loadConfigFromFile(configFile)
		if err == nil {
			globalConfig = cfg
		}
	})

	return globalConfig, err
}

// loadConfigFromFile 从文件加载配置
func loadConfigFromFile(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// 环境变量 INSPECT_BACKEND_BASE_URL 覆盖 backend.base_url，以此类推
	v.SetEnvPrefix("INSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	setDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 18090
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = "门检信息平台"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 512
	}
	if cfg.Backend.TimeoutSeconds == 0 {
		cfg.Backend.TimeoutSeconds = 30
	}
	if cfg.Backend.UploadTimeoutSeconds == 0 {
		cfg.Backend.UploadTimeoutSeconds = 600
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./database/console.db"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.ContextTTLMinutes == 0 {
		cfg.Redis.ContextTTLMinutes = 30
	}
	if cfg.Redis.MaxProcessing == 0 {
		cfg.Redis.MaxProcessing = 4
	}
	if cfg.Session.Algorithm == "" {
		cfg.Session.Algorithm = "HS256"
	}
	if cfg.Session.ExpireMinutes == 0 {
		cfg.Session.ExpireMinutes = 43200 // 30天
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "inspect_session"
	}
	if cfg.CORS.AllowMethods == nil {
		cfg.CORS.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if cfg.CORS.AllowHeaders == nil {
		cfg.CORS.AllowHeaders = []string{"Content-Type", "HX-Request", "HX-Target", "HX-Current-URL", "HX-Trigger"}
	}

	ui := &cfg.UI
	if ui.SearchPageSize == 0 {
		ui.SearchPageSize = 20
	}
	if ui.FavoritesPageSize == 0 {
		ui.FavoritesPageSize = 10
	}
	if ui.MessagesPageSize == 0 {
		ui.MessagesPageSize = 50
	}
	if ui.WindowSize == 0 {
		ui.WindowSize = 5
	}
	if ui.ContextSize == 0 {
		ui.ContextSize = 3
	}
	if ui.PollIntervalMS == 0 {
		ui.PollIntervalMS = 2000
	}
	if ui.ContextCacheSize == 0 {
		ui.ContextCacheSize = 1024
	}
	if ui.HistoryLimit == 0 {
		ui.HistoryLimit = 10
	}
	if ui.SuggestionLimit == 0 {
		ui.SuggestionLimit = 5
	}
	if ui.DefaultCallThreshold == 0 {
		ui.DefaultCallThreshold = 5
	}
}

// validateConfig 验证配置
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("无效的服务器端口: %d", cfg.Server.Port)
	}

	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("后端地址不能为空")
	}
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("无效的后端地址: %s", cfg.Backend.BaseURL)
	}

	if cfg.Session.SecretKey == "" {
		return fmt.Errorf("会话密钥不能为空")
	}

	if cfg.Redis.Enabled && cfg.Redis.Host == "" {
		return fmt.Errorf("启用Redis时必须配置host")
	}

	for name, size := range map[string]int{
		"search_page_size":    cfg.UI.SearchPageSize,
		"favorites_page_size": cfg.UI.FavoritesPageSize,
		"messages_page_size":  cfg.UI.MessagesPageSize,
		"window_size":         cfg.UI.WindowSize,
		"poll_interval_ms":    cfg.UI.PollIntervalMS,
	} {
		if size < 0 {
			return fmt.Errorf("ui.%s 不能为负数: %d", name, size)
		}
	}

	// 检查数据库目录是否存在
	if cfg.Database.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Database.Path)
		if _, err := os.Stat(dbDir); os.IsNotExist(err) {
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				return fmt.Errorf("创建数据库目录失败: %w", err)
			}
		}
	}

	return nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return globalConfig
}
