package config

import (
	"fmt"
	"time"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis_service"`
	Session  SessionConfig  `mapstructure:"session"`
	CORS     CORSConfig     `mapstructure:"cors"`
	UI       UIConfig       `mapstructure:"ui"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	ProductionMode bool   `mapstructure:"production_mode"`
	Title          string `mapstructure:"title"`
	// MaxUploadMB 单次上传的最大体积
	MaxUploadMB int64 `mapstructure:"max_upload_mb"`
}

// GetAddress 获取服务器地址
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendConfig 数据处理后端配置
type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// UploadTimeoutSeconds 上传大文件时单独的超时
	UploadTimeoutSeconds int `mapstructure:"upload_timeout_seconds"`
}

// GetTimeout 获取请求超时
func (b *BackendConfig) GetTimeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// GetUploadTimeout 获取上传超时
func (b *BackendConfig) GetUploadTimeout() time.Duration {
	return time.Duration(b.UploadTimeoutSeconds) * time.Second
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig Redis配置，未启用时使用进程内缓存和本地限流
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	// ContextTTLMinutes 上下文缓存过期时间
	ContextTTLMinutes int `mapstructure:"context_ttl_minutes"`
	// MaxProcessing 同时处理中的任务上限
	MaxProcessing int `mapstructure:"max_processing"`
}

// GetAddress 获取Redis地址
func (r *RedisConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GetContextTTL 获取上下文缓存过期时间
func (r *RedisConfig) GetContextTTL() time.Duration {
	return time.Duration(r.ContextTTLMinutes) * time.Minute
}

// SessionConfig 会话配置
type SessionConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	Algorithm     string `mapstructure:"algorithm"`
	ExpireMinutes int    `mapstructure:"expire_minutes"`
	CookieName    string `mapstructure:"cookie_name"`
}

// GetExpireDuration 获取过期时间
func (s *SessionConfig) GetExpireDuration() time.Duration {
	return time.Duration(s.ExpireMinutes) * time.Minute
}

// CORSConfig CORS配置
type CORSConfig struct {
	Origins          []string `mapstructure:"origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
}

// UIConfig 页面行为配置
type UIConfig struct {
	SearchPageSize       int    `mapstructure:"search_page_size"`
	FavoritesPageSize    int    `mapstructure:"favorites_page_size"`
	MessagesPageSize     int    `mapstructure:"messages_page_size"`
	WindowSize           int    `mapstructure:"window_size"`
	ContextSize          int    `mapstructure:"context_size"`
	PollIntervalMS       int    `mapstructure:"poll_interval_ms"`
	Timezone             string `mapstructure:"timezone"`
	ContextCacheSize     int    `mapstructure:"context_cache_size"`
	HistoryLimit         int    `mapstructure:"history_limit"`
	SuggestionLimit      int    `mapstructure:"suggestion_limit"`
	DefaultCallThreshold int    `mapstructure:"default_call_threshold"`
}

// GetPollInterval 获取任务轮询间隔
func (u *UIConfig) GetPollInterval() time.Duration {
	return time.Duration(u.PollIntervalMS) * time.Millisecond
}

// PageSize 获取列表的每页条数
func (u *UIConfig) PageSize(list string) int {
	switch list {
	case "favorites":
		return u.FavoritesPageSize
	case "messages":
		return u.MessagesPageSize
	default:
		return u.SearchPageSize
	}
}
