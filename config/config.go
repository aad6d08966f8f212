package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Detector DetectorConfig `mapstructure:"detector"`
	FFmpeg   FFmpegConfig   `mapstructure:"ffmpeg"`
	OSS      OSSConfig      `mapstructure:"oss"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Progress ProgressConfig `mapstructure:"progress"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Upload   UploadConfig   `mapstructure:"upload"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// DetectorConfig 外部 AI 检测服务配置
type DetectorConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// FFmpegConfig 视频转码配置
type FFmpegConfig struct {
	Bin     string `mapstructure:"bin"`     // ffmpeg 可执行文件路径
	Enabled bool   `mapstructure:"enabled"` // 关闭后直接使用原始文件
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type QueueConfig struct {
	AnalysisQueue string `mapstructure:"analysis_queue"`
	MaxWorkers    int    `mapstructure:"max_workers"`
}

// ProgressConfig 进度缓存配置
type ProgressConfig struct {
	TTLMinutes int `mapstructure:"ttl_minutes"` // 进度快照过期时间（分钟）
}

// TTL 进度快照过期时间，未配置时默认 60 分钟
func (c ProgressConfig) TTL() time.Duration {
	if c.TTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.TTLMinutes) * time.Minute
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size"`           // 最大文件大小（字节）
	Dir               string   `mapstructure:"dir"`                // 视频存储目录
	ExpireHours       int      `mapstructure:"expire_hours"`       // 媒体文件保留时间（小时）
	AllowedExtensions []string `mapstructure:"allowed_extensions"` // 允许的扩展名
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	// 检查 config.local.yaml 是否存在
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
