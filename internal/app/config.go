// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/haierkeys/evidence-board-service/internal/assets"
	"github.com/haierkeys/evidence-board-service/internal/dao"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/internal/task"
	pkgapp "github.com/haierkeys/evidence-board-service/pkg/app"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/workerpool"
	"github.com/haierkeys/evidence-board-service/pkg/writequeue"
)

// AppConfig 应用配置
type AppConfig struct {
	File     string             `yaml:"-"` // 配置文件路径，不序列化
	Server   ServerConfig       `yaml:"server"`
	Log      LogConfig          `yaml:"log"`
	Database dao.DatabaseConfig `yaml:"database"`
	Board    domain.Defaults    `yaml:"board"`
	Relay    RelayConfig        `yaml:"relay"`
	Assets   AssetsConfig       `yaml:"assets"`
	Tasks    task.Config        `yaml:"tasks"`
	Security SecurityConfig     `yaml:"security"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别，参见 zapcore.ParseLevel
	Level string `yaml:"level" default:"info"`
	// File 日志文件路径，为空时只输出到 stderr
	File string `yaml:"file" default:"storage/logs/board.log"`
	// Production 是否启用 JSON 输出
	Production bool `yaml:"production" default:"true"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// RunMode 运行模式 debug/release
	RunMode string `yaml:"run-mode" default:"release"`
	// HttpPort HTTP 端口
	HttpPort string `yaml:"http-port" default:":9100"`
	// ReadTimeout 读取超时
	ReadTimeout time.Duration `yaml:"read-timeout" default:"60s"`
	// WriteTimeout 写入超时
	WriteTimeout time.Duration `yaml:"write-timeout" default:"60s"`
	// PrivateHttpListen 私有 HTTP 监听地址（metrics / pprof），为空时不启动
	PrivateHttpListen string `yaml:"private-http-listen" default:"127.0.0.1:9101"`
	// ContextTimeout 单个 HTTP 请求的超时
	ContextTimeout time.Duration `yaml:"context-timeout" default:"30s"`
	// RenderWidth / RenderHeight SVG 快照画布大小
	RenderWidth  float64 `yaml:"render-width" default:"4000"`
	RenderHeight float64 `yaml:"render-height" default:"3000"`
	// RenderBurst / RenderRefill SVG 快照接口的令牌桶，每个客户端独立
	RenderBurst  int           `yaml:"render-burst" default:"5"`
	RenderRefill time.Duration `yaml:"render-refill" default:"2s"`
	// TraceEnabled / TraceHeader 请求追踪 ID
	TraceEnabled bool   `yaml:"trace-enabled" default:"true"`
	TraceHeader  string `yaml:"trace-header" default:"X-Trace-ID"`
}

// RelayConfig the privileged peer this server runs as, and its write queue.
// RelayConfig 服务端特权端配置
type RelayConfig struct {
	ActorID    string            `yaml:"actor-id" default:"gm"`
	ActorName  string            `yaml:"actor-name" default:"Game Master"`
	ActorColor string            `yaml:"actor-color" default:"#ffffff"`
	Queue      writequeue.Config `yaml:"queue"`
}

// AssetsConfig 资源配置
type AssetsConfig struct {
	assets.Config `yaml:",inline"`
	Pool          workerpool.Config `yaml:"pool"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	// AuthTokenKey 为空时 websocket 连接无需授权
	AuthTokenKey string        `yaml:"auth-token-key"`
	TokenExpiry  time.Duration `yaml:"token-expiry" default:"168h"`
	TokenIssuer  string        `yaml:"token-issuer" default:"evidence-board-service"`
}

// LoadConfig 从文件加载配置
// 返回配置实例和配置文件的绝对路径
func LoadConfig(f string) (*AppConfig, string, error) {
	realpath, err := filepath.Abs(f)
	if err != nil {
		return nil, "", err
	}
	realpath = filepath.Clean(realpath)

	file, err := os.ReadFile(realpath)
	if err != nil {
		return nil, realpath, errors.Wrap(err, "read config file failed")
	}

	c, err := ParseConfig(file)
	if err != nil {
		return nil, realpath, err
	}
	c.File = realpath
	return c, realpath, nil
}

// ParseConfig 解析 YAML 配置并填充默认值
func ParseConfig(data []byte) (*AppConfig, error) {
	c := new(AppConfig)
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "set default config failed")
	}
	// YAML 只覆盖出现的键，显式写出的 false / 空值会保留
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "parse config file failed")
	}
	return c, nil
}

// Save 保存配置到文件
func (c *AppConfig) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config failed")
	}
	if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
		return errors.Wrap(err, "create config directory failed")
	}
	if err := os.WriteFile(c.File, data, 0o644); err != nil {
		return errors.Wrap(err, "write config file failed")
	}
	return nil
}

// LoggerConfig 日志器配置
func (c *AppConfig) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Log.Level, File: c.Log.File, Production: c.Log.Production}
}

// RelayActor the actor the server acts as
func (c *AppConfig) RelayActor() domain.Actor {
	return domain.Actor{
		ID:    c.Relay.ActorID,
		Name:  c.Relay.ActorName,
		Color: c.Relay.ActorColor,
		Role:  domain.RoleGamemaster,
	}
}

// TokenConfig JWT 配置；密钥为空时返回 false
func (c *AppConfig) TokenConfig() (pkgapp.TokenConfig, bool) {
	if c.Security.AuthTokenKey == "" {
		return pkgapp.TokenConfig{}, false
	}
	return pkgapp.TokenConfig{
		SecretKey: c.Security.AuthTokenKey,
		Expiry:    c.Security.TokenExpiry,
		Issuer:    c.Security.TokenIssuer,
	}, true
}
