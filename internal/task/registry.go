package task

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/pkg/storage"
)

// RenderFunc writes the SVG snapshot of a scene and returns the number of curves drawn
type RenderFunc func(ctx context.Context, sceneID string, w io.Writer) (int, error)

// Deps 任务依赖
type Deps struct {
	Store    domain.DocumentStore
	Updater  Updater
	Defaults domain.Defaults
	Render   RenderFunc
	// Snapshots 快照存储，为空时由 Config.SnapshotStorage 创建
	Snapshots storage.Storager
	Config    Config
	Logger    *zap.Logger
}

// Config 任务配置
type Config struct {
	// SweepCron schedule of the stale connection sweep, empty disables it
	SweepCron string `yaml:"sweep-cron" default:"@every 10m"`
	// SweepOnStartup runs the sweep once at startup
	SweepOnStartup bool `yaml:"sweep-on-startup" default:"true"`
	// Timeout upper bound of one run
	Timeout string `yaml:"timeout" default:"5m"`

	// SnapshotCron schedule of the board snapshot export, empty disables it
	SnapshotCron string `yaml:"snapshot-cron"`
	// SnapshotKeepHistory keeps a timestamped copy next to latest.svg
	SnapshotKeepHistory bool `yaml:"snapshot-keep-history" default:"true"`
	// SnapshotStorage 快照上传目标
	SnapshotStorage storage.Config `yaml:"snapshot-storage"`
}

// TaskFactory 任务工厂函数类型,用于创建任务实例；返回 nil 表示任务未启用
type TaskFactory func(d Deps) (Task, error)

// taskRegistry 全局任务注册表
var (
	taskRegistry  []TaskFactory
	registryMutex sync.RWMutex
)

// Register 注册任务工厂函数
// 通常在各个任务文件的 init() 函数中调用
func Register(factory TaskFactory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	taskRegistry = append(taskRegistry, factory)
}

// GetFactories 获取所有已注册的任务工厂
func GetFactories() []TaskFactory {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	factories := make([]TaskFactory, len(taskRegistry))
	copy(factories, taskRegistry)
	return factories
}
