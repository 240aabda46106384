package task

import (
	"time"

	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/safe_close"
)

// Manager 任务管理器,负责创建和管理所有任务
type Manager struct {
	scheduler *Scheduler
	deps      Deps
	logger    *zap.Logger
}

// NewManager 创建任务管理器
func NewManager(d Deps, sc *safe_close.SafeClose) *Manager {
	d.Logger = logger.OrNop(d.Logger)
	timeout, err := time.ParseDuration(d.Config.Timeout)
	if err != nil {
		timeout = 0
	}
	return &Manager{
		scheduler: NewScheduler(d.Logger, sc, timeout),
		deps:      d,
		logger:    d.Logger,
	}
}

// RegisterTasks 注册所有任务
func (m *Manager) RegisterTasks() error {
	for _, factory := range GetFactories() {
		t, err := factory(m.deps)
		if err != nil {
			m.logger.Warn("failed to create task", zap.Error(err))
			return err
		}
		if t == nil {
			continue
		}
		if err := m.scheduler.AddTask(t); err != nil {
			return err
		}
		m.logger.Info("task registered", zap.String("name", t.Name()), zap.String("schedule", t.Schedule()))
	}
	return nil
}

// Start 启动所有已注册的任务
func (m *Manager) Start() {
	m.scheduler.Start()
}
