package task

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/safe_close"
)

// Task 定义任务接口
type Task interface {
	Name() string                  // 任务名称
	Run(ctx context.Context) error // 执行任务
	Schedule() string              // cron 表达式，空表示不定时执行
	IsStartupRun() bool            // 是否立即执行一次
}

// Parser accepts five field expressions and descriptors such as "@every 10m"
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler 任务调度器
type Scheduler struct {
	logger  *zap.Logger
	sc      *safe_close.SafeClose
	cron    *cron.Cron
	tasks   []Task
	timeout time.Duration
}

// NewScheduler 创建任务调度器；timeout 限制单次执行时长
func NewScheduler(lg *zap.Logger, sc *safe_close.SafeClose, timeout time.Duration) *Scheduler {
	lg = logger.OrNop(lg)
	return &Scheduler{
		logger:  lg,
		sc:      sc,
		timeout: timeout,
		cron:    cron.New(cron.WithParser(Parser), cron.WithLogger(cronLogger{lg})),
	}
}

// AddTask validates the task's schedule and registers it
func (s *Scheduler) AddTask(task Task) error {
	if spec := task.Schedule(); spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { s.run(task, false) }); err != nil {
			return errors.Wrapf(err, "schedule task %s", task.Name())
		}
	}
	s.tasks = append(s.tasks, task)
	return nil
}

// Start 启动所有任务，收到关闭信号后等待正在执行的任务结束
func (s *Scheduler) Start() {
	if len(s.tasks) == 0 {
		s.logger.Info("no tasks to schedule")
		return
	}
	s.logger.Info("tasks starting", zap.Int("count", len(s.tasks)))

	for _, task := range s.tasks {
		if task.IsStartupRun() {
			go s.run(task, true)
		}
	}
	s.cron.Start()

	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		<-closeSignal
		<-s.cron.Stop().Done()
		s.logger.Info("tasks stopped")
	})
}

// run executes task once, recovering panics
func (s *Scheduler) run(task Task, startup bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panic",
				zap.String("name", task.Name()),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info("task running", zap.String("name", task.Name()), zap.Bool("startupRun", startup))
	if err := task.Run(ctx); err != nil {
		s.logger.Error("task running error",
			zap.String("name", task.Name()),
			zap.Bool("startupRun", startup),
			zap.Error(err))
		return
	}
	s.logger.Debug("task finished", zap.String("name", task.Name()), zap.Duration("duration", time.Since(start)))
}

// cronLogger routes cron's own logging to zap
type cronLogger struct {
	lg *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.lg.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.lg.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
