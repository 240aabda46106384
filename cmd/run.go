package cmd

import (
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/radovskyb/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runFlags struct {
	dir     string // 项目根目录
	port    string // 启动端口
	runMode string // 启动模式
	config  string // 指定要使用的配置文件路径
}

func isExist(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// resolveConfig picks the config file, writing the embedded default when none exists.
// resolveConfig 查找配置文件，不存在时写出默认配置
func resolveConfig(config string) (string, error) {
	if config != "" {
		return config, nil
	}
	for _, f := range []string{"config/config-dev.yaml", "config.yaml", "config/config.yaml"} {
		if isExist(f) {
			return f, nil
		}
	}

	bootstrapLogger.Warn("config file not found, creating default config")
	config = "config/config.yaml"
	content := strings.Replace(configDefault, defaultSecretKeys[0], strings.ReplaceAll(uuid.NewString(), "-", ""), 1)

	if err := os.MkdirAll(filepath.Dir(config), os.ModePerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(config, []byte(content), 0o644); err != nil {
		return "", err
	}
	bootstrapLogger.Info("config file auto create successfully", zap.String("path", config))
	return config, nil
}

func init() {
	runEnv := new(runFlags)

	var runCommand = &cobra.Command{
		Use:   "run [-c config_file] [-d working_dir] [-p port]",
		Short: "Run service",
		Run: func(cmd *cobra.Command, args []string) {
			if len(runEnv.dir) > 0 {
				if err := os.Chdir(runEnv.dir); err != nil {
					bootstrapLogger.Error("failed to change the current working directory", zap.Error(err))
				}
				bootstrapLogger.Info("working directory changed", zap.String("dir", runEnv.dir))
			}

			config, err := resolveConfig(runEnv.config)
			if err != nil {
				bootstrapLogger.Error("config file auto create error", zap.Error(err))
				return
			}
			runEnv.config = config

			s, err := NewServer(runEnv)
			if err != nil {
				bootstrapLogger.Error("api service start err", zap.Error(err))
				return
			}
			var current atomic.Pointer[Server]
			current.Store(s)

			go func() {
				w := watcher.New()

				// 每个监听周期至多接收 1 个事件，只通知写入事件
				w.SetMaxEvents(1)
				w.FilterOps(watcher.Write)

				go func() {
					for {
						select {
						case event := <-w.Event:
							prev := current.Load()
							prev.logger.Info("config watcher change", zap.String("event", event.Op.String()), zap.String("file", event.Path))
							prev.sc.SendCloseSignal(nil)
							if err := prev.sc.WaitClosed(); err != nil {
								prev.logger.Warn("previous server closed with error", zap.Error(err))
							}

							// 重新初始化 server
							next, err := NewServer(runEnv)
							if err != nil {
								bootstrapLogger.Error("service start err", zap.Error(err))
								continue
							}
							current.Store(next)

						case err := <-w.Error:
							current.Load().logger.Error("config watcher error", zap.Error(err))
						case <-w.Closed:
							bootstrapLogger.Info("config watcher closed")
							return
						}
					}
				}()

				if err := w.Add(runEnv.config); err != nil {
					current.Load().logger.Error("config watcher file error", zap.Error(err))
				}
				if err := w.Start(time.Second * 5); err != nil {
					current.Load().logger.Error("config watcher start error", zap.Error(err))
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			s = current.Load()
			s.logger.Info("Received shutdown signal, initiating graceful shutdown...")
			s.sc.SendCloseSignal(nil)

			// 等待所有关闭处理器完成（包括 App Container 的优雅关闭）
			if err := s.sc.WaitClosed(); err != nil {
				s.logger.Error("Shutdown completed with error", zap.Error(err))
			} else {
				s.logger.Info("Service has been shut down gracefully.")
			}
		},
	}

	rootCmd.AddCommand(runCommand)
	fs := runCommand.Flags()
	fs.StringVarP(&runEnv.dir, "dir", "d", "", "run dir")
	fs.StringVarP(&runEnv.port, "port", "p", "", "run port")
	fs.StringVarP(&runEnv.runMode, "mode", "m", "", "run mode")
	fs.StringVarP(&runEnv.config, "config", "c", "", "config file")
}
