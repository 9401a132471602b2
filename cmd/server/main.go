package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"inspect-go/internal/config"
	"inspect-go/internal/dto"
	"inspect-go/internal/models"
	"inspect-go/internal/router"
	"inspect-go/internal/service"
	"inspect-go/internal/view"
	"inspect-go/pkg/backend_client"
)

type options struct {
	configFile string
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "inspect-console",
		Short:        "数据检视控制台",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "./config/config.yaml", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "日志级别")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "启动控制台服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "watch-task <task_id>",
		Short: "跟踪后端任务进度直到结束",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchTask(cmd.Context(), opts, args[0])
		},
	})
	return rootCmd
}

// setup 加载配置并初始化日志
func setup(opts *options) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.UI.Timezone != "" {
		if err := view.SetTimeZone(cfg.UI.Timezone); err != nil {
			logger.WithError(err).Warn("时区设置无效，使用默认时区")
		}
	}
	return cfg, logger, nil
}

func newBackendClient(cfg *config.Config, logger *logrus.Logger) *backend_client.Client {
	return backend_client.NewClient(cfg.Backend.BaseURL, cfg.Backend.GetTimeout(), logger).
		SetUploadTimeout(cfg.Backend.GetUploadTimeout())
}

// connectRedis 连接Redis，失败时返回 nil，退回进程内缓存和本地限流
func connectRedis(ctx context.Context, cfg *config.RedisConfig, logger *logrus.Logger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetAddress(),
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.GetAddress()).Warn("连接Redis失败，使用进程内缓存")
		_ = client.Close()
		return nil
	}
	return client
}

func serve(ctx context.Context, opts *options) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}

	if err := models.InitDB(cfg); err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := connectRedis(ctx, &cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	r, cleanup, err := router.SetupRouter(cfg, logger, models.GetDB(), redisClient, newBackendClient(cfg, logger))
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.Server.GetAddress(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// SSE 连接不会因 Shutdown 自行结束，先关闭事件流
	srv.RegisterOnShutdown(cleanup)

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    srv.Addr,
			"backend": cfg.Backend.BaseURL,
			"redis":   redisClient != nil,
		}).Info("控制台服务启动")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// watchTask 在终端跟踪任务进度，任务结束或中断时退出
func watchTask(ctx context.Context, opts *options, taskID string) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	const sessionID = "cli"
	poller := service.NewTaskPoller(newBackendClient(cfg, logger), nil, cfg.UI.GetPollInterval(), service.PollHooks{}, logger)
	events, _, unsubscribe := poller.Subscribe(sessionID)
	defer unsubscribe()

	poller.Start(sessionID, taskID)
	defer poller.Stop(sessionID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.Snapshot == nil {
				continue
			}
			printSnapshot(ev.Snapshot)
			if ev.Snapshot.Terminal {
				if ev.Snapshot.Level == dto.LevelError {
					return errors.New(ev.Snapshot.Message)
				}
				return nil
			}
		}
	}
}

func printSnapshot(s *dto.TaskSnapshot) {
	paint := color.New(color.FgCyan).SprintFunc()
	switch s.Level {
	case dto.LevelSuccess:
		paint = color.New(color.FgGreen).SprintFunc()
	case dto.LevelError:
		paint = color.New(color.FgRed).SprintFunc()
	}

	fmt.Printf("%s %s\n", color.New(color.FgHiBlack).Sprint(s.Timestamp.Format("15:04:05")), paint(s.Message))
	for _, e := range s.Errors {
		fmt.Printf("  %s\n", paint(e))
	}
	if s.ExcelID != "" {
		fmt.Printf("  excel: %s\n", s.ExcelID)
	}
	if s.ChartID != "" {
		fmt.Printf("  chart: %s\n", s.ChartID)
	}
}
