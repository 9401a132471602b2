package service

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"inspect-go/internal/dto"
	"inspect-go/internal/models"
	"inspect-go/internal/view"
	"inspect-go/pkg/backend_client"
	"inspect-go/pkg/redis_limiter"
)

// ProcessingSlotKey 处理槽位的限流键
const ProcessingSlotKey = "processing"

// UploadService 接收上传文件，转交后端处理并开始轮询
type UploadService struct {
	api     backend_client.API
	poller  *TaskPoller
	limiter redis_limiter.Limiter
	tasks   TaskStore
	logger  *logrus.Logger
}

// NewUploadService 创建上传服务，tasks 可为 nil
func NewUploadService(api backend_client.API, poller *TaskPoller, limiter redis_limiter.Limiter, tasks TaskStore, logger *logrus.Logger) *UploadService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UploadService{api: api, poller: poller, limiter: limiter, tasks: tasks, logger: logger}
}

// busyMessage 槽位已满时的提示，带上当前占用情况
func (s *UploadService) busyMessage(ctx context.Context) string {
	current, err := s.limiter.GetCurrent(ctx, ProcessingSlotKey)
	if err != nil {
		s.logger.WithError(err).Warn("读取处理槽位占用失败")
		return "当前处理任务较多，请稍后再试。"
	}
	return fmt.Sprintf("当前处理任务较多 (%d/%d)，请稍后再试。", current, s.limiter.GetMaxConcurrent())
}

func failedSnapshot(message string) *dto.TaskSnapshot {
	return &dto.TaskSnapshot{
		Status:        dto.TaskError,
		Message:       message,
		Level:         dto.LevelError,
		Terminal:      true,
		UploadEnabled: true,
	}
}

// Start 校验文件并启动处理，返回要显示的进度快照
func (s *UploadService) Start(ctx context.Context, sessionID string, files []backend_client.UploadFile) *dto.TaskSnapshot {
	if len(files) == 0 {
		return s.reject(sessionID, "请选择文件。")
	}
	for _, f := range files {
		if !strings.EqualFold(filepath.Ext(f.Name), ".json") {
			return s.reject(sessionID, "请确保所有文件都是 .json 格式。")
		}
	}

	// 同一会话的新上传取代之前的轮询，并归还其槽位
	s.poller.Stop(sessionID)

	if err := s.limiter.Acquire(ctx, ProcessingSlotKey); err != nil {
		s.logger.WithError(err).WithField("session", sessionID).Warn("获取处理槽位失败")
		if errors.Is(err, redis_limiter.ErrLimitReached) {
			return s.reject(sessionID, s.busyMessage(ctx))
		}
		return s.reject(sessionID, "上传请求失败: "+err.Error())
	}

	// 新任务的事件历史从上传开始
	s.poller.Stream(sessionID).Reset()
	s.poller.Publish(sessionID, &dto.TaskSnapshot{
		Status:     dto.TaskUploading,
		TotalFiles: int64(len(files)),
		Message:    "正在上传文件...",
		Level:      dto.LevelInfo,
	})

	resp, err := s.api.StartProcessing(ctx, files)
	if err != nil {
		s.limiter.Release(context.Background(), ProcessingSlotKey)
		s.logger.WithError(err).WithField("session", sessionID).Warn("启动处理失败")
		if backend_client.IsApplicationError(err) {
			return s.reject(sessionID, "错误: "+backend_client.Message(err))
		}
		return s.reject(sessionID, "上传请求失败: "+backend_client.Message(err))
	}

	if s.tasks != nil {
		task := &models.ProcessingTask{
			TaskID:    resp.TaskID,
			SessionID: sessionID,
			Status:    dto.TaskQueued,
			FileCount: len(files),
			StartedAt: time.Now(),
		}
		if err := s.tasks.Create(task); err != nil {
			s.logger.WithError(err).WithField("task_id", resp.TaskID).Warn("保存任务记录失败")
		}
	}

	queued := &dto.TaskSnapshot{
		TaskID:     resp.TaskID,
		Status:     dto.TaskQueued,
		TotalFiles: int64(len(files)),
		Message:    fmt.Sprintf("处理中... 0/%d 文件 (0%%)", len(files)),
		Level:      dto.LevelInfo,
	}
	s.poller.Publish(sessionID, queued)
	s.poller.Start(sessionID, resp.TaskID)
	s.logger.WithFields(logrus.Fields{
		"session": sessionID,
		"task_id": resp.TaskID,
		"files":   len(files),
	}).Info("已提交处理任务")

	return queued
}

// Recent 会话最近发起的处理任务
func (s *UploadService) Recent(sessionID string, limit int) (template.HTML, error) {
	if s.tasks == nil {
		return view.RenderRecentTasks(nil, 0), nil
	}
	tasks, total, err := s.tasks.ListBySession(sessionID, 0, limit)
	if err != nil {
		return "", fmt.Errorf("读取任务记录失败: %w", err)
	}
	rows := make([]view.TaskRow, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, view.TaskRow{
			TaskID:    t.TaskID,
			Status:    t.Status,
			FileCount: t.FileCount,
			StartedAt: t.StartedAt,
			Error:     t.ErrorMessage,
		})
	}
	return view.RenderRecentTasks(rows, total), nil
}

func (s *UploadService) reject(sessionID, message string) *dto.TaskSnapshot {
	snap := failedSnapshot(message)
	s.poller.Publish(sessionID, snap)
	return snap
}

// ProcessingHooks 任务完成时刷新数据概览并加载生成的通话记录，轮询结束时归还处理槽位
func ProcessingHooks(stats *StatsService, calls *CallRecordService, limiter redis_limiter.Limiter) PollHooks {
	return PollHooks{
		OnCompleted: func(ctx context.Context, sessionID string, snap *dto.TaskSnapshot) []*TaskEvent {
			events := []*TaskEvent{{Name: EventStats, HTML: stats.Overview(ctx)}}
			if snap.ExcelID != "" {
				events = append(events, &TaskEvent{
					Name: EventCallRecords,
					HTML: calls.LoadExcel(ctx, sessionID, snap.ExcelID, snap.ChartID),
				})
			}
			return events
		},
		OnFinish: func(sessionID, taskID string) {
			limiter.Release(context.Background(), ProcessingSlotKey)
		},
	}
}
