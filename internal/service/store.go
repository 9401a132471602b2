package service

import (
	"time"

	"inspect-go/internal/models"
	"inspect-go/internal/repository"
)

// StateStore 会话界面状态的读写
type StateStore interface {
	GetListState(sessionID, list string) (*models.ListState, error)
	SaveListState(state *models.ListState) error
	GetCallSelection(sessionID string) (*models.CallSelection, error)
	SaveCallSelection(sel *models.CallSelection) error
}

// TaskStore 处理任务记录的读写
type TaskStore interface {
	Create(task *models.ProcessingTask) error
	LatestBySession(sessionID string) (*models.ProcessingTask, error)
	UpdateSnapshot(taskID, status string, snapshot models.JSONMap, errorMessage string, terminal bool) error
	ListBySession(sessionID string, offset, limit int) ([]models.ProcessingTask, int64, error)
}

// StaleStateSweeper 清理过期会话的界面状态
type StaleStateSweeper interface {
	DeleteStale(before time.Time) (int64, error)
}

var (
	_ StateStore = (*repository.UIStateRepository)(nil)
	_ TaskStore  = (*repository.TaskRepository)(nil)

	_ StaleStateSweeper = (*repository.UIStateRepository)(nil)
)
