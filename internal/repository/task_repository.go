package repository

import (
	"errors"
	"time"

	"inspect-go/internal/models"

	"gorm.io/gorm"
)

// TaskRepository 处理任务数据访问层
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务Repository
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create 创建任务
func (r *TaskRepository) Create(task *models.ProcessingTask) error {
	return r.db.Create(task).Error
}

// LatestBySession 获取会话最近发起的任务，不存在时返回 nil
func (r *TaskRepository) LatestBySession(sessionID string) (*models.ProcessingTask, error) {
	var task models.ProcessingTask
	err := r.db.Where("session_id = ?", sessionID).Order("started_at DESC, id DESC").First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateSnapshot 更新任务状态和最新快照，终态时记录完成时间
func (r *TaskRepository) UpdateSnapshot(taskID, status string, snapshot models.JSONMap, errorMessage string, terminal bool) error {
	updates := map[string]interface{}{
		"status":        status,
		"snapshot":      snapshot,
		"error_message": errorMessage,
	}
	if terminal {
		updates["finished_at"] = time.Now()
	}

	return r.db.Model(&models.ProcessingTask{}).Where("task_id = ?", taskID).Updates(updates).Error
}

// ListBySession 分页获取会话的任务
func (r *TaskRepository) ListBySession(sessionID string, offset, limit int) ([]models.ProcessingTask, int64, error) {
	var tasks []models.ProcessingTask
	var total int64

	query := r.db.Model(&models.ProcessingTask{}).Where("session_id = ?", sessionID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("started_at DESC, id DESC").Offset(offset).Limit(limit).Find(&tasks).Error
	return tasks, total, err
}
