package repository

import (
	"errors"
	"time"

	"inspect-go/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UIStateRepository 会话界面状态的数据访问层
type UIStateRepository struct {
	db *gorm.DB
}

// NewUIStateRepository 创建界面状态Repository
func NewUIStateRepository(db *gorm.DB) *UIStateRepository {
	return &UIStateRepository{db: db}
}

// GetListState 获取列表状态，不存在时返回未保存的初始状态
func (r *UIStateRepository) GetListState(sessionID, list string) (*models.ListState, error) {
	var state models.ListState
	err := r.db.Where("session_id = ? AND list = ?", sessionID, list).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.ListState{
			SessionID: sessionID,
			List:      list,
			Page:      1,
			Status:    models.ListIdle,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveListState 保存列表状态
func (r *UIStateRepository) SaveListState(state *models.ListState) error {
	if state.ID != 0 {
		return r.db.Save(state).Error
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "list"}},
		UpdateAll: true,
	}).Create(state).Error
}

// DeleteStale 删除 before 之前最后更新的界面状态，返回删除的行数
func (r *UIStateRepository) DeleteStale(before time.Time) (int64, error) {
	var removed int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("updated_at < ?", before).Delete(&models.ListState{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected

		res = tx.Where("updated_at < ?", before).Delete(&models.CallSelection{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		return nil
	})
	return removed, err
}

// GetCallSelection 获取会话的通话记录选择，不存在时返回 nil
func (r *UIStateRepository) GetCallSelection(sessionID string) (*models.CallSelection, error) {
	var sel models.CallSelection
	err := r.db.Where("session_id = ?", sessionID).First(&sel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sel, nil
}

// SaveCallSelection 保存通话记录选择
func (r *UIStateRepository) SaveCallSelection(sel *models.CallSelection) error {
	if sel.ID != 0 {
		return r.db.Save(sel).Error
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(sel).Error
}
