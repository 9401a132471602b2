package models

import "time"

// 列表渲染状态
const (
	ListIdle      = "idle"
	ListLoading   = "loading"
	ListPopulated = "populated"
	ListEmpty     = "empty"
	ListError     = "error"
)

// ListState 会话中某个列表的状态
type ListState struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	SessionID string `gorm:"size:64;not null;uniqueIndex:idx_session_list" json:"session_id"`
	List      string `gorm:"size:32;not null;uniqueIndex:idx_session_list" json:"list"`

	Page       int    `gorm:"default:1" json:"page"`
	TotalPages int    `gorm:"default:0" json:"total_pages"`
	PageSize   int    `gorm:"default:0" json:"page_size"`
	Query      string `gorm:"type:text" json:"query"`
	SearchType string `gorm:"size:32" json:"search_type"`

	Status     string `gorm:"size:16;default:'idle'" json:"status"`
	Generation int64  `gorm:"default:0" json:"generation"`
	// ItemCount 当前页已渲染的记录数，收藏移除时递减
	ItemCount int    `gorm:"default:0" json:"item_count"`
	LastError string `gorm:"type:text" json:"last_error"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ListState) TableName() string {
	return "list_states"
}

// Normalize 保证 1 <= Page <= max(TotalPages, 1)
func (s *ListState) Normalize() {
	if s.TotalPages < 0 {
		s.TotalPages = 0
	}
	if s.Page < 1 {
		s.Page = 1
	}
	if upper := max(s.TotalPages, 1); s.Page > upper {
		s.Page = upper
	}
}

// CallSelection 会话最近一次处理得到的通话记录文件
type CallSelection struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	SessionID string    `gorm:"size:64;not null;uniqueIndex" json:"session_id"`
	ExcelID   string    `gorm:"size:255" json:"excel_id"`
	ChartID   string    `gorm:"size:255" json:"chart_id"`
	Threshold int       `gorm:"default:0" json:"threshold"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (CallSelection) TableName() string {
	return "call_selections"
}
