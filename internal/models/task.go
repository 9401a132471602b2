package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ProcessingTask 会话发起的后端处理任务
type ProcessingTask struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	TaskID       string     `gorm:"uniqueIndex;size:100;not null" json:"task_id"`
	SessionID    string     `gorm:"size:64;not null;index" json:"session_id"`
	Status       string     `gorm:"size:20;default:'queued'" json:"status"`
	FileCount    int        `gorm:"default:0" json:"file_count"`
	Snapshot     JSONMap    `gorm:"type:text" json:"snapshot"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
}

// TableName 指定表名
func (ProcessingTask) TableName() string {
	return "processing_tasks"
}

// JSONMap 自定义JSON类型
type JSONMap map[string]interface{}

// Scan 实现sql.Scanner接口
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONMap)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("无法解析JSONMap: %T", value)
	}

	return json.Unmarshal(bytes, j)
}

// Value 实现driver.Valuer接口
func (j JSONMap) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ToJSONMap 把结构体转为 JSONMap
func ToJSONMap(v interface{}) (JSONMap, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m JSONMap
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Decode 把 JSONMap 解码到结构体
func (j JSONMap) Decode(v interface{}) error {
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
