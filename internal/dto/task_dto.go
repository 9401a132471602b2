package dto

import "time"

// 任务状态
const (
	TaskQueued          = "queued"
	TaskProcessing      = "processing"
	TaskProcessingBatch = "processing_batch"
	TaskCompleted       = "completed"
	TaskError           = "error"

	// 以下为控制台自身产生的状态
	TaskUploading  = "uploading"
	TaskNotFound   = "not_found"
	TaskUnexpected = "unexpected"
	TaskStopped    = "stopped"
)

// 快照提示级别
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelError   = "error"
)

// TaskSnapshot 轮询得到的任务进度快照，推送给 SSE 订阅者
type TaskSnapshot struct {
	TaskID         string    `json:"task_id"`
	Seq            int64     `json:"seq"`
	Status         string    `json:"status"`
	Progress       int       `json:"progress"`
	TotalFiles     int64     `json:"total_files"`
	ProcessedFiles int64     `json:"processed_files"`
	SuccessFiles   int64     `json:"success_files"`
	FailedFiles    int64     `json:"failed_files"`
	CurrentBatch   int64     `json:"current_batch"`
	TotalBatches   int64     `json:"total_batches"`
	Message        string    `json:"message"`
	Level          string    `json:"level"`
	Errors         []string  `json:"errors,omitempty"`
	Terminal       bool      `json:"terminal"`
	UploadEnabled  bool      `json:"upload_enabled"`
	ExcelID        string    `json:"excel_id,omitempty"`
	ChartID        string    `json:"chart_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
