package dto

import "encoding/json"

// Envelope 后端通用状态字段
// 后端部分接口返回 status，部分返回 success；错误信息可能在 message 或 error 中
type Envelope struct {
	Status  string `json:"status,omitempty"`
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK 判断是否为成功状态，accepted 为额外视为成功的 status 值
func (e Envelope) OK(accepted ...string) bool {
	if e.Success != nil && *e.Success {
		return true
	}
	if e.Status == "success" {
		return true
	}
	for _, s := range accepted {
		if e.Status == s {
			return true
		}
	}
	return false
}

// Reason 返回后端给出的失败原因
func (e Envelope) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// Pagination 分页字段
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// SearchHit 搜索结果项
type SearchHit struct {
	Data *ResultRecord `json:"data"`
}

// UnmarshalJSON 结果项本身格式不对时转为出错记录，不影响其他结果
func (h *SearchHit) UnmarshalJSON(data []byte) error {
	var hit struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &hit); err != nil {
		h.Data = &ResultRecord{DecodeErr: err}
		return nil
	}
	h.Data = nil
	if len(hit.Data) == 0 || string(hit.Data) == "null" {
		return nil
	}
	rec := &ResultRecord{}
	if err := json.Unmarshal(hit.Data, rec); err != nil {
		rec.DecodeErr = err
	}
	h.Data = rec
	return nil
}

// SearchResponse GET /api/search
type SearchResponse struct {
	Envelope
	Pagination
	Results    []SearchHit `json:"results"`
	SearchType string      `json:"search_type"`
	Query      string      `json:"query"`
}

// FavoritesResponse GET /api/favorites
type FavoritesResponse struct {
	Envelope
	Pagination
	Results       []SearchHit `json:"results"`
	NotFoundCount int         `json:"not_found_count"`
}

// MessagesResponse GET /api/messages
type MessagesResponse struct {
	Envelope
	Pagination
	Messages []*ResultRecord `json:"messages"`
}

// ContextResponse GET /api/conversation-context
type ContextResponse struct {
	Envelope
	Context []*ResultRecord `json:"context"`
}

// SearchHistoryResponse GET /api/search-history
type SearchHistoryResponse struct {
	Envelope
	SearchHistory []string `json:"search_history"`
}

// StatusResponse 只有状态字段的响应，用于收藏和清空历史
type StatusResponse struct {
	Envelope
}

// FavoriteRequest POST /api/favorites/add 与 /api/favorites/remove
type FavoriteRequest struct {
	Type  string `json:"type" validate:"required,record_type"`
	ID    string `json:"id" validate:"required"`
	Query string `json:"query,omitempty"`
}

// StatsResponse GET /api/stats
type StatsResponse struct {
	Envelope
	ContactsCount       int64 `json:"contacts_count"`
	MessagesCount       int64 `json:"messages_count"`
	AppSummaryCount     int64 `json:"app_summary_count"`
	WechatGroupsCount   int64 `json:"wechat_groups_count"`
	WechatContactsCount int64 `json:"wechat_contacts_count"`
	CallRecordsCount    int64 `json:"call_records_count"`
	SuccessFiles        int64 `json:"success_files"`
}

// StartProcessingResponse POST /api/start-processing
type StartProcessingResponse struct {
	Envelope
	TaskID string `json:"task_id"`
}

// ResultFiles 任务完成后生成的文件标识
type ResultFiles struct {
	Excel string `json:"excel"`
	Chart string `json:"chart"`
}

// TaskStatus GET /api/task-status/{id}
type TaskStatus struct {
	Envelope
	TaskID         string       `json:"task_id"`
	TotalFiles     int64        `json:"total_files"`
	ProcessedFiles int64        `json:"processed_files"`
	SuccessFiles   int64        `json:"success_files"`
	FailedFiles    int64        `json:"failed_files"`
	CurrentBatch   int64        `json:"current_batch"`
	TotalBatches   int64        `json:"total_batches"`
	Progress       float64      `json:"progress"`
	ErrorText      string       `json:"error"`
	BatchErrors    []string     `json:"batch_errors"`
	StartTime      FlexString   `json:"start_time"`
	ResultFiles    *ResultFiles `json:"result_files,omitempty"`
}

// TopContact 通话最多的联系人
type TopContact struct {
	Phone         FlexString `json:"phone"`
	CallCount     int64      `json:"call_count"`
	TotalDuration string     `json:"total_duration"`
	TotalSeconds  int64      `json:"total_seconds"`
}

// TimeRange 通话时间范围
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CallStats 通话统计
type CallStats struct {
	TotalCalls    int64        `json:"total_calls"`
	TotalDuration string       `json:"total_duration"`
	DeletedCalls  int64        `json:"deleted_calls"`
	TimeRange     *TimeRange   `json:"time_range,omitempty"`
	TopContacts   []TopContact `json:"top_contacts"`
}

// CallRecordsResponse GET /api/call-records/all-call-records
type CallRecordsResponse struct {
	Envelope
	Stats *CallStats `json:"stats"`
}

// ChartRequest POST /api/call-records/update-chart
type ChartRequest struct {
	ExcelID string `json:"excel_id"`
	CallNum int    `json:"call_num"`
}

// ChartResponse POST /api/call-records/update-chart
type ChartResponse struct {
	Envelope
	ChartPath string `json:"chart_path"`
	ChartID   string `json:"chart_id"`
	ChartData string `json:"chart_data"`
}
