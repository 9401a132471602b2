// Package backend_client 封装对数据处理后端 HTTP 接口的调用
package backend_client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"inspect-go/internal/dto"
	"inspect-go/internal/metrics"
)

// API 后端接口，控制台的所有数据都经由它获取
type API interface {
	Search(ctx context.Context, params SearchParams) (*dto.SearchResponse, error)
	SearchHistory(ctx context.Context) (*dto.SearchHistoryResponse, error)
	ClearSearchHistory(ctx context.Context) error
	Favorites(ctx context.Context, page, pageSize int) (*dto.FavoritesResponse, error)
	AddFavorite(ctx context.Context, req dto.FavoriteRequest) (*dto.StatusResponse, error)
	RemoveFavorite(ctx context.Context, req dto.FavoriteRequest) (*dto.StatusResponse, error)
	Messages(ctx context.Context, page, pageSize int) (*dto.MessagesResponse, error)
	ConversationContext(ctx context.Context, messageID string, contextSize int, query string) (*dto.ContextResponse, error)
	Stats(ctx context.Context) (*dto.StatsResponse, error)
	StartProcessing(ctx context.Context, files []UploadFile) (*dto.StartProcessingResponse, error)
	TaskStatus(ctx context.Context, taskID string) (*dto.TaskStatus, error)
	CallRecords(ctx context.Context, excelID string) (*dto.CallRecordsResponse, error)
	UpdateChart(ctx context.Context, excelID string, callNum int) (*dto.ChartResponse, error)
	DownloadURL(kind, id string) string
}

// SearchParams 搜索参数
type SearchParams struct {
	Query       string
	Type        string
	Page        int
	PageSize    int
	ContextSize int
}

// UploadFile 待上传的文件
type UploadFile struct {
	Name   string
	Reader io.Reader
}

// Client 基于 resty 的 API 实现
type Client struct {
	rc      *resty.Client
	upload  *resty.Client
	baseURL string
	logger  *logrus.Logger
}

// NewClient 创建后端客户端
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	baseURL = strings.TrimRight(baseURL, "/")

	rc := newResty(baseURL, timeout, logger)
	return &Client{rc: rc, upload: rc, baseURL: baseURL, logger: logger}
}

func newResty(baseURL string, timeout time.Duration, logger *logrus.Logger) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetLogger(logger)
}

// SetUploadTimeout 上传文件使用单独的超时
func (c *Client) SetUploadTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.upload = newResty(c.baseURL, timeout, c.logger)
	}
	return c
}

// Search GET /api/search
func (c *Client) Search(ctx context.Context, params SearchParams) (*dto.SearchResponse, error) {
	req := c.rc.R().SetQueryParams(map[string]string{
		"q":            params.Query,
		"type":         params.Type,
		"page":         strconv.Itoa(params.Page),
		"page_size":    strconv.Itoa(params.PageSize),
		"context_size": strconv.Itoa(params.ContextSize),
	})

	var out dto.SearchResponse
	if err := c.do(ctx, "search", req, http.MethodGet, "/api/search", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchHistory GET /api/search-history
func (c *Client) SearchHistory(ctx context.Context) (*dto.SearchHistoryResponse, error) {
	var out dto.SearchHistoryResponse
	if err := c.do(ctx, "search_history", c.rc.R(), http.MethodGet, "/api/search-history", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearSearchHistory POST /api/search-history/clear
func (c *Client) ClearSearchHistory(ctx context.Context) error {
	var out dto.StatusResponse
	if err := c.do(ctx, "clear_search_history", c.rc.R(), http.MethodPost, "/api/search-history/clear", &out); err != nil {
		return err
	}
	if !out.OK() {
		return c.fail(&Error{Kind: ApplicationError, Op: "clear_search_history", Message: out.Reason()})
	}
	return nil
}

// Favorites GET /api/favorites
func (c *Client) Favorites(ctx context.Context, page, pageSize int) (*dto.FavoritesResponse, error) {
	req := c.rc.R().SetQueryParams(map[string]string{
		"page":      strconv.Itoa(page),
		"page_size": strconv.Itoa(pageSize),
	})

	var out dto.FavoritesResponse
	if err := c.do(ctx, "favorites", req, http.MethodGet, "/api/favorites", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddFavorite POST /api/favorites/add，status 为 info 表示已收藏，同样视为成功
func (c *Client) AddFavorite(ctx context.Context, body dto.FavoriteRequest) (*dto.StatusResponse, error) {
	var out dto.StatusResponse
	if err := c.do(ctx, "favorite_add", c.rc.R().SetBody(body), http.MethodPost, "/api/favorites/add", &out); err != nil {
		return nil, err
	}
	if !out.OK("info") {
		return nil, c.fail(&Error{Kind: ApplicationError, Op: "favorite_add", Message: out.Reason()})
	}
	return &out, nil
}

// RemoveFavorite POST /api/favorites/remove
func (c *Client) RemoveFavorite(ctx context.Context, body dto.FavoriteRequest) (*dto.StatusResponse, error) {
	body.Query = ""
	var out dto.StatusResponse
	if err := c.do(ctx, "favorite_remove", c.rc.R().SetBody(body), http.MethodPost, "/api/favorites/remove", &out); err != nil {
		return nil, err
	}
	if !out.OK() {
		return nil, c.fail(&Error{Kind: ApplicationError, Op: "favorite_remove", Message: out.Reason()})
	}
	return &out, nil
}

// Messages GET /api/messages
func (c *Client) Messages(ctx context.Context, page, pageSize int) (*dto.MessagesResponse, error) {
	req := c.rc.R().SetQueryParams(map[string]string{
		"page":      strconv.Itoa(page),
		"page_size": strconv.Itoa(pageSize),
	})

	var out dto.MessagesResponse
	if err := c.do(ctx, "messages", req, http.MethodGet, "/api/messages", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConversationContext GET /api/conversation-context
func (c *Client) ConversationContext(ctx context.Context, messageID string, contextSize int, query string) (*dto.ContextResponse, error) {
	req := c.rc.R().SetQueryParams(map[string]string{
		"message_id":   messageID,
		"context_size": strconv.Itoa(contextSize),
		"q":            query,
	})

	var out dto.ContextResponse
	if err := c.do(ctx, "conversation_context", req, http.MethodGet, "/api/conversation-context", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats GET /api/stats
func (c *Client) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	var out dto.StatsResponse
	if err := c.do(ctx, "stats", c.rc.R(), http.MethodGet, "/api/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartProcessing POST /api/start-processing，文件以 files[] 字段上传
func (c *Client) StartProcessing(ctx context.Context, files []UploadFile) (*dto.StartProcessingResponse, error) {
	req := c.upload.R()
	for _, f := range files {
		req.SetFileReader("files[]", f.Name, f.Reader)
	}

	var out dto.StartProcessingResponse
	if err := c.do(ctx, "start_processing", req, http.MethodPost, "/api/start-processing", &out); err != nil {
		return nil, err
	}
	if out.Status != "started" || out.TaskID == "" {
		msg := out.Reason()
		if msg == "" {
			msg = "启动处理失败。"
		}
		return nil, c.fail(&Error{Kind: ApplicationError, Op: "start_processing", Message: msg})
	}
	return &out, nil
}

// TaskStatus GET /api/task-status/{id}
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*dto.TaskStatus, error) {
	req := c.rc.R().SetPathParam("id", taskID)

	var out dto.TaskStatus
	if err := c.do(ctx, "task_status", req, http.MethodGet, "/api/task-status/{id}", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CallRecords GET /api/call-records/all-call-records
func (c *Client) CallRecords(ctx context.Context, excelID string) (*dto.CallRecordsResponse, error) {
	req := c.rc.R().SetQueryParam("excel_id", excelID)

	var out dto.CallRecordsResponse
	if err := c.do(ctx, "call_records", req, http.MethodGet, "/api/call-records/all-call-records", &out); err != nil {
		return nil, err
	}
	if !out.OK() {
		return nil, c.fail(&Error{Kind: ApplicationError, Op: "call_records", Message: out.Reason()})
	}
	return &out, nil
}

// UpdateChart POST /api/call-records/update-chart
func (c *Client) UpdateChart(ctx context.Context, excelID string, callNum int) (*dto.ChartResponse, error) {
	req := c.rc.R().SetBody(dto.ChartRequest{ExcelID: excelID, CallNum: callNum})

	var out dto.ChartResponse
	if err := c.do(ctx, "update_chart", req, http.MethodPost, "/api/call-records/update-chart", &out); err != nil {
		return nil, err
	}
	if !out.OK() {
		return nil, c.fail(&Error{Kind: ApplicationError, Op: "update_chart", Message: out.Reason()})
	}
	return &out, nil
}

// DownloadURL 通话记录文件的下载地址，浏览器直接跳转，不经由客户端获取
func (c *Client) DownloadURL(kind, id string) string {
	return c.baseURL + "/api/call-records/download?" + url.Values{"type": {kind}, "id": {id}}.Encode()
}

// do 发送请求并按错误分类处理响应
func (c *Client) do(ctx context.Context, op string, req *resty.Request, method, path string, out interface{}) error {
	start := time.Now()
	resp, err := req.SetContext(ctx).Execute(method, path)
	metrics.BackendLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return c.fail(&Error{Kind: NetworkFailure, Op: op, Err: err})
	}

	status := resp.StatusCode()
	if status == http.StatusNotFound {
		return c.fail(&Error{Kind: NotFound, Op: op, StatusCode: status, Message: reasonOf(resp.Body())})
	}
	if status < 200 || status >= 300 {
		return c.fail(&Error{Kind: NetworkFailure, Op: op, StatusCode: status, Message: reasonOf(resp.Body())})
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return c.fail(&Error{Kind: MalformedResponse, Op: op, StatusCode: status, Err: err})
		}
	}

	metrics.BackendRequests.WithLabelValues(op, "ok").Inc()
	return nil
}

func (c *Client) fail(e *Error) error {
	metrics.BackendRequests.WithLabelValues(e.Op, string(e.Kind)).Inc()
	entry := c.logger.WithFields(logrus.Fields{
		"op":     e.Op,
		"kind":   e.Kind,
		"status": e.StatusCode,
	})
	if e.Kind == NetworkFailure || e.Kind == MalformedResponse {
		entry.WithError(e).Warn("后端调用失败")
	} else {
		entry.Debug(e.Error())
	}
	return e
}

// reasonOf 从错误响应体中取 message 或 error 字段
func reasonOf(body []byte) string {
	var env dto.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Reason()
}

var _ API = (*Client)(nil)
