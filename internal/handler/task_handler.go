package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"inspect-go/internal/dto"
	"inspect-go/internal/middleware"
	"inspect-go/internal/service"
	"inspect-go/internal/utils"
	"inspect-go/internal/view"
	"inspect-go/pkg/backend_client"
)

// UploadField 上传表单中的文件字段
const UploadField = "files[]"

const keepAliveInterval = 15 * time.Second

// recentTaskLimit 最近上传列表的条数
const recentTaskLimit = 5

// TaskHandler 上传处理和任务进度
type TaskHandler struct {
	uploads   *service.UploadService
	poller    *service.TaskPoller
	maxUpload int64
	logger    *logrus.Logger

	// closing 关闭后所有 SSE 连接结束
	closing   chan struct{}
	closeOnce sync.Once
}

// NewTaskHandler 创建任务处理器，maxUpload 为单次上传的字节上限
func NewTaskHandler(uploads *service.UploadService, poller *service.TaskPoller, maxUpload int64, logger *logrus.Logger) *TaskHandler {
	return &TaskHandler{
		uploads:   uploads,
		poller:    poller,
		maxUpload: maxUpload,
		logger:    logger,
		closing:   make(chan struct{}),
	}
}

// Close 结束所有进行中的 SSE 连接，服务关闭时调用
func (h *TaskHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.closing)
	})
}

// Upload 接收 JSON 文件并开始处理，返回进度面板
func (h *TaskHandler) Upload(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	var headers []*multipart.FileHeader
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			snap := &dto.TaskSnapshot{
				Status:        dto.TaskError,
				Message:       fmt.Sprintf("上传请求失败: 文件总大小超过 %d MB", h.maxUpload>>20),
				Level:         dto.LevelError,
				Terminal:      true,
				UploadEnabled: true,
			}
			h.poller.Publish(sessionID, snap)
			utils.Fragment(c, view.RenderTaskPanel(snap))
			return
		}
		// 没有文件字段时按未选择文件处理
		h.logger.WithError(err).Debug("解析上传表单失败")
	} else {
		headers = form.File[UploadField]
	}

	files := make([]backend_client.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.logger.WithError(err).WithField("file", fh.Filename).Warn("打开上传文件失败")
			continue
		}
		defer f.Close()
		files = append(files, backend_client.UploadFile{Name: fh.Filename, Reader: f})
	}

	snap := h.uploads.Start(c.Request.Context(), sessionID, files)
	utils.Fragment(c, view.RenderTaskPanel(snap))
}

// Status 当前任务的进度面板，页面加载或重连时使用
func (h *TaskHandler) Status(c *gin.Context) {
	utils.Fragment(c, view.RenderTaskPanel(h.poller.Latest(middleware.GetSessionID(c))))
}

// Recent 会话最近的上传记录
func (h *TaskHandler) Recent(c *gin.Context) {
	html, err := h.uploads.Recent(middleware.GetSessionID(c), recentTaskLimit)
	if err != nil {
		h.logger.WithError(err).Warn("加载上传记录失败")
		utils.Fragment(c, view.ErrorBox("加载上传记录失败"))
		return
	}
	utils.Fragment(c, html)
}

// Events 推送任务进度和需要刷新的片段(SSE)
func (h *TaskHandler) Events(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	events, history, unsubscribe := h.poller.Subscribe(sessionID)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	// 先发送历史事件
	for _, ev := range history {
		h.send(c, ev)
	}
	c.Writer.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.WithField("session", sessionID).Debug("SSE 客户端断开连接")
			return
		case <-h.closing:
			h.logger.WithField("session", sessionID).Debug("服务关闭，结束 SSE 连接")
			return
		case <-keepAlive.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			c.Writer.Flush()
		case ev := <-events:
			h.send(c, ev)
			c.Writer.Flush()
		}
	}
}

func (h *TaskHandler) send(c *gin.Context, ev *service.TaskEvent) {
	data := ev.HTML
	if ev.Snapshot != nil {
		data = view.RenderTaskPanel(ev.Snapshot)
	}
	c.SSEvent(ev.Name, string(data))
}
