package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"inspect-go/internal/dto"
	"inspect-go/internal/middleware"
	"inspect-go/internal/service"
	"inspect-go/internal/utils"
	"inspect-go/internal/view"
)

// CallRecordHandler 通话记录
type CallRecordHandler struct {
	calls  *service.CallRecordService
	logger *logrus.Logger
}

// NewCallRecordHandler 创建通话记录处理器
func NewCallRecordHandler(calls *service.CallRecordService, logger *logrus.Logger) *CallRecordHandler {
	return &CallRecordHandler{calls: calls, logger: logger}
}

// Load 通话记录统计、图表和排行
func (h *CallRecordHandler) Load(c *gin.Context) {
	utils.Fragment(c, h.calls.Load(c.Request.Context(), middleware.GetSessionID(c)))
}

// UpdateChart 按阈值更新图表
func (h *CallRecordHandler) UpdateChart(c *gin.Context) {
	var q dto.ChartQuery
	if err := c.ShouldBind(&q); err != nil {
		utils.Fragment(c, view.ErrorBox(utils.FormatValidationError(err).Error()))
		return
	}
	utils.Fragment(c, h.calls.UpdateChart(c.Request.Context(), middleware.GetSessionID(c), q.CallNum))
}

// Download 跳转到后端的下载地址
func (h *CallRecordHandler) Download(c *gin.Context) {
	var q dto.DownloadQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.HTML(c, http.StatusBadRequest, view.ErrorBox(utils.FormatValidationError(err).Error()))
		return
	}

	target, err := h.calls.DownloadURL(middleware.GetSessionID(c), q.Type)
	if err != nil {
		utils.HTML(c, http.StatusNotFound, view.ErrorBox(err.Error()))
		return
	}
	c.Redirect(http.StatusFound, target)
}
