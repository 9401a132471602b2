package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"inspect-go/internal/dto"
	"inspect-go/internal/service"
	"inspect-go/internal/utils"
	"inspect-go/pkg/backend_client"
)

// OverviewHandler 数据概览和搜索历史
type OverviewHandler struct {
	stats   *service.StatsService
	history *service.SearchHistoryService
	logger  *logrus.Logger
}

// NewOverviewHandler 创建概览处理器
func NewOverviewHandler(stats *service.StatsService, history *service.SearchHistoryService, logger *logrus.Logger) *OverviewHandler {
	return &OverviewHandler{stats: stats, history: history, logger: logger}
}

// Stats 数据概览
func (h *OverviewHandler) Stats(c *gin.Context) {
	utils.Fragment(c, h.stats.Overview(c.Request.Context()))
}

// History 搜索历史
func (h *OverviewHandler) History(c *gin.Context) {
	utils.Fragment(c, h.history.History(c.Request.Context()))
}

// Suggestions 搜索建议
func (h *OverviewHandler) Suggestions(c *gin.Context) {
	utils.Fragment(c, h.history.Suggestions(c.Request.Context(), c.Query("q")))
}

// ClearHistory 清空搜索历史
func (h *OverviewHandler) ClearHistory(c *gin.Context) {
	html, err := h.history.Clear(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Warn("清空搜索历史失败")
		utils.Notify(c, dto.LevelError, "清空搜索历史失败: "+backend_client.Message(err))
		return
	}
	utils.Fragment(c, html)
}
