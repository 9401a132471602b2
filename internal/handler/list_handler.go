package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"inspect-go/internal/dto"
	"inspect-go/internal/middleware"
	"inspect-go/internal/models"
	"inspect-go/internal/service"
	"inspect-go/internal/utils"
	"inspect-go/internal/view"
	"inspect-go/pkg/backend_client"
)

// ListHandler 搜索、收藏夹、聊天记录列表及其条目操作
type ListHandler struct {
	lists  *service.ListController
	logger *logrus.Logger
}

// NewListHandler 创建列表处理器
func NewListHandler(lists *service.ListController, logger *logrus.Logger) *ListHandler {
	return &ListHandler{lists: lists, logger: logger}
}

// Search 搜索
func (h *ListHandler) Search(c *gin.Context) {
	var q dto.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.Fragment(c, view.ErrorBox(utils.FormatValidationError(err).Error()))
		return
	}

	v, ok := h.load(c, view.ListSearch, q.Page, &service.LoadParams{Query: q.Q, SearchType: q.Type})
	if !ok {
		return
	}
	if v.Status != models.ListIdle {
		// 后端记录了新的搜索词
		utils.Trigger(c, "refresh-history")
	}
	utils.Fragment(c, v.HTML)
}

// Favorites 收藏夹
func (h *ListHandler) Favorites(c *gin.Context) {
	h.page(c, view.ListFavorites)
}

// Messages 聊天记录
func (h *ListHandler) Messages(c *gin.Context) {
	h.page(c, view.ListMessages)
}

func (h *ListHandler) page(c *gin.Context, list string) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.Fragment(c, view.ErrorBox(utils.FormatValidationError(err).Error()))
		return
	}
	if v, ok := h.load(c, list, q.Page, nil); ok {
		utils.Fragment(c, v.HTML)
	}
}

// load 加载列表；结果已被更新的请求取代时丢弃
func (h *ListHandler) load(c *gin.Context, list string, page int, params *service.LoadParams) (*service.ListView, bool) {
	v, err := h.lists.Load(c.Request.Context(), middleware.GetSessionID(c), list, page, params)
	if err != nil {
		h.logger.WithError(err).WithField("list", list).Error("加载列表失败")
		utils.Fragment(c, view.ErrorBox(err.Error()))
		return nil, false
	}
	if v.Stale {
		utils.Discard(c)
		return nil, false
	}
	return v, true
}

// ToggleFavorite 收藏或取消收藏
func (h *ListHandler) ToggleFavorite(c *gin.Context) {
	var req dto.ToggleFavoriteRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.Notify(c, dto.LevelError, utils.FormatValidationError(err).Error())
		return
	}

	res, err := h.lists.ToggleFavorite(c.Request.Context(), middleware.GetSessionID(c), req)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"type":   req.Type,
			"id":     req.ID,
			"action": req.Action,
		}).Warn("收藏操作失败")
		label := "添加收藏失败: "
		if req.Action == "remove" {
			label = "取消收藏失败: "
		}
		utils.Notify(c, dto.LevelError, label+backend_client.Message(err))
		return
	}

	switch {
	case res.Reload:
		utils.Retarget(c, view.RegionTarget(res.List), "innerHTML", res.HTML)
	case res.Removed:
		utils.Fragment(c, "")
	default:
		utils.Fragment(c, res.HTML)
	}
}

// Context 展开或收起消息上下文，同时带外替换按钮
func (h *ListHandler) Context(c *gin.Context) {
	var q dto.ContextQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.Fragment(c, view.ErrorBox(utils.FormatValidationError(err).Error()))
		return
	}

	v, err := h.lists.ToggleContext(c.Request.Context(), middleware.GetSessionID(c), q.List, c.Param("message_id"), q.Generation)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			h.logger.WithError(err).Error("加载上下文失败")
		}
		utils.Fragment(c, `<p class="error">加载上下文失败</p>`)
		return
	}
	if v.Stale {
		utils.Discard(c)
		return
	}
	utils.Fragment(c, v.HTML+v.Button)
}
