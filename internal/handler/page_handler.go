package handler

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"inspect-go/internal/view"
)

// PageHandler 首页
type PageHandler struct {
	tmpl   *template.Template
	title  string
	logger *logrus.Logger
}

// NewPageHandler 创建首页处理器
func NewPageHandler(tmpl *template.Template, title string, logger *logrus.Logger) *PageHandler {
	return &PageHandler{tmpl: tmpl, title: title, logger: logger}
}

// Index 渲染控制台页面，各区域由 htmx 加载
func (h *PageHandler) Index(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := h.tmpl.ExecuteTemplate(c.Writer, "index.html", view.NewIndexData(h.title)); err != nil {
		h.logger.WithError(err).Error("渲染首页失败")
	}
}
