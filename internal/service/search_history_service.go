package service

import (
	"context"
	"html/template"
	"strings"

	"github.com/sirupsen/logrus"

	"inspect-go/internal/config"
	"inspect-go/internal/view"
	"inspect-go/pkg/backend_client"
)

// SearchHistoryService 搜索历史和搜索建议
type SearchHistoryService struct {
	api    backend_client.API
	cfg    *config.UIConfig
	logger *logrus.Logger
}

// NewSearchHistoryService 创建搜索历史服务
func NewSearchHistoryService(api backend_client.API, cfg *config.UIConfig, logger *logrus.Logger) *SearchHistoryService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SearchHistoryService{api: api, cfg: cfg, logger: logger}
}

func (s *SearchHistoryService) items(ctx context.Context) []string {
	resp, err := s.api.SearchHistory(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("加载搜索历史失败")
		return nil
	}
	return resp.SearchHistory
}

// History 渲染搜索历史，加载失败或为空时不显示
func (s *SearchHistoryService) History(ctx context.Context) template.HTML {
	return view.RenderSearchHistory(s.items(ctx), s.cfg.HistoryLimit)
}

// Suggestions 以 prefix 过滤搜索历史作为建议，prefix 为空时取最近的记录
func (s *SearchHistoryService) Suggestions(ctx context.Context, prefix string) template.HTML {
	items := s.items(ctx)
	prefix = strings.TrimSpace(prefix)
	if prefix != "" {
		matched := make([]string, 0, len(items))
		for _, item := range items {
			if strings.Contains(item, prefix) && item != prefix {
				matched = append(matched, item)
			}
		}
		items = matched
	}
	return view.RenderSuggestions(items, s.cfg.SuggestionLimit)
}

// Clear 清空搜索历史
func (s *SearchHistoryService) Clear(ctx context.Context) (template.HTML, error) {
	if err := s.api.ClearSearchHistory(ctx); err != nil {
		return "", err
	}
	return s.History(ctx), nil
}
