package service

import (
	"context"
	"html/template"
	"time"

	"github.com/sirupsen/logrus"

	"inspect-go/internal/view"
	"inspect-go/pkg/backend_client"
)

// StatsService 数据概览
type StatsService struct {
	api    backend_client.API
	logger *logrus.Logger
	now    func() time.Time
}

// NewStatsService 创建数据概览服务
func NewStatsService(api backend_client.API, logger *logrus.Logger) *StatsService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StatsService{api: api, logger: logger, now: time.Now}
}

// Overview 渲染数据概览
func (s *StatsService) Overview(ctx context.Context) template.HTML {
	stats, err := s.api.Stats(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("加载统计数据失败")
		return view.ErrorBox("加载统计数据失败: " + backend_client.Message(err))
	}
	return view.RenderStats(stats, s.now())
}
