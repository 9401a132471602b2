package service

import (
	"context"
	"errors"
	"fmt"
	"html/template"

	"github.com/sirupsen/logrus"

	"inspect-go/internal/config"
	"inspect-go/internal/models"
	"inspect-go/internal/view"
	"inspect-go/pkg/backend_client"
)

// ErrNoCallRecords 会话还没有可用的通话记录文件
var ErrNoCallRecords = errors.New("请先加载通话记录数据。")

// CallRecordService 通话记录统计、图表和下载
type CallRecordService struct {
	api    backend_client.API
	store  StateStore
	cfg    *config.UIConfig
	logger *logrus.Logger
}

// NewCallRecordService 创建通话记录服务
func NewCallRecordService(api backend_client.API, store StateStore, cfg *config.UIConfig, logger *logrus.Logger) *CallRecordService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CallRecordService{api: api, store: store, cfg: cfg, logger: logger}
}

func (s *CallRecordService) threshold(sel *models.CallSelection) int {
	if sel != nil && sel.Threshold > 0 {
		return sel.Threshold
	}
	if s.cfg.DefaultCallThreshold > 0 {
		return s.cfg.DefaultCallThreshold
	}
	return 5
}

// Select 记录任务生成的通话记录文件，chartID 可为空
func (s *CallRecordService) Select(sessionID, excelID, chartID string) (*models.CallSelection, error) {
	sel, err := s.store.GetCallSelection(sessionID)
	if err != nil {
		return nil, fmt.Errorf("读取通话记录选择失败: %w", err)
	}
	if sel == nil {
		sel = &models.CallSelection{SessionID: sessionID}
	}
	sel.ExcelID = excelID
	sel.ChartID = chartID
	if err := s.store.SaveCallSelection(sel); err != nil {
		return nil, fmt.Errorf("保存通话记录选择失败: %w", err)
	}
	return sel, nil
}

// Load 加载会话当前通话记录的统计、排行和图表
func (s *CallRecordService) Load(ctx context.Context, sessionID string) template.HTML {
	sel, err := s.store.GetCallSelection(sessionID)
	if err != nil {
		s.logger.WithError(err).Warn("读取通话记录选择失败")
		return view.CallRecordsError("加载通话数据出错: " + err.Error())
	}
	if sel == nil || sel.ExcelID == "" {
		return view.CallRecordsError(ErrNoCallRecords.Error())
	}

	resp, err := s.api.CallRecords(ctx, sel.ExcelID)
	if err != nil {
		s.logger.WithError(err).WithField("excel_id", sel.ExcelID).Warn("加载通话数据失败")
		if backend_client.IsApplicationError(err) {
			return view.CallRecordsError("加载通话数据失败: " + backend_client.Message(err))
		}
		return view.CallRecordsError("加载通话数据出错: " + backend_client.Message(err))
	}

	threshold := s.threshold(sel)
	chart, chartReady := s.chart(ctx, sel, threshold)
	return view.CallRecordsPanel(resp.Stats, chart, threshold, chartReady)
}

// LoadExcel 选定通话记录文件后立即加载
func (s *CallRecordService) LoadExcel(ctx context.Context, sessionID, excelID, chartID string) template.HTML {
	if _, err := s.Select(sessionID, excelID, chartID); err != nil {
		s.logger.WithError(err).Warn("保存通话记录选择失败")
		return view.CallRecordsError("加载通话数据出错: " + err.Error())
	}
	return s.Load(ctx, sessionID)
}

// UpdateChart 按通话次数阈值重新生成图表
func (s *CallRecordService) UpdateChart(ctx context.Context, sessionID string, callNum int) template.HTML {
	sel, err := s.store.GetCallSelection(sessionID)
	if err != nil {
		s.logger.WithError(err).Warn("读取通话记录选择失败")
		return view.ErrorBox("加载图表出错: " + err.Error())
	}
	if sel == nil || sel.ExcelID == "" {
		return view.ErrorBox(ErrNoCallRecords.Error())
	}
	if callNum > 0 {
		sel.Threshold = callNum
	}

	chart, _ := s.chart(ctx, sel, s.threshold(sel))
	return chart
}

// chart 获取图表预览，成功时保存图表ID和阈值
func (s *CallRecordService) chart(ctx context.Context, sel *models.CallSelection, threshold int) (template.HTML, bool) {
	resp, err := s.api.UpdateChart(ctx, sel.ExcelID, threshold)
	if err != nil {
		s.logger.WithError(err).WithField("excel_id", sel.ExcelID).Warn("加载图表失败")
		if backend_client.IsApplicationError(err) {
			return view.ErrorBox("加载图表失败: " + backend_client.Message(err)), false
		}
		return view.ErrorBox("加载图表出错: " + backend_client.Message(err)), false
	}

	sel.Threshold = threshold
	if resp.ChartID != "" {
		sel.ChartID = resp.ChartID
	}
	if err := s.store.SaveCallSelection(sel); err != nil {
		s.logger.WithError(err).Warn("保存通话记录选择失败")
	}
	return view.RenderChart(resp.ChartData), resp.ChartData != ""
}

// DownloadURL 下载地址；图表没有生成时返回错误
func (s *CallRecordService) DownloadURL(sessionID, kind string) (string, error) {
	sel, err := s.store.GetCallSelection(sessionID)
	if err != nil {
		return "", fmt.Errorf("读取通话记录选择失败: %w", err)
	}
	if sel == nil || sel.ExcelID == "" {
		return "", ErrNoCallRecords
	}

	id := sel.ExcelID
	if kind == "chart" {
		if sel.ChartID == "" {
			return "", errors.New("无图表可下载。")
		}
		id = sel.ChartID
	}
	return s.api.DownloadURL(kind, id), nil
}
