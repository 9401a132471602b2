package view

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"inspect-go/internal/dto"
)

// 其他片段接口和区域
const (
	HistoryPath      = "/ui/search/history"
	ClearHistoryPath = "/ui/search/history/clear"
	UploadPath       = "/ui/upload"
	ChartPath        = "/ui/call-records/chart"
	DownloadPath     = "/ui/call-records/download"

	HistoryTarget   = "#search-history"
	TaskPanelID     = "task-panel"
	UploadButtonID  = "uploadButton"
	CallChartTarget = "#call-chart"
)

var searchTypeNames = map[string]string{
	"combined": "混合",
	"keyword":  "关键词",
	"semantic": "语义",
	"sender":   "发送者",
}

// SearchTypeName 搜索类型的中文名
func SearchTypeName(t string) string {
	if name, ok := searchTypeNames[t]; ok {
		return name
	}
	return t
}

// Loading 加载中占位
func Loading(message string) template.HTML {
	if message == "" {
		message = "加载中..."
	}
	return template.HTML(fmt.Sprintf(`<div class="loading-indicator"><i class="fas fa-spinner fa-spin"></i><p>%s</p></div>`, EscapeText(message)))
}

// ListCallRecords 通话记录区域，用于加载占位
const ListCallRecords = "call-records"

var loadingMessages = map[string]string{
	ListSearch:      "搜索中...",
	ListCallRecords: "加载统计...",
}

// LoadingTarget 区域加载占位的选择器，作为 hx-indicator 使用
func LoadingTarget(list string) string {
	return "#" + list + "-loading"
}

// LoadingIndicator 区域的加载占位，请求进行中由 htmx 显示
func LoadingIndicator(list string) template.HTML {
	return template.HTML(fmt.Sprintf(`<div id="%s-loading" class="htmx-indicator list-loading">%s</div>`,
		EscapeText(list), Loading(loadingMessages[list])))
}

// ErrorBox 错误提示
func ErrorBox(message string) template.HTML {
	return template.HTML(fmt.Sprintf(`<div class="error-message"><i class="fas fa-exclamation-circle"></i><p>%s</p></div>`, EscapeText(message)))
}

// NoResults 无结果提示，message 为已转义的 HTML
func NoResults(message template.HTML) template.HTML {
	return template.HTML(fmt.Sprintf(`<div class="no-results-message"><i class="fas fa-search"></i><p>%s</p></div>`, message))
}

// NoSearchResults 搜索无结果，提示中带上搜索词
func NoSearchResults(query string) template.HTML {
	return NoResults(template.HTML(fmt.Sprintf(`没有找到与 "<strong>%s</strong>" 相关的结果。`, EscapeText(query))))
}

// SearchSummary 搜索结果摘要
func SearchSummary(total int64, searchType string) template.HTML {
	return template.HTML(fmt.Sprintf(`<div class="results-summary">找到 %s 个结果 (搜索类型: %s)</div>`,
		FormatCount(total), EscapeText(SearchTypeName(searchType))))
}

// FavoritesSummary 收藏夹摘要
func FavoritesSummary(total int64, page, totalPages int) template.HTML {
	return template.HTML(fmt.Sprintf(`<div class="results-summary">共 %s 个收藏项 (第 %d/%d 页)</div>`, FormatCount(total), page, totalPages))
}

// MessagesSummary 消息列表摘要
func MessagesSummary(total int64, page, totalPages int) template.HTML {
	return template.HTML(fmt.Sprintf(`<div class="results-summary">共 %s 条记录 (第 %d/%d 页)</div>`, FormatCount(total), page, totalPages))
}

// ListRegion 组合列表区域：摘要、结果列表、分页
func ListRegion(list string, generation int64, summary template.HTML, items []template.HTML, pagination template.HTML) template.HTML {
	var b strings.Builder
	b.WriteString(string(summary))
	fmt.Fprintf(&b, `<div class="results-list" data-list="%s" data-generation="%d">`, EscapeText(list), generation)
	for _, it := range items {
		b.WriteString(string(it))
	}
	b.WriteString(`</div>`)
	b.WriteString(string(pagination))
	return template.HTML(b.String())
}

func searchLink(query string) string {
	return SearchPath + "?" + url.Values{"q": {query}}.Encode()
}

// RenderSearchHistory 搜索历史，最多 limit 条，为空时不输出
func RenderSearchHistory(items []string, limit int) template.HTML {
	if len(items) == 0 {
		return ""
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="search-history-header"><div class="search-history-title"><i class="fas fa-history"></i> 搜索历史</div><button class="clear-history-btn" id="clearHistoryBtn" hx-post="%s" hx-confirm="确定要清空所有搜索历史吗？" hx-target="%s" hx-swap="innerHTML"><i class="fas fa-trash-alt"></i> 清空</button></div>`,
		ClearHistoryPath, HistoryTarget)
	b.WriteString(`<div class="search-history-items">`)
	for _, item := range items {
		q := EscapeText(item)
		fmt.Fprintf(&b, `<div class="history-item" data-query="%s" hx-get="%s" hx-target="%s" hx-swap="innerHTML" hx-indicator="%s"><i class="fas fa-search"></i> %s</div>`,
			q, EscapeText(searchLink(item)), RegionTarget(ListSearch), LoadingTarget(ListSearch), q)
	}
	b.WriteString(`</div>`)
	return template.HTML(b.String())
}

// RenderSuggestions 搜索建议，最多 limit 条
func RenderSuggestions(items []string, limit int) template.HTML {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	var b strings.Builder
	for _, item := range items {
		q := EscapeText(item)
		fmt.Fprintf(&b, `<div class="suggestion-item" data-query="%s" hx-get="%s" hx-target="%s" hx-swap="innerHTML" hx-indicator="%s">%s</div>`,
			q, EscapeText(searchLink(item)), RegionTarget(ListSearch), LoadingTarget(ListSearch), q)
	}
	return template.HTML(b.String())
}

// RenderStats 数据概览
func RenderStats(stats *dto.StatsResponse, updated time.Time) template.HTML {
	if stats == nil {
		stats = &dto.StatsResponse{}
	}

	cells := []struct {
		id, label string
		value     int64
	}{
		{"messageCount", "聊天消息", stats.MessagesCount},
		{"contactCount", "联系人", stats.ContactsCount},
		{"groupCount", "微信群组", stats.WechatGroupsCount},
		{"wechatContactCount", "微信联系人", stats.WechatContactsCount},
		{"fileCount", "已处理文件", stats.SuccessFiles},
		{"callRecordCount", "通话记录", stats.CallRecordsCount},
	}

	var b strings.Builder
	b.WriteString(`<div class="stats-grid">`)
	for _, c := range cells {
		fmt.Fprintf(&b, `<div class="stat-item"><div class="stat-value" id="%s">%s</div><div class="stat-label">%s</div></div>`,
			c.id, FormatCount(c.value), c.label)
	}
	b.WriteString(`</div>`)
	fmt.Fprintf(&b, `<div class="last-update" id="lastUpdateTime">最后更新: %s</div>`, updated.In(Location()).Format("2006-01-02 15:04"))
	return template.HTML(b.String())
}

// RenderCallStats 通话统计摘要
func RenderCallStats(stats *dto.CallStats) template.HTML {
	if stats == nil {
		return `<p>无统计数据</p>`
	}

	duration := stats.TotalDuration
	if duration == "" {
		duration = "0:00:00"
	}
	start, end := "N/A", "N/A"
	if stats.TimeRange != nil {
		if stats.TimeRange.Start != "" {
			start = stats.TimeRange.Start
		}
		if stats.TimeRange.End != "" {
			end = stats.TimeRange.End
		}
	}

	return template.HTML(fmt.Sprintf(`<p><strong>总通话次数:</strong> %s</p><p><strong>总通话时长:</strong> %s</p><p><strong>已删除通话:</strong> %s</p><p><strong>时间范围:</strong> %s - %s</p>`,
		FormatCount(stats.TotalCalls), EscapeText(duration), FormatCount(stats.DeletedCalls), EscapeText(start), EscapeText(end)))
}

// RenderTopContacts 常用联系人排行
func RenderTopContacts(contacts []dto.TopContact) template.HTML {
	if len(contacts) == 0 {
		return `<p>无常用联系人数据</p>`
	}

	var b strings.Builder
	b.WriteString(`<ul class="top-contacts">`)
	for _, c := range contacts {
		fmt.Fprintf(&b, `<li>%s (%s次, %s)</li>`, EscapeText(c.Phone), FormatCount(c.CallCount), EscapeText(c.TotalDuration))
	}
	b.WriteString(`</ul>`)
	return template.HTML(b.String())
}

// RenderChart 通话图表，只接受 data:image 地址
func RenderChart(dataURL string) template.HTML {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return ErrorBox("无法加载图表数据。")
	}
	return template.HTML(fmt.Sprintf(`<img id="callChartImage" class="call-chart-image" src="%s" alt="通话记录图表">`, EscapeText(dataURL)))
}

// CallControls 图表阈值和下载按钮
func CallControls(threshold int, excelReady, chartReady bool) template.HTML {
	disabled := func(ok bool) string {
		if ok {
			return ""
		}
		return " disabled"
	}

	return template.HTML(fmt.Sprintf(`<form class="call-controls" hx-post="%s" hx-target="%s" hx-swap="innerHTML"><label>通话次数阈值 <input type="number" name="call_num" min="1" value="%d"></label><button type="submit" class="btn btn-secondary btn-sm" id="updateCallChartBtn"%s>更新图表</button></form><div class="call-downloads"><a class="btn btn-secondary btn-sm" id="downloadCallExcelBtn" href="%s?type=excel"%s>下载 Excel</a> <a class="btn btn-secondary btn-sm" id="downloadCallChartBtn" href="%s?type=chart"%s>下载图表</a></div>`,
		ChartPath, CallChartTarget, threshold, disabled(excelReady),
		DownloadPath, disabled(excelReady), DownloadPath, disabled(excelReady || chartReady)))
}

// CallRecordsPanel 通话记录页：统计、图表、排行
func CallRecordsPanel(stats *dto.CallStats, chart template.HTML, threshold int, chartReady bool) template.HTML {
	var contacts []dto.TopContact
	if stats != nil {
		contacts = stats.TopContacts
	}
	return template.HTML(fmt.Sprintf(`<div class="call-summary" id="call-summary">%s</div>%s<div class="call-chart" id="call-chart">%s</div><div class="call-top-contacts" id="call-top-contacts">%s</div>`,
		RenderCallStats(stats), CallControls(threshold, true, chartReady), chart, RenderTopContacts(contacts)))
}

// CallRecordsError 通话记录加载失败，清空图表和排行
func CallRecordsError(message string) template.HTML {
	return template.HTML(fmt.Sprintf(`<div class="call-summary" id="call-summary">%s</div>%s<div class="call-chart" id="call-chart"></div><div class="call-top-contacts" id="call-top-contacts"></div>`,
		ErrorBox(message), CallControls(0, false, false)))
}

// UploadButton 上传按钮，oob 时作为带外替换输出
func UploadButton(enabled, oob bool) template.HTML {
	attrs := ""
	if !enabled {
		attrs += " disabled"
	}
	if oob {
		attrs += ` hx-swap-oob="true"`
	}
	return template.HTML(fmt.Sprintf(`<button type="submit" class="btn btn-primary" id="%s"%s><i class="fas fa-upload"></i> 上传并处理</button>`, UploadButtonID, attrs))
}

// RenderTaskPanel 任务进度面板，同时带外更新上传按钮
func RenderTaskPanel(s *dto.TaskSnapshot) template.HTML {
	if s == nil {
		return template.HTML(fmt.Sprintf(`<div class="process-status" id="%s"></div>`, TaskPanelID))
	}

	level := s.Level
	if level == "" {
		level = dto.LevelInfo
	}

	var status strings.Builder
	fmt.Fprintf(&status, `<p class="%s">%s</p>`, level, EscapeText(s.Message))
	if len(s.Errors) > 0 {
		status.WriteString(`<ul class="error">`)
		for _, e := range s.Errors {
			fmt.Fprintf(&status, `<li>%s</li>`, EscapeText(e))
		}
		status.WriteString(`</ul>`)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="process-status active" id="%s" data-task-id="%s" data-status="%s">`, TaskPanelID, EscapeText(s.TaskID), EscapeText(s.Status))
	fmt.Fprintf(&b, `<div class="progress-bar-container"><div class="progress-bar" id="progressBar" style="width: %d%%"></div></div>`, s.Progress)
	fmt.Fprintf(&b, `<div class="progress-percent" id="progressPercent">%d%%</div>`, s.Progress)
	fmt.Fprintf(&b, `<div class="status-text" id="statusText">%s</div>`, status.String())
	fmt.Fprintf(&b, `<div class="file-counters"><span>已处理: <b id="processedFiles">%d</b></span> <span>成功: <b id="successFiles">%d</b></span> <span>失败: <b id="failedFiles">%d</b></span></div>`,
		s.ProcessedFiles, s.SuccessFiles, s.FailedFiles)
	b.WriteString(`</div>`)
	b.WriteString(string(UploadButton(s.UploadEnabled, true)))
	return template.HTML(b.String())
}

// TaskRow 最近上传列表中的一行
type TaskRow struct {
	TaskID    string
	Status    string
	FileCount int
	StartedAt time.Time
	Error     string
}

var taskStatusNames = map[string]string{
	dto.TaskQueued:     "排队中",
	dto.TaskUploading:  "上传中",
	dto.TaskProcessing: "处理中",
	dto.TaskCompleted:  "已完成",
	dto.TaskError:      "失败",
}

// RenderRecentTasks 会话最近发起的处理任务
func RenderRecentTasks(rows []TaskRow, total int64) template.HTML {
	if len(rows) == 0 {
		return `<div class="recent-tasks empty">暂无上传记录</div>`
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="recent-tasks"><div class="recent-summary">共 %s 次上传</div><ul>`, FormatCount(total))
	for _, r := range rows {
		name, ok := taskStatusNames[r.Status]
		if !ok {
			name = r.Status
		}
		fmt.Fprintf(&b, `<li data-task-id="%s" class="task-%s"><span class="task-time">%s</span> <span class="task-files">%d 个文件</span> <span class="task-status">%s</span>`,
			EscapeText(r.TaskID), EscapeText(r.Status), r.StartedAt.In(Location()).Format("2006/01/02 15:04"), r.FileCount, EscapeText(name))
		if r.Error != "" {
			fmt.Fprintf(&b, ` <span class="error">%s</span>`, EscapeText(Truncate(r.Error, 80)))
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul></div>`)
	return template.HTML(b.String())
}
