package service

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"inspect-go/internal/cache"
	"inspect-go/internal/config"
	"inspect-go/internal/dto"
	"inspect-go/internal/metrics"
	"inspect-go/internal/models"
	"inspect-go/internal/utils"
	"inspect-go/internal/view"
	"inspect-go/pkg/backend_client"
)

// DefaultSearchType 未指定搜索类型时使用
const DefaultSearchType = "combined"

// contextFetchTimeout 合并后的上下文获取不随单个请求取消，单独限时
const contextFetchTimeout = 30 * time.Second

// LoadParams 搜索列表的加载参数，其他列表忽略
type LoadParams struct {
	Query      string
	SearchType string
}

// ListView 一次列表加载的结果
type ListView struct {
	List       string
	Status     string
	Page       int
	TotalPages int
	Total      int64
	Generation int64
	ItemCount  int
	HTML       template.HTML
	// Stale 加载期间列表已被更新的请求取代，结果不应再写入页面
	Stale bool
	Err   error
}

// ToggleResult 收藏切换的结果
type ToggleResult struct {
	List string
	HTML template.HTML
	// Reload HTML 为整个列表区域，需替换列表而不是按钮
	Reload bool
	// Removed 收藏夹中的条目已移除，HTML 为空
	Removed bool
}

// ContextView 会话上下文切换的结果
type ContextView struct {
	HTML     template.HTML
	Button   template.HTML
	Expanded bool
	Stale    bool
}

type pageResult struct {
	records    []*dto.ResultRecord
	page       int
	totalPages int
	total      int64
	searchType string
}

// ListController 搜索、收藏夹、聊天记录三个分页列表的加载和交互
type ListController struct {
	api    backend_client.API
	store  StateStore
	cache  cache.ContextCache
	cfg    *config.UIConfig
	logger *logrus.Logger

	locksMu sync.Mutex
	locks   map[string]*listLock
	// fetches 合并同一条上下文的并发获取
	fetches singleflight.Group
}

// NewListController 创建列表控制器
func NewListController(api backend_client.API, store StateStore, contextCache cache.ContextCache, cfg *config.UIConfig, logger *logrus.Logger) *ListController {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ListController{
		api:    api,
		store:  store,
		cache:  contextCache,
		cfg:    cfg,
		logger: logger,
		locks:  make(map[string]*listLock),
	}
}

// listLock 按引用计数回收，无人持有或等待时从 locks 中删除
type listLock struct {
	mu   sync.Mutex
	refs int
}

// lock 串行化同一会话同一列表的状态读写，不覆盖后端调用
func (lc *ListController) lock(sessionID, list string) func() {
	key := sessionID + ":" + list

	lc.locksMu.Lock()
	l, ok := lc.locks[key]
	if !ok {
		l = &listLock{}
		lc.locks[key] = l
	}
	l.refs++
	lc.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		lc.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(lc.locks, key)
		}
		lc.locksMu.Unlock()
	}
}

// heldLocks 当前仍在使用的列表锁数量
func (lc *ListController) heldLocks() int {
	lc.locksMu.Lock()
	defer lc.locksMu.Unlock()
	return len(lc.locks)
}

// Load 加载列表的某一页，返回替换整个列表区域的片段
func (lc *ListController) Load(ctx context.Context, sessionID, list string, page int, params *LoadParams) (*ListView, error) {
	if page < 1 {
		page = 1
	}
	size := lc.cfg.PageSize(list)

	unlock := lc.lock(sessionID, list)
	state, err := lc.store.GetListState(sessionID, list)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("读取列表状态失败: %w", err)
	}
	if list == view.ListSearch {
		if params != nil {
			state.Query = strings.TrimSpace(params.Query)
			state.SearchType = params.SearchType
		}
		if state.SearchType == "" {
			state.SearchType = DefaultSearchType
		}
	}
	state.Generation++
	state.Status = models.ListLoading
	state.Page = page
	state.PageSize = size
	state.LastError = ""
	err = lc.store.SaveListState(state)
	snapshot := *state
	unlock()
	if err != nil {
		return nil, fmt.Errorf("保存列表状态失败: %w", err)
	}

	if list == view.ListSearch && snapshot.Query == "" {
		v := &ListView{
			List:       list,
			Status:     models.ListIdle,
			Page:       1,
			Generation: snapshot.Generation,
			HTML:       `<p>请输入搜索关键词。</p>`,
		}
		return lc.finish(sessionID, v)
	}

	res, err := lc.fetch(ctx, &snapshot, page, size)
	if err == nil && len(res.records) == 0 && page > 1 {
		// 越过末页时退回最后一个有效页，只重试一次
		if target := max(res.totalPages, 1); target < page {
			lc.logger.WithFields(logrus.Fields{
				"list":   list,
				"page":   page,
				"target": target,
			}).Debug("页码越界，退回末页")
			page = target
			res, err = lc.fetch(ctx, &snapshot, page, size)
		}
	}

	var v *ListView
	if err != nil {
		v = lc.errorView(&snapshot, page, err)
	} else {
		v = lc.render(&snapshot, page, res)
	}
	return lc.finish(sessionID, v)
}

// finish 写回列表状态；期间若有新的加载开始，本次结果作废
func (lc *ListController) finish(sessionID string, v *ListView) (*ListView, error) {
	unlock := lc.lock(sessionID, v.List)
	defer unlock()

	state, err := lc.store.GetListState(sessionID, v.List)
	if err != nil {
		return nil, fmt.Errorf("读取列表状态失败: %w", err)
	}
	if state.Generation != v.Generation {
		v.Stale = true
		metrics.ListLoads.WithLabelValues(v.List, "stale").Inc()
		return v, nil
	}

	state.Status = v.Status
	state.Page = v.Page
	state.TotalPages = v.TotalPages
	state.ItemCount = v.ItemCount
	state.LastError = ""
	if v.Err != nil {
		state.LastError = backend_client.Message(v.Err)
	}
	state.Normalize()
	if err := lc.store.SaveListState(state); err != nil {
		return nil, fmt.Errorf("保存列表状态失败: %w", err)
	}

	metrics.ListLoads.WithLabelValues(v.List, v.Status).Inc()
	return v, nil
}

func (lc *ListController) fetch(ctx context.Context, state *models.ListState, page, size int) (*pageResult, error) {
	switch state.List {
	case view.ListSearch:
		resp, err := lc.api.Search(ctx, backend_client.SearchParams{
			Query:       state.Query,
			Type:        state.SearchType,
			Page:        page,
			PageSize:    size,
			ContextSize: lc.cfg.ContextSize,
		})
		if err != nil {
			return nil, err
		}
		if err := envelopeError("search", resp.Envelope); err != nil {
			return nil, err
		}
		searchType := resp.SearchType
		if searchType == "" {
			searchType = state.SearchType
		}
		return newPageResult(hitRecords(resp.Results), resp.Pagination, page, searchType), nil

	case view.ListFavorites:
		resp, err := lc.api.Favorites(ctx, page, size)
		if err != nil {
			return nil, err
		}
		if err := envelopeError("favorites", resp.Envelope); err != nil {
			return nil, err
		}
		if resp.NotFoundCount > 0 {
			lc.logger.WithField("not_found", resp.NotFoundCount).Warn("部分收藏项在数据中已不存在")
		}
		return newPageResult(hitRecords(resp.Results), resp.Pagination, page, ""), nil

	case view.ListMessages:
		resp, err := lc.api.Messages(ctx, page, size)
		if err != nil {
			return nil, err
		}
		if err := envelopeError("messages", resp.Envelope); err != nil {
			return nil, err
		}
		return newPageResult(resp.Messages, resp.Pagination, page, ""), nil
	}
	return nil, fmt.Errorf("未知列表: %s", state.List)
}

// envelopeError 列表接口以 status=error 表示业务失败
func envelopeError(op string, env dto.Envelope) error {
	if env.Status != "error" && (env.Success == nil || *env.Success) {
		return nil
	}
	msg := env.Reason()
	if msg == "" {
		msg = "未知错误"
	}
	return &backend_client.Error{Kind: backend_client.ApplicationError, Op: op, Message: msg}
}

func hitRecords(hits []dto.SearchHit) []*dto.ResultRecord {
	records := make([]*dto.ResultRecord, 0, len(hits))
	for _, h := range hits {
		if h.Data != nil {
			records = append(records, h.Data)
		}
	}
	return records
}

func newPageResult(records []*dto.ResultRecord, p dto.Pagination, requested int, searchType string) *pageResult {
	page := p.Page
	if page < 1 {
		page = requested
	}
	return &pageResult{
		records:    records,
		page:       page,
		totalPages: p.TotalPages,
		total:      p.Total,
		searchType: searchType,
	}
}

func (lc *ListController) errorView(state *models.ListState, page int, err error) *ListView {
	prefix := map[string]string{
		view.ListSearch:    "搜索出错: ",
		view.ListFavorites: "加载收藏夹失败: ",
		view.ListMessages:  "加载聊天记录失败: ",
	}[state.List]

	lc.logger.WithError(err).WithFields(logrus.Fields{
		"list": state.List,
		"page": page,
	}).Warn("列表加载失败")

	return &ListView{
		List:       state.List,
		Status:     models.ListError,
		Page:       page,
		TotalPages: state.TotalPages,
		Generation: state.Generation,
		HTML:       view.ErrorBox(prefix + backend_client.Message(err)),
		Err:        err,
	}
}

func (lc *ListController) render(state *models.ListState, page int, res *pageResult) *ListView {
	v := &ListView{
		List:       state.List,
		Page:       res.page,
		TotalPages: res.totalPages,
		Total:      res.total,
		Generation: state.Generation,
	}
	if v.Page < 1 {
		v.Page = page
	}

	rctx := view.ForList(state.List, state.Query, state.Generation)
	items := make([]template.HTML, 0, len(res.records))
	for _, rec := range res.records {
		if html := view.RenderResult(rec, rctx); html != "" {
			items = append(items, html)
		}
	}
	v.ItemCount = len(items)

	if len(items) == 0 {
		v.Status = models.ListEmpty
		switch state.List {
		case view.ListSearch:
			v.HTML = view.NoSearchResults(state.Query)
		case view.ListFavorites:
			v.HTML = view.NoResults("收藏夹是空的")
		default:
			v.HTML = view.NoResults("没有聊天记录")
		}
		return v
	}

	var summary template.HTML
	switch state.List {
	case view.ListSearch:
		if v.Page == 1 {
			summary = view.SearchSummary(res.total, res.searchType)
		}
	case view.ListFavorites:
		summary = view.FavoritesSummary(res.total, v.Page, res.totalPages)
	default:
		summary = view.MessagesSummary(res.total, v.Page, res.totalPages)
	}

	pagination := view.RenderPagination(
		view.Paginate(v.Page, res.totalPages, lc.cfg.WindowSize),
		pageLink(state),
		view.RegionTarget(state.List),
	)

	v.Status = models.ListPopulated
	v.HTML = view.ListRegion(state.List, state.Generation, summary, items, pagination)
	return v
}

func pageLink(state *models.ListState) view.PageLink {
	switch state.List {
	case view.ListSearch:
		query, searchType := state.Query, state.SearchType
		return func(page int) string {
			return view.SearchPath + "?" + url.Values{
				"q":    {query},
				"type": {searchType},
				"page": {strconv.Itoa(page)},
			}.Encode()
		}
	case view.ListFavorites:
		return func(page int) string {
			return view.FavoritesPath + "?page=" + strconv.Itoa(page)
		}
	default:
		return func(page int) string {
			return view.MessagesPath + "?page=" + strconv.Itoa(page)
		}
	}
}

// currentQuery 会话当前的搜索词
func (lc *ListController) currentQuery(sessionID string) string {
	state, err := lc.store.GetListState(sessionID, view.ListSearch)
	if err != nil {
		lc.logger.WithError(err).Warn("读取搜索状态失败")
		return ""
	}
	return state.Query
}

// ToggleFavorite 添加或移除一条收藏，每次调用只发起一次后端修改
func (lc *ListController) ToggleFavorite(ctx context.Context, sessionID string, req dto.ToggleFavoriteRequest) (*ToggleResult, error) {
	query := lc.currentQuery(sessionID)
	body := dto.FavoriteRequest{Type: req.Type, ID: req.ID}
	if req.Action != "remove" {
		body.Query = query
	}
	if err := utils.ValidateStruct(body); err != nil {
		return nil, err
	}

	var err error
	if req.Action == "remove" {
		_, err = lc.api.RemoveFavorite(ctx, body)
	} else {
		_, err = lc.api.AddFavorite(ctx, body)
	}
	if err != nil {
		return nil, err
	}

	unlock := lc.lock(sessionID, req.List)
	state, err := lc.store.GetListState(sessionID, req.List)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("读取列表状态失败: %w", err)
	}

	if state.Generation != req.Generation {
		// 列表已重新加载，按钮所在的渲染已失效，改为重新加载列表
		unlock()
		lc.logger.WithFields(logrus.Fields{
			"list":       req.List,
			"generation": req.Generation,
			"current":    state.Generation,
		}).Debug("收藏切换时列表已更新")
		return lc.reload(ctx, sessionID, req.List, state.Page)
	}

	if req.Action == "remove" && req.List == view.ListFavorites {
		state.ItemCount--
		remaining := state.ItemCount
		err := lc.store.SaveListState(state)
		unlock()
		if err != nil {
			return nil, fmt.Errorf("保存列表状态失败: %w", err)
		}
		if remaining <= 0 {
			return lc.reload(ctx, sessionID, req.List, state.Page)
		}
		return &ToggleResult{List: req.List, Removed: true}, nil
	}
	unlock()

	rctx := view.ForList(req.List, query, state.Generation)
	return &ToggleResult{
		List: req.List,
		HTML: view.FavoriteButton(req.Type, req.ID, req.Action == "add", rctx),
	}, nil
}

func (lc *ListController) reload(ctx context.Context, sessionID, list string, page int) (*ToggleResult, error) {
	v, err := lc.Load(ctx, sessionID, list, page, nil)
	if err != nil {
		return nil, err
	}
	return &ToggleResult{List: list, HTML: v.HTML, Reload: true}, nil
}

// ToggleContext 展开或收起一条消息的会话上下文，同一次列表渲染内只获取一次
func (lc *ListController) ToggleContext(ctx context.Context, sessionID, list, messageID string, generation int64) (*ContextView, error) {
	if list == "" {
		list = view.ListSearch
	}

	state, err := lc.store.GetListState(sessionID, list)
	if err != nil {
		return nil, fmt.Errorf("读取列表状态失败: %w", err)
	}
	if state.Generation != generation {
		return &ContextView{Stale: true}, nil
	}

	query := lc.currentQuery(sessionID)
	rctx := view.ForList(list, query, generation)
	key := cache.ContextKey(sessionID, list, generation, messageID)

	entry, ok, err := lc.cache.Get(ctx, key)
	if err != nil {
		lc.logger.WithError(err).Warn("读取上下文缓存失败")
		ok = false
	}

	if ok {
		entry.Expanded = !entry.Expanded
		lc.saveContext(ctx, key, entry)
		if !entry.Expanded {
			return &ContextView{Button: view.ContextButton(messageID, false, rctx, true)}, nil
		}
		return &ContextView{
			HTML:     template.HTML(entry.HTML),
			Button:   view.ContextButton(messageID, true, rctx, true),
			Expanded: true,
		}, nil
	}

	v, err, _ := lc.fetches.Do(key, func() (interface{}, error) {
		// 等待同一结果的其他请求不受发起者断开影响
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), contextFetchTimeout)
		defer cancel()

		resp, err := lc.api.ConversationContext(fctx, messageID, lc.cfg.ContextSize, query)
		if err != nil {
			return nil, err
		}
		html := view.RenderContextMessages(resp.Context, messageID)
		lc.saveContext(fctx, key, cache.Entry{HTML: string(html), Expanded: true})
		return &ContextView{
			HTML:     html,
			Button:   view.ContextButton(messageID, len(resp.Context) > 0, rctx, true),
			Expanded: true,
		}, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		lc.logger.WithError(err).WithField("message_id", messageID).Warn("获取上下文出错")
		return &ContextView{
			HTML:   `<p class="error">加载上下文失败</p>`,
			Button: view.ContextButton(messageID, false, rctx, true),
		}, nil
	}
	return v.(*ContextView), nil
}

func (lc *ListController) saveContext(ctx context.Context, key string, entry cache.Entry) {
	if err := lc.cache.Set(ctx, key, entry); err != nil {
		lc.logger.WithError(err).Warn("写入上下文缓存失败")
	}
}
