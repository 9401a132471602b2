package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"inspect-go/internal/config"
	"inspect-go/internal/dto"
	"inspect-go/internal/models"
	"inspect-go/pkg/backend_client"
)

// fakeAPI 记录调用次数的后端替身
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	search    func(p backend_client.SearchParams) (*dto.SearchResponse, error)
	favorites func(page, size int) (*dto.FavoritesResponse, error)
	messages  func(page, size int) (*dto.MessagesResponse, error)
	context   func(id string) (*dto.ContextResponse, error)
	// contextCtx 优先于 context，可观察请求的 ctx
	contextCtx func(ctx context.Context, id string) (*dto.ContextResponse, error)

	favoriteErr   error
	lastFavorite  dto.FavoriteRequest
	history       []string
	stats         *dto.StatsResponse
	statuses      []statusReply
	callStats     *dto.CallStats
	callErr       error
	chartData     string
	chartErr      error
	startResp     *dto.StartProcessingResponse
	startErr      error
	uploadedNames []string
	excelIDs      []string
}

type statusReply struct {
	status *dto.TaskStatus
	err    error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(map[string]int)}
}

func (f *fakeAPI) hit(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) Search(ctx context.Context, p backend_client.SearchParams) (*dto.SearchResponse, error) {
	f.hit("search")
	return f.search(p)
}

func (f *fakeAPI) SearchHistory(ctx context.Context) (*dto.SearchHistoryResponse, error) {
	f.hit("search_history")
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dto.SearchHistoryResponse{SearchHistory: append([]string(nil), f.history...)}, nil
}

func (f *fakeAPI) ClearSearchHistory(ctx context.Context) error {
	f.hit("clear_search_history")
	f.mu.Lock()
	f.history = nil
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) Favorites(ctx context.Context, page, size int) (*dto.FavoritesResponse, error) {
	f.hit("favorites")
	return f.favorites(page, size)
}

func (f *fakeAPI) AddFavorite(ctx context.Context, req dto.FavoriteRequest) (*dto.StatusResponse, error) {
	f.hit("favorite_add")
	f.mu.Lock()
	f.lastFavorite = req
	f.mu.Unlock()
	if f.favoriteErr != nil {
		return nil, f.favoriteErr
	}
	return &dto.StatusResponse{Envelope: dto.Envelope{Status: "success"}}, nil
}

func (f *fakeAPI) RemoveFavorite(ctx context.Context, req dto.FavoriteRequest) (*dto.StatusResponse, error) {
	f.hit("favorite_remove")
	f.mu.Lock()
	f.lastFavorite = req
	f.mu.Unlock()
	if f.favoriteErr != nil {
		return nil, f.favoriteErr
	}
	return &dto.StatusResponse{Envelope: dto.Envelope{Status: "success"}}, nil
}

func (f *fakeAPI) Messages(ctx context.Context, page, size int) (*dto.MessagesResponse, error) {
	f.hit("messages")
	return f.messages(page, size)
}

func (f *fakeAPI) ConversationContext(ctx context.Context, id string, size int, q string) (*dto.ContextResponse, error) {
	f.hit("conversation_context")
	if f.contextCtx != nil {
		return f.contextCtx(ctx, id)
	}
	return f.context(id)
}

func (f *fakeAPI) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	f.hit("stats")
	if f.stats == nil {
		return &dto.StatsResponse{}, nil
	}
	return f.stats, nil
}

func (f *fakeAPI) StartProcessing(ctx context.Context, files []backend_client.UploadFile) (*dto.StartProcessingResponse, error) {
	f.hit("start_processing")
	f.mu.Lock()
	for _, file := range files {
		f.uploadedNames = append(f.uploadedNames, file.Name)
	}
	f.mu.Unlock()
	return f.startResp, f.startErr
}

// TaskStatus 依次返回预设的状态，用完后重复最后一个
func (f *fakeAPI) TaskStatus(ctx context.Context, taskID string) (*dto.TaskStatus, error) {
	f.hit("task_status")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return nil, &backend_client.Error{Kind: backend_client.NotFound, Op: "task_status", StatusCode: 404}
	}
	reply := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return reply.status, reply.err
}

func (f *fakeAPI) CallRecords(ctx context.Context, excelID string) (*dto.CallRecordsResponse, error) {
	f.hit("call_records")
	f.mu.Lock()
	f.excelIDs = append(f.excelIDs, excelID)
	f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &dto.CallRecordsResponse{Envelope: dto.Envelope{Status: "success"}, Stats: f.callStats}, nil
}

func (f *fakeAPI) UpdateChart(ctx context.Context, excelID string, callNum int) (*dto.ChartResponse, error) {
	f.hit("update_chart")
	if f.chartErr != nil {
		return nil, f.chartErr
	}
	return &dto.ChartResponse{Envelope: dto.Envelope{Status: "success"}, ChartID: "chart-" + excelID, ChartData: f.chartData}, nil
}

func (f *fakeAPI) DownloadURL(kind, id string) string {
	return "http://backend/api/call-records/download?type=" + kind + "&id=" + id
}

func (f *fakeAPI) excels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.excelIDs...)
}

// memStore 内存中的界面状态
type memStore struct {
	mu     sync.Mutex
	nextID uint
	lists  map[string]models.ListState
	calls  map[string]models.CallSelection
}

func newMemStore() *memStore {
	return &memStore{
		lists: make(map[string]models.ListState),
		calls: make(map[string]models.CallSelection),
	}
}

func (m *memStore) GetListState(sessionID, list string) (*models.ListState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.lists[sessionID+":"+list]; ok {
		return &s, nil
	}
	return &models.ListState{SessionID: sessionID, List: list, Page: 1, Status: models.ListIdle}, nil
}

func (m *memStore) SaveListState(state *models.ListState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state.ID == 0 {
		m.nextID++
		state.ID = m.nextID
	}
	m.lists[state.SessionID+":"+state.List] = *state
	return nil
}

func (m *memStore) GetCallSelection(sessionID string) (*models.CallSelection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.calls[sessionID]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *memStore) SaveCallSelection(sel *models.CallSelection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[sel.SessionID] = *sel
	return nil
}

// manualTicker 由测试手动驱动的节拍
type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// tickers 收集轮询器创建的节拍
type tickers struct {
	mu  sync.Mutex
	all []*manualTicker
}

func (ts *tickers) factory(time.Duration) Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	ts.mu.Lock()
	ts.all = append(ts.all, t)
	ts.mu.Unlock()
	return t
}

func (ts *tickers) last() *manualTicker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.all) == 0 {
		return nil
	}
	return ts.all[len(ts.all)-1]
}

func testUIConfig() *config.UIConfig {
	return &config.UIConfig{
		SearchPageSize:       20,
		FavoritesPageSize:    10,
		MessagesPageSize:     50,
		WindowSize:           5,
		ContextSize:          3,
		PollIntervalMS:       2000,
		ContextCacheSize:     16,
		HistoryLimit:         10,
		SuggestionLimit:      5,
		DefaultCallThreshold: 5,
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func record(t *testing.T, raw string) *dto.ResultRecord {
	t.Helper()
	var rec dto.ResultRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return &rec
}

func parseHTML(t *testing.T, fragment string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	require.NoError(t, err)
	return doc
}
