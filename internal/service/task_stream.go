package service

import (
	"html/template"
	"sync"
	"time"

	"inspect-go/internal/dto"
)

// 推送给页面的事件名，与页面上的 sse-swap 对应
const (
	EventSnapshot    = "snapshot"
	EventStats       = "stats"
	EventCallRecords = "call-records"
)

const maxEventHistory = 100

// TaskEvent 任务事件：进度快照或需要刷新的页面片段
type TaskEvent struct {
	Name     string
	Snapshot *dto.TaskSnapshot
	HTML     template.HTML
}

// TaskStream 一个会话的任务事件历史和订阅者
type TaskStream struct {
	history     []*TaskEvent
	historyLock sync.RWMutex
	seq         int64
	lastEvent   time.Time

	subscribers     map[chan *TaskEvent]bool
	subscribersLock sync.RWMutex
}

func newTaskStream() *TaskStream {
	return &TaskStream{
		subscribers: make(map[chan *TaskEvent]bool),
		lastEvent:   time.Now(),
	}
}

// AddEvent 添加事件到历史并广播给所有订阅者
// 广播期间持有 historyLock，SubscribeWithHistory 看到的历史与之后收到的事件不重叠
func (ts *TaskStream) AddEvent(event *TaskEvent) {
	ts.historyLock.Lock()
	defer ts.historyLock.Unlock()

	if event.Snapshot != nil {
		ts.seq++
		event.Snapshot.Seq = ts.seq
	}
	ts.history = append(ts.history, event)
	if len(ts.history) > maxEventHistory {
		ts.history = ts.history[len(ts.history)-maxEventHistory:]
	}
	ts.lastEvent = time.Now()

	ts.subscribersLock.RLock()
	for ch := range ts.subscribers {
		select {
		case ch <- event:
		default:
			// 订阅者跟不上时丢弃，页面以最新快照为准
		}
	}
	ts.subscribersLock.RUnlock()
}

// Subscribe 订阅事件
func (ts *TaskStream) Subscribe() chan *TaskEvent {
	ch := make(chan *TaskEvent, 64)
	ts.subscribersLock.Lock()
	ts.subscribers[ch] = true
	ts.subscribersLock.Unlock()
	return ch
}

// SubscribeWithHistory 订阅并返回订阅时刻的历史，每个事件只出现在两者之一
func (ts *TaskStream) SubscribeWithHistory() (chan *TaskEvent, []*TaskEvent) {
	ts.historyLock.RLock()
	defer ts.historyLock.RUnlock()

	ch := ts.Subscribe()
	history := make([]*TaskEvent, len(ts.history))
	copy(history, ts.history)
	return ch, history
}

// Unsubscribe 取消订阅，不关闭通道，SSE 处理器通过请求 context 退出
func (ts *TaskStream) Unsubscribe(ch chan *TaskEvent) {
	ts.subscribersLock.Lock()
	delete(ts.subscribers, ch)
	ts.subscribersLock.Unlock()
}

// Subscribers 当前订阅者数量
func (ts *TaskStream) Subscribers() int {
	ts.subscribersLock.RLock()
	defer ts.subscribersLock.RUnlock()
	return len(ts.subscribers)
}

// idleSince 最近一次事件的时间
func (ts *TaskStream) idleSince() time.Time {
	ts.historyLock.RLock()
	defer ts.historyLock.RUnlock()
	return ts.lastEvent
}

// History 获取事件历史的副本
func (ts *TaskStream) History() []*TaskEvent {
	ts.historyLock.RLock()
	defer ts.historyLock.RUnlock()

	history := make([]*TaskEvent, len(ts.history))
	copy(history, ts.history)
	return history
}

// Latest 最近一次快照
func (ts *TaskStream) Latest() *dto.TaskSnapshot {
	ts.historyLock.RLock()
	defer ts.historyLock.RUnlock()

	for i := len(ts.history) - 1; i >= 0; i-- {
		if s := ts.history[i].Snapshot; s != nil {
			return s
		}
	}
	return nil
}

// Reset 新任务开始时清空历史，序号继续递增
func (ts *TaskStream) Reset() {
	ts.historyLock.Lock()
	ts.history = nil
	ts.historyLock.Unlock()
}
