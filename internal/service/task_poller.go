package service

import (
	"context"
	"fmt"
	"html/template"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"inspect-go/internal/dto"
	"inspect-go/internal/metrics"
	"inspect-go/internal/models"
	"inspect-go/pkg/backend_client"
)

// DefaultPollInterval 任务状态轮询间隔
const DefaultPollInterval = 2000 * time.Millisecond

// Ticker 轮询节拍
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory 创建轮询节拍，测试中替换为手动节拍
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// PollHooks 轮询生命周期回调
type PollHooks struct {
	// OnCompleted 任务完成后调用，返回的事件推送给会话
	OnCompleted func(ctx context.Context, sessionID string, snap *dto.TaskSnapshot) []*TaskEvent
	// OnFinish 每次轮询结束时调用一次，无论结束原因
	OnFinish func(sessionID, taskID string)
}

type counters struct {
	progress  int
	total     int64
	processed int64
	success   int64
	failed    int64
	batch     int64
}

type pollRun struct {
	sessionID  string
	taskID     string
	generation int64
	cancel     context.CancelFunc
	done       chan struct{}
	last       counters
}

// TaskPoller 按会话轮询后端任务状态，每个会话同时只有一个轮询
type TaskPoller struct {
	api       backend_client.API
	tasks     TaskStore
	interval  time.Duration
	newTicker TickerFactory
	hooks     PollHooks
	logger    *logrus.Logger

	mu         sync.Mutex
	runs       map[string]*pollRun
	streams    map[string]*TaskStream
	generation int64
}

// NewTaskPoller 创建任务轮询器，tasks 可为 nil
func NewTaskPoller(api backend_client.API, tasks TaskStore, interval time.Duration, hooks PollHooks, logger *logrus.Logger) *TaskPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TaskPoller{
		api:       api,
		tasks:     tasks,
		interval:  interval,
		newTicker: newTimeTicker,
		hooks:     hooks,
		logger:    logger,
		runs:      make(map[string]*pollRun),
		streams:   make(map[string]*TaskStream),
	}
}

// SetTickerFactory 替换节拍来源
func (p *TaskPoller) SetTickerFactory(f TickerFactory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newTicker = f
}

// Stream 获取会话的事件流，不存在时创建
func (p *TaskPoller) Stream(sessionID string) *TaskStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamLocked(sessionID)
}

func (p *TaskPoller) streamLocked(sessionID string) *TaskStream {
	s, ok := p.streams[sessionID]
	if !ok {
		s = newTaskStream()
		p.streams[sessionID] = s
	}
	return s
}

// EvictIdle 移除没有轮询、没有订阅者且在 cutoff 之后没有事件的会话事件流，返回移除数量
func (p *TaskPoller) EvictIdle(cutoff time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	evicted := 0
	for id, s := range p.streams {
		if _, running := p.runs[id]; running {
			continue
		}
		if s.Subscribers() > 0 || s.idleSince().After(cutoff) {
			continue
		}
		delete(p.streams, id)
		evicted++
	}
	return evicted
}

// Streams 内存中的会话事件流数量
func (p *TaskPoller) Streams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.streams)
}

// addEvent 在注册表锁内写入事件，与 EvictIdle 互斥
func (p *TaskPoller) addEvent(sessionID string, ev *TaskEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streamLocked(sessionID).AddEvent(ev)
}

// Start 开始轮询任务，先停止该会话之前的轮询；返回本次轮询的代号
func (p *TaskPoller) Start(sessionID, taskID string) int64 {
	p.Stop(sessionID)

	p.mu.Lock()
	if prev := p.runs[sessionID]; prev != nil {
		prev.cancel()
	}
	p.generation++
	ctx, cancel := context.WithCancel(context.Background())
	run := &pollRun{
		sessionID:  sessionID,
		taskID:     taskID,
		generation: p.generation,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	p.runs[sessionID] = run
	newTicker := p.newTicker
	p.mu.Unlock()

	metrics.ActivePolls.Inc()
	p.logger.WithFields(logrus.Fields{
		"session":    sessionID,
		"task_id":    taskID,
		"generation": run.generation,
	}).Info("开始轮询任务状态")

	go p.loop(ctx, run, newTicker)
	return run.generation
}

// Stop 停止会话的轮询并等待其退出，可重复调用
func (p *TaskPoller) Stop(sessionID string) {
	p.mu.Lock()
	run := p.runs[sessionID]
	p.mu.Unlock()
	if run == nil {
		return
	}
	run.cancel()
	<-run.done
}

// StopAll 停止所有轮询
func (p *TaskPoller) StopAll() {
	p.mu.Lock()
	runs := make([]*pollRun, 0, len(p.runs))
	for _, run := range p.runs {
		runs = append(runs, run)
	}
	p.mu.Unlock()

	for _, run := range runs {
		run.cancel()
		<-run.done
	}
}

// Active 会话是否有进行中的轮询
func (p *TaskPoller) Active(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.runs[sessionID]
	return ok
}

// Latest 会话最近的任务快照，内存中没有时从任务记录恢复
func (p *TaskPoller) Latest(sessionID string) *dto.TaskSnapshot {
	p.mu.Lock()
	stream := p.streams[sessionID]
	p.mu.Unlock()
	if stream != nil {
		if snap := stream.Latest(); snap != nil {
			return snap
		}
	}
	if p.tasks == nil {
		return nil
	}

	task, err := p.tasks.LatestBySession(sessionID)
	if err != nil {
		p.logger.WithError(err).Warn("读取任务记录失败")
		return nil
	}
	if task == nil || len(task.Snapshot) == 0 {
		return nil
	}
	var snap dto.TaskSnapshot
	if err := task.Snapshot.Decode(&snap); err != nil {
		p.logger.WithError(err).WithField("task_id", task.TaskID).Warn("解析任务快照失败")
		return nil
	}
	// 服务重启后原轮询已不存在，未结束的任务允许重新上传
	if !snap.Terminal {
		snap.UploadEnabled = true
	}
	return &snap
}

// Subscribe 订阅会话的任务事件，返回订阅时的历史
func (p *TaskPoller) Subscribe(sessionID string) (<-chan *TaskEvent, []*TaskEvent, func()) {
	p.mu.Lock()
	stream := p.streamLocked(sessionID)
	ch, history := stream.SubscribeWithHistory()
	p.mu.Unlock()
	return ch, history, func() { stream.Unsubscribe(ch) }
}

// Publish 发布一个不来自轮询的快照，如上传校验失败
func (p *TaskPoller) Publish(sessionID string, snap *dto.TaskSnapshot) {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}
	p.addEvent(sessionID, &TaskEvent{Name: EventSnapshot, Snapshot: snap})
}

// PublishFragment 推送需要刷新的页面片段
func (p *TaskPoller) PublishFragment(sessionID, name string, html template.HTML) {
	p.addEvent(sessionID, &TaskEvent{Name: name, HTML: html})
}

func (p *TaskPoller) loop(ctx context.Context, run *pollRun, newTicker TickerFactory) {
	defer p.finish(run)

	if p.poll(ctx, run) {
		return
	}

	ticker := newTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if p.poll(ctx, run) {
				return
			}
		}
	}
}

func (p *TaskPoller) finish(run *pollRun) {
	run.cancel()

	p.mu.Lock()
	if p.runs[run.sessionID] == run {
		delete(p.runs, run.sessionID)
	}
	p.mu.Unlock()

	metrics.ActivePolls.Dec()
	if p.hooks.OnFinish != nil {
		p.hooks.OnFinish(run.sessionID, run.taskID)
	}
	close(run.done)
}

// current 判断轮询是否仍是会话的最新一次
func (p *TaskPoller) current(run *pollRun) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.runs[run.sessionID]
	return cur != nil && cur.generation == run.generation
}

// poll 查询一次任务状态，返回是否结束轮询
func (p *TaskPoller) poll(ctx context.Context, run *pollRun) bool {
	status, err := p.api.TaskStatus(ctx, run.taskID)
	if ctx.Err() != nil || !p.current(run) {
		return true
	}

	entry := p.logger.WithFields(logrus.Fields{
		"session": run.sessionID,
		"task_id": run.taskID,
	})

	if err != nil {
		if backend_client.IsNotFound(err) {
			metrics.PollTicks.WithLabelValues(dto.TaskNotFound).Inc()
			entry.Warn("任务不存在，停止轮询")
			p.publish(run, &dto.TaskSnapshot{
				TaskID:        run.taskID,
				Status:        dto.TaskNotFound,
				Message:       fmt.Sprintf("任务 %s 未找到。", run.taskID),
				Level:         dto.LevelError,
				Terminal:      true,
				UploadEnabled: true,
			})
			return true
		}
		metrics.PollTicks.WithLabelValues("transport_error").Inc()
		entry.WithError(err).Warn("查询任务状态失败，等待下次轮询")
		return false
	}

	switch status.Status {
	case dto.TaskQueued, dto.TaskProcessing, dto.TaskProcessingBatch:
		metrics.PollTicks.WithLabelValues(status.Status).Inc()
		p.publish(run, progressSnapshot(run, status))
		return false

	case dto.TaskCompleted:
		metrics.PollTicks.WithLabelValues(status.Status).Inc()
		snap := completedSnapshot(run, status)
		p.publish(run, snap)
		entry.WithField("excel_id", snap.ExcelID).Info("任务处理完成")
		if p.hooks.OnCompleted != nil {
			for _, ev := range p.hooks.OnCompleted(ctx, run.sessionID, snap) {
				p.addEvent(run.sessionID, ev)
			}
		}
		return true

	case dto.TaskError:
		metrics.PollTicks.WithLabelValues(status.Status).Inc()
		reason := status.ErrorText
		if reason == "" {
			reason = "未知错误"
		}
		entry.WithField("error", reason).Warn("任务处理失败")
		p.publish(run, &dto.TaskSnapshot{
			TaskID:         run.taskID,
			Status:         dto.TaskError,
			Progress:       run.last.progress,
			TotalFiles:     run.last.total,
			ProcessedFiles: run.last.processed,
			SuccessFiles:   run.last.success,
			FailedFiles:    run.last.failed,
			Message:        "处理失败: " + reason,
			Level:          dto.LevelError,
			Errors:         status.BatchErrors,
			Terminal:       true,
			UploadEnabled:  true,
		})
		return true

	default:
		metrics.PollTicks.WithLabelValues(dto.TaskUnexpected).Inc()
		entry.WithField("status", status.Status).Warn("未知任务状态，停止轮询")
		p.publish(run, &dto.TaskSnapshot{
			TaskID:         run.taskID,
			Status:         dto.TaskUnexpected,
			Progress:       run.last.progress,
			TotalFiles:     run.last.total,
			ProcessedFiles: run.last.processed,
			SuccessFiles:   run.last.success,
			FailedFiles:    run.last.failed,
			Message:        fmt.Sprintf("未知任务状态: %s", status.Status),
			Level:          dto.LevelError,
			Terminal:       true,
			UploadEnabled:  true,
		})
		return true
	}
}

// clamp 计数在任务结束前只增不减，回退时保留上次的值
func (r *pollRun) clamp(status *dto.TaskStatus) counters {
	progress := int(math.Round(status.Progress))
	progress = min(max(progress, 0), 100)

	next := counters{
		progress:  max(progress, r.last.progress),
		total:     max(status.TotalFiles, r.last.total),
		processed: max(status.ProcessedFiles, r.last.processed),
		success:   max(status.SuccessFiles, r.last.success),
		failed:    max(status.FailedFiles, r.last.failed),
		batch:     max(status.CurrentBatch, r.last.batch),
	}
	r.last = next
	return next
}

func progressSnapshot(run *pollRun, status *dto.TaskStatus) *dto.TaskSnapshot {
	c := run.clamp(status)

	msg := fmt.Sprintf("处理中... %d/%d 文件 (%d%%)", c.processed, c.total, c.progress)
	if status.TotalBatches > 0 {
		msg += fmt.Sprintf(" - 批次 %d/%d", c.batch, status.TotalBatches)
	}

	return &dto.TaskSnapshot{
		TaskID:         run.taskID,
		Status:         status.Status,
		Progress:       c.progress,
		TotalFiles:     c.total,
		ProcessedFiles: c.processed,
		SuccessFiles:   c.success,
		FailedFiles:    c.failed,
		CurrentBatch:   c.batch,
		TotalBatches:   status.TotalBatches,
		Message:        msg,
		Level:          dto.LevelInfo,
	}
}

func completedSnapshot(run *pollRun, status *dto.TaskStatus) *dto.TaskSnapshot {
	c := run.clamp(status)

	snap := &dto.TaskSnapshot{
		TaskID:         run.taskID,
		Status:         dto.TaskCompleted,
		Progress:       100,
		TotalFiles:     c.total,
		ProcessedFiles: c.total,
		SuccessFiles:   status.SuccessFiles,
		FailedFiles:    status.FailedFiles,
		CurrentBatch:   c.batch,
		TotalBatches:   status.TotalBatches,
		Message:        "处理完成!",
		Level:          dto.LevelSuccess,
		Terminal:       true,
		UploadEnabled:  true,
	}
	if status.ResultFiles != nil {
		snap.ExcelID = status.ResultFiles.Excel
		snap.ChartID = status.ResultFiles.Chart
	}
	return snap
}

func (p *TaskPoller) publish(run *pollRun, snap *dto.TaskSnapshot) {
	snap.Timestamp = time.Now()
	p.addEvent(run.sessionID, &TaskEvent{Name: EventSnapshot, Snapshot: snap})

	if p.tasks == nil {
		return
	}
	data, err := models.ToJSONMap(snap)
	if err != nil {
		p.logger.WithError(err).Warn("序列化任务快照失败")
		return
	}
	errMsg := ""
	if snap.Level == dto.LevelError {
		errMsg = snap.Message
	}
	if err := p.tasks.UpdateSnapshot(run.taskID, snap.Status, data, errMsg, snap.Terminal); err != nil {
		p.logger.WithError(err).WithField("task_id", run.taskID).Warn("保存任务快照失败")
	}
}
