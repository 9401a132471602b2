package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSweepInterval 过期会话清理间隔
const DefaultSweepInterval = 30 * time.Minute

// SessionJanitor 定期清理会话过期后留下的界面状态和事件流
type SessionJanitor struct {
	states   StaleStateSweeper
	poller   *TaskPoller
	maxAge   time.Duration
	interval time.Duration
	logger   *logrus.Logger
}

// NewSessionJanitor 创建清理器，maxAge 通常为会话有效期
func NewSessionJanitor(states StaleStateSweeper, poller *TaskPoller, maxAge, interval time.Duration, logger *logrus.Logger) *SessionJanitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SessionJanitor{
		states:   states,
		poller:   poller,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
	}
}

// Sweep 清理 now-maxAge 之前不再活动的会话
func (j *SessionJanitor) Sweep(now time.Time) {
	if j.maxAge <= 0 {
		return
	}
	cutoff := now.Add(-j.maxAge)

	var removed int64
	if j.states != nil {
		n, err := j.states.DeleteStale(cutoff)
		if err != nil {
			j.logger.WithError(err).Warn("清理过期界面状态失败")
		}
		removed = n
	}

	evicted := 0
	if j.poller != nil {
		evicted = j.poller.EvictIdle(cutoff)
	}

	if removed > 0 || evicted > 0 {
		j.logger.WithFields(logrus.Fields{
			"states":  removed,
			"streams": evicted,
		}).Info("已清理过期会话")
	}
}

// Run 立即清理一次，之后按间隔清理，直到 ctx 取消
func (j *SessionJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Sweep(time.Now())
	for {
		select {
		case <-ticker.C:
			j.Sweep(time.Now())
		case <-ctx.Done():
			return
		}
	}
}
