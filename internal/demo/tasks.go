package demo

import (
	"context"
	"time"

	"github.com/facebookgo/clock"

	"hikyaku/internal/scheduler"
)

// Broadcaster は WebSocket クライアントへ値を一斉送信する
type Broadcaster interface {
	Broadcast(v any) (int, error)
}

// Heartbeat は WebSocket へ送るハートビート
type Heartbeat struct {
	Event string    `json:"event"`
	Time  time.Time `json:"time"`
}

// HeartbeatTask は一定間隔で現在時刻を一斉送信するタスクを作る
func HeartbeatTask(b Broadcaster, clk clock.Clock, interval time.Duration) scheduler.Task {
	if clk == nil {
		clk = clock.New()
	}
	return scheduler.Task{
		Name:     "heartbeat",
		Delay:    interval,
		Interval: interval,
		Work: func(ctx context.Context) (bool, error) {
			_, err := b.Broadcast(Heartbeat{Event: "heartbeat", Time: clk.Now().UTC()})
			return true, err
		},
	}
}
