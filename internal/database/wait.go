package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// initialBackoff は接続リトライの初回遅延。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff は接続リトライの最大遅延。
	maxBackoff = 8 * time.Second
	// defaultPingAttempts はWaitReadyの既定試行回数。
	defaultPingAttempts = 6
)

// Pinger は疎通確認ができるDB接続。*sql.DB が満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// CalculateBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回500ms、2倍ずつ増加、最大8秒。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// WaitReady はDBが応答するまでPingを指数バックオフで繰り返す。
// コンテナ起動直後などDBの準備が遅れる場合に使用する。
// attemptsが0以下の場合は既定の回数を使う。
func WaitReady(ctx context.Context, db Pinger, attempts int) error {
	return waitReady(ctx, db, attempts, CalculateBackoff)
}

func waitReady(ctx context.Context, db Pinger, attempts int, backoff func(int) time.Duration) error {
	if attempts <= 0 {
		attempts = defaultPingAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		delay := backoff(i)
		slog.Warn("database not ready, retrying",
			slog.Int("attempt", i+1),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("failed to connect to database: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
}
