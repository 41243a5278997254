package retry

import (
	"context"
	"time"
)

// DefaultAttempts 默认最大尝试次数
const DefaultAttempts = 3

// baseDelay 第一次重试前的等待，之后每次翻倍（1s, 2s, 4s, ...）
const baseDelay = time.Second

// Sleeper 等待函数，可被测试替换；ctx 取消时应立即返回 ctx.Err()
type Sleeper func(ctx context.Context, d time.Duration) error

// Schedule 预先计算 attempts 次尝试之间的等待时长，长度为 attempts-1
func Schedule(attempts int) []time.Duration {
	if attempts <= 1 {
		return nil
	}
	delays := make([]time.Duration, attempts-1)
	delay := baseDelay
	for i := range delays {
		delays[i] = delay
		delay *= 2
	}
	return delays
}

// Do 执行 op，失败后按 Schedule 退避重试，最多 attempts 次；
// 成功立即返回，耗尽后返回最后一次的错误，ctx 取消时返回 ctx.Err()
func Do(ctx context.Context, attempts int, op func(ctx context.Context) error) error {
	return DoWithSleeper(ctx, attempts, WaitWithContext, op)
}

// DoWithSleeper 同 Do，可注入等待函数
func DoWithSleeper(ctx context.Context, attempts int, sleep Sleeper, op func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	delays := Schedule(attempts)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt < len(delays) {
			if err := sleep(ctx, delays[attempt]); err != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

// WaitWithContext 等待 delay，ctx 取消时提前返回
func WaitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
