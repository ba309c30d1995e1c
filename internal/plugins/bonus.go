package plugins

import (
	"context"
	"fmt"
	"time"
)

// Bonus выдаёт подарочные дни подписки. Используется админкой и акциями;
// плагин, потому что продукт включает и выключает его между кампаниями.
type Bonus struct {
	deps    Deps
	enabled bool
}

func (b *Bonus) Name() string { return "bonus" }

func (b *Bonus) Init(_ context.Context, d Deps) error {
	b.deps = d
	b.enabled = true
	return nil
}

func (b *Bonus) Shutdown(context.Context) error {
	b.enabled = false
	return nil
}

// GrantDays продлевает подписку пользователю на days подарочных дней.
func (b *Bonus) GrantDays(ctx context.Context, userID int64, days int, reason string) error {
	if !b.enabled {
		return fmt.Errorf("bonus plugin is not active")
	}
	if days <= 0 {
		return fmt.Errorf("days must be positive")
	}
	payID := fmt.Sprintf("bonus-%s-%d-%d", reason, userID, time.Now().Unix())
	_, err := b.deps.Subs.Extend(ctx, userID, days, payID, false)
	if err != nil {
		return err
	}
	b.deps.Log.WithField("user_id", userID).WithField("days", days).
		Info("bonus days granted")
	return nil
}
