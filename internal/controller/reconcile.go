package controller

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Bambale0/vpn-creative-tg-bot/config"
)

// Источники кандидатов на зачистку
type SubscriptionSource interface {
	ExpiredPeerHolders(ctx context.Context, exclude []int64) ([]int64, error)
	TrialOnlyPeerHolders(ctx context.Context, exclude []int64) ([]int64, error)
}

type Revoker interface {
	RevokeUser(ctx context.Context, userID int64) error
}

// Notifier шлёт пользователю сообщение о снятом доступе. Ошибки доставки
// глотает сам: уведомление не должно ронять зачистку.
type Notifier interface {
	NotifyAccessRevoked(userID int64)
}

type Report struct {
	Candidates int
	Cleaned    int
	Failed     int
	Notified   bool
}

// Reconciler периодически приводит control plane к состоянию подписок:
// у кого подписка кончилась (или был только триал) — пиры снимаются.
type Reconciler struct {
	Subs     SubscriptionSource
	Revoker  Revoker
	Notifier Notifier
	Cfg      *config.Config
	Log      *logrus.Entry

	// mu сериализует проходы: Sweep дёргают cron, админка и /cleanup,
	// два одновременных прохода снимали бы одних и тех же кандидатов дважды.
	mu     sync.Mutex
	sweeps int
}

func NewReconciler(subs SubscriptionSource, rev Revoker, notify Notifier, cfg *config.Config, log *logrus.Entry) *Reconciler {
	return &Reconciler{Subs: subs, Revoker: rev, Notifier: notify, Cfg: cfg, Log: log}
}

// Sweep — один проход. Ошибка по конкретному пользователю не прерывает
// остальных: он попадёт в кандидаты следующего прохода.
func (r *Reconciler) Sweep(ctx context.Context) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweeps++
	rep := Report{}

	exclude := r.Cfg.Telegram.AdminIDs
	expired, err := r.Subs.ExpiredPeerHolders(ctx, exclude)
	if err != nil {
		return rep, err
	}
	trialOnly, err := r.Subs.TrialOnlyPeerHolders(ctx, exclude)
	if err != nil {
		return rep, err
	}

	candidates := dedupe(expired, trialOnly)
	rep.Candidates = len(candidates)

	notify := r.Notifier != nil &&
		r.Cfg.Reconciler.NotifyEveryN > 0 &&
		r.sweeps%r.Cfg.Reconciler.NotifyEveryN == 0
	rep.Notified = notify

	for _, userID := range candidates {
		if r.Cfg.IsAdmin(userID) {
			continue
		}
		if err := r.Revoker.RevokeUser(ctx, userID); err != nil {
			rep.Failed++
			r.Log.WithError(err).WithField("user_id", userID).
				Warn("failed to revoke expired user, will retry next sweep")
			continue
		}
		rep.Cleaned++
		if notify {
			r.Notifier.NotifyAccessRevoked(userID)
		}
	}

	if rep.Candidates > 0 {
		r.Log.WithFields(logrus.Fields{
			"candidates": rep.Candidates,
			"cleaned":    rep.Cleaned,
			"failed":     rep.Failed,
		}).Info("expiry sweep finished")
	}
	return rep, nil
}

func dedupe(lists ...[]int64) []int64 {
	seen := map[int64]struct{}{}
	var out []int64
	for _, l := range lists {
		for _, id := range l {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
