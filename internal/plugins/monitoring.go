package plugins

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Monitoring периодически пишет в лог сводку по пользователям, подпискам
// и пирам. Дешёвый пульс сервиса, пока нет внешнего мониторинга.
type Monitoring struct {
	cancel context.CancelFunc
	done   chan struct{}

	// Interval переопределяется в тестах
	Interval time.Duration
}

func (m *Monitoring) Name() string { return "monitoring" }

func (m *Monitoring) Init(_ context.Context, d Deps) error {
	if m.Interval <= 0 {
		m.Interval = 15 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		t := time.NewTicker(m.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.report(ctx, d)
			}
		}
	}()
	return nil
}

func (m *Monitoring) report(ctx context.Context, d Deps) {
	users, err := d.Users.Count(ctx)
	if err != nil {
		d.Log.WithError(err).Warn("monitoring: user count failed")
		return
	}
	active, err := d.Subs.ActiveSubscriberCount(ctx)
	if err != nil {
		d.Log.WithError(err).Warn("monitoring: subscriber count failed")
		return
	}
	peers, err := d.Peers.ActiveCount(ctx)
	if err != nil {
		d.Log.WithError(err).Warn("monitoring: peer count failed")
		return
	}
	d.Log.WithFields(logrus.Fields{
		"users":       users,
		"active_subs": active,
		"peers":       peers,
	}).Info("service stats")
}

func (m *Monitoring) Shutdown(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
