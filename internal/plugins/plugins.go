package plugins

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Bambale0/vpn-creative-tg-bot/config"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/repo"
)

// Deps — то, что доступно плагину при старте.
type Deps struct {
	DB    *gorm.DB
	Users *repo.UserStore
	Subs  *repo.SubscriptionStore
	Peers *repo.PeerStore
	Games *repo.GameStore
	Cfg   *config.Config
	Log   *logrus.Entry
}

// Plugin — расширение с фиксированным жизненным циклом. Таблица плагинов
// собирается статически на этапе компиляции, без динамической загрузки.
type Plugin interface {
	Name() string
	Init(ctx context.Context, d Deps) error
	Shutdown(ctx context.Context) error
}

// Registry — включённые плагины в порядке инициализации.
var Registry = []Plugin{
	&Monitoring{},
	&Bonus{},
}

// InitAll поднимает все плагины; ошибка любого из них фатальна для старта.
func InitAll(ctx context.Context, d Deps) error {
	for _, p := range Registry {
		if err := p.Init(ctx, d); err != nil {
			return fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		d.Log.WithField("plugin", p.Name()).Info("plugin initialized")
	}
	return nil
}

// ShutdownAll гасит плагины в обратном порядке.
func ShutdownAll(ctx context.Context, d Deps) {
	for i := len(Registry) - 1; i >= 0; i-- {
		p := Registry[i]
		if err := p.Shutdown(ctx); err != nil {
			d.Log.WithError(err).WithField("plugin", p.Name()).Warn("plugin shutdown failed")
		}
	}
}

// ByName находит плагин в реестре, nil — если не включён.
func ByName(name string) Plugin {
	for _, p := range Registry {
		if p.Name() == name {
			return p
		}
	}
	return nil
}
