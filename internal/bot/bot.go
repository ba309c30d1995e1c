package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Bambale0/vpn-creative-tg-bot/config"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/controller"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/game"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/payments"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/repo"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/wireguard"
)

// Sweeper — ручной запуск зачистки истёкших (команда /cleanup).
type Sweeper interface {
	Sweep(ctx context.Context) (controller.Report, error)
}

// Bot — телеграм-интерфейс сервиса. Вся бизнес-логика живёт в сервисах,
// здесь только диалог: меню, кнопки, выдача файлов.
type Bot struct {
	api   *tgbotapi.BotAPI
	cfg   *config.Config
	log   *logrus.Entry
	users *repo.UserStore
	subs  *repo.SubscriptionStore
	peers *wireguard.Manager
	game  *game.Service
	pay   *payments.Service
	sweep Sweeper
}

func New(api *tgbotapi.BotAPI, cfg *config.Config, log *logrus.Entry,
	users *repo.UserStore, subs *repo.SubscriptionStore,
	peers *wireguard.Manager, gameSvc *game.Service, pay *payments.Service,
	sweep Sweeper) *Bot {
	return &Bot{
		api: api, cfg: cfg, log: log,
		users: users, subs: subs, peers: peers,
		game: gameSvc, pay: pay, sweep: sweep,
	}
}

// Run крутит long polling до отмены контекста.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.log.WithField("username", b.api.Self.UserName).Info("bot started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("panic", r).Error("update handler panicked")
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.WithError(err).Warn("telegram send failed")
	}
}

func (b *Bot) ack(cq *tgbotapi.CallbackQuery, text string) {
	cb := tgbotapi.NewCallback(cq.ID, text)
	if _, err := b.api.Request(cb); err != nil {
		b.log.WithError(err).Debug("callback ack failed")
	}
}

func (b *Bot) reply(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	b.send(msg)
}

func fullName(u *tgbotapi.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
