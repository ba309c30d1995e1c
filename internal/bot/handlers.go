package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func rubLabel(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d ₽", int64(v))
	}
	return fmt.Sprintf("%.2f ₽", v)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID

	isNew, err := b.users.Upsert(ctx, userID, msg.From.UserName, fullName(msg.From))
	if err != nil {
		b.log.WithError(err).WithField("user_id", userID).Error("user upsert failed")
	}

	switch msg.Command() {
	case "start":
		if isNew {
			if arg := msg.CommandArguments(); strings.HasPrefix(arg, "ref_") {
				code := strings.TrimPrefix(arg, "ref_")
				referrerID, bonus, err := b.game.RegisterReferral(ctx, userID, code)
				if err != nil {
					b.log.WithError(err).WithField("user_id", userID).Warn("referral registration failed")
				} else if referrerID != 0 {
					b.reply(referrerID, fmt.Sprintf("🎉 По вашей ссылке пришёл новый пользователь! +%d очков.", bonus), nil)
				}
			}
		}
		b.showMenu(msg.Chat.ID)
	case "help":
		b.reply(msg.Chat.ID, helpText, nil)
	case "stats":
		b.adminStats(ctx, msg)
	case "cleanup":
		b.adminCleanup(ctx, msg)
	case "broadcast":
		b.adminBroadcast(ctx, msg)
	default:
		b.showMenu(msg.Chat.ID)
	}
}

const helpText = `<b>Команды</b>
/start — главное меню
/help — эта справка

Конфиг WireGuard выдаётся по кнопке в меню при активной подписке.`

func (b *Bot) showMenu(chatID int64) {
	kb := mainMenuKeyboard()
	b.reply(chatID, "🐱 <b>VPN Creative</b>\n\nБыстрый и стабильный WireGuard VPN.\nВыберите действие:", &kb)
}

// ---- админ-команды ----

func (b *Bot) adminStats(ctx context.Context, msg *tgbotapi.Message) {
	if !b.cfg.IsAdmin(msg.From.ID) {
		return
	}
	users, err := b.users.Count(ctx)
	if err != nil {
		b.reply(msg.Chat.ID, "Ошибка статистики: "+err.Error(), nil)
		return
	}
	active, err := b.subs.ActiveSubscriberCount(ctx)
	if err != nil {
		b.reply(msg.Chat.ID, "Ошибка статистики: "+err.Error(), nil)
		return
	}
	peers, err := b.peers.ActivePeerCount(ctx)
	if err != nil {
		b.reply(msg.Chat.ID, "Ошибка статистики: "+err.Error(), nil)
		return
	}
	text := fmt.Sprintf("<b>Статистика</b>\n\n👥 Пользователей: %d\n✅ Активных подписок: %d\n🔑 Выданных пиров: %d",
		users, active, peers)
	b.reply(msg.Chat.ID, text, nil)
}

func (b *Bot) adminCleanup(ctx context.Context, msg *tgbotapi.Message) {
	if !b.cfg.IsAdmin(msg.From.ID) {
		return
	}
	rep, err := b.sweep.Sweep(ctx)
	if err != nil {
		b.reply(msg.Chat.ID, "Зачистка упала: "+err.Error(), nil)
		return
	}
	text := fmt.Sprintf("Зачистка: кандидатов %d, снято %d, ошибок %d",
		rep.Candidates, rep.Cleaned, rep.Failed)
	b.reply(msg.Chat.ID, text, nil)
}

func (b *Bot) adminBroadcast(ctx context.Context, msg *tgbotapi.Message) {
	if !b.cfg.IsAdmin(msg.From.ID) {
		return
	}
	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		b.reply(msg.Chat.ID, "Использование: /broadcast <текст>", nil)
		return
	}
	ids, err := b.users.AllIDs(ctx)
	if err != nil {
		b.reply(msg.Chat.ID, "Ошибка рассылки: "+err.Error(), nil)
		return
	}
	sent := 0
	for _, id := range ids {
		m := tgbotapi.NewMessage(id, text)
		if _, err := b.api.Send(m); err == nil {
			sent++
		}
		time.Sleep(50 * time.Millisecond) // телеграмный rate limit
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("Разослано %d из %d", sent, len(ids)), nil)
}
