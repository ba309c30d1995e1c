package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Bambale0/vpn-creative-tg-bot/internal/game"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/payments"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/wireguard"
)

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID
	data := cq.Data

	if _, err := b.users.Upsert(ctx, userID, cq.From.UserName, fullName(cq.From)); err != nil {
		b.log.WithError(err).WithField("user_id", userID).Error("user upsert failed")
	}

	switch {
	case data == "nav_menu":
		b.ack(cq, "")
		b.showMenu(chatID)
	case data == "nav_plans":
		b.ack(cq, "")
		b.showPlans(ctx, userID, chatID)
	case data == "nav_status":
		b.ack(cq, "")
		b.showStatus(ctx, userID, chatID)
	case data == "nav_referral":
		b.ack(cq, "")
		b.showReferral(ctx, userID, chatID)
	case data == "daily_bonus":
		b.claimDailyBonus(ctx, cq)
	case data == "achievements":
		b.ack(cq, "")
		b.showAchievements(ctx, userID, chatID)
	case data == "get_config":
		b.ack(cq, "")
		b.issueConfig(ctx, userID, chatID)
	case data == "trial":
		b.activateTrial(ctx, cq)
	case strings.HasPrefix(data, "plan_"):
		b.ack(cq, "")
		b.choosePayMethod(chatID, strings.TrimPrefix(data, "plan_"))
	case strings.HasPrefix(data, "yk_"):
		b.ack(cq, "")
		b.startYooKassa(ctx, userID, chatID, strings.TrimPrefix(data, "yk_"))
	case strings.HasPrefix(data, "crypto_"):
		b.ack(cq, "")
		b.startCrypto(ctx, userID, chatID, strings.TrimPrefix(data, "crypto_"))
	case data == "check_payment":
		b.checkPayment(ctx, cq)
	default:
		b.ack(cq, "")
	}
}

func (b *Bot) showPlans(ctx context.Context, userID, chatID int64) {
	trialAvailable := false
	if b.cfg.Game.TrialEnabled {
		had, err := b.subs.HasTrial(ctx, userID)
		if err == nil && !had {
			trialAvailable = true
		}
	}
	kb := plansKeyboard(trialAvailable)
	b.reply(chatID, "💳 <b>Тарифы</b>\n\nВыберите срок подписки:", &kb)
}

func (b *Bot) showStatus(ctx context.Context, userID, chatID int64) {
	var sb strings.Builder
	sb.WriteString("👤 <b>Профиль</b>\n\n")

	end, err := b.subs.ActiveEnd(ctx, userID)
	switch {
	case err != nil:
		b.reply(chatID, "Не удалось получить профиль: "+err.Error(), nil)
		return
	case end != nil:
		left := int(time.Until(*end).Hours() / 24)
		fmt.Fprintf(&sb, "✅ Подписка до %s (осталось дней: %d)\n", end.Format("02.01.2006"), left)
	case b.cfg.IsAdmin(userID):
		sb.WriteString("👑 Администратор, подписка не требуется\n")
	default:
		sb.WriteString("❌ Подписки нет\n")
	}

	slots, err := b.peers.SlotCount(ctx, userID)
	if err == nil {
		fmt.Fprintf(&sb, "🔑 Устройств подключено: %d из %d\n", slots, wireguard.MaxPeersPerUser)
	}

	profile, _, err := b.game.Profile(ctx, userID)
	if err == nil {
		fmt.Fprintf(&sb, "\n⭐ Очки: %d\n📈 Уровень: %d\n🔥 Серия бонусов: %d дн.\n",
			profile.Points, profile.Level, profile.DailyStreak)
	}

	kb := backToMenuKeyboard()
	b.reply(chatID, sb.String(), &kb)
}

func (b *Bot) showReferral(ctx context.Context, userID, chatID int64) {
	link, err := b.game.ReferralLink(ctx, userID)
	if err != nil {
		b.reply(chatID, "Не удалось получить ссылку: "+err.Error(), nil)
		return
	}
	profile, _, err := b.game.Profile(ctx, userID)
	if err != nil {
		b.reply(chatID, "Не удалось получить профиль: "+err.Error(), nil)
		return
	}
	text := fmt.Sprintf(`🎁 <b>Реферальная программа</b>

Приглашайте друзей и получайте очки:
• %d очков за первого друга
• %d очков за каждого следующего

Ваша ссылка:
%s

Приглашено: %d`,
		b.cfg.Game.ReferralBonusFirst, b.cfg.Game.ReferralBonusNext, link, profile.Referrals)
	kb := backToMenuKeyboard()
	b.reply(chatID, text, &kb)
}

func (b *Bot) claimDailyBonus(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	points, streak, claimed, err := b.game.ClaimDailyBonus(ctx, cq.From.ID)
	if err != nil {
		b.ack(cq, "Ошибка, попробуйте позже")
		b.log.WithError(err).WithField("user_id", cq.From.ID).Error("daily bonus failed")
		return
	}
	if !claimed {
		b.ack(cq, "Бонус уже получен, возвращайтесь завтра!")
		return
	}
	b.ack(cq, "")
	kb := backToMenuKeyboard()
	b.reply(cq.Message.Chat.ID,
		fmt.Sprintf("🎲 +%d очков!\n🔥 Серия: %d дн. подряд", points, streak), &kb)
}

func (b *Bot) showAchievements(ctx context.Context, userID, chatID int64) {
	_, awards, err := b.game.Profile(ctx, userID)
	if err != nil {
		b.reply(chatID, "Не удалось получить достижения: "+err.Error(), nil)
		return
	}
	have := map[string]bool{}
	for _, a := range awards {
		have[a.Code] = true
	}

	var sb strings.Builder
	sb.WriteString("🏆 <b>Достижения</b>\n\n")
	for _, a := range game.Catalog {
		mark := "▫️"
		if have[a.Code] {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s %s (+%d)\n", mark, a.Title, a.Points)
	}
	kb := backToMenuKeyboard()
	b.reply(chatID, sb.String(), &kb)
}

func (b *Bot) issueConfig(ctx context.Context, userID, chatID int64) {
	if !b.cfg.IsAdmin(userID) {
		active, err := b.subs.HasActive(ctx, userID)
		if err != nil {
			b.reply(chatID, "Ошибка, попробуйте позже: "+err.Error(), nil)
			return
		}
		if !active {
			b.showPlans(ctx, userID, chatID)
			return
		}
	}

	cc, err := b.peers.IssueConfig(ctx, userID)
	if errors.Is(err, wireguard.ErrQuotaExceeded) {
		kb := backToMenuKeyboard()
		b.reply(chatID, fmt.Sprintf("⚠️ Достигнут лимит в %d устройства.", wireguard.MaxPeersPerUser), &kb)
		return
	}
	if err != nil {
		b.log.WithError(err).WithField("user_id", userID).Error("config issue failed")
		b.reply(chatID, "Не удалось выдать конфиг, попробуйте позже.", nil)
		return
	}

	b.sendConfig(chatID, cc)
	if _, err := b.game.GrantAchievement(ctx, userID, "first_config"); err != nil {
		b.log.WithError(err).Debug("first_config grant failed")
	}
}

func (b *Bot) activateTrial(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	days, activated, err := b.game.ActivateTrial(ctx, cq.From.ID)
	if err != nil {
		b.ack(cq, "Ошибка, попробуйте позже")
		b.log.WithError(err).WithField("user_id", cq.From.ID).Error("trial activation failed")
		return
	}
	if !activated {
		b.ack(cq, "Пробный период уже был использован")
		return
	}
	b.ack(cq, "")
	b.reply(cq.Message.Chat.ID,
		fmt.Sprintf("🆓 Пробный период на %d дней активирован!", days), nil)
	b.issueConfig(ctx, cq.From.ID, cq.Message.Chat.ID)
}

func (b *Bot) choosePayMethod(chatID int64, planID string) {
	plan := payments.PlanByID(planID)
	if plan == nil {
		b.showMenu(chatID)
		return
	}
	kb := payMethodKeyboard(planID, b.pay.YooKassaEnabled(), b.pay.CryptoEnabled())
	text := fmt.Sprintf("💳 <b>%s</b> — %s\n\nВыберите способ оплаты:", plan.Title, rubLabel(plan.PriceRUB))
	b.reply(chatID, text, &kb)
}

func (b *Bot) startYooKassa(ctx context.Context, userID, chatID int64, planID string) {
	_, url, err := b.pay.StartYooKassa(ctx, userID, planID)
	if err != nil {
		b.log.WithError(err).WithField("user_id", userID).Error("yookassa payment failed")
		b.reply(chatID, "Не удалось создать платёж, попробуйте позже.", nil)
		return
	}
	kb := paymentKeyboard(url)
	b.reply(chatID, "Нажмите «Оплатить», после оплаты вернитесь и подтвердите кнопкой ниже.", &kb)
}

func (b *Bot) startCrypto(ctx context.Context, userID, chatID int64, arg string) {
	// arg: "<plan>_<asset>"
	idx := strings.LastIndexByte(arg, '_')
	if idx <= 0 {
		b.showMenu(chatID)
		return
	}
	planID, asset := arg[:idx], arg[idx+1:]

	_, url, err := b.pay.StartCrypto(ctx, userID, planID, asset)
	if err != nil {
		b.log.WithError(err).WithField("user_id", userID).Error("crypto payment failed")
		b.reply(chatID, "Не удалось создать счёт, попробуйте позже.", nil)
		return
	}
	kb := paymentKeyboard(url)
	b.reply(chatID, "Счёт действует 15 минут. После оплаты подтвердите кнопкой ниже.", &kb)
}

func (b *Bot) checkPayment(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	p, err := b.pay.CheckPending(ctx, cq.From.ID)
	if err != nil {
		b.ack(cq, "Ошибка проверки, попробуйте позже")
		b.log.WithError(err).WithField("user_id", cq.From.ID).Error("payment check failed")
		return
	}
	if p == nil {
		b.ack(cq, "Оплата пока не найдена")
		return
	}
	b.ack(cq, "Оплата получена!")
	kb := mainMenuKeyboard()
	b.reply(cq.Message.Chat.ID,
		fmt.Sprintf("✅ Подписка продлена на %d мес. Теперь можно получить конфиг.", p.Months), &kb)
}
