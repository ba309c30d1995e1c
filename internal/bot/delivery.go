package bot

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/Bambale0/vpn-creative-tg-bot/internal/wireguard"
)

// sendConfig отдаёт конфиг двумя способами: .conf файлом для десктопа
// и QR-кодом для мобильного клиента WireGuard.
func (b *Bot) sendConfig(chatID int64, cc *wireguard.ClientConfig) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "vpn-creative.conf",
		Bytes: []byte(cc.Text),
	})
	doc.Caption = "📄 Конфиг WireGuard. Импортируйте файл в приложение."
	b.send(doc)

	png, err := qrcode.Encode(cc.Text, qrcode.Medium, 512)
	if err != nil {
		b.log.WithError(err).Warn("qr encode failed")
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  "vpn-creative-qr.png",
		Bytes: png,
	})
	photo.Caption = "📱 Или отсканируйте QR в мобильном приложении WireGuard."
	b.send(photo)
}

// NotifyAccessRevoked — уведомление от зачистки истёкших.
func (b *Bot) NotifyAccessRevoked(userID int64) {
	msg := tgbotapi.NewMessage(userID,
		"⏳ Подписка закончилась, доступ к VPN приостановлен.\nПродлите подписку в меню, и конфиг заработает снова.")
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).WithField("user_id", userID).Debug("revoke notice not delivered")
	}
}

// NotifySubscriptionActivated — уведомление об успешной оплате (вебхук).
func (b *Bot) NotifySubscriptionActivated(userID int64, months, points int) {
	text := "✅ Оплата получена, подписка продлена"
	if months > 0 {
		text += " на " + pluralMonths(months)
	}
	text += "!"
	if points > 0 {
		text += "\n🎉 Начислено очков: " + strconv.Itoa(points)
	}
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).WithField("user_id", userID).Debug("payment notice not delivered")
	}
}

func pluralMonths(n int) string {
	s := strconv.Itoa(n)
	switch {
	case n%10 == 1 && n%100 != 11:
		return s + " месяц"
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14):
		return s + " месяца"
	default:
		return s + " месяцев"
	}
}
