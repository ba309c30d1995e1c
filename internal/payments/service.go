package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/Bambale0/vpn-creative-tg-bot/config"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/repo"
)

// Rewards — геймификация при успешной оплате.
type Rewards interface {
	RewardPurchase(ctx context.Context, userID int64, months int) (int, error)
}

// Notifier сообщает пользователю об активации подписки. Ошибки доставки
// остаются внутри реализации.
type Notifier interface {
	NotifySubscriptionActivated(userID int64, months, points int)
}

// Service связывает провайдеров, леджер платежей и подписки.
// Начисление идёт через confirm и защищено от двойного зачёта:
// вебхук и поллинг могут сработать по одному платежу одновременно.
type Service struct {
	store   *repo.PaymentStore
	subs    *repo.SubscriptionStore
	rewards Rewards
	yk      *YooKassa
	cp      *CryptoPay
	cfg     *config.Config
	log     *logrus.Entry
	notify  Notifier
}

func NewService(store *repo.PaymentStore, subs *repo.SubscriptionStore, rewards Rewards, yk *YooKassa, cp *CryptoPay, cfg *config.Config, log *logrus.Entry) *Service {
	return &Service{store: store, subs: subs, rewards: rewards, yk: yk, cp: cp, cfg: cfg, log: log}
}

// SetNotifier подключает доставку уведомлений (бот поднимается позже сервиса).
func (s *Service) SetNotifier(n Notifier) { s.notify = n }

func (s *Service) YooKassaEnabled() bool { return s.yk != nil }
func (s *Service) CryptoEnabled() bool   { return s.cp != nil }

// StartYooKassa выставляет рублёвый счёт и возвращает ссылку на оплату.
func (s *Service) StartYooKassa(ctx context.Context, userID int64, planID string) (*models.Payment, string, error) {
	if s.yk == nil {
		return nil, "", fmt.Errorf("yookassa is not configured")
	}
	plan := PlanByID(planID)
	if plan == nil {
		return nil, "", fmt.Errorf("unknown plan %q", planID)
	}

	desc := fmt.Sprintf("VPN подписка: %s", plan.Title)
	yp, err := s.yk.CreatePayment(ctx, plan.PriceRUB, desc, userID, plan.ID)
	if err != nil {
		return nil, "", err
	}
	url := yp.ConfirmationURL()
	if url == "" {
		return nil, "", fmt.Errorf("yookassa did not return a confirmation url")
	}

	meta, _ := json.Marshal(yp)
	p := &models.Payment{
		ExternalID: yp.ID,
		UserID:     userID,
		Provider:   models.ProviderYooKassa,
		Amount:     plan.PriceRUB,
		Currency:   "RUB",
		Months:     plan.Months,
		Status:     models.PaymentPending,
		Metadata:   datatypes.JSON(meta),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, "", err
	}
	return p, url, nil
}

// StartCrypto выставляет инвойс в криптовалюте по текущему курсу.
func (s *Service) StartCrypto(ctx context.Context, userID int64, planID, asset string) (*models.Payment, string, error) {
	if s.cp == nil {
		return nil, "", fmt.Errorf("crypto pay is not configured")
	}
	plan := PlanByID(planID)
	if plan == nil {
		return nil, "", fmt.Errorf("unknown plan %q", planID)
	}

	desc := fmt.Sprintf("VPN подписка: %s", plan.Title)
	inv, err := s.cp.CreateInvoiceRUB(ctx, plan.PriceRUB, asset, desc, userID)
	if err != nil {
		return nil, "", err
	}

	meta, _ := json.Marshal(inv)
	p := &models.Payment{
		ExternalID: strconv.FormatInt(inv.InvoiceID, 10),
		UserID:     userID,
		Provider:   models.ProviderCryptoPay,
		Amount:     plan.PriceRUB,
		Currency:   "RUB",
		Months:     plan.Months,
		Status:     models.PaymentPending,
		Metadata:   datatypes.JSON(meta),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, "", err
	}
	return p, inv.BotInvoiceURL, nil
}

// CheckPending опрашивает провайдеров по незакрытым счетам пользователя
// (кнопка "я оплатил"). Возвращает первый зачтённый платёж или nil.
func (s *Service) CheckPending(ctx context.Context, userID int64) (*models.Payment, error) {
	pending, err := s.store.PendingByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range pending {
		p := &pending[i]
		paid, err := s.providerPaid(ctx, p)
		if err != nil {
			s.log.WithError(err).WithField("external_id", p.ExternalID).
				Warn("payment status poll failed")
			continue
		}
		if !paid {
			continue
		}
		credited, err := s.Confirm(ctx, p.ExternalID)
		if err != nil {
			return nil, err
		}
		if credited {
			return p, nil
		}
	}
	return nil, nil
}

func (s *Service) providerPaid(ctx context.Context, p *models.Payment) (bool, error) {
	switch p.Provider {
	case models.ProviderYooKassa:
		if s.yk == nil {
			return false, fmt.Errorf("yookassa is not configured")
		}
		yp, err := s.yk.GetPayment(ctx, p.ExternalID)
		if err != nil {
			return false, err
		}
		return yp.Status == "succeeded" && yp.Paid, nil
	case models.ProviderCryptoPay:
		if s.cp == nil {
			return false, fmt.Errorf("crypto pay is not configured")
		}
		id, err := strconv.ParseInt(p.ExternalID, 10, 64)
		if err != nil {
			return false, err
		}
		inv, err := s.cp.GetInvoice(ctx, id)
		if err != nil {
			return false, err
		}
		return inv != nil && inv.Status == "paid", nil
	default:
		return false, fmt.Errorf("unknown provider %q", p.Provider)
	}
}

// Confirm зачитывает оплаченный счёт: продлевает подписку, начисляет очки,
// шлёт уведомление. false — платёж уже был зачтён или не найден.
func (s *Service) Confirm(ctx context.Context, externalID string) (bool, error) {
	p, err := s.store.GetByExternalID(ctx, externalID)
	if err != nil {
		if err == repo.ErrNotFound {
			return false, nil
		}
		return false, err
	}

	first, err := s.store.MarkStatus(ctx, externalID, models.PaymentSucceeded)
	if err != nil {
		return false, err
	}
	if !first {
		return false, nil
	}

	plan := PlanByAmount(p.Amount)
	days := p.Months * 30
	if plan != nil {
		days = plan.Days
	}
	payRef := fmt.Sprintf("%s-%s", p.Provider, p.ExternalID)
	if _, err := s.subs.Extend(ctx, p.UserID, days, payRef, false); err != nil {
		return false, err
	}

	points := 0
	if s.rewards != nil {
		points, err = s.rewards.RewardPurchase(ctx, p.UserID, p.Months)
		if err != nil {
			s.log.WithError(err).WithField("user_id", p.UserID).
				Warn("purchase reward failed")
		}
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  p.UserID,
		"provider": p.Provider,
		"months":   p.Months,
	}).Info("payment confirmed, subscription extended")

	if s.notify != nil {
		s.notify.NotifySubscriptionActivated(p.UserID, p.Months, points)
	}
	return true, nil
}

// Cancel помечает счёт отменённым (истёкший инвойс и т.п.).
func (s *Service) Cancel(ctx context.Context, externalID string) error {
	_, err := s.store.MarkStatus(ctx, externalID, models.PaymentCanceled)
	return err
}
