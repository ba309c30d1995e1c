package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
)

// SubscriptionStore — леджер подписок и активаций триала.
type SubscriptionStore struct{ db *gorm.DB }

func NewSubscriptionStore(db *gorm.DB) *SubscriptionStore { return &SubscriptionStore{db: db} }

func (s *SubscriptionStore) Add(ctx context.Context, sub *models.Subscription) error {
	return s.db.WithContext(ctx).Create(sub).Error
}

// Extend продлевает доступ: новая запись стартует от текущего конца
// активной подписки, если он в будущем, иначе от "сейчас".
func (s *SubscriptionStore) Extend(ctx context.Context, userID int64, days int, paymentID string, isTrial bool) (*models.Subscription, error) {
	start := time.Now().UTC()
	if end, err := s.ActiveEnd(ctx, userID); err != nil {
		return nil, err
	} else if end != nil && end.After(start) {
		start = *end
	}
	sub := &models.Subscription{
		UserID:       userID,
		StartDate:    start,
		EndDate:      start.AddDate(0, 0, days),
		PaymentID:    paymentID,
		DurationDays: days,
		IsTrial:      isTrial,
	}
	return sub, s.db.WithContext(ctx).Create(sub).Error
}

// ActiveEnd возвращает максимальный end_date в будущем или nil.
func (s *SubscriptionStore) ActiveEnd(ctx context.Context, userID int64) (*time.Time, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND end_date > ?", userID, time.Now().UTC()).
		Order("end_date desc").First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub.EndDate, nil
}

func (s *SubscriptionStore) HasActive(ctx context.Context, userID int64) (bool, error) {
	end, err := s.ActiveEnd(ctx, userID)
	return end != nil, err
}

// ExpiredPeerHolders — пользователи, чья самая свежая подписка закончилась,
// но пир всё ещё выдан. exclude — администраторы.
func (s *SubscriptionStore) ExpiredPeerHolders(ctx context.Context, exclude []int64) ([]int64, error) {
	now := time.Now().UTC()
	var ids []int64
	q := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Distinct("subscriptions.user_id").
		Joins("JOIN peer_configs pc ON pc.user_id = subscriptions.user_id").
		Where("subscriptions.user_id NOT IN (SELECT user_id FROM subscriptions WHERE end_date > ?)", now)
	if len(exclude) > 0 {
		q = q.Where("subscriptions.user_id NOT IN ?", exclude)
	}
	err := q.Pluck("subscriptions.user_id", &ids).Error
	return ids, err
}

// TrialOnlyPeerHolders — активировали триал, активной подписки нет вовсе,
// пир выдан. Отдельное правило: у таких пользователей может не быть ни одной
// строки в subscriptions, поэтому join по expired их не поймает.
func (s *SubscriptionStore) TrialOnlyPeerHolders(ctx context.Context, exclude []int64) ([]int64, error) {
	now := time.Now().UTC()
	var ids []int64
	q := s.db.WithContext(ctx).Model(&models.TrialActivation{}).
		Distinct("trial_activations.user_id").
		Joins("JOIN peer_configs pc ON pc.user_id = trial_activations.user_id").
		Where("trial_activations.user_id NOT IN (SELECT user_id FROM subscriptions WHERE end_date > ?)", now)
	if len(exclude) > 0 {
		q = q.Where("trial_activations.user_id NOT IN ?", exclude)
	}
	err := q.Pluck("trial_activations.user_id", &ids).Error
	return ids, err
}

// ActivateTrial фиксирует активацию. Возвращает false, если триал уже был.
func (s *SubscriptionStore) ActivateTrial(ctx context.Context, userID int64) (bool, error) {
	var existing models.TrialActivation
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	ta := models.TrialActivation{UserID: userID, ActivatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(&ta).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (s *SubscriptionStore) HasTrial(ctx context.Context, userID int64) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.TrialActivation{}).
		Where("user_id = ?", userID).Count(&n).Error
	return n > 0, err
}

// ActiveSubscriberCount — пользователи с действующей подпиской.
func (s *SubscriptionStore) ActiveSubscriberCount(ctx context.Context) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("end_date > ?", time.Now().UTC()).
		Distinct("user_id").Count(&n).Error
	return int(n), err
}

// ListByUser — история подписок пользователя, свежие первыми.
func (s *SubscriptionStore) ListByUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	var out []models.Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("end_date desc").Find(&out).Error
	return out, err
}
