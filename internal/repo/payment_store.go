package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
)

type PaymentStore struct{ db *gorm.DB }

func NewPaymentStore(db *gorm.DB) *PaymentStore { return &PaymentStore{db: db} }

func (s *PaymentStore) Create(ctx context.Context, p *models.Payment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *PaymentStore) GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkStatus переводит платёж в новый статус. Повторный перевод в succeeded
// возвращает false — защита от двойного начисления по вебхуку и поллингу.
func (s *PaymentStore) MarkStatus(ctx context.Context, externalID, status string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("external_id = ? AND status <> ?", externalID, status).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PendingByUser — незакрытые счета пользователя, свежие первыми.
func (s *PaymentStore) PendingByUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	var out []models.Payment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.PaymentPending).
		Order("created_at desc").Find(&out).Error
	return out, err
}

func (s *PaymentStore) ListRecent(ctx context.Context, limit int) ([]models.Payment, error) {
	var out []models.Payment
	err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&out).Error
	return out, err
}
