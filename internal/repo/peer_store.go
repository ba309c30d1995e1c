package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
)

// addressPoolSize — сколько хостовых индексов выдаём из /24 пула.
// Смещение +2 оставляет .0 (сеть) и .1 (шлюз) нетронутыми.
const addressPoolSize = 250

// PeerStore — хранилище учётных данных пиров (ключи, адреса, слоты).
type PeerStore struct{ db *gorm.DB }

func NewPeerStore(db *gorm.DB) *PeerStore { return &PeerStore{db: db} }

// CountByUser возвращает число занятых слотов пользователя.
func (s *PeerStore) CountByUser(ctx context.Context, userID int64) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.PeerConfig{}).
		Where("user_id = ?", userID).Count(&n).Error
	return int(n), err
}

// FirstByUser возвращает слот с минимальным config_id — именно он
// обновляется при переполучении конфига. nil без ошибки, если слотов нет.
func (s *PeerStore) FirstByUser(ctx context.Context, userID int64) (*models.PeerConfig, error) {
	var p models.PeerConfig
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("config_id asc").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByUser возвращает все слоты пользователя по возрастанию config_id.
func (s *PeerStore) ListByUser(ctx context.Context, userID int64) ([]models.PeerConfig, error) {
	var out []models.PeerConfig
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("config_id asc").Find(&out).Error
	return out, err
}

func (s *PeerStore) GetByPublicKey(ctx context.Context, publicKey string) (*models.PeerConfig, error) {
	var p models.PeerConfig
	err := s.db.WithContext(ctx).Where("public_key = ?", publicKey).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PeerStore) Create(ctx context.Context, p *models.PeerConfig) error {
	return s.db.WithContext(ctx).Create(p).Error
}

// UpdateKeys перезаписывает пару ключей слота; адрес остаётся прежним.
func (s *PeerStore) UpdateKeys(ctx context.Context, configID uint, privateKey, publicKey string) error {
	res := s.db.WithContext(ctx).Model(&models.PeerConfig{}).
		Where("config_id = ?", configID).
		Updates(map[string]any{"private_key": privateKey, "public_key": publicKey})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUser снимает все слоты пользователя. Вызывается только после
// того, как соответствующие пиры удалены из control plane.
func (s *PeerStore) DeleteByUser(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).
		Delete(&models.PeerConfig{}).Error
}

// NextAddressOffset выводит хостовый индекс следующего адреса:
// (max(config_id) mod 250) + 2. Счётчик не убывает, поэтому адреса
// не переиспользуются до полного оборота пула.
func (s *PeerStore) NextAddressOffset(ctx context.Context) (int, error) {
	var last int64
	err := s.db.WithContext(ctx).Model(&models.PeerConfig{}).
		Select("COALESCE(MAX(config_id), 0)").Scan(&last).Error
	if err != nil {
		return 0, err
	}
	return int(last%addressPoolSize) + 2, nil
}

// ActiveCount — всего выданных пиров (для /readyz и статистики).
func (s *PeerStore) ActiveCount(ctx context.Context) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.PeerConfig{}).Count(&n).Error
	return int(n), err
}
