package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
)

type UserStore struct{ db *gorm.DB }

func NewUserStore(db *gorm.DB) *UserStore { return &UserStore{db: db} }

// Upsert создаёт пользователя при первом контакте и обновляет
// username/имя "по дороге". Возвращает true, если пользователь новый.
func (s *UserStore) Upsert(ctx context.Context, userID int64, username, fullName string) (bool, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u = models.User{
			UserID:   userID,
			Username: username,
			FullName: fullName,
			JoinDate: time.Now().UTC(),
		}
		if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	changed := false
	if username != "" && u.Username != username {
		u.Username = username
		changed = true
	}
	if fullName != "" && u.FullName != fullName {
		u.FullName = fullName
		changed = true
	}
	if changed {
		_ = s.db.WithContext(ctx).Save(&u).Error
	}
	return false, nil
}

func (s *UserStore) Get(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) Count(ctx context.Context) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return int(n), err
}

// List — постраничный список для админ-панели, свежие первыми.
func (s *UserStore) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var out []models.User
	err := s.db.WithContext(ctx).Order("join_date desc").
		Limit(limit).Offset(offset).Find(&out).Error
	return out, err
}

// AllIDs — для рассылок и периодических задач.
func (s *UserStore) AllIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Pluck("user_id", &ids).Error
	return ids, err
}
