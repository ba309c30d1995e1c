package repo

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
)

type GameStore struct{ db *gorm.DB }

func NewGameStore(db *gorm.DB) *GameStore { return &GameStore{db: db} }

// Profile возвращает игровой профиль, создавая его при первом обращении.
func (s *GameStore) Profile(ctx context.Context, userID int64) (*models.GameProfile, error) {
	var p models.GameProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = models.GameProfile{
			UserID:       userID,
			Level:        1,
			ReferralCode: referralCode(userID),
		}
		if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// referralCode — короткий стабильный код из telegram id.
func referralCode(userID int64) string {
	h := md5.Sum([]byte(fmt.Sprintf("ref:%d", userID)))
	return hex.EncodeToString(h[:])[:8]
}

func (s *GameStore) ByReferralCode(ctx context.Context, code string) (*models.GameProfile, error) {
	var p models.GameProfile
	err := s.db.WithContext(ctx).Where("referral_code = ?", code).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AddPoints начисляет очки и возвращает обновлённый профиль.
// Пересчёт уровня делает вызывающий (game.Service) — там живут пороги.
func (s *GameStore) AddPoints(ctx context.Context, userID int64, points int) (*models.GameProfile, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Points += points
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (s *GameStore) SetLevel(ctx context.Context, userID int64, level int) error {
	return s.db.WithContext(ctx).Model(&models.GameProfile{}).
		Where("user_id = ?", userID).Update("level", level).Error
}

// RecordReferral связывает приглашённого с пригласившим и увеличивает
// счётчик последнего. Связь ставится один раз; false — уже была.
func (s *GameStore) RecordReferral(ctx context.Context, userID, referrerID int64) (bool, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return false, err
	}
	if p.ReferredBy != 0 {
		return false, nil
	}
	p.ReferredBy = referrerID
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return false, err
	}
	err = s.db.WithContext(ctx).Model(&models.GameProfile{}).
		Where("user_id = ?", referrerID).
		Update("referrals", gorm.Expr("referrals + 1")).Error
	return err == nil, err
}

// ClaimDailyBonus отмечает получение ежедневного бонуса и пересчитывает
// серию. Возвращает (серия, false), если бонус за сегодня уже выдан.
func (s *GameStore) ClaimDailyBonus(ctx context.Context, userID int64, now time.Time) (int, bool, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	today := now.UTC().Truncate(24 * time.Hour)
	if p.LastBonusAt != nil {
		last := p.LastBonusAt.UTC().Truncate(24 * time.Hour)
		if last.Equal(today) {
			return p.DailyStreak, false, nil
		}
		if last.Equal(today.AddDate(0, 0, -1)) {
			p.DailyStreak++
		} else {
			p.DailyStreak = 1
		}
	} else {
		p.DailyStreak = 1
	}
	ts := now.UTC()
	p.LastBonusAt = &ts
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return 0, false, err
	}
	return p.DailyStreak, true, nil
}

// Award выдаёт достижение. false — уже было.
func (s *GameStore) Award(ctx context.Context, userID int64, code string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.AchievementAward{}).
		Where("user_id = ? AND code = ?", userID, code).Count(&n).Error
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	a := models.AchievementAward{UserID: userID, Code: code, AwardedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (s *GameStore) Awards(ctx context.Context, userID int64) ([]models.AchievementAward, error) {
	var out []models.AchievementAward
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("awarded_at asc").Find(&out).Error
	return out, err
}

// Leaderboard — топ по очкам для игрового меню.
func (s *GameStore) Leaderboard(ctx context.Context, limit int) ([]models.GameProfile, error) {
	var out []models.GameProfile
	err := s.db.WithContext(ctx).Order("points desc").Limit(limit).Find(&out).Error
	return out, err
}
