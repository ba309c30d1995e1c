package models

import "time"

// GameProfile — очки, уровень и реферальное состояние пользователя.
type GameProfile struct {
	UserID      int64      `gorm:"primaryKey" json:"user_id"`
	Points      int        `json:"points"`
	Level       int        `json:"level"`
	DailyStreak int        `json:"daily_streak"`
	LastBonusAt *time.Time `json:"last_bonus_at"`

	ReferralCode string `gorm:"uniqueIndex;size:16" json:"referral_code"`
	ReferredBy   int64  `gorm:"index" json:"referred_by"` // 0 — пришёл сам
	Referrals    int    `json:"referrals"`                // сколько привёл

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AchievementAward — выданное достижение. Пара (user, code) уникальна.
type AchievementAward struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"index;uniqueIndex:uniq_user_ach,priority:1" json:"user_id"`
	Code      string    `gorm:"size:32;uniqueIndex:uniq_user_ach,priority:2" json:"code"`
	AwardedAt time.Time `json:"awarded_at"`
}
