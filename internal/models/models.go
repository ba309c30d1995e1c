package models

import "time"

// User — зарегистрированный пользователь бота. Ключ — telegram id.
type User struct {
	UserID   int64  `gorm:"primaryKey" json:"user_id"`
	Username string `gorm:"size:64;index" json:"username"`
	FullName string `gorm:"size:255" json:"full_name"`
	JoinDate time.Time `json:"join_date"`
}

// Subscription — оплаченный (или триальный) период доступа.
// У пользователя может быть несколько записей; активность определяется
// максимальным end_date.
type Subscription struct {
	SubID        uint      `gorm:"primaryKey" json:"sub_id"`
	UserID       int64     `gorm:"index" json:"user_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `gorm:"index" json:"end_date"`
	PaymentID    string    `gorm:"uniqueIndex;size:64" json:"payment_id"`
	DurationDays int       `json:"duration_days"`
	IsTrial      bool      `json:"is_trial"`
}

// TrialActivation — факт активации пробного периода.
// Ведётся отдельно от подписок: пользователь, который активировал триал
// и так и не купил подписку, всё равно должен попадать под reconcile.
type TrialActivation struct {
	UserID      int64     `gorm:"primaryKey" json:"user_id"`
	ActivatedAt time.Time `json:"activated_at"`
}
