package models

import (
	"time"

	"gorm.io/datatypes"
)

// Статусы платежа (общие для обоих провайдеров).
const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentCanceled  = "canceled"
)

// Провайдеры.
const (
	ProviderYooKassa  = "yookassa"
	ProviderCryptoPay = "cryptopay"
)

// Payment — счёт, выставленный провайдеру. ExternalID — id платежа
// на стороне провайдера, по нему сверяется статус и вебхук.
type Payment struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ExternalID string         `gorm:"uniqueIndex;size:64" json:"external_id"`
	UserID     int64          `gorm:"index" json:"user_id"`
	Provider   string         `gorm:"size:16" json:"provider"`
	Amount     float64        `json:"amount"`
	Currency   string         `gorm:"size:8" json:"currency"`
	Months     int            `json:"months"`
	Status     string         `gorm:"size:16;index" json:"status"`
	Metadata   datatypes.JSON `json:"metadata"` // сырой ответ провайдера / доп. поля

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
