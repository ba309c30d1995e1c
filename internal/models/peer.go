package models

import "time"

// PeerConfig — один WireGuard-пир пользователя (слот).
// ConfigID монотонно растёт и никогда не переиспользуется: из него
// детерминированно выводится адрес туннеля (см. PeerStore.NextAddressOffset).
type PeerConfig struct {
	ConfigID   uint   `gorm:"primaryKey" json:"config_id"`
	UserID     int64  `gorm:"index" json:"user_id"`
	PrivateKey string `gorm:"size:64" json:"-"` // уходит только в конфиг самого пользователя
	PublicKey  string `gorm:"size:64;index" json:"public_key"`
	Address    string `gorm:"size:32;uniqueIndex" json:"address"` // "10.0.0.X", маска всегда /32

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
