package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Конечная структура конфигурации приложения.
// Расширяем по мере роста проекта.
type Config struct {
	Server struct {
		Address  string `mapstructure:"address"`   // 0.0.0.0
		HTTPPort string `mapstructure:"http_port"` // 8080
	} `mapstructure:"server"`

	Telegram struct {
		Token    string  `mapstructure:"token"`
		Username string  `mapstructure:"username"`  // без @, для реферальных ссылок
		AdminIDs []int64 `mapstructure:"admin_ids"` // никогда не попадают под reconcile
	} `mapstructure:"telegram"`

	WireGuard struct {
		Interface       string `mapstructure:"interface"`         // wg0
		WGExec          string `mapstructure:"wg_exec"`           // /usr/bin/wg
		WGQuickExec     string `mapstructure:"wg_quick_exec"`     // /usr/bin/wg-quick
		ServerHost      string `mapstructure:"server_host"`       // публичный IP сервера
		ServerPort      int    `mapstructure:"server_port"`       // 51820
		ServerPublicKey string `mapstructure:"server_public_key"` // base64
		Subnet          string `mapstructure:"subnet"`            // 10.0.0.0/24
		DNS             string `mapstructure:"dns"`               // "1.1.1.1, 8.8.8.8"
		Keepalive       int    `mapstructure:"keepalive"`         // 20
		CommandTimeout  int    `mapstructure:"command_timeout"`   // секунды на вызов wg
	} `mapstructure:"wireguard"`

	Logging struct {
		Level  string `mapstructure:"level"`  // trace|debug|info|warning|error|fatal
		Format string `mapstructure:"format"` // text|json
		File   string `mapstructure:"file"`   // путь/префикс файла, пусто — только stdout
	} `mapstructure:"logs"`

	Database struct {
		Driver string `mapstructure:"driver"` // "sqlite" | "postgres" | "mysql"
		DSN    string `mapstructure:"dsn"`    // для sqlite — путь к файлу
	} `mapstructure:"database"`

	Payments struct {
		Currency string `mapstructure:"currency"` // RUB

		YooKassa struct {
			ShopID    string `mapstructure:"shop_id"`
			SecretKey string `mapstructure:"secret_key"`
			ReturnURL string `mapstructure:"return_url"`
		} `mapstructure:"yookassa"`

		CryptoPay struct {
			Token         string `mapstructure:"token"`
			APIURL        string `mapstructure:"api_url"`
			WebhookSecret string `mapstructure:"webhook_secret"` // HMAC ключ для вебхука
		} `mapstructure:"cryptopay"`
	} `mapstructure:"payments"`

	Game struct {
		TrialDays          int  `mapstructure:"trial_days"`
		TrialEnabled       bool `mapstructure:"trial_enabled"`
		ReferralBonusFirst int  `mapstructure:"referral_bonus_first"`
		ReferralBonusNext  int  `mapstructure:"referral_bonus_next"`
		ReferralEnabled    bool `mapstructure:"referral_enabled"`
		DailyBonusMin      int  `mapstructure:"daily_bonus_min"`
		DailyBonusMax      int  `mapstructure:"daily_bonus_max"`
		DailyBonusEnabled  bool `mapstructure:"daily_bonus_enabled"`
		LevelUpPoints      int  `mapstructure:"level_up_points"`
		LevelRewardDays    int  `mapstructure:"level_reward_days"`
	} `mapstructure:"game"`

	Reconciler struct {
		Interval     string `mapstructure:"interval"`       // cron-совместимый "@every 30m"
		NotifyEveryN int    `mapstructure:"notify_every_n"` // каждый N-й проход шлём уведомления
	} `mapstructure:"reconciler"`

	Admin struct {
		PasswordHash string `mapstructure:"password_hash"` // argon2id, hex
		SessionTTL   int    `mapstructure:"session_ttl"`   // секунды
	} `mapstructure:"admin"`
}

// Load читает конфиг из env/файла с дефолтами.
func Load() (*Config, error) {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Дефолты (минимальный рабочий набор)
	viper.SetDefault("server.address", "0.0.0.0")
	viper.SetDefault("server.http_port", "8080")

	viper.SetDefault("wireguard.interface", "wg0")
	viper.SetDefault("wireguard.wg_exec", "/usr/bin/wg")
	viper.SetDefault("wireguard.wg_quick_exec", "/usr/bin/wg-quick")
	viper.SetDefault("wireguard.server_port", 51820)
	viper.SetDefault("wireguard.subnet", "10.0.0.0/24")
	viper.SetDefault("wireguard.dns", "1.1.1.1, 8.8.8.8")
	viper.SetDefault("wireguard.keepalive", 20)
	viper.SetDefault("wireguard.command_timeout", 10)

	// Логи — дефолты
	viper.SetDefault("logs.level", "info")
	viper.SetDefault("logs.format", "text")
	viper.SetDefault("logs.file", "")

	// DB: по умолчанию — sqlite рядом с ботом
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "data/subscriptions.db")

	viper.SetDefault("payments.currency", "RUB")
	viper.SetDefault("payments.cryptopay.api_url", "https://pay.crypt.bot/api")

	viper.SetDefault("game.trial_days", 10)
	viper.SetDefault("game.trial_enabled", true)
	viper.SetDefault("game.referral_bonus_first", 10)
	viper.SetDefault("game.referral_bonus_next", 5)
	viper.SetDefault("game.referral_enabled", true)
	viper.SetDefault("game.daily_bonus_min", 1)
	viper.SetDefault("game.daily_bonus_max", 3)
	viper.SetDefault("game.daily_bonus_enabled", true)
	viper.SetDefault("game.level_up_points", 100)
	viper.SetDefault("game.level_reward_days", 2)

	viper.SetDefault("reconciler.interval", "@every 30m")
	viper.SetDefault("reconciler.notify_every_n", 4)

	viper.SetDefault("admin.session_ttl", 86400)

	// Источник файла
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "vpn-creative-bot"))
		}
		viper.AddConfigPath("/etc/vpn-creative-bot")
	}

	// Чтение файла (опционально)
	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func validate(c *Config) error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token must be set")
	}
	if len(c.Telegram.AdminIDs) == 0 {
		return errors.New("telegram.admin_ids must not be empty")
	}
	if strings.TrimSpace(c.WireGuard.ServerHost) == "" {
		return errors.New("wireguard.server_host must not be empty")
	}
	if _, err := wgtypes.ParseKey(c.WireGuard.ServerPublicKey); err != nil {
		return fmt.Errorf("wireguard.server_public_key is not a valid key: %w", err)
	}
	if c.Payments.YooKassa.ShopID == "" && c.Payments.CryptoPay.Token == "" {
		return errors.New("at least one payment method must be configured")
	}
	if strings.TrimSpace(c.Server.Address) == "" {
		return errors.New("server.address must not be empty")
	}
	if strings.TrimSpace(c.Server.HTTPPort) == "" {
		return errors.New("server.http_port must not be empty")
	}
	return nil
}

// IsAdmin сообщает, входит ли пользователь в список администраторов.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
