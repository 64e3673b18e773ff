package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Omnipay  OmnipayConfig
	Gateways GatewaysConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

// OmnipayConfig is the process-wide payment middleware configuration.
type OmnipayConfig struct {
	BasePath    string
	BaseURI     string
	Secret      string
	CookieName  string
	SessionTTL  time.Duration
	StoreDriver string // "memory", "redis" or "mysql"
}

type GatewaysConfig struct {
	Mangopay MangopayConfig
	BitPay   BitPayConfig
	Comnpay  ComnpayConfig
}

type MangopayConfig struct {
	ClientID   string
	Passphrase string
	WalletID   string
	Sandbox    bool
}

type BitPayConfig struct {
	APIKey  string
	Sandbox bool
}

type ComnpayConfig struct {
	TPEID     string
	SecretKey string
	Sandbox   bool
}

// Load reads configuration from a .env file and environment variables.
// A missing signing secret is a fatal configuration error: signatures
// must never be silently derived from an empty key.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("OMNIPAY_BASE_PATH", "/pay")
	viper.SetDefault("OMNIPAY_COOKIE_NAME", "omnipay_session")
	viper.SetDefault("OMNIPAY_SESSION_TTL", "1h")
	viper.SetDefault("OMNIPAY_STORE_DRIVER", "memory")

	sessionTTL, err := time.ParseDuration(viper.GetString("OMNIPAY_SESSION_TTL"))
	if err != nil {
		sessionTTL = time.Hour
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Omnipay: OmnipayConfig{
			BasePath:    viper.GetString("OMNIPAY_BASE_PATH"),
			BaseURI:     viper.GetString("OMNIPAY_BASE_URI"),
			Secret:      viper.GetString("OMNIPAY_SECRET"),
			CookieName:  viper.GetString("OMNIPAY_COOKIE_NAME"),
			SessionTTL:  sessionTTL,
			StoreDriver: viper.GetString("OMNIPAY_STORE_DRIVER"),
		},
		Gateways: GatewaysConfig{
			Mangopay: MangopayConfig{
				ClientID:   viper.GetString("MANGOPAY_CLIENT_ID"),
				Passphrase: viper.GetString("MANGOPAY_PASSPHRASE"),
				WalletID:   viper.GetString("MANGOPAY_WALLET_ID"),
				Sandbox:    viper.GetBool("MANGOPAY_SANDBOX"),
			},
			BitPay: BitPayConfig{
				APIKey:  viper.GetString("BITPAY_API_KEY"),
				Sandbox: viper.GetBool("BITPAY_SANDBOX"),
			},
			Comnpay: ComnpayConfig{
				TPEID:     viper.GetString("COMNPAY_TPE_ID"),
				SecretKey: viper.GetString("COMNPAY_SECRET_KEY"),
				Sandbox:   viper.GetBool("COMNPAY_SANDBOX"),
			},
		},
	}

	if cfg.Omnipay.Secret == "" {
		return nil, fmt.Errorf("OMNIPAY_SECRET is required")
	}

	return cfg, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
