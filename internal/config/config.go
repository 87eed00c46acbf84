package config

import (
	"log"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	DbURI string `env:"OUTREACH_DB_URI" envDefault:"./outreach.sqlite"`

	// BaseURL is the public address embedded in tracking pixels, click
	// redirects and unsubscribe links, eg https://mail.example.com
	BaseURL string `env:"OUTREACH_BASE_URL" envDefault:"http://localhost:8080"`

	APIPort         int    `env:"OUTREACH_API_PORT" envDefault:"8080"`
	APIAutoTLS      bool   `env:"OUTREACH_API_AUTO_TLS" envDefault:"false"` // use echo AutoTLSManager for getting a certificate for the public host
	APIAutoTLSEmail string `env:"OUTREACH_API_AUTO_TLS_EMAIL"`              // account email for Let's Encrypt
	APIAutoTLSDir   string `env:"OUTREACH_API_AUTO_TLS_DIR" envDefault:".cache"`

	SMTPHost     string `env:"OUTREACH_SMTP_HOST" envDefault:"localhost"`
	SMTPPort     int    `env:"OUTREACH_SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"OUTREACH_SMTP_USER"`
	SMTPPassword string `env:"OUTREACH_SMTP_PASSWORD"`
	SMTPFrom     string `env:"OUTREACH_SMTP_FROM" envDefault:"noreply@example.com"`
	SMTPFromName string `env:"OUTREACH_SMTP_FROM_NAME" envDefault:"Acorn Outreach"`

	MaxRetries int           `env:"OUTREACH_SEND_MAX_RETRIES" envDefault:"3"`
	BaseDelay  time.Duration `env:"OUTREACH_SEND_BASE_DELAY" envDefault:"1s"`
	MaxDelay   time.Duration `env:"OUTREACH_SEND_MAX_DELAY" envDefault:"10s"`

	LogLevel string `env:"OUTREACH_LOG_LEVEL" envDefault:"info"`
}

var (
	once sync.Once
	cfg  Config
)

func Get() *Config {
	once.Do(func() {
		cfg = Config{}
		if err := env.Parse(&cfg); err != nil {
			log.Panic("Couldn't parse Config from env: ", err)
		}
	})
	return &cfg
}
