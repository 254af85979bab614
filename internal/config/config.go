package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/akylbek/payment-system/agent-tools/internal/minipay"
)

type Config struct {
	MiniPayBaseURL string
	MiniPayTimeout time.Duration
	Port           string
	JaegerEndpoint string
	DatabaseURL    string
	AuditDBPath    string
	RedisURL       string
	KafkaBrokers   string
	KafkaTopic     string
	NATSURL        string
	LogLevel       string
}

func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("MINIPAY_BASE_URL", minipay.DefaultBaseURL)
	v.SetDefault("MINIPAY_TIMEOUT", minipay.DefaultTimeout.String())
	v.SetDefault("PORT", "8085")
	v.SetDefault("KAFKA_TOPIC", "agent.tool.events")
	v.SetDefault("LOG_LEVEL", "info")

	return &Config{
		MiniPayBaseURL: v.GetString("MINIPAY_BASE_URL"),
		MiniPayTimeout: durationOrSeconds(v.GetString("MINIPAY_TIMEOUT"), minipay.DefaultTimeout),
		Port:           v.GetString("PORT"),
		JaegerEndpoint: v.GetString("JAEGER_ENDPOINT"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		AuditDBPath:    v.GetString("AUDIT_DB_PATH"),
		RedisURL:       v.GetString("REDIS_URL"),
		KafkaBrokers:   v.GetString("KAFKA_BROKERS"),
		KafkaTopic:     v.GetString("KAFKA_TOPIC"),
		NATSURL:        v.GetString("NATS_URL"),
		LogLevel:       v.GetString("LOG_LEVEL"),
	}
}

// MiniPay returns the transport client settings.
func (c *Config) MiniPay() minipay.Config {
	return minipay.Config{
		BaseURL: c.MiniPayBaseURL,
		Timeout: c.MiniPayTimeout,
	}
}

// durationOrSeconds accepts "30s"-style durations as well as a bare number of
// seconds ("30", "2.5"). Anything unparsable or non-positive yields def.
func durationOrSeconds(raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return def
		}
		return d
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return def
	}
	return time.Duration(secs * float64(time.Second))
}
