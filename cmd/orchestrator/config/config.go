package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxRetries  = 3
	defaultStatusTTL   = 24 * time.Hour
	defaultWaitTimeout = 30 * time.Second
	defaultSMTPPort    = 587
	defaultMailFrom    = "noreply@studentportal.local"
	defaultFromName    = "Student Portal"
)

// BrokerConfig holds the RabbitMQ topology settings.
type BrokerConfig struct {
	URL         string
	Exchange    string
	SagaQueue   string
	ResultQueue string
	DeadLetter  string
	MaxRetries  int
}

// RedisConfig holds the optional status store backend.
type RedisConfig struct {
	URL       string
	StatusTTL time.Duration
}

// SMTPConfig holds the optional mail relay settings. An empty Host
// disables delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// StatusConfig holds the status poll settings.
type StatusConfig struct {
	WaitTimeout time.Duration
}

// ObservabilityConfig holds the HTTP address for the ops endpoints.
type ObservabilityConfig struct {
	Addr string
}

// LoadBroker reads broker config from env.
func LoadBroker() (BrokerConfig, error) {
	cfg := BrokerConfig{}

	var err error
	if cfg.URL, err = requiredString("AMQP_URL"); err != nil {
		return cfg, err
	}
	if cfg.Exchange, err = requiredString("AMQP_EXCHANGE"); err != nil {
		return cfg, err
	}
	if cfg.SagaQueue, err = requiredString("SAGA_QUEUE"); err != nil {
		return cfg, err
	}
	if cfg.ResultQueue, err = requiredString("RESULT_QUEUE"); err != nil {
		return cfg, err
	}

	cfg.DeadLetter = strings.TrimSpace(os.Getenv("DEAD_LETTER_QUEUE"))
	if cfg.DeadLetter == "" {
		cfg.DeadLetter = cfg.SagaQueue + ".dead"
	}

	retries, err := optionalInt("CONSUMER_MAX_RETRIES")
	if err != nil {
		return cfg, err
	}
	cfg.MaxRetries = defaultMaxRetries
	if retries != nil {
		cfg.MaxRetries = *retries
	}

	return cfg, nil
}

// LoadRedis reads the optional status store config from env.
func LoadRedis() (RedisConfig, error) {
	cfg := RedisConfig{
		URL:       strings.TrimSpace(os.Getenv("REDIS_URL")),
		StatusTTL: defaultStatusTTL,
	}
	ttl, err := optionalDuration("STATUS_TTL")
	if err != nil {
		return cfg, err
	}
	if ttl != nil {
		cfg.StatusTTL = *ttl
	}
	return cfg, nil
}

// LoadSMTP reads the optional mail relay config from env.
func LoadSMTP() (SMTPConfig, error) {
	cfg := SMTPConfig{
		Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
		Username: strings.TrimSpace(os.Getenv("SMTP_USERNAME")),
		Password: os.Getenv("SMTP_PASSWORD"),
		Port:     defaultSMTPPort,
		From:     defaultMailFrom,
		FromName: defaultFromName,
	}

	port, err := optionalInt("SMTP_PORT")
	if err != nil {
		return cfg, err
	}
	if port != nil {
		cfg.Port = *port
	}

	if from := strings.TrimSpace(os.Getenv("MAIL_FROM")); from != "" {
		cfg.From = from
	}
	if name := strings.TrimSpace(os.Getenv("MAIL_FROM_NAME")); name != "" {
		cfg.FromName = name
	}

	return cfg, nil
}

// LoadStatus reads the status poll settings from env.
func LoadStatus() (StatusConfig, error) {
	cfg := StatusConfig{WaitTimeout: defaultWaitTimeout}
	timeout, err := optionalDuration("STATUS_WAIT_TIMEOUT")
	if err != nil {
		return cfg, err
	}
	if timeout != nil {
		cfg.WaitTimeout = *timeout
	}
	return cfg, nil
}

// LoadObservability reads the ops HTTP server address from env.
func LoadObservability() (ObservabilityConfig, error) {
	addr, err := requiredString("OBS_ADDR")
	if err != nil {
		return ObservabilityConfig{}, err
	}
	return ObservabilityConfig{Addr: addr}, nil
}

// PaymentStubEnabled reports whether the parity payment stub replaces
// the approve-all gateway.
func PaymentStubEnabled() (bool, error) {
	return optionalBool("PAYMENT_PARITY_STUB")
}

func requiredString(name string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return raw, nil
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalBool(name string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}
