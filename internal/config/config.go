package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Telegram   TelegramConfig
	Messenger  MessengerConfig
	Discord    DiscordConfig
	Conference ConferenceConfig
	Storage    StorageConfig
	AutoReply  AutoReplyConfig
	Notify     NotifyConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit. Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type TelegramConfig struct {
	// APIURL is the bot API prefix; the token gets appended: {APIURL}{token}/method
	APIURL   string
	BotToken string
}

type MessengerConfig struct {
	APIURL          string
	PageAccessToken string

	// VerifyToken answers the Graph API webhook subscription challenge.
	VerifyToken string
}

type DiscordConfig struct {
	APIURL   string
	BotToken string
}

// ConferenceConfig addresses the external conferencing service. No API calls
// are made to it; rooms exist purely as deep links, with room behavior
// carried in URL fragment parameters.
type ConferenceConfig struct {
	BaseURL    string
	RoomPrefix string

	PrejoinEnabled bool
	DisplayName    string
}

type StorageConfig struct {
	// MediaSecret signs expiring media URLs handed to the dashboard.
	MediaSecret string
	// PublicBaseURL is the externally reachable prefix of this API process,
	// used to build presigned media links.
	PublicBaseURL string
}

type AutoReplyConfig struct {
	Enabled        bool
	WelcomeMessage string
}

type NotifyConfig struct {
	Workers   int
	QueueSize int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Telegram.APIURL = envOr("TELEGRAM_API_URL", "https://api.telegram.org/bot")
	c.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	c.Messenger.APIURL = envOr("MESSENGER_API_URL", "https://graph.facebook.com/v18.0")
	c.Messenger.PageAccessToken = os.Getenv("MESSENGER_PAGE_ACCESS_TOKEN")
	c.Messenger.VerifyToken = os.Getenv("MESSENGER_VERIFY_TOKEN")

	c.Discord.APIURL = envOr("DISCORD_API_URL", "https://discord.com/api/v10")
	c.Discord.BotToken = os.Getenv("DISCORD_BOT_TOKEN")

	c.Conference.BaseURL = envOr("CONFERENCE_BASE_URL", "https://meet.jit.si")
	c.Conference.RoomPrefix = envOr("CONFERENCE_ROOM_PREFIX", "support-call")
	c.Conference.PrejoinEnabled = envBool("CONFERENCE_PREJOIN_ENABLED", false)
	c.Conference.DisplayName = envOr("CONFERENCE_DISPLAY_NAME", "Support")

	c.Storage.MediaSecret = os.Getenv("MEDIA_URL_SECRET")
	c.Storage.PublicBaseURL = strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL"))

	c.AutoReply.Enabled = envBool("AUTO_REPLY_ENABLED", true)
	c.AutoReply.WelcomeMessage = envOr("AUTO_REPLY_WELCOME_MESSAGE",
		"Hello! A member of our staff will get back to you as soon as possible.")

	c.Notify.Workers = envIntOr("NOTIFY_WORKERS", 4)
	c.Notify.QueueSize = envIntOr("NOTIFY_QUEUE_SIZE", 256)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Storage.MediaSecret == "" {
		errs = append(errs, errors.New("MEDIA_URL_SECRET is required"))
	}
	if c.Storage.PublicBaseURL == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("PUBLIC_BASE_URL is required in production"))
		} else {
			c.Storage.PublicBaseURL = fmt.Sprintf("http://localhost:%d", c.App.Port)
		}
	}

	// Platform tokens are optional per-deployment: an unconfigured channel is
	// simply absent from the connector registry. Production requires at least one.
	if c.IsProduction() && c.Telegram.BotToken == "" && c.Messenger.PageAccessToken == "" && c.Discord.BotToken == "" {
		errs = append(errs, errors.New("at least one platform token is required in production"))
	}

	if c.Conference.BaseURL == "" {
		errs = append(errs, errors.New("CONFERENCE_BASE_URL must not be empty"))
	}
	if c.Conference.RoomPrefix == "" {
		errs = append(errs, errors.New("CONFERENCE_ROOM_PREFIX must not be empty"))
	}

	if c.Notify.Workers <= 0 {
		c.Notify.Workers = 4
	}
	if c.Notify.QueueSize <= 0 {
		c.Notify.QueueSize = 256
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func envOr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntOr(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
