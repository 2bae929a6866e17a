// Package config загружает конфигурацию клиента из переменных окружения.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/joho/godotenv"

	"github.com/arzzra/ims_phone/internal/log"
	"github.com/arzzra/ims_phone/pkg/presence/pidf"
	"github.com/arzzra/ims_phone/pkg/sip/transport"
)

// ErrInvalid некорректная конфигурация
var ErrInvalid = errors.New("invalid configuration")

// Config конфигурация клиента
type Config struct {
	SIP      SIPConfig
	Presence PresenceConfig
	XDM      XDMConfig
	Store    StoreConfig
	Log      LogConfig
	HTTP     HTTPConfig
}

// SIPConfig параметры стека и регистрации
type SIPConfig struct {
	LocalHost string
	LocalPort int
	Transport string
	// ProxyHost пустой означает поиск через SRV домена
	ProxyHost       string
	ProxyPort       int
	Domain          string
	User            string
	Password        string
	DisplayName     string
	UserAgent       string
	FeatureTags     []string
	TxTimeout       time.Duration
	RegisterExpires int
	NameServer      string
}

// PresenceConfig параметры сервиса присутствия
type PresenceConfig struct {
	PublishExpires   int
	SubscribeExpires int
	PermanentState   bool
	CheckInterval    time.Duration
	// RLSURI список контактов на RLS, по умолчанию sip:<user>_rcs_list@<domain>
	RLSURI string
	// Capabilities публикуемые сервисы: im, ft, is, vs, dp
	Capabilities []string
}

// XDMConfig параметры XDMS. Пустой RootURL отключает клиент.
type XDMConfig struct {
	RootURL  string
	User     string
	Password string
	Timeout  time.Duration
}

// StoreConfig путь к базе реестра
type StoreConfig struct {
	DBPath string
}

// LogConfig параметры логирования
type LogConfig struct {
	Level  string
	Format string
}

// HTTPConfig отладочный HTTP сервер (/metrics, /status)
type HTTPConfig struct {
	Addr string
}

// Load читает .env, если он есть, и переменные окружения
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	user := getEnv("SIP_USER", "")
	domain := getEnv("SIP_DOMAIN", "")

	cfg := &Config{
		SIP: SIPConfig{
			LocalHost:       getEnv("SIP_LOCAL_HOST", "0.0.0.0"),
			LocalPort:       getEnvInt("SIP_LOCAL_PORT", 5060),
			Transport:       strings.ToLower(getEnv("SIP_TRANSPORT", transport.TransportUDP)),
			ProxyHost:       getEnv("SIP_PROXY_HOST", ""),
			ProxyPort:       getEnvInt("SIP_PROXY_PORT", 0),
			Domain:          domain,
			User:            user,
			Password:        getEnv("SIP_PASSWORD", ""),
			DisplayName:     getEnv("SIP_DISPLAY_NAME", ""),
			UserAgent:       getEnv("SIP_USER_AGENT", "ims-phone/1.0"),
			FeatureTags:     getEnvList("SIP_FEATURE_TAGS"),
			TxTimeout:       getEnvDuration("SIP_TX_TIMEOUT", 32*time.Second),
			RegisterExpires: getEnvInt("SIP_REGISTER_EXPIRES", 3600),
			NameServer:      getEnv("SIP_NAMESERVER", ""),
		},
		Presence: PresenceConfig{
			PublishExpires:   getEnvInt("PRESENCE_PUBLISH_EXPIRES", 3600),
			SubscribeExpires: getEnvInt("PRESENCE_SUBSCRIBE_EXPIRES", 3600),
			PermanentState:   getEnvBool("PRESENCE_PERMANENT_STATE", false),
			CheckInterval:    getEnvDuration("PRESENCE_CHECK_INTERVAL", time.Minute),
			RLSURI:           getEnv("PRESENCE_RLS_URI", ""),
			Capabilities:     getEnvList("PRESENCE_CAPABILITIES"),
		},
		XDM: XDMConfig{
			RootURL:  getEnv("XDM_ROOT_URL", ""),
			User:     getEnv("XDM_USER", user),
			Password: getEnv("XDM_PASSWORD", ""),
			Timeout:  getEnvDuration("XDM_TIMEOUT", 10*time.Second),
		},
		Store: StoreConfig{
			DBPath: getEnv("DB_PATH", "./data/ims.db"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", log.FormatConsole),
		},
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":9090"),
		},
	}
	if cfg.Presence.Capabilities == nil {
		cfg.Presence.Capabilities = []string{"im", "ft", "dp"}
	}
	if cfg.Presence.RLSURI == "" && user != "" && domain != "" {
		cfg.Presence.RLSURI = "sip:" + user + "_rcs_list@" + domain
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет обязательные поля
func (c *Config) Validate() error {
	switch {
	case c.SIP.Domain == "":
		return fmt.Errorf("%w: SIP_DOMAIN cannot be empty", ErrInvalid)
	case c.SIP.User == "":
		return fmt.Errorf("%w: SIP_USER cannot be empty", ErrInvalid)
	case c.SIP.RegisterExpires <= 0:
		return fmt.Errorf("%w: SIP_REGISTER_EXPIRES must be > 0", ErrInvalid)
	case c.SIP.TxTimeout <= 0:
		return fmt.Errorf("%w: SIP_TX_TIMEOUT must be > 0", ErrInvalid)
	case c.Presence.PublishExpires <= 0:
		return fmt.Errorf("%w: PRESENCE_PUBLISH_EXPIRES must be > 0", ErrInvalid)
	case c.Presence.SubscribeExpires <= 0:
		return fmt.Errorf("%w: PRESENCE_SUBSCRIBE_EXPIRES must be > 0", ErrInvalid)
	case c.Presence.CheckInterval < 0:
		return fmt.Errorf("%w: PRESENCE_CHECK_INTERVAL cannot be negative", ErrInvalid)
	case c.Store.DBPath == "":
		return fmt.Errorf("%w: DB_PATH cannot be empty", ErrInvalid)
	}

	if err := c.StackConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.RLS(); err != nil {
		return err
	}
	for _, name := range c.Presence.Capabilities {
		if _, ok := capabilitySetters[strings.ToLower(name)]; !ok {
			return fmt.Errorf("%w: PRESENCE_CAPABILITIES: unknown service %q", ErrInvalid, name)
		}
	}
	if c.XDM.RootURL != "" {
		u, err := url.Parse(c.XDM.RootURL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("%w: XDM_ROOT_URL must be an absolute url", ErrInvalid)
		}
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: LOG_LEVEL: %v", ErrInvalid, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case log.FormatConsole, log.FormatDev, log.FormatJSON:
	default:
		return fmt.Errorf("%w: LOG_FORMAT %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// StackConfig параметры SIP стека
func (c *Config) StackConfig() transport.Config {
	return transport.Config{
		LocalHost:   c.SIP.LocalHost,
		LocalPort:   c.SIP.LocalPort,
		ProxyHost:   c.SIP.ProxyHost,
		ProxyPort:   c.SIP.ProxyPort,
		Transport:   c.SIP.Transport,
		User:        c.SIP.User,
		Domain:      c.SIP.Domain,
		DisplayName: c.SIP.DisplayName,
		UserAgent:   c.SIP.UserAgent,
	}
}

// Identity публичная identity sip:user@domain
func (c *Config) Identity() sip.Uri {
	return sip.Uri{Scheme: "sip", User: c.SIP.User, Host: c.SIP.Domain}
}

// RLS URI списка контактов
func (c *Config) RLS() (sip.Uri, error) {
	var u sip.Uri
	if err := sip.ParseUri(c.Presence.RLSURI, &u); err != nil {
		return u, fmt.Errorf("%w: PRESENCE_RLS_URI %q: %v", ErrInvalid, c.Presence.RLSURI, err)
	}
	if u.Host == "" {
		return u, fmt.Errorf("%w: PRESENCE_RLS_URI %q without host", ErrInvalid, c.Presence.RLSURI)
	}
	return u, nil
}

var capabilitySetters = map[string]func(*pidf.Capabilities){
	"im": func(c *pidf.Capabilities) { c.IMSession = true },
	"ft": func(c *pidf.Capabilities) { c.FileTransfer = true },
	"is": func(c *pidf.Capabilities) { c.ImageShare = true },
	"vs": func(c *pidf.Capabilities) { c.VideoShare = true },
	"dp": func(c *pidf.Capabilities) { c.PresenceDiscovery = true },
}

// Capabilities набор публикуемых сервисов
func (c *Config) Capabilities() pidf.Capabilities {
	var caps pidf.Capabilities
	for _, name := range c.Presence.Capabilities {
		if set, ok := capabilitySetters[strings.ToLower(name)]; ok {
			set(&caps)
		}
	}
	return caps
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList список через запятую, пустые элементы отбрасываются
func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
