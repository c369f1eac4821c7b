package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/juju/errors"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Branch is a shop location shown on the public map.
type Branch struct {
	Name     string
	Location orb.Point
}

// Shop holds the public facing details the chatbot answers with.
type Shop struct {
	Name    string
	Phone   string
	Hours   string
	Address string
}

type Settings struct {
	Port         string
	DBDSN        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	JWTSecret        string
	JWTTTL           time.Duration
	LoginMaxAttempts int
	LoginLockout     time.Duration

	TrackingForwardOnly bool

	ChatRateLimit  int
	ChatRateWindow time.Duration
	RedisAddr      string
	LLMAPIURL      string
	LLMAPIKey      string
	LLMModel       string

	GCSBucket string
	UploadDir string

	LogLevel  string
	LogFormat string

	AdminName     string
	AdminEmail    string
	AdminPassword string

	CORSOrigin     string
	TrustedProxies []*net.IPNet
	Branches       []Branch
	Shop       Shop
}

// Load reads .env (when present) and the process environment.
func Load() (*Settings, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	e := envReader{}
	s := &Settings{
		Port:         e.str("PORT", "8080"),
		DBDSN:        e.str("DB_DSN", ""),
		ReadTimeout:  e.duration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: e.duration("HTTP_WRITE_TIMEOUT", 30*time.Second),

		JWTSecret:        e.str("JWT_SECRET", ""),
		JWTTTL:           e.duration("JWT_TTL", 24*time.Hour),
		LoginMaxAttempts: e.integer("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockout:     e.duration("LOGIN_LOCKOUT", 15*time.Minute),

		TrackingForwardOnly: e.boolean("TRACKING_FORWARD_ONLY", false),

		ChatRateLimit:  e.integer("CHAT_RATE_LIMIT", 20),
		ChatRateWindow: e.duration("CHAT_RATE_WINDOW", 10*time.Minute),
		RedisAddr:      e.str("REDIS_ADDR", ""),
		LLMAPIURL:      e.str("LLM_API_URL", ""),
		LLMAPIKey:      e.str("LLM_API_KEY", ""),
		LLMModel:       e.str("LLM_MODEL", "gpt-4o-mini"),

		GCSBucket: e.str("GCS_BUCKET", ""),
		UploadDir: e.str("UPLOAD_DIR", "./uploads"),

		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", "text"),

		AdminName:     e.str("ADMIN_NAME", "Administrador"),
		AdminEmail:    e.str("ADMIN_EMAIL", ""),
		AdminPassword: e.str("ADMIN_PASSWORD", ""),

		CORSOrigin: e.str("CORS_ORIGIN", "*"),
		Shop: Shop{
			Name:    e.str("SHOP_NAME", "Taller"),
			Phone:   e.str("SHOP_PHONE", ""),
			Hours:   e.str("SHOP_HOURS", "Lunes a viernes 8:00 a 18:00, sábados 8:00 a 13:00"),
			Address: e.str("SHOP_ADDRESS", ""),
		},
	}
	s.Branches = e.branches("SHOP_BRANCHES")
	s.TrustedProxies = e.networks("TRUSTED_PROXIES")

	if s.DBDSN == "" {
		e.fail("DB_DSN", "is required")
	}
	if s.JWTSecret == "" {
		e.fail("JWT_SECRET", "is required")
	}
	if s.LoginMaxAttempts < 1 {
		e.fail("LOGIN_MAX_ATTEMPTS", "must be positive")
	}
	if s.ChatRateLimit < 1 {
		e.fail("CHAT_RATE_LIMIT", "must be positive")
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		e.fail("LOG_FORMAT", "must be text or json")
	}
	if (s.AdminEmail == "") != (s.AdminPassword == "") {
		e.fail("ADMIN_EMAIL", "and ADMIN_PASSWORD must be set together")
	}
	if len(e.errs) > 0 {
		return nil, errors.NotValidf("configuration: %s", strings.Join(e.errs, "; "))
	}
	return s, nil
}

// envReader collects parse failures so Load can report all of them at once.
type envReader struct {
	errs []string
}

func (e *envReader) fail(key, msg string) {
	e.errs = append(e.errs, key+" "+msg)
}

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, "must be an integer")
		return def
	}
	return n
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.fail(key, "must be a positive duration")
		return def
	}
	return d
}

func (e *envReader) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, "must be a boolean")
		return def
	}
	return b
}

// branches parses "name|lat|lon;name|lat|lon".
func (e *envReader) branches(key string) []Branch {
	v := e.str(key, "")
	if v == "" {
		return nil
	}
	var out []Branch
	for _, entry := range strings.Split(v, ";") {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 3 {
			e.fail(key, "entries must look like name|lat|lon")
			return nil
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			e.fail(key, "has an invalid coordinate")
			return nil
		}
		out = append(out, Branch{Name: strings.TrimSpace(parts[0]), Location: orb.Point{lon, lat}})
	}
	return out
}

// networks parses a comma separated list of CIDRs or bare addresses.
func (e *envReader) networks(key string) []*net.IPNet {
	var out []*net.IPNet
	for _, item := range strings.Split(e.str(key, ""), ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if !strings.Contains(item, "/") {
			ip := net.ParseIP(item)
			if ip == nil {
				e.fail(key, fmt.Sprintf("has an invalid address %q", item))
				return nil
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(item)
		if err != nil {
			e.fail(key, fmt.Sprintf("has an invalid network %q", item))
			return nil
		}
		out = append(out, n)
	}
	return out
}

// NewLogger builds the process logger.
func NewLogger(level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// GormConfig is shared by the postgres connection and the test databases.
func GormConfig(log logrus.FieldLogger) *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger: gormLogger.New(log, gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	}
}

// Connect opens the postgres database.
func Connect(dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig(log))
	if err != nil {
		return nil, errors.Annotate(err, "failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
