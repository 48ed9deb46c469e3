package config // package config loads application configuration from environment variables

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Reservation expiry policies accepted in RESERVATION_EXPIRY.
const (
	ExpiryEnforced = "enforced"
	ExpiryAdvisory = "advisory"
)

// devJWTSecret signs tokens in unauthenticated setups, where they are
// informational only.
const devJWTSecret = "dev-secret-change-me"

// ErrMissingJWTSecret is returned by Validate when reservation writes
// require a token but no signing secret is configured.
var ErrMissingJWTSecret = errors.New("AUTH_REQUIRED is set but JWT_SECRET is empty")

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; defaults make a bare `go run ./cmd/server`
// work against the bundled sample layout.
type Config struct {
	Env  string // application environment (dev, prod)
	Port string // HTTP port to listen on

	LayoutFile  string // JSON or YAML region layout
	VideoSource string // directory of stills, GIF clip or video file
	FrameWidth  int    // expected frame width; 0 probes the first frame
	FrameHeight int    // expected frame height; 0 probes the first frame

	OccupancyThreshold int           // foreground pixels at which a space counts as occupied
	ProcessInterval    time.Duration // pause between processing cycles
	PreviewCacheTTL    time.Duration // reuse window for the encoded video preview

	ReservationExpiry  string        // enforced or advisory
	SweepInterval      time.Duration // how often expired reservations are evicted
	DefaultDurationMin int           // duration applied when a request omits it

	JWTSecret    string        // secret used to sign access tokens
	AuthRequired bool          // require a bearer token on reservation writes
	AccessTTLMin int           // access token lifetime in minutes
	OTPTTL       time.Duration // lifetime of an emailed verification code
	BcryptCost   int           // bcrypt cost for hashing verification codes

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host; empty disables the MySQL mirror
	DBPort string // database port number
	DBName string // database name

	RabbitURL string // AMQP URL; empty disables event publishing

	LogLevel string // zerolog level name
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}
	cfg := Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: envStr("APP_PORT", "5000"),

		LayoutFile:  envStr("LAYOUT_FILE", "data/layout.json"),
		VideoSource: envStr("VIDEO_SOURCE", "data/frames"),
		FrameWidth:  envInt("FRAME_WIDTH", 0),
		FrameHeight: envInt("FRAME_HEIGHT", 0),

		OccupancyThreshold: envInt("OCCUPANCY_THRESHOLD", 900),
		ProcessInterval:    envDur("PROCESS_INTERVAL", 20*time.Millisecond),
		PreviewCacheTTL:    envDur("PREVIEW_CACHE_TTL", 500*time.Millisecond),

		ReservationExpiry:  strings.ToLower(envStr("RESERVATION_EXPIRY", ExpiryEnforced)),
		SweepInterval:      envDur("RESERVATION_SWEEP_INTERVAL", 30*time.Second),
		DefaultDurationMin: envInt("DEFAULT_DURATION_MIN", 60),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		AuthRequired: envBool("AUTH_REQUIRED", false),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),
		OTPTTL:       envDur("OTP_TTL", 10*time.Minute),
		BcryptCost:   envInt("BCRYPT_COST", 10),

		DBUser: envStr("DB_USER", "root"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: os.Getenv("DB_HOST"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: envStr("DB_NAME", "smartpark"),

		RabbitURL: os.Getenv("RABBITMQ_URL"),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
	if cfg.ReservationExpiry != ExpiryEnforced && cfg.ReservationExpiry != ExpiryAdvisory {
		log.Warn().Str("value", cfg.ReservationExpiry).Msg("unknown RESERVATION_EXPIRY, using enforced")
		cfg.ReservationExpiry = ExpiryEnforced
	}
	if (cfg.FrameWidth > 0) != (cfg.FrameHeight > 0) {
		log.Warn().Msg("FRAME_WIDTH and FRAME_HEIGHT must be set together; probing the first frame instead")
		cfg.FrameWidth, cfg.FrameHeight = 0, 0
	}
	if cfg.JWTSecret == "" && !cfg.AuthRequired {
		cfg.JWTSecret = devJWTSecret
	}
	return cfg
}

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	if c.AuthRequired && c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

// AdvisoryExpiry reports whether reservations outlive their expiry time.
func (c Config) AdvisoryExpiry() bool { return c.ReservationExpiry == ExpiryAdvisory }

// DBEnabled reports whether the MySQL mirror is configured.
func (c Config) DBEnabled() bool { return c.DBHost != "" }

// Redacted returns a view safe for logging.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"env":                c.Env,
		"port":               c.Port,
		"layoutFile":         c.LayoutFile,
		"videoSource":        c.VideoSource,
		"occupancyThreshold": c.OccupancyThreshold,
		"processInterval":    c.ProcessInterval.String(),
		"reservationExpiry":  c.ReservationExpiry,
		"authRequired":       c.AuthRequired,
		"dbEnabled":          c.DBEnabled(),
		"rabbitEnabled":      c.RabbitURL != "",
		"jwtSecretProvided":  os.Getenv("JWT_SECRET") != "",
		"logLevel":           c.LogLevel,
	}
}

// SetupLogger configures the global zerolog logger.  DEBUG in the
// environment forces debug level; dev environments get console output.
func SetupLogger(level, env string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
