package config // package config loads application configuration from environment variables

import (
	"log"     // log reports configuration errors before the zap logger exists
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"

	"github.com/joho/godotenv" // godotenv pre-loads a local .env file when present
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Access and refresh tokens are signed with
// distinct secrets so that a leaked access secret cannot mint refresh tokens.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	LogLevel string // zap level name: debug, info, warn, error
	BaseURL  string // public URL used in invitation links

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	AccessSecret  string        // HS256 secret for access tokens
	RefreshSecret string        // HS256 secret for refresh tokens
	InviteSecret  string        // HS256 secret for invitation tokens
	AccessTTL     time.Duration // access token lifetime
	RefreshTTL    time.Duration // refresh token lifetime
	InviteTTL     time.Duration // invitation token lifetime
	BcryptCost    int           // bcrypt cost for password hashing
	CookieSecure  bool          // mark auth cookies Secure
	RequireVerify bool          // reject logins from unverified accounts

	RetentionDays int    // activity log and soft-delete retention window
	SweepSchedule string // cron spec for the retention sweep
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when it
// exists; real environment variables always win.  Required variables are
// enforced by must() and missing values cause the program to exit.
func Load() Config {
	_ = godotenv.Load() // absent .env is the normal case in containers

	env := must("APP_ENV")
	access := must("JWT_ACCESS_SECRET")
	return Config{
		Env:      env,
		Port:     must("APP_PORT"),
		LogLevel: envStr("LOG_LEVEL", "info"),
		BaseURL:  envStr("BASE_URL", "http://localhost:3000"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"), // empty allowed
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		AccessSecret:  access,
		RefreshSecret: mustDistinct("JWT_REFRESH_SECRET", access),
		InviteSecret:  envStr("JWT_INVITE_SECRET", access),
		AccessTTL:     time.Duration(envInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTTL:    time.Duration(envInt("REFRESH_TOKEN_TTL_DAYS", 7)) * 24 * time.Hour,
		InviteTTL:     time.Duration(envInt("INVITE_TTL_HOURS", 72)) * time.Hour,
		BcryptCost:    envInt("BCRYPT_COST", 10),
		CookieSecure:  envBool("COOKIE_SECURE", env == "prod"),
		RequireVerify: envBool("REQUIRE_VERIFIED_EMAIL", true),

		RetentionDays: envInt("RETENTION_DAYS", 30),
		SweepSchedule: envStr("SWEEP_SCHEDULE", "@midnight"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustDistinct is like must() but also refuses a value equal to other.
func mustDistinct(key, other string) string {
	v := must(key)
	if v == other {
		log.Fatalf("%s must differ from JWT_ACCESS_SECRET", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
