package config // package config loads application configuration from environment variables

import (
	"log"     // log reports configuration errors and halts execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time expresses the hold TTL and sweep interval knobs
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  The reservation TTLs and the sweep
// interval are the knobs of the availability core; everything else is
// transport and storage wiring.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	JWTSecret       string        // secret used to sign JWTs
	AccessTTLMin    int           // access token time-to-live in minutes
	BcryptCost      int           // bcrypt cost for password hashing
	PendingHoldTTL  time.Duration // lifetime of a PENDING_REVIEW reservation
	ReviewHoldTTL   time.Duration // lifetime of an UNDER_REVIEW reservation
	SweepInterval   time.Duration // how often the expiry sweep runs
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.  The hold
// TTLs and sweep interval fall back to the business defaults (15m, 6h,
// 5m) when unset.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty password allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		PendingHoldTTL: minutes("PENDING_HOLD_TTL_MIN", 15),
		ReviewHoldTTL:  minutes("REVIEW_HOLD_TTL_MIN", 360),
		SweepInterval:  minutes("SWEEP_INTERVAL_MIN", 5),
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

// mustInt is like must() but converts the retrieved string into an
// integer.  If conversion fails, the application logs a fatal error and
// exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// minutes reads an optional integer env var expressed in minutes and
// returns it as a duration, falling back to def when unset or invalid.
func minutes(key string, def int) time.Duration {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
		log.Printf("config: ignoring invalid %s=%q, using %dm", key, s, def)
	}
	return time.Duration(def) * time.Minute
}
