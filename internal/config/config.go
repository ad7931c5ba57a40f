package config

import (
	"os"
	"strconv"
	"time"

	"arcade_arena/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	DatabaseURL   string
	JWTSecret     string
	AllowedOrigin string
	LogLevel      string
	LogJSON       bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	APIRateLimit  int
	APIRateWindow time.Duration

	// Matchmaking / match runtime
	QueueTimeout    time.Duration
	DisconnectGrace time.Duration

	Chain ChainConfig

	FaucetAmountWei string
	FaucetCooldown  time.Duration
}

// ChainConfig describes the external ledger used for settlement.
// An empty RPCURL disables on-chain calls.
type ChainConfig struct {
	RPCURL            string
	ChainID           int64
	PrivateKey        string
	EscrowAddress     string
	XPRegistryAddress string
	BadgeAddress      string
	TokenAddress      string
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8787"
	}

	return &Config{
		AppPort:       port,
		DatabaseURL:   dbURL,
		JWTSecret:     jwtSecret,
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:      envString("LOG_LEVEL", "info"),
		LogJSON:       os.Getenv("LOG_JSON") == "true",

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		APIRateLimit:  envInt("API_RATE_LIMIT", 120),
		APIRateWindow: envSeconds("API_RATE_WINDOW_SECONDS", time.Minute),

		QueueTimeout:    envSeconds("QUEUE_TIMEOUT_SECONDS", 30*time.Second),
		DisconnectGrace: envSeconds("DISCONNECT_FORFEIT_SECONDS", 30*time.Second),

		Chain: ChainConfig{
			RPCURL:            os.Getenv("CHAIN_RPC_URL"),
			ChainID:           int64(envInt("CHAIN_ID", 84532)),
			PrivateKey:        os.Getenv("SERVER_PRIVATE_KEY"),
			EscrowAddress:     os.Getenv("ESCROW_ADDRESS"),
			XPRegistryAddress: os.Getenv("XP_REGISTRY_ADDRESS"),
			BadgeAddress:      os.Getenv("BADGE_ADDRESS"),
			TokenAddress:      os.Getenv("ARK_ADDRESS"),
		},

		FaucetAmountWei: envString("FAUCET_AMOUNT_WEI", "0"),
		FaucetCooldown:  envSeconds("FAUCET_COOLDOWN_SEC", 24*time.Hour),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// envSeconds reads a whole number of seconds; "0" is a valid value.
func envSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
