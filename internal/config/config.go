package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	DBPoolSize            int
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	TaxRatePercent        float64
	CurrencySymbol        string
	StoreName             string
	ReceiptDir            string
	ReceiptFooter         string
	CartSnapshotPath      string
}

// Load reads configuration from the environment. A .env file is honored when
// present so terminals can ship a flat config file next to the binary.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	poolSize, err := strconv.Atoi(getEnv("DB_POOL_SIZE", "5"))
	if err != nil || poolSize < 1 {
		poolSize = 5
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	taxRate, err := strconv.ParseFloat(getEnv("TAX_RATE_PERCENT", "10"), 64)
	if err != nil || taxRate < 0 || taxRate > 100 {
		taxRate = 10
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		DBPoolSize:            poolSize,
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		TaxRatePercent:        taxRate,
		CurrencySymbol:        getEnv("CURRENCY_SYMBOL", "$"),
		StoreName:             getEnv("STORE_NAME", "Mart Management System"),
		ReceiptDir:            getEnv("RECEIPT_DIR", "receipts"),
		ReceiptFooter:         getEnv("RECEIPT_FOOTER", "Thank you for shopping with us!"),
		CartSnapshotPath:      getEnv("CART_SNAPSHOT_PATH", "saved_cart.json"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
