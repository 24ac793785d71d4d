package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Privacy policy
	DPEpsilon            float64
	KAnonymityThreshold  int
	Tier2RetentionMonths int
	ConsentVersion       string

	// Encryption (64 hex chars; empty disables Tier 1 field encryption)
	EncryptionMasterKey string

	// Embeddings (vector index mirroring)
	OpenAIAPIKey         string
	OpenAIEmbeddingModel string
	EmbeddingTimeout     time.Duration

	// Ops API auth
	JWTSecret    string
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Server
	Port        string
	CORSOrigins string
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "velora_privacy"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		DPEpsilon:            parseFloat(getEnv("DP_EPSILON", "1.0"), 1.0),
		KAnonymityThreshold:  parseInt(getEnv("K_ANONYMITY_THRESHOLD", "10"), 10),
		Tier2RetentionMonths: parseInt(getEnv("TIER2_RETENTION_MONTHS", "18"), 18),
		ConsentVersion:       getEnv("CONSENT_VERSION", "2025-01"),

		EncryptionMasterKey: getEnv("ENCRYPTION_MASTER_KEY", ""),

		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIEmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingTimeout:     parseDuration(getEnv("EMBEDDING_TIMEOUT", "30s")),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}
