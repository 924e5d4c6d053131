package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Learning pipeline
	Learning LearningConfig

	// Signal ranking
	Ranking RankingConfig

	// Retraining scheduler
	Retrain RetrainConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// LearningConfig holds feature/labeling/training parameters
type LearningConfig struct {
	LookforwardHorizon   int     // 전방 관측 구간 (bars)
	LongProfitThreshold  float64 // 롱 라벨 수익률 임계값
	ShortProfitThreshold float64 // 숏 라벨 수익률 임계값
	MinHistory           int     // 피처 계산 최소 히스토리
	MinTrainSamples      int     // 학습 최소 샘플 수
	Folds                int     // walk-forward 폴드 수
	HoldoutRatio         float64 // 최종 홀드아웃 비율 (시간순 마지막 구간)
	MaxTrainValGap       float64 // 과적합 플래그 임계값 (train - validation)
	ForestTrees          int
	BoostingRounds       int
	Seed                 int64
	ModelDir             string
}

// RankingConfig holds signal ranker parameters
type RankingConfig struct {
	RuleWeight     float64 // 규칙 점수 가중치
	MLWeight       float64 // ML 확률 가중치
	StreakWindow   int     // 스트릭 검사 대상 최근 해결 시그널 수
	StreakWinCount int     // 억제 발동 최소 WIN 수
	StreakFactor   float64 // 억제 시 확률 곱셈 계수
	TopN           int     // 사이클당 이벤트 발행 상위 N
	ResolveAfter   int     // 시그널 해결 기한 (bars)
	FeedRetries    int     // 피드 스토어 쓰기 재시도 횟수
	FeedRetryDelay time.Duration
}

// RetrainConfig holds retraining scheduler parameters
type RetrainConfig struct {
	Cron            string        // 재학습 주기 (cron, seconds 포함)
	MinNewResolved  int           // 볼륨 트리거: 신규 해결 시그널 수
	TrainingTimeout time.Duration // 초과 시 REJECTED 처리
	ResolveCron     string        // 결과 해결 작업 주기
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "edgefactory"),
			User:            getEnv("DB_USER", "edgefactory"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Learning: LearningConfig{
			LookforwardHorizon:   getEnvAsInt("LOOKFORWARD_HORIZON", 5),
			LongProfitThreshold:  getEnvAsFloat("LONG_PROFIT_THRESHOLD", 0.02),
			ShortProfitThreshold: getEnvAsFloat("SHORT_PROFIT_THRESHOLD", 0.02),
			MinHistory:           getEnvAsInt("MIN_HISTORY", 30),
			MinTrainSamples:      getEnvAsInt("MIN_TRAIN_SAMPLES", 300),
			Folds:                getEnvAsInt("WALK_FORWARD_FOLDS", 5),
			HoldoutRatio:         getEnvAsFloat("HOLDOUT_RATIO", 0.2),
			MaxTrainValGap:       getEnvAsFloat("MAX_TRAIN_VAL_GAP", 0.20),
			ForestTrees:          getEnvAsInt("FOREST_TREES", 100),
			BoostingRounds:       getEnvAsInt("BOOSTING_ROUNDS", 100),
			Seed:                 int64(getEnvAsInt("TRAIN_SEED", 42)),
			ModelDir:             getEnv("MODEL_DIR", "ml_models"),
		},

		Ranking: RankingConfig{
			RuleWeight:     getEnvAsFloat("RULE_WEIGHT", 0.4),
			MLWeight:       getEnvAsFloat("ML_WEIGHT", 0.6),
			StreakWindow:   getEnvAsInt("STREAK_WINDOW", 5),
			StreakWinCount: getEnvAsInt("STREAK_WIN_COUNT", 4),
			StreakFactor:   getEnvAsFloat("STREAK_FACTOR", 0.5),
			TopN:           getEnvAsInt("SIGNAL_TOP_N", 10),
			ResolveAfter:   getEnvAsInt("SIGNAL_RESOLVE_AFTER", 5),
			FeedRetries:    getEnvAsInt("FEED_RETRIES", 3),
			FeedRetryDelay: getEnvAsDuration("FEED_RETRY_DELAY", "200ms"),
		},

		Retrain: RetrainConfig{
			Cron:            getEnv("RETRAIN_CRON", "0 0 18 * * *"),
			MinNewResolved:  getEnvAsInt("RETRAIN_MIN_NEW_RESOLVED", 50),
			TrainingTimeout: getEnvAsDuration("TRAINING_TIMEOUT", "30m"),
			ResolveCron:     getEnv("RESOLVE_CRON", "0 30 17 * * *"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Learning.LookforwardHorizon < 1 {
		return fmt.Errorf("LOOKFORWARD_HORIZON must be >= 1")
	}
	if c.Learning.HoldoutRatio <= 0 || c.Learning.HoldoutRatio >= 1 {
		return fmt.Errorf("HOLDOUT_RATIO must be in (0, 1)")
	}

	if w := c.Ranking.RuleWeight + c.Ranking.MLWeight; w < 0.999 || w > 1.001 {
		return fmt.Errorf("RULE_WEIGHT + ML_WEIGHT must sum to 1.0, got %.3f", w)
	}
	if c.Ranking.StreakWinCount > c.Ranking.StreakWindow {
		return fmt.Errorf("STREAK_WIN_COUNT must not exceed STREAK_WINDOW")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		fallback, _ := time.ParseDuration(defaultValue)
		return fallback
	}
	return value
}
