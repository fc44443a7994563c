package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	TMDB           TMDBConfig           `mapstructure:"tmdb"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Housekeeping   HousekeepingConfig   `mapstructure:"housekeeping"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type TMDBConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
	Burst          int           `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RecommendationConfig struct {
	CacheStaleness time.Duration       `mapstructure:"cache_staleness"`
	ResultTTL      time.Duration       `mapstructure:"result_ttl"`
	Vector         VectorConfig        `mapstructure:"vector"`
	Similarity     SimilarityConfig    `mapstructure:"similarity"`
	Collaborative  CollaborativeConfig `mapstructure:"collaborative"`
	Hybrid         HybridConfig        `mapstructure:"hybrid"`
	Mood           MoodConfig          `mapstructure:"mood"`
}

// VectorConfig fixes the hashed bucket layout of feature vectors. Bucket
// counts determine segment sizes within the vector; category weights are the
// relative importance of each attribute family and should sum to 1.0.
type VectorConfig struct {
	GenreBuckets   int     `mapstructure:"genre_buckets"`
	KeywordBuckets int     `mapstructure:"keyword_buckets"`
	CastBuckets    int     `mapstructure:"cast_buckets"`
	CrewBuckets    int     `mapstructure:"crew_buckets"`
	GenreWeight    float64 `mapstructure:"genre_weight"`
	KeywordWeight  float64 `mapstructure:"keyword_weight"`
	CastWeight     float64 `mapstructure:"cast_weight"`
	CrewWeight     float64 `mapstructure:"crew_weight"`
}

// Dimensions is the total feature vector length.
func (v VectorConfig) Dimensions() int {
	return v.GenreBuckets + v.KeywordBuckets + v.CastBuckets + v.CrewBuckets
}

type SimilarityConfig struct {
	MinVoteAverage float64 `mapstructure:"min_vote_average"`
	MaxCandidates  int     `mapstructure:"max_candidates"`
	MinPoolForKNN  int     `mapstructure:"min_pool_for_knn"`
	DefaultLimit   int     `mapstructure:"default_limit"`
}

type CollaborativeConfig struct {
	MinRatings    int           `mapstructure:"min_ratings"`
	KNeighbors    int           `mapstructure:"k_neighbors"`
	MinPredicted  float64       `mapstructure:"min_predicted"`
	MaxCandidates int           `mapstructure:"max_candidates"`
	MatrixTTL     time.Duration `mapstructure:"matrix_ttl"`
}

type HybridConfig struct {
	ContentWeight        float64 `mapstructure:"content_weight"`
	CollaborativeWeight  float64 `mapstructure:"collaborative_weight"`
	SeedMinRating        float64 `mapstructure:"seed_min_rating"`
	FallbackHybridScore  float64 `mapstructure:"fallback_hybrid_score"`
	FallbackContentScore float64 `mapstructure:"fallback_content_score"`
}

// Validate enforces that the fusion weights form a convex combination.
func (h HybridConfig) Validate() error {
	if math.Abs(h.ContentWeight+h.CollaborativeWeight-1.0) > 1e-9 {
		return fmt.Errorf("hybrid weights must sum to 1.0, got %.3f + %.3f",
			h.ContentWeight, h.CollaborativeWeight)
	}
	return nil
}

type MoodConfig struct {
	MinRating       float64       `mapstructure:"min_rating"`
	MaxCandidates   int           `mapstructure:"max_candidates"`
	BaseScoreTTL    time.Duration `mapstructure:"base_score_ttl"`
	KeywordBoost    float64       `mapstructure:"keyword_boost"`
	KeywordPenalty  float64       `mapstructure:"keyword_penalty"`
	KeywordFloor    float64       `mapstructure:"keyword_floor"`
	CloseRatingDiff float64       `mapstructure:"close_rating_diff"`
	FarRatingDiff   float64       `mapstructure:"far_rating_diff"`
	CloseBoost      float64       `mapstructure:"close_boost"`
	FarPenalty      float64       `mapstructure:"far_penalty"`
	MaxPerYearGenre int           `mapstructure:"max_per_year_genre"`
	FallbackScore   float64       `mapstructure:"fallback_score"`
}

type HousekeepingConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	Retention time.Duration `mapstructure:"retention"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Recommendation.Hybrid.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")

	// Database defaults
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.timeout", "5s")

	// TMDB defaults
	viper.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	viper.SetDefault("tmdb.timeout", "10s")
	viper.SetDefault("tmdb.requests_per_sec", 4.0)
	viper.SetDefault("tmdb.burst", 8)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Cache freshness defaults
	viper.SetDefault("recommendation.cache_staleness", "168h")
	viper.SetDefault("recommendation.result_ttl", "15m")

	// Feature vector defaults
	viper.SetDefault("recommendation.vector.genre_buckets", 32)
	viper.SetDefault("recommendation.vector.keyword_buckets", 96)
	viper.SetDefault("recommendation.vector.cast_buckets", 96)
	viper.SetDefault("recommendation.vector.crew_buckets", 32)
	viper.SetDefault("recommendation.vector.genre_weight", 0.4)
	viper.SetDefault("recommendation.vector.keyword_weight", 0.3)
	viper.SetDefault("recommendation.vector.cast_weight", 0.2)
	viper.SetDefault("recommendation.vector.crew_weight", 0.1)

	// Content similarity defaults
	viper.SetDefault("recommendation.similarity.min_vote_average", 5.5)
	viper.SetDefault("recommendation.similarity.max_candidates", 1000)
	viper.SetDefault("recommendation.similarity.min_pool_for_knn", 30)
	viper.SetDefault("recommendation.similarity.default_limit", 20)

	// Collaborative filtering defaults
	viper.SetDefault("recommendation.collaborative.min_ratings", 10)
	viper.SetDefault("recommendation.collaborative.k_neighbors", 10)
	viper.SetDefault("recommendation.collaborative.min_predicted", 6.0)
	viper.SetDefault("recommendation.collaborative.max_candidates", 100)
	viper.SetDefault("recommendation.collaborative.matrix_ttl", "5m")

	// Hybrid fusion defaults
	viper.SetDefault("recommendation.hybrid.content_weight", 0.7)
	viper.SetDefault("recommendation.hybrid.collaborative_weight", 0.3)
	viper.SetDefault("recommendation.hybrid.seed_min_rating", 7.0)
	viper.SetDefault("recommendation.hybrid.fallback_hybrid_score", 0.35)
	viper.SetDefault("recommendation.hybrid.fallback_content_score", 0.5)

	// Mood defaults
	viper.SetDefault("recommendation.mood.min_rating", 6.0)
	viper.SetDefault("recommendation.mood.max_candidates", 800)
	viper.SetDefault("recommendation.mood.base_score_ttl", "15m")
	viper.SetDefault("recommendation.mood.keyword_boost", 0.3)
	viper.SetDefault("recommendation.mood.keyword_penalty", 0.4)
	viper.SetDefault("recommendation.mood.keyword_floor", 0.1)
	viper.SetDefault("recommendation.mood.close_rating_diff", 1.5)
	viper.SetDefault("recommendation.mood.far_rating_diff", 3.0)
	viper.SetDefault("recommendation.mood.close_boost", 1.3)
	viper.SetDefault("recommendation.mood.far_penalty", 0.8)
	viper.SetDefault("recommendation.mood.max_per_year_genre", 2)
	viper.SetDefault("recommendation.mood.fallback_score", 0.5)

	// Housekeeping defaults
	viper.SetDefault("housekeeping.enabled", true)
	viper.SetDefault("housekeeping.interval", "12h")
	viper.SetDefault("housekeeping.retention", "720h")
	viper.SetDefault("housekeeping.lock_ttl", "10m")
}
