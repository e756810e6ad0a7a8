package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Service names understood by Load.
const (
	ServiceUser = "user-service"
	ServiceTask = "task-backend"
)

// Config aggregates runtime configuration for either service.
type Config struct {
	App         AppConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Auth        AuthConfig
	GRPC        GRPCConfig
	UserService UserServiceClientConfig
	Internal    InternalConfig
	OAuth2      OAuth2Config
	RateLimit   RateLimitConfig
	Events      EventsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token and password parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// ServiceToken is the shared secret task-backend presents to user-service
	// as gRPC metadata. Empty disables the check.
	ServiceToken string
}

// GRPCConfig configures the user-service gRPC listener.
type GRPCConfig struct {
	Host string
	Port string
}

// UserServiceClientConfig tells task-backend how to reach user-service.
type UserServiceClientConfig struct {
	URL                 string
	GRPCTarget          string
	ValidationTransport string
	ValidationTimeoutMS int
	TimeoutMS           int
}

// InternalConfig restricts the /internal endpoints by source network.
type InternalConfig struct {
	AllowedCIDRs []string
}

// OAuth2Config holds provider credentials for the authorization code flow.
type OAuth2Config struct {
	BaseURL             string
	FrontendRedirectURL string
	StateTTLSeconds     int
	Providers           map[string]OAuth2ProviderConfig
}

// OAuth2ProviderConfig is one configured identity provider.
type OAuth2ProviderConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
}

// RateLimitConfig throttles credential endpoints per client IP.
type RateLimitConfig struct {
	AuthPerMinute int
	AuthBurst     int
}

// EventsConfig configures task event publication.
type EventsConfig struct {
	RedisChannel     string
	PublishTimeoutMS int
}

// Load reads configuration from environment variables, applying per-service defaults.
// Missing env files are ignored, matching local development against a bare environment.
func Load(service string, envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	defaultPort := "8080"
	if service == ServiceUser {
		defaultPort = "8081"
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	transport := strings.ToLower(getEnv("USER_SERVICE_VALIDATION_TRANSPORT", "grpc"))
	switch transport {
	case "grpc", "http", "local":
	default:
		return nil, fmt.Errorf("invalid USER_SERVICE_VALIDATION_TRANSPORT %q", transport)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", service),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", defaultPort),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 24*60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			ServiceToken:          os.Getenv("AUTH_SERVICE_TOKEN"),
		},
		GRPC: GRPCConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		UserService: UserServiceClientConfig{
			URL:                 strings.TrimRight(getEnv("USER_SERVICE_URL", "http://127.0.0.1:8081"), "/"),
			GRPCTarget:          getEnv("USER_SERVICE_GRPC_TARGET", "127.0.0.1:9090"),
			ValidationTransport: transport,
			ValidationTimeoutMS: getEnvAsInt("USER_SERVICE_VALIDATION_TIMEOUT_MS", 3000),
			TimeoutMS:           getEnvAsInt("USER_SERVICE_TIMEOUT_MS", 5000),
		},
		Internal: InternalConfig{
			AllowedCIDRs: getEnvAsList("INTERNAL_ALLOWED_CIDRS",
				[]string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),
		},
		OAuth2: OAuth2Config{
			BaseURL:             strings.TrimRight(getEnv("OAUTH2_BASE_URL", "http://localhost:"+defaultPort), "/"),
			FrontendRedirectURL: getEnv("OAUTH2_FRONTEND_REDIRECT_URL", "http://localhost:3000/oauth2/redirect"),
			StateTTLSeconds:     getEnvAsInt("OAUTH2_STATE_TTL_SECONDS", 600),
			Providers:           loadOAuth2Providers(),
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: getEnvAsInt("RATE_LIMIT_AUTH_PER_MINUTE", 30),
			AuthBurst:     getEnvAsInt("RATE_LIMIT_AUTH_BURST", 10),
		},
		Events: EventsConfig{
			RedisChannel:     getEnv("EVENTS_REDIS_CHANNEL", "task-events"),
			PublishTimeoutMS: getEnvAsInt("EVENTS_PUBLISH_TIMEOUT_MS", 500),
		},
	}

	return cfg, nil
}

// loadOAuth2Providers keeps only providers whose client id is set and not a placeholder.
func loadOAuth2Providers() map[string]OAuth2ProviderConfig {
	providers := make(map[string]OAuth2ProviderConfig)
	for _, name := range []string{"google", "github", "microsoft"} {
		prefix := strings.ToUpper(name)
		clientID := os.Getenv(prefix + "_CLIENT_ID")
		if clientID == "" || strings.HasPrefix(clientID, "your-") {
			continue
		}
		providers[name] = OAuth2ProviderConfig{
			ClientID:     clientID,
			ClientSecret: os.Getenv(prefix + "_CLIENT_SECRET"),
			TenantID:     getEnv(prefix+"_TENANT_ID", "common"),
		}
	}
	return providers
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Addr returns the gRPC bind address.
func (g GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%s", g.Host, g.Port)
}

// ValidationTimeout bounds a single remote token validation call.
func (u UserServiceClientConfig) ValidationTimeout() time.Duration {
	return millis(u.ValidationTimeoutMS, 3*time.Second)
}

// Timeout bounds calls to the internal user endpoints.
func (u UserServiceClientConfig) Timeout() time.Duration {
	return millis(u.TimeoutMS, 5*time.Second)
}

// PublishTimeout bounds event delivery for a single write.
func (e EventsConfig) PublishTimeout() time.Duration {
	return millis(e.PublishTimeoutMS, 500*time.Millisecond)
}

// StateTTL is how long an OAuth2 state value stays redeemable.
func (o OAuth2Config) StateTTL() time.Duration {
	if o.StateTTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(o.StateTTLSeconds) * time.Second
}

func millis(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
