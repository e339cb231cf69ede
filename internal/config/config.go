package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AllowedOrigins []string // CORS allowed origins
	// TrustedProxies lists the IPs/CIDRs whose X-Forwarded-For is believed.
	// Empty means rate limits key on the connection address.
	TrustedProxies []string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// KVBackend selects the OTP state store: "redis" (default) or "dynamo".
	KVBackend     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StoreTimeout  time.Duration

	SNSRegion   string
	SMSSenderID string
	SMSTimeout  time.Duration

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTIssuer         string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration

	OTP OTP
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users    string
	OTPState string
}

// OTP holds the one-time-passcode state machine settings. It is injected into
// the OTP service at construction instead of being read from the environment
// by the service itself.
type OTP struct {
	TTL                   time.Duration
	CooldownTTL           time.Duration
	MaxAttempts           int
	MaxOtpRequestsPerHour int
	RateLimitWindow       time.Duration
	Length                int
	// MessageTemplate is the SMS body. {code} and {minutes} are substituted.
	MessageTemplate string
	// LogCodes writes generated codes to the log. Development only.
	LogCodes bool
}

const defaultMessageTemplate = "Here is your verification code {code}. This code will expire in {minutes} minutes. Do not share this with anyone."

// DefaultOTP returns the production defaults for the OTP state machine.
func DefaultOTP() OTP {
	return OTP{
		TTL:                   600 * time.Second,
		CooldownTTL:           60 * time.Second,
		MaxAttempts:           3,
		MaxOtpRequestsPerHour: 5,
		RateLimitWindow:       time.Hour,
		Length:                6,
		MessageTemplate:       defaultMessageTemplate,
	}
}

// Load reads all configuration from environment variables.
func Load() *Config {
	def := DefaultOTP()
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:    getEnv("DYNAMO_TABLE_USERS", "users"),
			OTPState: getEnv("DYNAMO_TABLE_OTP_STATE", "otp_state"),
		},
		KVBackend:         getEnv("KV_BACKEND", "redis"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		StoreTimeout:      getEnvDuration("STORE_TIMEOUT", 2*time.Second),
		SNSRegion:         getEnv("SNS_REGION", "us-east-1"),
		SMSSenderID:       getEnv("SMS_SENDER_ID", ""),
		SMSTimeout:        getEnvDuration("SMS_TIMEOUT", 5*time.Second),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTIssuer:         getEnv("JWT_ISSUER", "go-phone-auth"),
		AccessTokenTTL:    getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:   getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		OTP: OTP{
			TTL:                   time.Duration(getEnvInt("OTP_TTL_SECONDS", int(def.TTL/time.Second))) * time.Second,
			CooldownTTL:           time.Duration(getEnvInt("OTP_COOLDOWN_SECONDS", int(def.CooldownTTL/time.Second))) * time.Second,
			MaxAttempts:           getEnvInt("OTP_MAX_ATTEMPTS", def.MaxAttempts),
			MaxOtpRequestsPerHour: getEnvInt("OTP_MAX_REQUESTS_PER_HOUR", def.MaxOtpRequestsPerHour),
			RateLimitWindow:       def.RateLimitWindow,
			Length:                getEnvInt("OTP_LENGTH", def.Length),
			MessageTemplate:       getEnv("OTP_MESSAGE_TEMPLATE", def.MessageTemplate),
			LogCodes:              getEnvBool("LOG_OTP_CODES", false),
		},
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvList splits a comma-separated variable; unset yields nil.
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("15m", "720h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
