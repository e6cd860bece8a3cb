package config

import (
	"flag"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

const (
	defaultServerAddress  = ":8080"
	defaultDatabaseDSN    = ""
	defaultProviderAddr   = "https://pay.keymart.example"
	defaultGatewayKind    = "invoice"
	defaultDeploymentMode = "mock"
	defaultLogLevel       = "debug"
)

// gateway kinds
const (
	GatewayInvoice  = "invoice"
	GatewaySessions = "sessions"
)

type Config struct {
	ServerAddr      string
	DatabaseDSN     string
	ProviderBaseURL string
	ProviderAPIKey  string
	WebhookSecret   string
	GatewayKind     string
	DeploymentMode  string
	LogLevel        string
}

var (
	once      sync.Once
	singleton *Config
)

// New returns new Config. It parses command line and environment variables only once.
func New() (*Config, error) {
	once.Do(func() {
		// optional .env, absence is not an error
		_ = godotenv.Load()

		cfg := Config{}

		// initialize flags
		flag.StringVar(&cfg.ServerAddr, "a", defaultServerAddress, "payment server address")
		flag.StringVar(&cfg.DatabaseDSN, "d", defaultDatabaseDSN, "payment database DSN")
		flag.StringVar(&cfg.ProviderBaseURL, "p", defaultProviderAddr, "payment provider base URL")
		flag.StringVar(&cfg.GatewayKind, "g", defaultGatewayKind, "payment gateway kind (invoice or sessions)")
		flag.StringVar(&cfg.DeploymentMode, "m", defaultDeploymentMode, "deployment mode (mock or live)")
		flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")

		flag.Parse()

		// if environment variable is set, then using it
		if runAddrEnv := os.Getenv("RUN_ADDRESS"); runAddrEnv != "" {
			cfg.ServerAddr = runAddrEnv
		}
		if dataBaseURIEnv := os.Getenv("DATABASE_URI"); dataBaseURIEnv != "" {
			cfg.DatabaseDSN = dataBaseURIEnv
		}
		if providerAddrEnv := os.Getenv("PROVIDER_ADDRESS"); providerAddrEnv != "" {
			cfg.ProviderBaseURL = providerAddrEnv
		}
		if gatewayEnv := os.Getenv("PAYMENT_GATEWAY"); gatewayEnv != "" {
			cfg.GatewayKind = gatewayEnv
		}
		if modeEnv := os.Getenv("DEPLOYMENT_MODE"); modeEnv != "" {
			cfg.DeploymentMode = modeEnv
		}
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			cfg.LogLevel = logLevelEnv
		}

		// credentials come from the environment only
		cfg.ProviderAPIKey = os.Getenv("PROVIDER_API_KEY")
		cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")

		singleton = &cfg
	})

	return singleton, nil
}

// Live reports whether the service should talk to the real payment provider.
// Mock mode is used when no credential is configured regardless of the flag.
func (c *Config) Live() bool {
	return c.DeploymentMode == "live" && c.ProviderAPIKey != ""
}
