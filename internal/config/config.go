package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by PEERWISE_ENV (or .env by
// default), then the corresponding .secret sidecar if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("PEERWISE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

// Validate checks cross-knob invariants that would otherwise fail
// silently at runtime: the liveness sweep must run more often than the
// offline threshold it detects.
func Validate() error {
	if OfflineSweepInterval() >= OfflineThreshold() {
		return fmt.Errorf("sweep interval %s must be shorter than offline threshold %s",
			OfflineSweepInterval(), OfflineThreshold())
	}
	return nil
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getInt64(key string, fallback int64) int64 {
	n, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func AgentID() string {
	return os.Getenv("PEERWISE_AGENT_ID")
}

func DisplayName() string {
	if n := os.Getenv("PEERWISE_DISPLAY_NAME"); n != "" {
		return n
	}
	return AgentID()
}

// ArtifactsDir is where the distillation pipeline drops knowledge
// artifacts; the serving path only reads it.
func ArtifactsDir() string {
	if d := os.Getenv("PEERWISE_ARTIFACTS_DIR"); d != "" {
		return d
	}
	return "artifacts"
}

func IndexPath() string {
	return os.Getenv("PEERWISE_INDEX_PATH")
}

func SeedPath() string {
	if p := os.Getenv("PEERWISE_SEED_PATH"); p != "" {
		return p
	}
	return filepath.Join(stateDir(), "tunnel-seed")
}

func RegistryPath() string {
	if p := os.Getenv("PEERWISE_REGISTRY_PATH"); p != "" {
		return p
	}
	return filepath.Join(stateDir(), "registry.json")
}

func stateDir() string {
	if d := os.Getenv("PEERWISE_STATE_DIR"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".peerwise"
	}
	return filepath.Join(home, ".peerwise")
}

func SessionTTL() time.Duration {
	return getDuration("PEERWISE_SESSION_TTL", 10*time.Minute)
}

func SessionCleanupInterval() time.Duration {
	return getDuration("PEERWISE_SESSION_CLEANUP_INTERVAL", time.Minute)
}

func OfflineThreshold() time.Duration {
	return getDuration("PEERWISE_OFFLINE_THRESHOLD", 90*time.Second)
}

func OfflineSweepInterval() time.Duration {
	return getDuration("PEERWISE_SWEEP_INTERVAL", 15*time.Second)
}

func HeartbeatInterval() time.Duration {
	return getDuration("PEERWISE_HEARTBEAT_INTERVAL", 30*time.Second)
}

func PaymentEnabled() bool {
	v, err := strconv.ParseBool(os.Getenv("PEERWISE_PAYMENT_ENABLED"))
	return err == nil && v
}

func PaymentAmount() int64 {
	return getInt64("PEERWISE_PAYMENT_AMOUNT", 0)
}

func PaymentUnit() string {
	if u := os.Getenv("PEERWISE_PAYMENT_UNIT"); u != "" {
		return u
	}
	return "sat"
}

func PaymentMints() []string {
	raw := os.Getenv("PEERWISE_PAYMENT_MINTS")
	if raw == "" {
		return nil
	}
	var mints []string
	for _, m := range strings.Split(raw, ",") {
		if m = strings.TrimSpace(m); m != "" {
			mints = append(mints, m)
		}
	}
	return mints
}

// WalletURL is the base URL of the e-cash wallet sidecar.
func WalletURL() string {
	return os.Getenv("PEERWISE_WALLET_URL")
}

// ReasonerProvider returns the configured reasoner provider.
// Valid values: anthropic, mock. Defaults to "anthropic".
func ReasonerProvider() string {
	if p := os.Getenv("PEERWISE_REASONER"); p != "" {
		return p
	}
	return "anthropic"
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func ReasonerAPIKey() string {
	switch ReasonerProvider() {
	case "mock":
		return ""
	default:
		return AnthropicAPIKey()
	}
}

func DirectoryURL() string {
	return os.Getenv("PEERWISE_DIRECTORY_URL")
}

// AdvertiseHost overrides the host announced in transport addresses,
// for processes bound to 0.0.0.0 behind a known name.
func AdvertiseHost() string {
	return os.Getenv("PEERWISE_ADVERTISE_HOST")
}

func ServerHost() string {
	if h := os.Getenv("PEERWISE_HOST"); h != "" {
		return h
	}
	return "127.0.0.1"
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("PEERWISE_PORT"))
	if err != nil {
		return 7465
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf("%s:%d", ServerHost(), ServerPort())
}

// RateLimitRPS returns requests per second limit. Defaults to 100.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("PEERWISE_RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting. Defaults to 20.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("PEERWISE_RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}
