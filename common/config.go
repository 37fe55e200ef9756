package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/kthomas/go-logger"
)

// DefaultGovernmentAddress is the well-known government officer address used when
// GOVERNMENT_ADDRESS is not configured
const DefaultGovernmentAddress = "0x303C226B1b66F07717D35f5E7243028950Eb1ff1"

// DefaultFinancierAddress is the well-known financier address used when
// FINANCIER_ADDRESS is not configured
const DefaultFinancierAddress = "0x388C818CA8B9251b393131C08a736A67ccB19297"

// DefaultChainID is the EDU Chain testnet chain id
const DefaultChainID = uint64(656476)

// DefaultChainRPCURL is the EDU Chain testnet JSON-RPC endpoint
const DefaultChainRPCURL = "https://open-campus-codex-sepolia.drpc.org"

// DefaultNativeCurrencySymbol is the chain's native currency symbol
const DefaultNativeCurrencySymbol = "EDU"

var (
	// Log is the configured logger
	Log *logger.Logger

	// GovernmentAddress resolves the government role
	GovernmentAddress string

	// FinancierAddress resolves the financier role
	FinancierAddress string

	// ChainID is the expected wallet network id
	ChainID uint64

	// ChainRPCURL is the JSON-RPC endpoint used for native currency transfers
	ChainRPCURL string

	// NativeCurrencySymbol for rendered amounts
	NativeCurrencySymbol string

	// IdentityVerifierURL is the optional zero-knowledge identity verifier endpoint
	IdentityVerifierURL *string

	// IdentityVerificationRequired gates student applications behind identity verification
	IdentityVerificationRequired bool

	// SeedFallbackEnabled serves the hard-coded demo scholarships when the database is unreachable
	SeedFallbackEnabled bool

	// ReadModelCacheTTL bounds read-model refresh frequency
	ReadModelCacheTTL time.Duration

	// ConsumeNATSStreamingSubscriptions toggles package consumers
	ConsumeNATSStreamingSubscriptions bool
)

func init() {
	godotenv.Load()

	requireLogger()
	requireRoleAddresses()
	requireChainConfig()
	requireIdentityConfig()
	requireReadModelConfig()

	ConsumeNATSStreamingSubscriptions = strings.ToLower(os.Getenv("CONSUME_NATS_STREAMING_SUBSCRIPTIONS")) == "true"
}

func requireLogger() {
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = "INFO"
	}

	var endpoint *string
	if os.Getenv("SYSLOG_ENDPOINT") != "" {
		endpt := os.Getenv("SYSLOG_ENDPOINT")
		endpoint = &endpt
	}

	Log = logger.NewLogger("scholarship", lvl, endpoint)
}

func requireRoleAddresses() {
	GovernmentAddress = os.Getenv("GOVERNMENT_ADDRESS")
	if GovernmentAddress == "" {
		GovernmentAddress = DefaultGovernmentAddress
	}

	FinancierAddress = os.Getenv("FINANCIER_ADDRESS")
	if FinancierAddress == "" {
		FinancierAddress = DefaultFinancierAddress
	}

	if strings.EqualFold(GovernmentAddress, FinancierAddress) {
		Log.Panicf("government and financier role addresses must differ; both resolved to %s", GovernmentAddress)
	}
}

func requireChainConfig() {
	ChainID = DefaultChainID
	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		id, err := strconv.ParseUint(chainID, 10, 64)
		if err != nil {
			Log.Panicf("failed to parse CHAIN_ID; %s", err.Error())
		}
		ChainID = id
	}

	ChainRPCURL = os.Getenv("CHAIN_RPC_URL")
	if ChainRPCURL == "" {
		ChainRPCURL = DefaultChainRPCURL
	}

	NativeCurrencySymbol = os.Getenv("NATIVE_CURRENCY_SYMBOL")
	if NativeCurrencySymbol == "" {
		NativeCurrencySymbol = DefaultNativeCurrencySymbol
	}
}

func requireIdentityConfig() {
	if os.Getenv("IDENTITY_VERIFIER_URL") != "" {
		url := os.Getenv("IDENTITY_VERIFIER_URL")
		IdentityVerifierURL = &url
	}

	IdentityVerificationRequired = strings.ToLower(os.Getenv("IDENTITY_VERIFICATION_REQUIRED")) == "true"
}

func requireReadModelConfig() {
	SeedFallbackEnabled = strings.ToLower(os.Getenv("SEED_FALLBACK_ENABLED")) != "false"

	ReadModelCacheTTL = time.Second * 30
	if ttl := os.Getenv("READ_MODEL_CACHE_TTL"); ttl != "" {
		duration, err := time.ParseDuration(ttl)
		if err != nil {
			Log.Panicf("failed to parse READ_MODEL_CACHE_TTL; %s", err.Error())
		}
		ReadModelCacheTTL = duration
	}
}
