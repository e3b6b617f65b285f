// Package config loads node configuration from a YAML file and
// environment variables via viper, the way the teacher node does.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for a zhtp node.
type Config struct {
	Node      NodeConfig      `mapstructure:"node"`
	Mesh      MeshConfig      `mapstructure:"mesh"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
	CAS       CASConfig       `mapstructure:"cas"`
	Gossip    GossipConfig    `mapstructure:"gossip"`
	Security  SecurityConfig  `mapstructure:"security"`
	Economic  EconomicConfig  `mapstructure:"economic"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// NodeConfig holds node identity configuration.
type NodeConfig struct {
	ID       string `mapstructure:"id"`
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
}

// MeshConfig holds the multi-transport mesh's TCP/QUIC listen and
// bootstrap configuration (see pkg/mesh.TCPConfig for the transport
// itself).
type MeshConfig struct {
	ListenAddress string   `mapstructure:"listen_address"`
	Bootstrap     []string `mapstructure:"bootstrap"`
	MaxPeers      int      `mapstructure:"max_peers"`
}

// StorageConfig holds the badger-backed key-value engine configuration.
type StorageConfig struct {
	Path      string `mapstructure:"path"`
	CacheSize int64  `mapstructure:"cache_size"`
	Sync      bool   `mapstructure:"sync"`
}

// ConsensusConfig holds the BFT engine's round timeouts.
type ConsensusConfig struct {
	BlockTime        time.Duration `mapstructure:"block_time"`
	TimeoutPropose   time.Duration `mapstructure:"timeout_propose"`
	TimeoutPrevote   time.Duration `mapstructure:"timeout_prevote"`
	TimeoutPrecommit time.Duration `mapstructure:"timeout_precommit"`
}

// CASConfig holds the content-addressed (MinIO-backed) object store
// configuration.
type CASConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	ChunkSize int64  `mapstructure:"chunk_size"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// GossipConfig holds the libp2p-backed CRDT anti-entropy gossip
// configuration (internal/gossip).
type GossipConfig struct {
	ListenAddress       string        `mapstructure:"listen_address"`
	BootstrapPeers      []string      `mapstructure:"bootstrap_peers"`
	Fanout              int           `mapstructure:"fanout"`
	GossipInterval      time.Duration `mapstructure:"gossip_interval"`
	AntiEntropyInterval time.Duration `mapstructure:"anti_entropy_interval"`
}

// SecurityConfig holds envelope-encryption and audit-logging
// configuration.
type SecurityConfig struct {
	EncryptPrivateValues bool   `mapstructure:"encrypt_private_values"`
	AuditEnabled         bool   `mapstructure:"audit_enabled"`
	AuditLogPath         string `mapstructure:"audit_log_path"`
}

// EconomicConfig holds the escrow/billing/dispute layer's parameters.
type EconomicConfig struct {
	DisputeWindow   time.Duration `mapstructure:"dispute_window"`
	DefaultRatePlan string        `mapstructure:"default_rate_plan"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	Path    string `mapstructure:"path"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			DataDir:  "./data",
			LogLevel: "info",
		},
		Mesh: MeshConfig{
			ListenAddress: "0.0.0.0:26656",
			Bootstrap:     []string{},
			MaxPeers:      50,
		},
		Storage: StorageConfig{
			Path:      "./data/chain",
			CacheSize: 100 * 1024 * 1024,
			Sync:      true,
		},
		Consensus: ConsensusConfig{
			BlockTime:        1 * time.Second,
			TimeoutPropose:   3 * time.Second,
			TimeoutPrevote:   3 * time.Second,
			TimeoutPrecommit: 3 * time.Second,
		},
		CAS: CASConfig{
			Endpoint:  "localhost:9000",
			Bucket:    "zhtp-objects",
			AccessKey: "zhtp",
			SecretKey: "zhtp-secret",
			ChunkSize: 64 * 1024 * 1024,
			UseSSL:    false,
		},
		Gossip: GossipConfig{
			ListenAddress:       "/ip4/0.0.0.0/tcp/0",
			BootstrapPeers:      []string{},
			Fanout:              3,
			GossipInterval:      1 * time.Second,
			AntiEntropyInterval: 30 * time.Second,
		},
		Security: SecurityConfig{
			EncryptPrivateValues: true,
			AuditEnabled:         true,
			AuditLogPath:         "./logs/audit.log",
		},
		Economic: EconomicConfig{
			DisputeWindow:   24 * time.Hour,
			DefaultRatePlan: "standard",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: "0.0.0.0:9091",
			Path:    "/metrics",
		},
	}
}

// LoadConfig loads configuration from configPath, falling back to
// DefaultConfig's values for anything the file/environment doesn't
// set.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetDefault("node.data_dir", cfg.Node.DataDir)
	v.SetDefault("node.log_level", cfg.Node.LogLevel)
	v.SetDefault("mesh.listen_address", cfg.Mesh.ListenAddress)
	v.SetDefault("mesh.max_peers", cfg.Mesh.MaxPeers)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.cache_size", cfg.Storage.CacheSize)
	v.SetDefault("storage.sync", cfg.Storage.Sync)
	v.SetDefault("consensus.block_time", cfg.Consensus.BlockTime)
	v.SetDefault("consensus.timeout_propose", cfg.Consensus.TimeoutPropose)
	v.SetDefault("consensus.timeout_prevote", cfg.Consensus.TimeoutPrevote)
	v.SetDefault("consensus.timeout_precommit", cfg.Consensus.TimeoutPrecommit)
	v.SetDefault("cas.endpoint", cfg.CAS.Endpoint)
	v.SetDefault("cas.bucket", cfg.CAS.Bucket)
	v.SetDefault("cas.access_key", cfg.CAS.AccessKey)
	v.SetDefault("cas.secret_key", cfg.CAS.SecretKey)
	v.SetDefault("cas.chunk_size", cfg.CAS.ChunkSize)
	v.SetDefault("cas.use_ssl", cfg.CAS.UseSSL)
	v.SetDefault("gossip.listen_address", cfg.Gossip.ListenAddress)
	v.SetDefault("gossip.fanout", cfg.Gossip.Fanout)
	v.SetDefault("gossip.gossip_interval", cfg.Gossip.GossipInterval)
	v.SetDefault("gossip.anti_entropy_interval", cfg.Gossip.AntiEntropyInterval)
	v.SetDefault("security.encrypt_private_values", cfg.Security.EncryptPrivateValues)
	v.SetDefault("security.audit_enabled", cfg.Security.AuditEnabled)
	v.SetDefault("security.audit_log_path", cfg.Security.AuditLogPath)
	v.SetDefault("economic.dispute_window", cfg.Economic.DisputeWindow)
	v.SetDefault("economic.default_rate_plan", cfg.Economic.DefaultRatePlan)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.address", cfg.Metrics.Address)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetEnvPrefix("ZHTP")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
