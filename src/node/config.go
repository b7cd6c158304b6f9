package node

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qubicnet/qgossip/src/common"
)

// Config holds the settings of a Manager.
type Config struct {
	Bootstrap          []string
	Port               int
	Protocol           uint16
	MaxPeers           int
	ConnectTimeout     time.Duration
	ReadTimeout        time.Duration
	LoopInterval       time.Duration
	ReannounceInterval time.Duration
	RelayCacheSize     int
	SendQueueSize      int
	Logger             *logrus.Logger
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		Port:               21841,
		MaxPeers:           10,
		ConnectTimeout:     15 * time.Second,
		ReadTimeout:        10 * time.Second,
		LoopInterval:       time.Second,
		ReannounceInterval: 30 * time.Second,
		RelayCacheSize:     4096,
		SendQueueSize:      256,
		Logger:             logger,
	}
}

// TestConfig returns a configuration with short intervals and a logger writing
// through t.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.Logger = common.NewTestLogger(t, common.TestLogLevel)
	config.ConnectTimeout = time.Second
	config.LoopInterval = 50 * time.Millisecond
	config.ReannounceInterval = time.Hour
	return config
}
