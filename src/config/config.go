package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/qubicnet/qgossip/src/common"
	"github.com/qubicnet/qgossip/src/node"
	"github.com/qubicnet/qgossip/src/trust"
	"github.com/qubicnet/qgossip/src/wire"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultConfigName is the name, without extension, of the optional config
	// file looked up in the data directory.
	DefaultConfigName = "qgossip"
)

// Store backends.
const (
	StoreBadger = "badger"
	StoreFile   = "file"
	StoreInmem  = "inmem"
)

// ProtocolEnv is the environment variable read for the protocol version when
// it is not set otherwise.
const ProtocolEnv = "QUBIC_NETWORK_PROTOCOL_VERSION"

// PortEnv is the environment variable read for the remote port when it is not
// set otherwise.
const PortEnv = "QUBIC_NETWORK_PORT"

// Default configuration values.
const (
	DefaultLogLevel           = "debug"
	DefaultPort               = 21841
	DefaultProtocol           = 0
	DefaultMaxPeers           = 10
	DefaultConnectTimeout     = 15 * time.Second
	DefaultReadTimeout        = 10 * time.Second
	DefaultLoopInterval       = time.Second
	DefaultReannounceInterval = 30 * time.Second
	DefaultRelayCacheSize     = 4096
	DefaultSendQueueSize      = 256
	DefaultStore              = StoreBadger
	DefaultServiceAddr        = "127.0.0.1:8000"
)

// DefaultBootstrap lists the public nodes dialed on a fresh start.
var DefaultBootstrap = []string{
	"93.125.105.208",
	"178.172.194.154",
	"91.43.75.241",
	"178.172.194.148",
	"178.172.194.130",
	"178.172.194.150",
	"178.172.194.147",
}

// Config contains all the configuration properties of a qgossip node.
type Config struct {
	// DataDir is the top-level directory containing the configuration file,
	// the persisted committee and the known peers.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// Bootstrap is the list of IPs dialed at start, merged with the persisted
	// pool.
	Bootstrap []string `mapstructure:"bootstrap"`

	// Port is the TCP port of every remote node.
	Port int `mapstructure:"port"`

	// Protocol is the local protocol version. Frames more than one version
	// away are refused.
	Protocol uint16 `mapstructure:"protocol"`

	// MaxPeers bounds the number of simultaneous connections, inbound and
	// outbound together.
	MaxPeers int `mapstructure:"max-peers"`

	ConnectTimeout     time.Duration `mapstructure:"connect-timeout"`
	ReadTimeout        time.Duration `mapstructure:"read-timeout"`
	LoopInterval       time.Duration `mapstructure:"loop-interval"`
	ReannounceInterval time.Duration `mapstructure:"reannounce-interval"`

	// BindAddr is the local address:port accepting inbound connections. Empty
	// means outbound only.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address checked for routability
	// when BindAddr is unspecified.
	AdvertiseAddr string `mapstructure:"advertise"`

	// Store selects the persistence backend: badger, file or inmem.
	Store string `mapstructure:"store"`

	// DatabaseDir is the directory containing the badger database files.
	DatabaseDir string `mapstructure:"db"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// AdminID is the identity of the key signing committee rosters. Empty
	// means trust.AdminID.
	AdminID string `mapstructure:"admin-id"`

	// RelayCacheSize is the number of relayed frames remembered to suppress
	// duplicates. 0 disables it.
	RelayCacheSize int `mapstructure:"relay-cache"`

	// SendQueueSize is the number of outbound frames buffered per peer.
	// Relayed frames beyond it are dropped for that peer.
	SendQueueSize int `mapstructure:"send-queue"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:            DefaultDataDir(),
		LogLevel:           DefaultLogLevel,
		Bootstrap:          append([]string{}, DefaultBootstrap...),
		Port:               DefaultPort,
		Protocol:           DefaultProtocol,
		MaxPeers:           DefaultMaxPeers,
		ConnectTimeout:     DefaultConnectTimeout,
		ReadTimeout:        DefaultReadTimeout,
		LoopInterval:       DefaultLoopInterval,
		ReannounceInterval: DefaultReannounceInterval,
		Store:              DefaultStore,
		DatabaseDir:        DefaultDatabaseDir(),
		ServiceAddr:        DefaultServiceAddr,
		RelayCacheSize:     DefaultRelayCacheSize,
		SendQueueSize:      DefaultSendQueueSize,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// AdminKey decodes AdminID, an identity or a 0X prefixed hex key, falling
// back to trust.AdminID.
func (c *Config) AdminKey() ([wire.KeySize]byte, error) {
	id := c.AdminID
	if id == "" {
		id = trust.AdminID
	}

	var (
		key [wire.KeySize]byte
		err error
	)
	if common.IsHexKey(id) {
		key, err = common.DecodeKey(id)
	} else {
		key, err = trust.PublicKeyFromIdentity(id)
	}
	if err != nil {
		return key, errors.Wrap(err, "admin-id")
	}
	return key, nil
}

// NodeConfig returns the settings of the network manager.
func (c *Config) NodeConfig() *node.Config {
	return &node.Config{
		Bootstrap:          c.Bootstrap,
		Port:               c.Port,
		Protocol:           c.Protocol,
		MaxPeers:           c.MaxPeers,
		ConnectTimeout:     c.ConnectTimeout,
		ReadTimeout:        c.ReadTimeout,
		LoopInterval:       c.LoopInterval,
		ReannounceInterval: c.ReannounceInterval,
		RelayCacheSize:     c.RelayCacheSize,
		SendQueueSize:      c.SendQueueSize,
		Logger:             c.baseLogger(),
	}
}

// Logger returns a formatted logrus Entry, with prefix set to "qgossip".
func (c *Config) Logger() *logrus.Entry {
	return c.baseLogger().WithField("prefix", "qgossip")
}

func (c *Config) baseLogger() *logrus.Logger {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				c.LogFile,
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level qgossip
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".QGossip")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "QGossip")
		} else {
			return filepath.Join(home, ".qgossip")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
