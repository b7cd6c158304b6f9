package commands

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qubicnet/qgossip/src/config"
	"github.com/qubicnet/qgossip/src/store"
)

// AddStoreFlags adds the flags locating persisted data
func AddStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write the log to this file")
	cmd.Flags().String("store", _config.Store, "Persistence backend: badger, file or inmem")
	cmd.Flags().String("db", _config.DatabaseDir, "Badger database directory")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":            _config.DataDir,
		"LogLevel":           _config.LogLevel,
		"LogFile":            _config.LogFile,
		"Bootstrap":          _config.Bootstrap,
		"Port":               _config.Port,
		"Protocol":           _config.Protocol,
		"MaxPeers":           _config.MaxPeers,
		"ConnectTimeout":     _config.ConnectTimeout,
		"ReadTimeout":        _config.ReadTimeout,
		"LoopInterval":       _config.LoopInterval,
		"ReannounceInterval": _config.ReannounceInterval,
		"BindAddr":           _config.BindAddr,
		"Store":              _config.Store,
		"NoService":          _config.NoService,
		"ServiceAddr":        _config.ServiceAddr,
		"RelayCacheSize":     _config.RelayCacheSize,
		"SendQueueSize":      _config.SendQueueSize,
	}

	if _config.Store == config.StoreBadger {
		logFields["DatabaseDir"] = _config.DatabaseDir
	}

	_config.Logger().WithFields(logFields).Debug("Config")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if err := viper.BindEnv("protocol", config.ProtocolEnv); err != nil {
		return err
	}
	if err := viper.BindEnv("port", config.PortEnv); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/qgossip.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigName)
	viper.AddConfigPath(_config.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

func openStore(c *config.Config) (store.Store, error) {
	switch c.Store {
	case config.StoreBadger:
		return store.NewBadgerStore(c.DatabaseDir, c.Logger())
	case config.StoreFile:
		return store.NewFileStore(c.DataDir)
	case config.StoreInmem:
		return store.NewInmemStore(), nil
	default:
		return nil, errors.Errorf("unknown store %q", c.Store)
	}
}
