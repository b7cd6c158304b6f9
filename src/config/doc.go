// Package config defines the configuration for a qgossip node.
//
// The CLI populates Config from flags, the environment and an optional
// qgossip.toml (.yaml, .json) in Config.DataDir. Besides the config file, the
// data directory holds:
//
//  system.data // the last committee roster, raw wire layout (file store).
//  peers.json // the known peer pool (file store).
//  badger_db/ // both of the above (badger store, the default).
package config
