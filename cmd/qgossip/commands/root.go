package commands

import (
	"github.com/spf13/cobra"

	"github.com/qubicnet/qgossip/src/config"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for qgossip
var RootCmd = &cobra.Command{
	Use:              "qgossip",
	Short:            "Gossip node for the Qubic network",
	TraverseChildren: true,
}
