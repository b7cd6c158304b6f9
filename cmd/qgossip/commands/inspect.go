package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qubicnet/qgossip/src/common"
	"github.com/qubicnet/qgossip/src/store"
	"github.com/qubicnet/qgossip/src/trust"
	"github.com/qubicnet/qgossip/src/wire"
)

var (
	inspectFile string
	inspectKeys bool
)

//NewInspectCmd returns the command that prints the persisted committee
func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inspect",
		Short:   "Print the persisted committee",
		PreRunE: loadConfig,
		RunE:    inspect,
	}
	AddStoreFlags(cmd)
	cmd.Flags().StringVar(&inspectFile, "file", "", "Read a raw system.data file instead of the store")
	cmd.Flags().BoolVar(&inspectKeys, "keys", false, "Also print public keys in hex")
	return cmd
}

func inspect(cmd *cobra.Command, args []string) error {
	c, err := loadComputors()
	if err != nil {
		return err
	}

	adminKey, err := _config.AdminKey()
	if err != nil {
		return err
	}
	v := trust.NewQubicValidator()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "epoch: %d\n", c.Epoch)
	fmt.Fprintf(out, "signed by admin: %t\n", c.Verify(v, adminKey))
	for i, k := range c.PublicKeys {
		if inspectKeys {
			fmt.Fprintf(out, "%3d %s %s\n", i, v.Identity(k), common.EncodeToString(k[:]))
			continue
		}
		fmt.Fprintf(out, "%3d %s\n", i, v.Identity(k))
	}
	return nil
}

func loadComputors() (*wire.Computors, error) {
	if inspectFile != "" {
		return store.ReadComputorsFile(inspectFile)
	}

	s, err := openStore(_config)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return s.LoadComputors()
}
