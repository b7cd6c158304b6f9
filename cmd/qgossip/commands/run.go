package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qubicnet/qgossip/src/committee"
	"github.com/qubicnet/qgossip/src/config"
	"github.com/qubicnet/qgossip/src/events"
	"github.com/qubicnet/qgossip/src/net"
	"github.com/qubicnet/qgossip/src/node"
	"github.com/qubicnet/qgossip/src/service"
	"github.com/qubicnet/qgossip/src/trust"
)

//NewRunCmd returns the command that starts a qgossip node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runNode,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runNode(cmd *cobra.Command, args []string) error {
	logger := _config.Logger()

	adminKey, err := _config.AdminKey()
	if err != nil {
		return err
	}

	s, err := openStore(_config)
	if err != nil {
		logger.WithError(err).Error("Cannot open store")
		return err
	}
	defer s.Close()

	validator := trust.NewQubicValidator()

	state := committee.NewState(adminKey, validator, s, logger)
	state.Load()

	bus := events.NewBus(logger)
	defer bus.Close()
	bus.SubscribeAsync(logEvent(logger.WithField("prefix", "events")))

	stream, err := net.NewTCPStreamLayer(_config.BindAddr, _config.AdvertiseAddr)
	if err != nil {
		logger.WithError(err).Error("Cannot listen")
		return err
	}

	manager := node.NewManager(_config.NodeConfig(), state, validator, s, bus, stream)

	if !_config.NoService {
		go service.NewService(_config.ServiceAddr, manager, logger).Serve()
	}

	//Stop on SIGINT and SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return manager.Run(ctx)
}

func logEvent(logger *logrus.Entry) events.Handler {
	return func(ev events.Event) {
		entry := logger.WithFields(logrus.Fields{
			"kind":   ev.Kind,
			"source": ev.Source,
		})
		if ev.Reannounce {
			entry = entry.WithField("reannounce", true)
		}
		entry.Debug("Event")
	}
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	AddStoreFlags(cmd)

	// Network
	cmd.Flags().StringSlice("bootstrap", _config.Bootstrap, "IPs dialed at start")
	cmd.Flags().Int("port", _config.Port, "TCP port of remote nodes, defaults to $"+config.PortEnv)
	cmd.Flags().Uint16("protocol", _config.Protocol, "Protocol version, defaults to $"+config.ProtocolEnv)
	cmd.Flags().Int("max-peers", _config.MaxPeers, "Max simultaneous connections")
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for inbound connections, empty to disable")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port")
	cmd.Flags().Duration("connect-timeout", _config.ConnectTimeout, "Dial timeout")
	cmd.Flags().Duration("read-timeout", _config.ReadTimeout, "Read timeout, also applied to writes")

	// Node configuration
	cmd.Flags().Duration("loop-interval", _config.LoopInterval, "Time between mesh checks")
	cmd.Flags().Duration("reannounce-interval", _config.ReannounceInterval, "Time between committee re-announcements")
	cmd.Flags().Int("relay-cache", _config.RelayCacheSize, "Number of relayed frames remembered, 0 disables duplicate suppression")
	cmd.Flags().Int("send-queue", _config.SendQueueSize, "Outbound frames buffered per peer before relays to it are dropped")
	cmd.Flags().String("admin-id", _config.AdminID, "Identity or 0X hex key signing committee rosters")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
}
