package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/industrial-sec/uaenum/internal/config"
	"github.com/industrial-sec/uaenum/internal/log"
	"github.com/industrial-sec/uaenum/internal/model"
	"github.com/industrial-sec/uaenum/internal/output"
	"github.com/industrial-sec/uaenum/internal/services"
)

const (
	ModeAll         = "all"
	ModeEnumObjects = "enum-objects"
	ModeShowObject  = "show-object"
)

type options struct {
	endpoint   string
	mode       string
	depth      int
	nodeID     string
	format     output.Format
	username   string
	password   string
	policy     string
	insecure   bool
	timeout    int
	serverInfo bool
}

// buildOptions validates the positional arguments and flag combinations.
func buildOptions(args []string, o options) (options, error) {
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 1 || port > 65535 {
		return o, errors.Errorf("invalid port %q", args[1])
	}
	o.endpoint = fmt.Sprintf("opc.tcp://%s:%d", args[0], port)

	switch o.mode {
	case ModeAll, ModeEnumObjects:
	case ModeShowObject:
		if o.nodeID == "" {
			return o, errors.New("--nodeid is required for show-object mode")
		}
	default:
		return o, errors.Errorf("unknown mode %q (want all, enum-objects or show-object)", o.mode)
	}
	if o.depth < 0 {
		return o, errors.Errorf("invalid depth %d", o.depth)
	}
	switch o.policy {
	case "none", "auto":
	default:
		return o, errors.Errorf("unknown security policy %q (want none or auto)", o.policy)
	}
	return o, nil
}

// NewRootCmd builds the uaenum command.
func NewRootCmd() *cobra.Command {
	var o options
	var format string

	cmd := &cobra.Command{
		Use:          "uaenum <ip> <port>",
		Short:        "OPC UA address-space enumeration tool",
		Long:         "uaenum connects to an OPC UA server, browses its address space and prints\nnode metadata for security assessment of industrial control systems.\n\nFor authorized assessments only.",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if o.format, err = output.ParseFormat(format); err != nil {
				return err
			}
			if o, err = buildOptions(args, o); err != nil {
				return err
			}
			return run(cmd.Context(), o)
		},
	}

	cmd.Flags().StringVar(&o.mode, "mode", ModeAll, "enumeration mode: all, enum-objects or show-object")
	cmd.Flags().IntVar(&o.depth, "depth", 0, "depth limit for enum-objects mode")
	cmd.Flags().StringVar(&o.nodeID, "nodeid", "", "NodeId or object name for show-object mode")
	cmd.Flags().StringVar(&format, "format", string(output.FormatText), "output format: text, json or yaml")
	cmd.Flags().StringVar(&o.username, "username", "", "user name identity (anonymous when omitted)")
	cmd.Flags().StringVar(&o.password, "password", "", "password for --username")
	cmd.Flags().StringVar(&o.policy, "policy", "auto", "security policy: none or auto")
	cmd.Flags().BoolVar(&o.insecure, "insecure", false, "skip verification of the server certificate")
	cmd.Flags().IntVar(&o.timeout, "timeout", 0, "connect timeout in seconds (0 uses the configured default)")
	cmd.Flags().BoolVar(&o.serverInfo, "server-info", false, "print server status and namespace table after connecting")
	return cmd
}

func run(ctx context.Context, o options) error {
	cfg := config.GetConfigs()
	logger := log.NewLogger(cfg.LoggerConfig.Level, cfg.LoggerConfig.Format, cfg.LoggerConfig.DisableTimestamp)
	if o.timeout > 0 {
		cfg.ClientConfig.ConnectTimeout = int64(o.timeout) * 1000
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("Connecting to OPC UA server at %s ...", o.endpoint)
	session, err := services.NewSessionSvc(ctx, services.SessionParams{
		Endpoint:           o.endpoint,
		Username:           o.username,
		Password:           o.password,
		PolicyNone:         o.policy == "none",
		InsecureSkipVerify: o.insecure,
	}, cfg.ClientConfig, logger)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer closeSession(context.Background(), session, logger)
	logger.Infoln("Connected successfully")

	printer := output.NewPrinter(os.Stdout, o.format == output.FormatText)

	if o.serverInfo {
		info, err := session.ServerInfo(ctx)
		if err != nil {
			logger.WithError(err).Warnln("Could not read server status")
		} else if err := printer.ServerInfo(o.format, info); err != nil {
			return err
		}
	}

	browser := services.NewBrowserSvc(session.GetClient(), session.NamespaceURIs(), cfg.ClientConfig, logger)

	var nodes []*model.Node
	switch o.mode {
	case ModeAll:
		logger.Infoln("Browsing all from the Objects folder ...")
		nodes, err = browser.EnumerateAll(ctx)
	case ModeEnumObjects:
		logger.Infof("Enumerating Objects (depth %d):", o.depth)
		nodes, err = browser.EnumerateObjects(ctx, o.depth)
	case ModeShowObject:
		nodes, err = browser.ShowObject(ctx, o.nodeID)
	}
	if err != nil {
		return errors.Wrap(err, "browse")
	}
	if err := printer.Render(o.format, nodes); err != nil {
		return err
	}

	sum := browser.Summary()
	logger.Infof("Done: %d nodes, %d variables read, %d errors in %s",
		sum.NodesVisited, sum.VariablesRead, sum.Errors, sum.Duration)
	return nil
}

// closeSession tears the session down; a failed close is worth seeing in an
// assessment log, not worth failing the run over.
func closeSession(ctx context.Context, s interface{ Close(context.Context) error }, logger *logrus.Logger) {
	if err := s.Close(ctx); err != nil {
		logger.WithError(err).Warnln("Could not close session cleanly")
	}
}
