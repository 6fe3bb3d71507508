package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andydunstall/glomers/cli/status"
	"github.com/andydunstall/glomers/node/config"
	pkgconfig "github.com/andydunstall/glomers/pkg/config"
	"github.com/andydunstall/glomers/pkg/log"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "glomers [command] (flags)",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Short: "start a cluster node",
		Long: `Glomers is a cluster node that replicates a grow-only set of values
(the 'broadcast' workload) or a grow-only counter (the 'g-counter' workload)
between the members of a cluster. It can also serve a per-key append-only
log (the 'kafka' workload) or a transactional register store (the
'txn-rw-register' workload), both local to the node.

Each process is one member. The node reads newline-delimited JSON messages
from stdin and writes replies and gossip to stdout. Logs are written to
stderr.

Start a node serving the broadcast workload with:

  $ glomers

Or the g-counter workload with:

  $ glomers --node.workload g-counter

Records larger than '--node.max-record-size' are skipped.

If the node is started with '--admin.bind-addr', you can inspect its state
using:

  $ glomers status summary
  $ glomers status nodes
`,
	}

	var conf config.Config

	var configPath string
	cmd.Flags().StringVar(
		&configPath,
		"config.path",
		"",
		`
YAML config file path.`,
	)

	var configExpandEnv bool
	cmd.Flags().BoolVar(
		&configExpandEnv,
		"config.expand-env",
		false,
		`
Whether to expand environment variables in the config file.

This will replaces references to ${VAR} or $VAR with the corresponding
environment variable. The replacement is case-sensitive.

References to undefined variables will be replaced with an empty string. A
default value can be given using form ${VAR:default}.`,
	)

	// Register flags and set default values.
	conf.RegisterFlags(cmd.Flags())

	cmd.Run = func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			if err := pkgconfig.Load(configPath, &conf, configExpandEnv); err != nil {
				fmt.Fprintf(os.Stderr, "load config: %s\n", err.Error())
				os.Exit(1)
			}
		}

		if err := conf.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid config: %s\n", err.Error())
			os.Exit(1)
		}

		logger, err := log.NewLogger(conf.Log, zap.Int("pid", os.Getpid()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to setup logger: %s\n", err.Error())
			os.Exit(1)
		}
		defer logger.Sync() //nolint

		if err := run(&conf, logger); err != nil {
			logger.Error("failed to run node", zap.Error(err))
			logger.Sync() //nolint
			os.Exit(1)
		}
	}

	cmd.AddCommand(status.NewCommand())

	return cmd
}

func init() {
	cobra.EnableCommandSorting = false
}
