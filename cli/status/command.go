package status

import "github.com/spf13/cobra"

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "inspect node status",
		Long: `Inspect node status.

A node started with '--admin.bind-addr' exposes a status API to inspect its
state, such as the nodes peers, how many values it holds and its counter
entries.

See 'status --help' for the available commands.

Examples:
  # Summarise the registry.
  glomers status summary

  # Inspect the nodes in the registry.
  glomers status nodes

  # Inspect node n1.
  glomers status node n1

  # Inspect the status of node 10.26.104.56:8002.
  glomers status nodes --server.url http://10.26.104.56:8002
`,
	}

	cmd.AddCommand(newSummaryCommand())
	cmd.AddCommand(newNodesCommand())
	cmd.AddCommand(newNodeCommand())

	return cmd
}
