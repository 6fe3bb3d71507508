package status

import (
	"fmt"
	"net/url"
	"os"

	yaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/status/client"
	"github.com/andydunstall/glomers/status/config"
)

func newSummaryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "summarise the node registry",
		Long: `Summarise the node registry.

Queries the admin server for the number of registered nodes, whether the
overlay topology has been built and whether the registry is unavailable
following a failed update.

Examples:
  glomers status summary
`,
	}

	var conf config.Config
	conf.RegisterFlags(cmd.Flags())

	cmd.Run = func(cmd *cobra.Command, args []string) {
		if err := conf.Validate(); err != nil {
			fmt.Printf("invalid config: %s\n", err.Error())
			os.Exit(1)
		}

		showSummary(&conf)
	}

	return cmd
}

func showSummary(conf *config.Config) {
	// The URL has already been validated in conf.
	url, _ := url.Parse(conf.Server.URL)
	client := client.NewClient(url)
	defer client.Close()

	summary, err := client.RegistrySummary()
	if err != nil {
		fmt.Printf("failed to get summary: %s\n", err.Error())
		os.Exit(1)
	}

	b, _ := yaml.Marshal(summary)
	fmt.Println(string(b))
}

func newNodesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "inspect registered nodes",
		Long: `Inspect registered nodes.

Queries the admin server for the nodes in its registry. The output contains
the state of each node.

Examples:
  glomers status nodes
`,
	}

	var conf config.Config
	conf.RegisterFlags(cmd.Flags())

	cmd.Run = func(cmd *cobra.Command, args []string) {
		if err := conf.Validate(); err != nil {
			fmt.Printf("invalid config: %s\n", err.Error())
			os.Exit(1)
		}

		showNodes(&conf)
	}

	return cmd
}

type nodesOutput struct {
	Nodes []*registry.NodeStatus `json:"nodes"`
}

func showNodes(conf *config.Config) {
	// The URL has already been validated in conf.
	url, _ := url.Parse(conf.Server.URL)
	client := client.NewClient(url)
	defer client.Close()

	nodes, err := client.RegistryNodes()
	if err != nil {
		fmt.Printf("failed to get nodes: %s\n", err.Error())
		os.Exit(1)
	}

	output := nodesOutput{
		Nodes: nodes,
	}
	b, _ := yaml.Marshal(output)
	fmt.Println(string(b))
}

func newNodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Args:  cobra.ExactArgs(1),
		Short: "inspect a registered node",
		Long: `Inspect a registered node.

Queries the admin server for the state of the node with the given ID.

Examples:
  # Inspect node n1.
  glomers status node n1
`,
	}

	var conf config.Config
	conf.RegisterFlags(cmd.Flags())

	cmd.Run = func(cmd *cobra.Command, args []string) {
		if err := conf.Validate(); err != nil {
			fmt.Printf("invalid config: %s\n", err.Error())
			os.Exit(1)
		}

		showNode(args[0], &conf)
	}

	return cmd
}

func showNode(nodeID string, conf *config.Config) {
	// The URL has already been validated in conf.
	url, _ := url.Parse(conf.Server.URL)
	client := client.NewClient(url)
	defer client.Close()

	node, err := client.RegistryNode(nodeID)
	if err != nil {
		fmt.Printf("failed to get node: %s: %s\n", nodeID, err.Error())
		os.Exit(1)
	}

	b, _ := yaml.Marshal(node)
	fmt.Println(string(b))
}
