package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "murmur",
		Short:   "Murmur is the governance and delivery core for multi-tenant chat bots",
		Version: version,
	}

	root.AddCommand(
		newBotCmd(),
		newPlanCmd(),
		newGrantCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
