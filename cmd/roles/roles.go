package roles

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lumenforge/lumenforge/internal/auth"
)

// RolesCmd is the parent command for the role catalog
var RolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Inspect the application role catalog",
	// The catalog is compiled in; no configuration or database is needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every assignable role with its stored value",
	RunE: func(cmd *cobra.Command, args []string) error {
		return PrintCatalog(os.Stdout)
	},
}

func init() {
	RolesCmd.AddCommand(listCmd)
}

// PrintCatalog writes the catalog as an aligned NAME/VALUE table.
func PrintCatalog(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVALUE")
	for _, info := range auth.RoleCatalog() {
		fmt.Fprintf(tw, "%s\t%d\n", info.Name, info.Value)
	}
	return tw.Flush()
}
