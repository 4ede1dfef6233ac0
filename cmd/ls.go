package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/store"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
	"github.com/HaiFongPan/ducktransfer/internal/utils"
)

// lsCmd represents the ls command
var lsCmd = &cobra.Command{
	Use:   "ls <connection> [path]",
	Short: "List a remote directory",
	Long: `List a directory (or S3 prefix) of a saved connection. Without a path the
directory the server puts you in after login is listed.

Examples:
  ducktransfer ls lab
  ducktransfer ls lab /var/log
  ducktransfer ls backup photos/2024/`,
	Args: cobra.RangeArgs(1, 2),
	RunE: listRemote,
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func listRemote(cmd *cobra.Command, args []string) error {
	var p string
	if len(args) > 1 {
		p = args[1]
	}

	ctx := context.Background()
	return withSession(ctx, args[0], func(s *transfer.Session, _ *store.BoltStore) error {
		return s.Do(func(c connector.Connector) error {
			entries, err := c.List(ctx, p)
			if err != nil {
				return err
			}

			fmt.Println(c.CurrentPath(ctx))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
			for _, e := range entries {
				name := e.DisplayName()
				if e.IsDir {
					name += "/"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, utils.FormatSize(e.Size, e.IsDir), e.Modified)
			}
			return w.Flush()
		})
	})
}
