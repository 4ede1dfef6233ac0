package cmd

import (
	"context"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/store"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <connection> <remote-path> [local-path]",
	Short: "Download a file",
	Long: `Download one file from a saved connection. When local-path is an existing
directory (or omitted) the remote name is kept. Missing parent directories are
created.

Examples:
  ducktransfer get lab /var/log/syslog
  ducktransfer get lab /var/log/syslog ./logs/
  ducktransfer get backup photos/cat.jpg cat-2024.jpg`,
	Args: cobra.RangeArgs(2, 3),
	RunE: downloadFile,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func downloadFile(cmd *cobra.Command, args []string) error {
	remote := args[1]
	var local string
	if len(args) > 2 {
		local = args[2]
	}

	ctx := context.Background()
	return withSession(ctx, args[0], func(s *transfer.Session, st *store.BoltStore) error {
		var entry connector.Entry
		err := s.Do(func(c connector.Connector) error {
			var err error
			entry, err = findRemoteEntry(ctx, c, remote)
			return err
		})
		if err != nil {
			return err
		}

		dir, name := localTarget(afero.NewOsFs(), local, entry.DisplayName())
		return runTransfer(ctx, s, st, transfer.Request{
			Direction: transfer.Download,
			Source:    entry,
			DestDir:   dir,
			DestName:  name,
		})
	})
}
