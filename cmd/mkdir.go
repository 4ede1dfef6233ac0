package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/store"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
)

// mkdirCmd represents the mkdir command
var mkdirCmd = &cobra.Command{
	Use:   "mkdir <connection> <path>",
	Short: "Create a remote directory",
	Long: `Create a remote directory. On S3 an empty "<prefix>/" marker object is
written so the prefix shows up in listings.

Examples:
  ducktransfer mkdir lab /srv/reports
  ducktransfer mkdir backup photos/2024`,
	Args: cobra.ExactArgs(2),
	RunE: makeRemoteDir,
}

func init() {
	rootCmd.AddCommand(mkdirCmd)
}

func makeRemoteDir(cmd *cobra.Command, args []string) error {
	p := args[1]
	ctx := context.Background()
	return withSession(ctx, args[0], func(s *transfer.Session, _ *store.BoltStore) error {
		return s.Do(func(c connector.Connector) error {
			if !c.CreateDirectory(ctx, p) {
				return fmt.Errorf("could not create %s (see the log for details)", p)
			}
			fmt.Printf("Created %s\n", p)
			return nil
		})
	})
}
