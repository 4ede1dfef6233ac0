package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/store"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
)

var rmForce bool

// rmCmd represents the rm command
var rmCmd = &cobra.Command{
	Use:   "rm <connection> <path>",
	Short: "Delete a remote file or empty directory",
	Long: `Delete a remote file, an empty directory, or an S3 object.

Examples:
  ducktransfer rm lab /tmp/old.log
  ducktransfer rm backup photos/cat.jpg --force`,
	Args: cobra.ExactArgs(2),
	RunE: removeRemote,
}

func init() {
	rootCmd.AddCommand(rmCmd)
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "delete without confirmation")
}

func removeRemote(cmd *cobra.Command, args []string) error {
	p := args[1]
	if !rmForce && !stdinConfirm(fmt.Sprintf("Are you sure you want to delete '%s'?", p)) {
		fmt.Println("Delete cancelled.")
		return nil
	}

	ctx := context.Background()
	return withSession(ctx, args[0], func(s *transfer.Session, _ *store.BoltStore) error {
		return s.Do(func(c connector.Connector) error {
			logrus.Infof("Deleting %s", p)
			if !c.Delete(ctx, p) {
				return fmt.Errorf("could not delete %s (see the log for details)", p)
			}
			fmt.Printf("Deleted %s\n", p)
			return nil
		})
	})
}
