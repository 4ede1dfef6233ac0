package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/store"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
)

// bucketsCmd represents the buckets command
var bucketsCmd = &cobra.Command{
	Use:   "buckets <connection>",
	Short: "List the buckets visible to an S3 connection",
	Args:  cobra.ExactArgs(1),
	RunE:  listBuckets,
}

func init() {
	rootCmd.AddCommand(bucketsCmd)
}

func listBuckets(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	return withSession(ctx, args[0], func(s *transfer.Session, _ *store.BoltStore) error {
		return s.Do(func(c connector.Connector) error {
			s3c, ok := c.(*connector.S3Connector)
			if !ok {
				return fmt.Errorf("%s is a %s connection, buckets only works with s3", args[0], c.Protocol())
			}
			names, err := s3c.ListBuckets(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				marker := "  "
				if name == s3c.Bucket() {
					marker = "* "
				}
				fmt.Printf("%s%s\n", marker, name)
			}
			return nil
		})
	})
}
