package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/localfs"
	"github.com/HaiFongPan/ducktransfer/internal/store"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
)

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put <connection> <local-path> [remote-path]",
	Short: "Upload a file",
	Long: `Upload one file to a saved connection. Without remote-path the file lands
in the login directory (bucket root for S3); a remote-path ending in "/" names
a directory and keeps the local name.

Examples:
  ducktransfer put lab report.pdf
  ducktransfer put lab report.pdf /srv/reports/
  ducktransfer put backup report.pdf reports/2024-q1.pdf`,
	Args: cobra.RangeArgs(2, 3),
	RunE: uploadFile,
}

func init() {
	rootCmd.AddCommand(putCmd)
}

func uploadFile(cmd *cobra.Command, args []string) error {
	local := args[1]
	var remote string
	if len(args) > 2 {
		remote = args[2]
	}

	entry, err := localEntry(localfs.New(afero.NewOsFs(), true), local)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return withSession(ctx, args[0], func(s *transfer.Session, st *store.BoltStore) error {
		var dir, name string
		err := s.Do(func(c connector.Connector) error {
			dir, name = remoteTarget(ctx, c, remote, entry.Name)
			return nil
		})
		if err != nil {
			return err
		}

		return runTransfer(ctx, s, st, transfer.Request{
			Direction: transfer.Upload,
			Source:    entry,
			DestDir:   dir,
			DestName:  name,
		})
	})
}

// localEntry describes the local file p as a transfer source.
func localEntry(fs *localfs.FS, p string) (connector.Entry, error) {
	info, err := fs.Stat(p)
	if err != nil {
		return connector.Entry{}, fmt.Errorf("failed to read %s: %w", p, err)
	}
	if info.IsDir() {
		return connector.Entry{}, transfer.ErrDirectoryTransfer
	}
	return connector.Entry{Name: filepath.Base(p), Path: p, Size: info.Size()}, nil
}
