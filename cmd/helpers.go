package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/store"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
	"github.com/HaiFongPan/ducktransfer/internal/utils"
)

// openStore opens the connection and history database in the data directory
func openStore() (*store.BoltStore, error) {
	dbPath := filepath.Join(GetConfig().General.DataDir, store.DefaultFileName)
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dbPath, err)
	}
	return st, nil
}

// withSession connects to the saved connection called name, binds it to a
// session, runs fn and disconnects again.
func withSession(ctx context.Context, name string, fn func(s *transfer.Session, st *store.BoltStore) error) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	cfg, err := st.Get(name)
	if err != nil {
		return fmt.Errorf("connection %q: %w", name, err)
	}

	opts := GetConfig().ConnectorOptions()
	opts.LocalFS = afero.NewOsFs()
	c, err := connector.New(cfg.Protocol, opts)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"connection": cfg.Name, "address": cfg.Address()}).Info("Connecting")
	session := transfer.NewSession()
	if err := session.Bind(ctx, c, cfg); err != nil {
		return err
	}
	defer session.Unbind()

	return fn(session, st)
}

// runTransfer starts req on the session and renders its progress until the
// transfer finished. The transfer is recorded in the history.
func runTransfer(ctx context.Context, session *transfer.Session, st *store.BoltStore, req transfer.Request) error {
	orchestrator := transfer.NewOrchestrator(session, afero.NewOsFs(), st)
	events, err := orchestrator.Start(ctx, req)
	if err != nil {
		return err
	}

	var bar *utils.ProgressBar
	if !quiet {
		bar = utils.NewProgressBar(os.Stderr, fmt.Sprintf("%s %s", req.Direction, req.Source.DisplayName()))
	}

	for ev := range events {
		switch ev.Kind {
		case transfer.EventProgress:
			if bar != nil {
				bar.Update(ev.Transferred, ev.Total)
			}
		case transfer.EventDone:
			if bar != nil {
				bar.Finish()
			}
			if ev.Err != nil {
				return fmt.Errorf("%s of %s failed: %w", ev.Direction, ev.Name, ev.Err)
			}
			if !quiet {
				fmt.Printf("%s %sed (%s)\n", ev.Name, ev.Direction, humanize.IBytes(uint64(ev.Transferred)))
			}
		}
	}
	return nil
}

// findRemoteEntry lists the parent of p and returns the entry named like
// the last element of p.
func findRemoteEntry(ctx context.Context, c connector.Connector, p string) (connector.Entry, error) {
	name := path.Base(strings.TrimSuffix(p, "/"))
	entries, err := c.List(ctx, c.Parent(p))
	if err != nil {
		return connector.Entry{}, err
	}
	for _, e := range entries {
		if e.DisplayName() == name {
			return e, nil
		}
	}
	return connector.Entry{}, &connector.OperationError{
		Op: "stat", Path: p, Message: connector.ErrNotFound.Error(), Kind: connector.ErrNotFound,
	}
}

// localTarget splits the local destination of a download into a directory
// and a file name. An existing directory keeps the remote name.
func localTarget(fs afero.Fs, local, remoteName string) (dir, name string) {
	if local == "" {
		local = "."
	}
	if ok, err := afero.IsDir(fs, local); err == nil && ok {
		return local, remoteName
	}
	return filepath.Dir(local), filepath.Base(local)
}

// remoteTarget splits the remote destination of an upload into a directory
// and a name. An empty remote means the connection's current directory, a
// trailing "/" names a directory.
func remoteTarget(ctx context.Context, c connector.Connector, remote, localName string) (dir, name string) {
	switch {
	case remote == "":
		return c.CurrentPath(ctx), localName
	case strings.HasSuffix(remote, "/"):
		return remote, localName
	}
	return c.Parent(remote), path.Base(remote)
}

// confirm asks a yes/no question on out and reads the answer from in
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s (y/N): ", question)
	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

func stdinConfirm(question string) bool {
	return confirm(os.Stdin, os.Stdout, question)
}
