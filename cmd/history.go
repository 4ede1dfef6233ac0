package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/HaiFongPan/ducktransfer/internal/store"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show recent transfers",
	Long: `Show recent transfers, newest first. With an id, show every recorded
field of that one transfer.

Examples:
  ducktransfer history
  ducktransfer history -n 5
  ducktransfer history 3f2a9c1e-0b7d-4e55-9a51-8d2f6c4b1a70`,
	Args: cobra.MaximumNArgs(1),
	RunE: showHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of transfers to show (0 for all)")
}

func showHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) == 1 {
		rec, err := st.GetTransfer(args[0])
		if errors.Is(err, store.ErrTransferNotFound) {
			return fmt.Errorf("no transfer with id %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		return writeTransfer(os.Stdout, rec)
	}

	records, err := st.ListTransfers(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No transfers yet.")
		return nil
	}
	ptrs := make([]*store.TransferRecord, len(records))
	for i := range records {
		ptrs[i] = &records[i]
	}
	return writeHistory(os.Stdout, ptrs)
}

func writeHistory(out io.Writer, records []*store.TransferRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tCONNECTION\tDIRECTION\tSOURCE\tDESTINATION\tSIZE\tSTATE")
	for _, r := range records {
		state := string(r.State)
		if r.Error != "" {
			state += ": " + r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, humanize.Time(r.Started), r.Connection, r.Direction, r.Source, r.Destination,
			humanize.IBytes(uint64(r.Bytes)), state)
	}
	return w.Flush()
}

// writeTransfer prints one record as aligned key/value lines.
func writeTransfer(out io.Writer, rec *store.TransferRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", rec.ID)
	fmt.Fprintf(w, "Connection:\t%s\n", rec.Connection)
	fmt.Fprintf(w, "Direction:\t%s\n", rec.Direction)
	fmt.Fprintf(w, "Source:\t%s\n", rec.Source)
	fmt.Fprintf(w, "Destination:\t%s\n", rec.Destination)
	fmt.Fprintf(w, "State:\t%s\n", rec.State)
	if rec.Total > 0 {
		fmt.Fprintf(w, "Transferred:\t%s of %s\n", humanize.IBytes(uint64(rec.Bytes)), humanize.IBytes(uint64(rec.Total)))
	} else {
		fmt.Fprintf(w, "Transferred:\t%s\n", humanize.IBytes(uint64(rec.Bytes)))
	}
	fmt.Fprintf(w, "Started:\t%s\n", rec.Started.Format("2006-01-02 15:04:05"))
	if !rec.Finished.IsZero() {
		fmt.Fprintf(w, "Finished:\t%s (%s)\n", rec.Finished.Format("2006-01-02 15:04:05"), rec.Finished.Sub(rec.Started).Round(time.Millisecond))
	}
	if rec.Error != "" {
		fmt.Fprintf(w, "Error:\t%s\n", rec.Error)
	}
	return w.Flush()
}
