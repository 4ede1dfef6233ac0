package utils

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressBar renders transfer progress on a single terminal line
type ProgressBar struct {
	mu          sync.Mutex
	out         io.Writer
	description string
	startTime   time.Time
	lastPrint   time.Time
	interval    time.Duration
	transferred int64
	total       int64
	finished    bool
	lastLineLen int
	now         func() time.Time
}

// NewProgressBar creates a progress bar writing to out
func NewProgressBar(out io.Writer, description string) *ProgressBar {
	now := time.Now()
	return &ProgressBar{
		out:         out,
		description: description,
		startTime:   now,
		interval:    200 * time.Millisecond,
		now:         time.Now,
	}
}

// Update records a progress report. It matches connector.ProgressFunc.
func (pb *ProgressBar) Update(transferred, total int64) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.transferred = transferred
	pb.total = total

	// Update progress every 200ms or when the transfer is complete
	now := pb.now()
	complete := total > 0 && transferred >= total
	if now.Sub(pb.lastPrint) > pb.interval || complete {
		pb.printProgress()
		pb.lastPrint = now
	}
}

// Finish prints the final state and ends the line
func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.finished {
		return
	}
	pb.finished = true
	pb.printProgress()
	fmt.Fprintln(pb.out)
}

// printProgress displays the current progress
func (pb *ProgressBar) printProgress() {
	var speed string
	elapsed := pb.now().Sub(pb.startTime)
	if elapsed.Seconds() > 0.1 {
		bytesPerSec := float64(pb.transferred) / elapsed.Seconds()
		speed = fmt.Sprintf(" %s/s", humanize.IBytes(uint64(bytesPerSec)))
	}

	var line string
	if pb.total <= 0 {
		line = fmt.Sprintf("%s %s%s", pb.description, humanize.IBytes(uint64(max(pb.transferred, 0))), speed)
	} else {
		percentage := float64(pb.transferred) / float64(pb.total) * 100
		if percentage > 100 {
			percentage = 100
		}

		barWidth := 40
		filled := int(percentage * float64(barWidth) / 100)
		bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled) + "]"

		line = fmt.Sprintf("%s %s %.1f%% (%s/%s)%s",
			pb.description,
			bar,
			percentage,
			humanize.IBytes(uint64(pb.transferred)),
			humanize.IBytes(uint64(pb.total)),
			speed)
	}

	// Clear previous line if it was longer
	if pb.lastLineLen > len(line) {
		fmt.Fprintf(pb.out, "\r%s\r", strings.Repeat(" ", pb.lastLineLen))
	}

	fmt.Fprintf(pb.out, "\r%s", line)
	pb.lastLineLen = len(line)
}

// FormatSize formats a byte count for listings. Directories show a dash.
func FormatSize(size int64, isDir bool) string {
	if isDir {
		return "-"
	}
	if size < 0 {
		size = 0
	}
	return humanize.IBytes(uint64(size))
}
