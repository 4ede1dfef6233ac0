package transfer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/store"
)

var (
	// ErrDirectoryTransfer rejects recursive transfers before anything is touched.
	ErrDirectoryTransfer = errors.New("directory transfer is not supported, select a file")
	// ErrTransferInProgress rejects a second transfer while one is running.
	ErrTransferInProgress = errors.New("a transfer is already in progress")
)

// Direction says which way bytes flow.
type Direction int

const (
	Download Direction = iota
	Upload
)

func (d Direction) String() string {
	if d == Upload {
		return "upload"
	}
	return "download"
}

// Pane identifies one side of the browser.
type Pane int

const (
	PaneLocal Pane = iota
	PaneRemote
)

func (p Pane) String() string {
	if p == PaneRemote {
		return "remote"
	}
	return "local"
}

// Destination is the directory to re-list once a transfer succeeded.
type Destination struct {
	Pane Pane
	Dir  string
}

// Request describes one transfer. Source is the selected entry: a remote
// entry for downloads, a local one for uploads. The target path is
// DestDir joined with DestName, or with the source name when DestName is empty.
type Request struct {
	Direction Direction
	Source    connector.Entry
	DestDir   string
	DestName  string
}

// EventKind distinguishes progress updates from the terminal event.
type EventKind int

const (
	EventProgress EventKind = iota
	EventDone
)

// Event is sent from the transfer goroutine to the consumer.
type Event struct {
	Kind        EventKind
	ID          string
	Direction   Direction
	Name        string
	Transferred int64
	Total       int64
	Err         error
	Destination Destination
}

// Percent returns transferred/total as a percentage clamped to [0,100]. An
// unknown total yields 0.
func Percent(transferred, total int64) float64 {
	if total <= 0 || transferred <= 0 {
		return 0
	}
	p := float64(transferred) / float64(total) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Recorder persists transfer history.
type Recorder interface {
	SaveTransfer(rec *store.TransferRecord) error
}

const eventBuffer = 64

// Orchestrator runs at most one transfer at a time on the session's connector.
type Orchestrator struct {
	session  *Session
	local    afero.Fs
	recorder Recorder
	active   atomic.Bool
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator. recorder may be nil.
func NewOrchestrator(session *Session, local afero.Fs, recorder Recorder) *Orchestrator {
	if local == nil {
		local = afero.NewOsFs()
	}
	return &Orchestrator{session: session, local: local, recorder: recorder, now: time.Now}
}

// Active reports whether a transfer is running.
func (o *Orchestrator) Active() bool {
	return o.active.Load()
}

type plan struct {
	id     string
	source string
	target string
	total  int64
	dest   Destination
}

// Start validates req and launches the transfer. The returned channel
// delivers progress events in non-decreasing order, then exactly one
// EventDone, then is closed.
func (o *Orchestrator) Start(ctx context.Context, req Request) (<-chan Event, error) {
	if req.Source.IsDir {
		return nil, ErrDirectoryTransfer
	}
	if !o.active.CompareAndSwap(false, true) {
		return nil, ErrTransferInProgress
	}

	p, err := o.plan(req)
	if err != nil {
		o.active.Store(false)
		return nil, err
	}

	events := make(chan Event, eventBuffer)
	go o.run(ctx, req, p, events)
	return events, nil
}

func (o *Orchestrator) plan(req Request) (plan, error) {
	name := req.DestName
	if name == "" {
		name = req.Source.DisplayName()
	}
	p := plan{id: uuid.NewString(), source: req.Source.Path}

	switch req.Direction {
	case Download:
		if !o.session.Bound() {
			return plan{}, ErrNotBound
		}
		p.total = req.Source.Size
		p.target = filepath.Join(req.DestDir, name)
		p.dest = Destination{Pane: PaneLocal, Dir: req.DestDir}
	case Upload:
		info, err := o.local.Stat(req.Source.Path)
		if err != nil {
			return plan{}, fmt.Errorf("cannot read %s: %w", req.Source.Path, err)
		}
		if info.IsDir() {
			return plan{}, ErrDirectoryTransfer
		}
		if !o.session.Bound() {
			return plan{}, ErrNotBound
		}
		p.total = info.Size()
		p.target = o.session.Join(req.DestDir, name)
		p.dest = Destination{Pane: PaneRemote, Dir: req.DestDir}
	default:
		return plan{}, fmt.Errorf("unknown direction %d", req.Direction)
	}
	return p, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, p plan, events chan<- Event) {
	defer close(events)

	log := logrus.WithFields(logrus.Fields{
		"id":        p.id,
		"direction": req.Direction,
		"source":    p.source,
		"target":    p.target,
	})
	rec := &store.TransferRecord{
		ID:          p.id,
		Connection:  o.session.Name(),
		Direction:   req.Direction.String(),
		Source:      p.source,
		Destination: p.target,
		State:       store.StateInProgress,
		Total:       p.total,
		Started:     o.now(),
	}
	o.record(rec, log)
	log.Info("Transfer started")

	base := Event{ID: p.id, Direction: req.Direction, Name: req.Source.DisplayName(), Destination: p.dest}

	var (
		last    Event
		seen    bool
		pending bool
	)
	progress := func(transferred, total int64) {
		ev := base
		ev.Kind = EventProgress
		ev.Transferred = transferred
		ev.Total = total
		last = ev
		seen = true
		select {
		case events <- ev:
			pending = false
		default:
			pending = true
		}
	}

	err := o.session.Do(func(c connector.Connector) error {
		if req.Direction == Upload {
			return c.Upload(ctx, p.source, p.target, progress)
		}
		return c.Download(ctx, p.source, p.target, progress)
	})

	// The newest update may have been dropped while the consumer lagged.
	if pending {
		events <- last
	}

	done := base
	done.Kind = EventDone
	done.Err = err
	done.Transferred = last.Transferred
	done.Total = last.Total
	if !seen {
		done.Total = p.total
	}

	rec.Bytes = done.Transferred
	rec.Finished = o.now()
	if err != nil {
		rec.State = store.StateFailed
		rec.Error = err.Error()
		log.WithError(err).Error("Transfer failed")
	} else {
		rec.State = store.StateCompleted
		if done.Total > 0 {
			rec.Total = done.Total
		}
		log.WithField("bytes", done.Transferred).Info("Transfer completed")
	}
	o.record(rec, log)

	o.active.Store(false)
	events <- done
}

func (o *Orchestrator) record(rec *store.TransferRecord, log *logrus.Entry) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.SaveTransfer(rec); err != nil {
		log.WithError(err).Warn("Failed to record transfer")
	}
}
