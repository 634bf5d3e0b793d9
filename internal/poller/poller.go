// Package poller drives the device polling loop for a recording session.
//
// A session moves through three states: it polls until a frame contains the
// start key, then records one row per poll until a frame contains the stop
// key. The frame that carries the stop key is recorded before the loop exits.
package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/analogrec/internal/decoder"
	"github.com/verte-zerg/analogrec/internal/device"
	"github.com/verte-zerg/analogrec/internal/logger"
	"github.com/verte-zerg/analogrec/internal/model"
)

// DefaultInterval is the sleep between polls.
const DefaultInterval = time.Millisecond

// State is a polling loop state.
type State int

// Polling loop states.
const (
	WaitingForStart State = iota
	Recording
	Stopped
)

func (s State) String() string {
	switch s {
	case WaitingForStart:
		return "waiting"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// BufferReader performs one full-buffer read into buf and returns the raw
// count, negative on error.
type BufferReader interface {
	ReadBuffer(buf *device.Buffer) int
}

// Appender persists one frame.
type Appender interface {
	Append(frame model.Frame, ts time.Time) error
}

// Config holds session settings.
type Config struct {
	BufferSize int
	Exclude    []uint16
	StripZero  bool
	Interval   time.Duration
	StartCode  uint16
	StopCode   uint16
}

// Summary reports the outcome of a recording run.
type Summary struct {
	Records    int
	ReadErrors int
	StartedAt  time.Time
	EndedAt    time.Time
}

// Poller owns the scratch buffer, exclusion set and state of one session.
type Poller struct {
	reader     BufferReader
	buf        *device.Buffer
	exclusions *decoder.Exclusions
	stripZero  bool
	interval   time.Duration
	startCode  uint16
	stopCode   uint16
	log        *logger.Logger

	state      State
	lastCount  int
	lastStatus int
	failedRun  int

	sleep         func(time.Duration)
	now           func() time.Time
	onCountChange func(count int)
}

// New returns a poller reading from reader.
func New(reader BufferReader, cfg Config, log *logger.Logger) *Poller {
	if log == nil {
		log = logger.Nop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{
		reader:     reader,
		buf:        device.NewBuffer(cfg.BufferSize),
		exclusions: decoder.NewExclusions(),
		stripZero:  cfg.StripZero,
		interval:   interval,
		startCode:  cfg.StartCode,
		stopCode:   cfg.StopCode,
		log:        log,
		state:      WaitingForStart,
		lastCount:  -1,
		sleep:      time.Sleep,
		now:        time.Now,
	}
	p.SetExclusions(cfg.Exclude)
	p.onCountChange = func(count int) {
		p.log.Infow("keys pressed", "count", count)
	}
	return p
}

// State returns the current loop state.
func (p *Poller) State() State {
	return p.state
}

// BufferSize returns the clamped capacity used for reads.
func (p *Poller) BufferSize() int {
	return p.buf.Cap()
}

// SetExclusions replaces the excluded key codes. The start and stop codes are
// never excluded, otherwise the session could not start or end.
func (p *Poller) SetExclusions(codes []uint16) {
	kept := make([]uint16, 0, len(codes))
	for _, code := range codes {
		if code == p.startCode || code == p.stopCode {
			p.log.Warnw("ignoring exclusion of control key", "code", code)
			continue
		}
		kept = append(kept, code)
	}
	p.exclusions.Set(kept)
}

// OnCountChange sets the callback invoked whenever the number of active keys
// differs from the previous recorded poll.
func (p *Poller) OnCountChange(fn func(count int)) {
	p.onCountChange = fn
}

// Poll clears the scratch buffer, reads and decodes one frame. Read errors
// are logged and yield an empty frame together with the error.
func (p *Poller) Poll() (model.Frame, error) {
	p.buf.Clear()
	count := p.reader.ReadBuffer(p.buf)
	frame, err := decoder.Decode(count, p.buf, decoder.Options{
		Exclusions: p.exclusions,
		StripZero:  p.stripZero,
	})
	p.trackReadStatus(count)
	return frame, err
}

// trackReadStatus warns once per run of identical failures; repeats are logged at debug.
func (p *Poller) trackReadStatus(count int) {
	if count < 0 {
		p.failedRun++
		if count != p.lastStatus {
			p.log.Warnw("buffer read failed", "status", count, "result", device.ResultName(count))
		} else {
			p.log.Debugw("buffer read still failing", "status", count, "failed_reads", p.failedRun)
		}
		p.lastStatus = count
		return
	}
	if p.failedRun > 0 {
		p.log.Infow("buffer read recovered", "failed_reads", p.failedRun)
	}
	p.failedRun = 0
	p.lastStatus = 0
}

// WaitForStart polls until a frame contains the start code and moves the
// loop to Recording. Frames seen while waiting are discarded.
func (p *Poller) WaitForStart() {
	if p.state != WaitingForStart {
		return
	}
	p.log.Debugw("waiting for start key", "code", p.startCode)
	for {
		frame, _ := p.Poll()
		if frame.Contains(p.startCode) {
			break
		}
		p.sleep(p.interval)
	}
	p.state = Recording
	p.log.Debugw("state changed", "state", p.state)
}

// Record appends one row per poll to app until a frame contains the stop
// code. The stopping frame is appended too. An append error ends the session.
func (p *Poller) Record(app Appender) (Summary, error) {
	if p.state != Recording {
		return Summary{}, fmt.Errorf("cannot record in state %s", p.state)
	}
	summary := Summary{StartedAt: p.now()}
	defer func() {
		p.state = Stopped
		p.log.Debugw("state changed", "state", p.state)
	}()
	for {
		ts := p.now()
		frame, err := p.Poll()
		if errors.Is(err, decoder.ErrReadFailed) {
			summary.ReadErrors++
		}
		if len(frame) != p.lastCount {
			p.lastCount = len(frame)
			if p.onCountChange != nil {
				p.onCountChange(len(frame))
			}
		}
		if err := app.Append(frame, ts); err != nil {
			summary.EndedAt = p.now()
			return summary, err
		}
		summary.Records++
		if frame.Contains(p.stopCode) {
			break
		}
		p.sleep(p.interval)
	}
	summary.EndedAt = p.now()
	return summary, nil
}

// Run waits for the start code and records into app.
func (p *Poller) Run(app Appender) (Summary, error) {
	p.WaitForStart()
	return p.Record(app)
}
