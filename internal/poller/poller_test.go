package poller

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/analogrec/internal/device"
	"github.com/verte-zerg/analogrec/internal/logger"
	"github.com/verte-zerg/analogrec/internal/model"
)

const (
	startCode = device.KeySpace
	stopCode  = device.KeyEscape
)

// scriptStep is one raw read: status < 0 reports an error, otherwise the slots
// are written to the buffer and their count returned.
type scriptStep struct {
	status int
	slots  []model.KeySlot
}

func keys(slots ...model.KeySlot) scriptStep {
	return scriptStep{slots: slots}
}

func failed(status int) scriptStep {
	return scriptStep{status: status}
}

type scriptedReader struct {
	t        *testing.T
	steps    []scriptStep
	calls    int
	buffers  map[*device.Buffer]struct{}
	dirtyHit bool
}

func newScriptedReader(t *testing.T, steps ...scriptStep) *scriptedReader {
	return &scriptedReader{t: t, steps: steps, buffers: map[*device.Buffer]struct{}{}}
}

func (r *scriptedReader) ReadBuffer(buf *device.Buffer) int {
	if r.calls >= len(r.steps) {
		r.t.Fatalf("reader called %d times, script has %d steps", r.calls+1, len(r.steps))
	}
	for i := 0; i < buf.Cap(); i++ {
		if buf.Codes[i] != 0 || buf.Values[i] != 0 {
			r.dirtyHit = true
		}
	}
	r.buffers[buf] = struct{}{}
	step := r.steps[r.calls]
	r.calls++
	if step.status < 0 {
		return step.status
	}
	for i, s := range step.slots {
		buf.Codes[i] = s.Code
		buf.Values[i] = s.Value
	}
	return len(step.slots)
}

type memoryLog struct {
	frames  []model.Frame
	stamps  []time.Time
	failAt  int
	failErr error
}

func (m *memoryLog) Append(frame model.Frame, ts time.Time) error {
	if m.failErr != nil && len(m.frames) == m.failAt {
		return m.failErr
	}
	m.frames = append(m.frames, append(model.Frame(nil), frame...))
	m.stamps = append(m.stamps, ts)
	return nil
}

func newTestPoller(reader BufferReader, cfg Config) (*Poller, *[]time.Duration) {
	if cfg.StartCode == 0 {
		cfg.StartCode = startCode
	}
	if cfg.StopCode == 0 {
		cfg.StopCode = stopCode
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 8
	}
	p := New(reader, cfg, logger.Nop())
	var sleeps []time.Duration
	p.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	clock := time.Unix(1700000000, 0)
	p.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}
	return p, &sleeps
}

func TestSessionStartsOnlyAfterStartKey(t *testing.T) {
	reader := newScriptedReader(t,
		keys(),
		keys(model.KeySlot{Code: 4, Value: 0.5}),
		keys(model.KeySlot{Code: startCode, Value: 0.7}),
		keys(model.KeySlot{Code: 4, Value: 0.3}),
		keys(model.KeySlot{Code: stopCode, Value: 1}),
	)
	p, sleeps := newTestPoller(reader, Config{StripZero: true, Interval: 500 * time.Microsecond})
	log := &memoryLog{}

	p.WaitForStart()
	if p.State() != Recording {
		t.Fatalf("expected recording state, got %s", p.State())
	}
	if len(log.frames) != 0 {
		t.Fatalf("no frames may be persisted while waiting")
	}
	if len(*sleeps) != 2 {
		t.Fatalf("expected 2 sleeps while waiting, got %d", len(*sleeps))
	}

	summary, err := p.Record(log)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if summary.Records != 2 || len(log.frames) != 2 {
		t.Fatalf("expected 2 records, got summary %d log %d", summary.Records, len(log.frames))
	}
	if log.frames[0][0].Code != 4 {
		t.Fatalf("first persisted frame should follow the start frame, got %v", log.frames[0])
	}
	for _, d := range *sleeps {
		if d != 500*time.Microsecond {
			t.Fatalf("unexpected sleep interval %v", d)
		}
	}
	if p.State() != Stopped {
		t.Fatalf("expected stopped state, got %s", p.State())
	}
}

func TestStopFrameIsPersisted(t *testing.T) {
	reader := newScriptedReader(t,
		keys(model.KeySlot{Code: startCode, Value: 1}),
		keys(model.KeySlot{Code: stopCode, Value: 0.8}),
	)
	p, sleeps := newTestPoller(reader, Config{StripZero: true})
	log := &memoryLog{}

	summary, err := p.Run(log)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Records != 1 {
		t.Fatalf("expected 1 record, got %d", summary.Records)
	}
	if len(log.frames) != 1 || !log.frames[0].Contains(stopCode) {
		t.Fatalf("stop frame must be persisted, got %v", log.frames)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("no sleep expected after the stop frame, got %d", len(*sleeps))
	}
	if reader.calls != 2 {
		t.Fatalf("expected no reads after stop, got %d reads", reader.calls)
	}
}

func TestRecordCountMatchesIterations(t *testing.T) {
	reader := newScriptedReader(t,
		keys(model.KeySlot{Code: startCode, Value: 1}),
		keys(),
		keys(model.KeySlot{Code: 5, Value: 0.1}),
		keys(model.KeySlot{Code: 5, Value: 0.2}, model.KeySlot{Code: 6, Value: 0.4}),
		keys(model.KeySlot{Code: 6, Value: 0.1}, model.KeySlot{Code: stopCode, Value: 0.5}),
	)
	p, _ := newTestPoller(reader, Config{StripZero: true})
	log := &memoryLog{}
	summary, err := p.Run(log)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	recordingIterations := reader.calls - 1
	if summary.Records != recordingIterations {
		t.Fatalf("records %d != recording iterations %d", summary.Records, recordingIterations)
	}
	if !summary.EndedAt.After(summary.StartedAt) {
		t.Fatalf("expected end after start: %v %v", summary.StartedAt, summary.EndedAt)
	}
	for i := 1; i < len(log.stamps); i++ {
		if !log.stamps[i].After(log.stamps[i-1]) {
			t.Fatalf("timestamps not increasing at %d", i)
		}
	}
}

func TestReadErrorRecordsEmptyFrameAndContinues(t *testing.T) {
	reader := newScriptedReader(t,
		failed(device.ResultFailure),
		keys(model.KeySlot{Code: startCode, Value: 1}),
		failed(-1),
		keys(model.KeySlot{Code: stopCode, Value: 1}),
	)
	var out bytes.Buffer
	p, _ := newTestPoller(reader, Config{StripZero: true})
	p.log = logger.NewWithWriter(&out, logger.WarnLevel)
	log := &memoryLog{}

	summary, err := p.Run(log)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Records != 2 || summary.ReadErrors != 1 {
		t.Fatalf("expected 2 records and 1 read error, got %+v", summary)
	}
	if len(log.frames[0]) != 0 {
		t.Fatalf("failed read should persist an empty frame, got %v", log.frames[0])
	}
	_ = p.log.Sync()
	if got := strings.Count(out.String(), "buffer read failed"); got != 2 {
		t.Fatalf("expected 2 read warnings, got %d: %s", got, out.String())
	}
}

func TestRepeatedReadErrorsWarnOnce(t *testing.T) {
	reader := newScriptedReader(t,
		failed(device.ResultDeviceDisconnected),
		failed(device.ResultDeviceDisconnected),
		failed(device.ResultDeviceDisconnected),
		keys(model.KeySlot{Code: startCode, Value: 1}),
	)
	var out bytes.Buffer
	p, _ := newTestPoller(reader, Config{})
	p.log = logger.NewWithWriter(&out, logger.InfoLevel)
	p.WaitForStart()
	_ = p.log.Sync()

	text := out.String()
	if got := strings.Count(text, "buffer read failed"); got != 1 {
		t.Fatalf("expected a single warning, got %d: %s", got, text)
	}
	if !strings.Contains(text, "DeviceDisconnected") || !strings.Contains(text, "buffer read recovered") {
		t.Fatalf("unexpected log output: %s", text)
	}
}

func TestRepeatedReadErrorsLoggedAtDebug(t *testing.T) {
	reader := newScriptedReader(t,
		failed(device.ResultDeviceDisconnected),
		failed(device.ResultDeviceDisconnected),
		failed(device.ResultDeviceDisconnected),
		keys(model.KeySlot{Code: startCode, Value: 1}),
	)
	var out bytes.Buffer
	p, _ := newTestPoller(reader, Config{})
	p.log = logger.NewWithWriter(&out, logger.DebugLevel)
	p.WaitForStart()
	_ = p.log.Sync()

	text := out.String()
	if got := strings.Count(text, "buffer read failed"); got != 1 {
		t.Fatalf("expected a single warning, got %d: %s", got, text)
	}
	if got := strings.Count(text, "buffer read still failing"); got != 2 {
		t.Fatalf("expected 2 debug lines for repeated failures, got %d: %s", got, text)
	}
}

func TestControlKeysAreNeverExcluded(t *testing.T) {
	reader := newScriptedReader(t,
		keys(model.KeySlot{Code: startCode, Value: 1}),
		keys(model.KeySlot{Code: 4, Value: 0.5}),
		keys(model.KeySlot{Code: stopCode, Value: 1}),
	)
	p, _ := newTestPoller(reader, Config{Exclude: []uint16{startCode, stopCode, 4}})
	log := &memoryLog{}

	summary, err := p.Run(log)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Records != 2 || p.State() != Stopped {
		t.Fatalf("expected the stop key to end the session, got %+v in state %s", summary, p.State())
	}
	if len(log.frames[0]) != 0 {
		t.Fatalf("expected key 4 to stay excluded, got %v", log.frames[0])
	}
	if !log.frames[1].Contains(stopCode) {
		t.Fatalf("expected stop frame to be recorded, got %v", log.frames[1])
	}
}

func TestCountChangeNotifications(t *testing.T) {
	reader := newScriptedReader(t,
		keys(model.KeySlot{Code: startCode, Value: 1}),
		keys(model.KeySlot{Code: 4, Value: 0.5}),
		keys(model.KeySlot{Code: 4, Value: 0.6}),
		keys(model.KeySlot{Code: 4, Value: 0.6}, model.KeySlot{Code: 5, Value: 0.2}),
		keys(),
		keys(model.KeySlot{Code: stopCode, Value: 1}),
	)
	p, _ := newTestPoller(reader, Config{StripZero: true})
	var counts []int
	p.OnCountChange(func(n int) { counts = append(counts, n) })
	log := &memoryLog{}
	if _, err := p.Run(log); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []int{1, 2, 0, 1}
	if len(counts) != len(want) {
		t.Fatalf("expected notifications %v, got %v", want, counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("expected notifications %v, got %v", want, counts)
		}
	}
	if len(log.frames) != 5 {
		t.Fatalf("every recording poll must be persisted, got %d", len(log.frames))
	}
}

func TestAppendErrorEndsSession(t *testing.T) {
	reader := newScriptedReader(t,
		keys(model.KeySlot{Code: startCode, Value: 1}),
		keys(model.KeySlot{Code: 4, Value: 0.5}),
		keys(model.KeySlot{Code: 4, Value: 0.5}),
	)
	p, _ := newTestPoller(reader, Config{StripZero: true})
	diskFull := errors.New("disk full")
	log := &memoryLog{failAt: 1, failErr: diskFull}

	summary, err := p.Run(log)
	if !errors.Is(err, diskFull) {
		t.Fatalf("expected append error, got %v", err)
	}
	if summary.Records != 1 {
		t.Fatalf("expected 1 record before failure, got %d", summary.Records)
	}
	if p.State() != Stopped {
		t.Fatalf("expected stopped state after failure, got %s", p.State())
	}
	if _, err := p.Record(log); err == nil {
		t.Fatalf("recording after stop must fail")
	}
}

func TestSetExclusionsReplacesConfiguredSet(t *testing.T) {
	reader := newScriptedReader(t,
		keys(model.KeySlot{Code: startCode, Value: 1}),
		keys(model.KeySlot{Code: 7, Value: 1}),
		keys(model.KeySlot{Code: stopCode, Value: 1}, model.KeySlot{Code: 9, Value: 0.4}),
	)
	p, _ := newTestPoller(reader, Config{StripZero: true, Exclude: []uint16{startCode}, StartCode: 7})
	p.SetExclusions([]uint16{9})
	log := &memoryLog{}
	if _, err := p.Run(log); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(log.frames) != 1 {
		t.Fatalf("expected 1 frame, got %v", log.frames)
	}
	if log.frames[0].Contains(9) {
		t.Fatalf("excluded code persisted: %v", log.frames[0])
	}
}

func TestBufferIsReusedAndClearedBetweenReads(t *testing.T) {
	reader := newScriptedReader(t,
		keys(model.KeySlot{Code: 4, Value: 0.5}, model.KeySlot{Code: 5, Value: 0.6}),
		keys(model.KeySlot{Code: startCode, Value: 1}),
		keys(model.KeySlot{Code: stopCode, Value: 1}),
	)
	p, _ := newTestPoller(reader, Config{BufferSize: 4})
	if _, err := p.Run(&memoryLog{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(reader.buffers) != 1 {
		t.Fatalf("expected a single reused buffer, got %d", len(reader.buffers))
	}
	if reader.dirtyHit {
		t.Fatalf("buffer was not cleared before a read")
	}
}

func TestNewClampsSettings(t *testing.T) {
	p := New(newScriptedReader(t), Config{BufferSize: 1000}, nil)
	if p.BufferSize() != device.MaxBufferSize {
		t.Fatalf("expected clamped buffer size %d, got %d", device.MaxBufferSize, p.BufferSize())
	}
	if p.interval != DefaultInterval {
		t.Fatalf("expected default interval, got %v", p.interval)
	}
	if p.State() != WaitingForStart {
		t.Fatalf("expected initial waiting state, got %s", p.State())
	}
}
