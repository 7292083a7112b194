package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"

	"github.com/me/gocondor/internal/oracle"
	"github.com/me/gocondor/pkg/model"
)

// fakeRecords is an in-memory store.Records.
type fakeRecords struct {
	all      []string
	any      string
	cleared  []string
	clearErr map[string]error
}

func (f *fakeRecords) AllJobIDs() ([]string, error) { return f.all, nil }
func (f *fakeRecords) AnyJobID() (string, error)    { return f.any, nil }
func (f *fakeRecords) ClearJobID(id string) error {
	if err := f.clearErr[id]; err != nil {
		return err
	}
	f.cleared = append(f.cleared, id)
	return nil
}

// scriptedOracle reports a job as exited once its exit condition holds.
type scriptedOracle struct {
	clock  *clock.Mock
	calls  map[string]int
	order  []string
	exitOn func(id string, call int, now time.Time) bool
}

func (o *scriptedOracle) Status(_ context.Context, id string) (*model.JobStatus, error) {
	o.calls[id]++
	o.order = append(o.order, id)
	state := model.PsRunning
	if o.exitOn(id, o.calls[id], o.clock.Now()) {
		state = model.PsDone
	}
	return &model.JobStatus{JobID: id, State: state}, nil
}

type harness struct {
	engine  *Engine
	clock   *clock.Mock
	oracle  *scriptedOracle
	records *fakeRecords
	sleeps  int
}

func newHarness(t *testing.T, interval time.Duration, exitOn func(id string, call int, now time.Time) bool) *harness {
	t.Helper()
	h := &harness{clock: clock.NewMock(), records: &fakeRecords{}}
	h.clock.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	h.oracle = &scriptedOracle{clock: h.clock, calls: map[string]int{}, exitOn: exitOn}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.engine = newEngineWithClock(h.oracle, h.records, Config{PollInterval: interval}, logger, h.clock)
	h.engine.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps++
		h.clock.Add(d)
		return nil
	}
	return h
}

func never(string, int, time.Time) bool { return false }

func TestWait_NoWaitNeverSleeps(t *testing.T) {
	h := newHarness(t, 5*time.Second, never)

	s, err := h.engine.Wait(context.Background(), "1.0", model.TimeoutNoWait)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if s.State != model.PsRunning || s.HasExited() {
		t.Errorf("state = %v, want first observed Running", s.State)
	}
	if h.sleeps != 0 {
		t.Errorf("sleeps = %d, want 0", h.sleeps)
	}
	if h.oracle.calls["1.0"] != 1 {
		t.Errorf("polls = %d, want 1", h.oracle.calls["1.0"])
	}
}

func TestWait_ForeverExitsOnThirdPoll(t *testing.T) {
	h := newHarness(t, 24*time.Hour, func(_ string, call int, _ time.Time) bool { return call == 3 })

	s, err := h.engine.Wait(context.Background(), "2.0", model.TimeoutWaitForever)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !s.HasExited() {
		t.Error("expected exited status")
	}
	if got := h.oracle.calls["2.0"]; got != 3 {
		t.Errorf("polls = %d, want 3", got)
	}
	if h.sleeps != 1 {
		t.Errorf("sleeps = %d, want 1", h.sleeps)
	}
}

func TestWait_ForeverIgnoresElapsedTime(t *testing.T) {
	h := newHarness(t, 365*24*time.Hour, func(_ string, call int, _ time.Time) bool { return call == 40 })

	s, err := h.engine.Wait(context.Background(), "2.0", model.TimeoutWaitForever)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !s.HasExited() || h.oracle.calls["2.0"] != 40 {
		t.Errorf("exited=%v polls=%d", s.HasExited(), h.oracle.calls["2.0"])
	}
}

func TestWait_TimeoutStops(t *testing.T) {
	h := newHarness(t, 5*time.Second, never)

	s, err := h.engine.Wait(context.Background(), "3.0", 12*time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if s.HasExited() {
		t.Error("job should still be running")
	}
	// Polls at 0s (initial), 0s, 5s, 10s, 15s.
	if got := h.oracle.calls["3.0"]; got != 5 {
		t.Errorf("polls = %d, want 5", got)
	}
	if h.sleeps != 3 {
		t.Errorf("sleeps = %d, want 3", h.sleeps)
	}
}

func TestWait_Validation(t *testing.T) {
	h := newHarness(t, time.Second, never)
	ctx := context.Background()

	if _, err := h.engine.Wait(ctx, "1.0", -5*time.Second); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("bad timeout: %v", err)
	}
	for _, id := range []string{"", "1", "a.b", "1.0.0", model.JobIDSessionAll} {
		if _, err := h.engine.Wait(ctx, id, model.TimeoutNoWait); !errors.Is(err, model.ErrInvalidJob) {
			t.Errorf("Wait(%q): %v, want invalid job", id, err)
		}
	}
	if len(h.oracle.order) != 0 {
		t.Errorf("oracle consulted for invalid input: %v", h.oracle.order)
	}
}

func TestWait_AnySentinel(t *testing.T) {
	h := newHarness(t, time.Second, func(string, int, time.Time) bool { return true })
	h.records.any = "9.4"

	s, err := h.engine.Wait(context.Background(), model.JobIDSessionAny, model.TimeoutWaitForever)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if s.JobID != "9.4" {
		t.Errorf("JobID = %q, want 9.4", s.JobID)
	}

	h.records.any = ""
	if _, err := h.engine.Wait(context.Background(), model.JobIDSessionAny, model.TimeoutWaitForever); !errors.Is(err, model.ErrInvalidJob) {
		t.Errorf("empty session: %v, want invalid job", err)
	}
}

func TestWait_InterruptReturnsLastStatus(t *testing.T) {
	mock := clock.NewMock()
	o := &scriptedOracle{clock: mock, calls: map[string]int{}, exitOn: never}
	e := newEngineWithClock(o, &fakeRecords{}, Config{PollInterval: time.Minute},
		slog.New(slog.NewTextHandler(io.Discard, nil)), mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := e.Wait(ctx, "4.0", model.TimeoutWaitForever)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if s == nil || s.State != model.PsRunning {
		t.Errorf("status = %+v, want last observed Running", s)
	}
	if o.calls["4.0"] != 2 {
		t.Errorf("polls = %d, want 2", o.calls["4.0"])
	}
}

func TestWait_OracleError(t *testing.T) {
	boom := model.NewError(model.ErrCodeInternal, "condor_q failed")
	e := NewEngine(oracle.Func(func(context.Context, string) (*model.JobStatus, error) { return nil, boom }),
		&fakeRecords{}, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := e.Wait(context.Background(), "1.0", model.TimeoutNoWait); !errors.Is(err, model.ErrInternal) {
		t.Errorf("error = %v, want internal", err)
	}
}

func TestSynchronize_SharedDeadline(t *testing.T) {
	const timeout = 50 * time.Second
	var start time.Time
	h := newHarness(t, 5*time.Second, func(id string, _ int, now time.Time) bool {
		// a needs 0.9 of the budget, the others never finish.
		return id == "1.0" && now.Sub(start) >= 45*time.Second
	})
	start = h.clock.Now()

	err := h.engine.Synchronize(context.Background(), []string{"1.0", "2.0", "3.0"}, timeout, false)
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if h.oracle.calls["2.0"] == 0 {
		t.Error("b was never attempted")
	}
	if h.oracle.calls["3.0"] != 0 {
		t.Errorf("c polled %d times after the deadline passed", h.oracle.calls["3.0"])
	}
	if elapsed := h.clock.Now().Sub(start); elapsed != timeout {
		t.Errorf("elapsed = %v, want %v", elapsed, timeout)
	}
}

func TestSynchronize_AllResolvedWithinBudget(t *testing.T) {
	h := newHarness(t, time.Second, func(_ string, call int, _ time.Time) bool { return call >= 3 })

	ids := []string{"1.0", "1.1", "1.2"}
	if err := h.engine.Synchronize(context.Background(), ids, time.Hour, false); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	for _, id := range ids {
		if h.oracle.calls[id] != 3 {
			t.Errorf("%s polled %d times, want 3", id, h.oracle.calls[id])
		}
	}
}

func TestSynchronize_NoWait(t *testing.T) {
	h := newHarness(t, time.Second, never)
	if err := h.engine.Synchronize(context.Background(), []string{"1.0", "2.0"}, model.TimeoutNoWait, false); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if diff := cmp.Diff([]string{"1.0", "2.0"}, h.oracle.order); diff != "" {
		t.Errorf("poll order (-want +got):\n%s", diff)
	}
	if h.sleeps != 0 {
		t.Errorf("sleeps = %d", h.sleeps)
	}
}

func TestSynchronize_AllSentinel(t *testing.T) {
	h := newHarness(t, time.Second, func(string, int, time.Time) bool { return true })
	h.records.all = []string{"5.0", "5.1", "6.0"}

	err := h.engine.Synchronize(context.Background(), []string{"garbage", model.JobIDSessionAll}, model.TimeoutWaitForever, false)
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	for _, id := range h.records.all {
		if h.oracle.calls[id] == 0 {
			t.Errorf("%s not polled", id)
		}
	}
	if h.oracle.calls["garbage"] != 0 {
		t.Error("explicit ids used despite the all sentinel")
	}
}

func TestSynchronize_Validation(t *testing.T) {
	h := newHarness(t, time.Second, never)
	ctx := context.Background()

	if err := h.engine.Synchronize(ctx, nil, time.Second, false); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("empty list: %v", err)
	}
	if err := h.engine.Synchronize(ctx, []string{"1.0"}, -3, false); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("bad timeout: %v", err)
	}
	if err := h.engine.Synchronize(ctx, []string{"1.0", "bad", "2.0"}, time.Second, false); !errors.Is(err, model.ErrInvalidJob) {
		t.Errorf("bad id: %v", err)
	}
	if len(h.oracle.order) != 0 {
		t.Errorf("oracle consulted: %v", h.oracle.order)
	}
}

func TestSynchronize_Dispose(t *testing.T) {
	h := newHarness(t, time.Second, func(id string, _ int, _ time.Time) bool { return id != "2.0" })

	err := h.engine.Synchronize(context.Background(), []string{"1.0", "2.0", "3.0"}, model.TimeoutNoWait, true)
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if diff := cmp.Diff([]string{"1.0", "3.0"}, h.records.cleared); diff != "" {
		t.Errorf("cleared (-want +got):\n%s", diff)
	}
}

func TestSynchronize_DisposeWithoutFlagKeepsRecords(t *testing.T) {
	h := newHarness(t, time.Second, func(string, int, time.Time) bool { return true })
	if err := h.engine.Synchronize(context.Background(), []string{"1.0"}, model.TimeoutWaitForever, false); err != nil {
		t.Fatal(err)
	}
	if len(h.records.cleared) != 0 {
		t.Errorf("cleared = %v", h.records.cleared)
	}
}

func TestSynchronize_DisposeErrorsAggregated(t *testing.T) {
	h := newHarness(t, time.Second, func(string, int, time.Time) bool { return true })
	h.records.clearErr = map[string]error{
		"1.0": errors.New("disk full"),
		"2.0": errors.New("read-only"),
	}

	err := h.engine.Synchronize(context.Background(), []string{"1.0", "2.0", "3.0"}, model.TimeoutWaitForever, true)
	if !errors.Is(err, model.ErrInternal) {
		t.Fatalf("error = %v, want internal", err)
	}
	for _, msg := range []string{"disk full", "read-only"} {
		if !strings.Contains(err.Error(), msg) {
			t.Errorf("error %q missing %q", err, msg)
		}
	}
	if diff := cmp.Diff([]string{"3.0"}, h.records.cleared); diff != "" {
		t.Errorf("cleared (-want +got):\n%s", diff)
	}
}

func TestOnExitHook(t *testing.T) {
	h := newHarness(t, time.Second, func(id string, _ int, _ time.Time) bool { return id == "1.0" })
	var seen []string
	h.engine.OnExit(func(_ context.Context, s *model.JobStatus) { seen = append(seen, s.JobID) })

	if err := h.engine.Synchronize(context.Background(), []string{"1.0", "2.0"}, model.TimeoutNoWait, false); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1.0"}, seen); diff != "" {
		t.Errorf("hook calls (-want +got):\n%s", diff)
	}
}

func TestSynchronize_OverrunDeadlineStopsBeforeNextJob(t *testing.T) {
	const timeout = 10 * time.Second
	h := newHarness(t, time.Second, func(string, int, time.Time) bool { return true })
	deadline := h.clock.Now().Add(timeout)
	h.engine.OnExit(func(_ context.Context, s *model.JobStatus) {
		if s.JobID == "1.0" {
			// Land exactly one nanosecond past the deadline, where the
			// remaining budget would equal TimeoutWaitForever.
			h.clock.Set(deadline.Add(time.Nanosecond))
		}
	})

	err := h.engine.Synchronize(context.Background(), []string{"1.0", "2.0"}, timeout, false)
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if h.oracle.calls["2.0"] != 0 {
		t.Errorf("2.0 polled %d times after the deadline passed", h.oracle.calls["2.0"])
	}
}

func TestSynchronize_DuplicateIDsWaitedOnce(t *testing.T) {
	h := newHarness(t, time.Second, func(string, int, time.Time) bool { return true })

	ids := []string{"1.0", "2.0", "1.0", "2.0", "3.0"}
	if err := h.engine.Synchronize(context.Background(), ids, model.TimeoutNoWait, true); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	want := []string{"1.0", "2.0", "3.0"}
	if diff := cmp.Diff(want, h.oracle.order); diff != "" {
		t.Errorf("poll order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, h.records.cleared); diff != "" {
		t.Errorf("cleared (-want +got):\n%s", diff)
	}
}

func TestSynchronize_WaitErrorKeepsDisposeErrors(t *testing.T) {
	records := &fakeRecords{clearErr: map[string]error{"1.0": errors.New("disk full")}}
	o := oracle.Func(func(_ context.Context, id string) (*model.JobStatus, error) {
		if id == "2.0" {
			return nil, errors.New("condor_q failed")
		}
		return &model.JobStatus{JobID: id, State: model.PsDone}, nil
	})
	e := NewEngine(o, records, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := e.Synchronize(context.Background(), []string{"1.0", "2.0"}, model.TimeoutNoWait, true)
	if !errors.Is(err, model.ErrInternal) {
		t.Fatalf("error = %v, want internal", err)
	}
	for _, msg := range []string{"disk full", "condor_q failed"} {
		if !strings.Contains(err.Error(), msg) {
			t.Errorf("error %q missing %q", err, msg)
		}
	}
}
