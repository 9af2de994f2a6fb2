package steamcmd

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastStopDef is a definition with a stop sequence short enough to exercise
// concurrently in tests.
func fastStopDef(name string) *ServerDef {
	return &ServerDef{
		Name:       name,
		AppID:      999999,
		Executable: "srcds_run",
		GameDir:    name,
		StopSequence: []CommandSpec{
			{Text: "say stopping", Delay: 10 * time.Millisecond},
			{Text: "quit"},
		},
	}
}

func TestManagerStopAll(t *testing.T) {
	runtimeDir := t.TempDir()

	defs := []*ServerDef{fastStopDef("alpha"), fastStopDef("beta"), fastStopDef("gamma")}
	instances := make([]*ServerInstance, 0, len(defs))
	mocks := make([]*MockChannelServer, 0, len(defs))

	for _, def := range defs {
		inst, err := NewServerInstance(def, "0", WithRuntimeDir(runtimeDir))
		if err != nil {
			t.Fatal(err)
		}
		mock, err := NewMockChannelServer(inst.ChannelPath())
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = mock.Close() }()

		instances = append(instances, inst)
		mocks = append(mocks, mock)
	}

	m := NewManager(WithConcurrency(2), WithManagerTimeout(5*time.Second))
	if err := m.StopAll(context.Background(), instances...); err != nil {
		t.Fatalf("StopAll: %v", err)
	}

	for i, mock := range mocks {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) && len(mock.Lines()) < 2 {
			time.Sleep(10 * time.Millisecond)
		}
		got := mock.Lines()
		if len(got) != 2 || got[0] != "say stopping" || got[1] != "quit" {
			t.Errorf("instance %s: received %v", instances[i].ServiceName(), got)
		}
	}
}

// One dead channel must not keep sibling instances from receiving their stop
// sequences.
func TestManagerStopAllPartialFailure(t *testing.T) {
	runtimeDir := t.TempDir()

	healthy, err := NewServerInstance(fastStopDef("healthy"), "0", WithRuntimeDir(runtimeDir))
	if err != nil {
		t.Fatal(err)
	}
	dead, err := NewServerInstance(fastStopDef("dead"), "0", WithRuntimeDir(runtimeDir))
	if err != nil {
		t.Fatal(err)
	}

	mock, err := NewMockChannelServer(healthy.ChannelPath())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = mock.Close() }()

	m := NewManager(WithManagerTimeout(5 * time.Second))
	err = m.StopAll(context.Background(), healthy, dead)
	if !errors.Is(err, ErrChannelNotReady) {
		t.Fatalf("err = %v, want ErrChannelNotReady from the dead instance", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(mock.Lines()) < 2 {
		time.Sleep(10 * time.Millisecond)
	}
	if got := mock.Lines(); len(got) != 2 {
		t.Errorf("healthy instance received %v, want its full stop sequence", got)
	}
}

func TestManagerStopAllEmpty(t *testing.T) {
	m := NewManager()
	if err := m.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll with no instances: %v", err)
	}
}

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager()
	if m.Concurrency != 4 {
		t.Errorf("Concurrency = %d", m.Concurrency)
	}
	if m.Timeout != time.Minute {
		t.Errorf("Timeout = %v", m.Timeout)
	}

	m = NewManager(WithConcurrency(0))
	if m.Concurrency != 1 {
		t.Errorf("Concurrency floor = %d, want 1", m.Concurrency)
	}
}
