package monolith

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/fd1az/spatial-arb/internal/config"
	"github.com/fd1az/spatial-arb/internal/di"
	"github.com/fd1az/spatial-arb/internal/logger"
)

type recordingModule struct {
	name  string
	trail *[]string
}

func (m recordingModule) RegisterServices(c di.Container) error {
	*m.trail = append(*m.trail, "register:"+m.name)
	c.Register(m.name, m.name)
	return nil
}

func (m recordingModule) Startup(_ context.Context, mono Monolith) error {
	*m.trail = append(*m.trail, "start:"+m.name)
	if mono.Services().Get(m.name).(string) != m.name {
		return errors.New("service missing")
	}
	return nil
}

func TestApp_ModuleLifecycle(t *testing.T) {
	app := New(&config.Config{}, logger.New(io.Discard, logger.LevelError, "test", nil))

	var trail []string
	mods := []Module{recordingModule{"marketdata", &trail}, recordingModule{"pipeline", &trail}}

	if err := app.RegisterModules(mods...); err != nil {
		t.Fatalf("RegisterModules() error = %v", err)
	}
	if err := app.StartModules(context.Background(), mods...); err != nil {
		t.Fatalf("StartModules() error = %v", err)
	}

	want := []string{"register:marketdata", "register:pipeline", "start:marketdata", "start:pipeline"}
	if len(trail) != len(want) {
		t.Fatalf("trail = %v", trail)
	}
	for i := range want {
		if trail[i] != want[i] {
			t.Errorf("trail[%d] = %s, want %s", i, trail[i], want[i])
		}
	}
}

func TestApp_CloseRunsHooksInReverse(t *testing.T) {
	app := New(&config.Config{}, logger.New(io.Discard, logger.LevelError, "test", nil))

	var order []int
	boom := errors.New("boom")
	app.OnClose(func() error { order = append(order, 1); return nil })
	app.OnClose(func() error { order = append(order, 2); return boom })

	if err := app.Close(); !errors.Is(err, boom) {
		t.Errorf("Close() error = %v", err)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("order = %v", order)
	}
	if err := app.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
