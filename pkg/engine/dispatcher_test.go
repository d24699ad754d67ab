package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/themesync/pkg/models"
)

// recordingHandler keeps handled actions and can block until released.
type recordingHandler struct {
	mu      sync.Mutex
	handled []Action
	gate    chan struct{}
}

func (h *recordingHandler) OnAction(ctx context.Context, action Action) error {
	if h.gate != nil {
		<-h.gate
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, action)
	return nil
}

func (h *recordingHandler) getHandled() []Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Action{}, h.handled...)
}

func TestDispatcherPreservesOrder(t *testing.T) {
	h := &recordingHandler{}
	d := NewActionDispatcher(h, 16, zerolog.Nop(), nil)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	want := []Action{
		FetchWPComThemes{},
		SearchThemes{SearchTerm: "a"},
		RemoveSiteThemes{Site: &models.Site{ID: 1}},
		SearchThemes{SearchTerm: "b"},
	}
	for _, a := range want {
		if err := d.Dispatch(a); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	got := h.getHandled()
	if len(got) != len(want) {
		t.Fatalf("Expected %d handled actions, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Action %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	d := NewActionDispatcher(&recordingHandler{}, 4, zerolog.Nop(), nil)
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := d.Dispatch(FetchWPComThemes{}); !errors.Is(err, ErrDispatcherStopped) {
		t.Errorf("Expected ErrDispatcherStopped, got %v", err)
	}
	if err := d.Start(context.Background()); !errors.Is(err, ErrDispatcherStopped) {
		t.Errorf("Expected ErrDispatcherStopped from Start, got %v", err)
	}
	if err := d.Stop(context.Background()); err != nil {
		t.Errorf("Expected second Stop to succeed, got %v", err)
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewActionDispatcher(&recordingHandler{}, 1, zerolog.Nop(), nil)

	if err := d.Dispatch(FetchWPComThemes{}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := d.Dispatch(FetchWPComThemes{}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
	if d.Len() != 1 {
		t.Errorf("Expected queue length 1, got %d", d.Len())
	}
}

func TestDispatcherStartTwice(t *testing.T) {
	d := NewActionDispatcher(&recordingHandler{}, 1, zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Error("Expected error on second Start")
	}
}

func TestDispatcherDrainsOnCancel(t *testing.T) {
	h := &recordingHandler{gate: make(chan struct{})}
	d := NewActionDispatcher(h, 8, zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := d.Dispatch(FetchWPComThemes{}); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
	}
	cancel()
	close(h.gate)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := d.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := len(h.getHandled()); got != 3 {
		t.Errorf("Expected all 3 queued actions handled, got %d", got)
	}
}

func TestDispatcherWithThemeStore(t *testing.T) {
	gw := &fakeGateway{catalog: []*models.Theme{catalogTheme("a")}}
	bus := NewBus(zerolog.Nop())
	store := NewThemeStore(gw, newMemoryCache(), bus)
	d := NewActionDispatcher(store, 8, zerolog.Nop(), nil)
	store.SetDispatcher(d)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := bus.Await(ctx, FilterByName(EventThemesChanged))
	if err := d.Dispatch(FetchWPComThemes{}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	select {
	case event := <-done:
		if event.Err() != nil {
			t.Errorf("Unexpected error: %v", event.Err())
		}
	case <-ctx.Done():
		t.Fatal("Timed out waiting for notification")
	}

	themes, _ := store.GetWPComThemes(ctx)
	if len(themes) != 1 {
		t.Errorf("Expected 1 catalog theme, got %d", len(themes))
	}
	if err := d.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

// serialHandler records actions, fails the test on overlapping calls and
// blocks the first call until released.
type serialHandler struct {
	recordingHandler
	inFlight int32
	started  chan struct{}
	release  chan struct{}
	once     sync.Once
	overlap  bool
}

func (h *serialHandler) OnAction(ctx context.Context, action Action) error {
	h.mu.Lock()
	h.inFlight++
	if h.inFlight > 1 {
		h.overlap = true
	}
	h.mu.Unlock()

	first := false
	h.once.Do(func() { first = true })
	if first {
		close(h.started)
		<-h.release
	}

	h.mu.Lock()
	h.inFlight--
	h.handled = append(h.handled, action)
	h.mu.Unlock()
	return nil
}

func TestCompletionsBypassFullQueue(t *testing.T) {
	h := &serialHandler{started: make(chan struct{}), release: make(chan struct{})}
	d := NewActionDispatcher(h, 1, zerolog.Nop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := d.Dispatch(FetchWPComThemes{}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	<-h.started

	if err := d.Dispatch(SearchThemes{SearchTerm: "queued"}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := d.Dispatch(SearchThemes{SearchTerm: "overflow"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Expected ErrQueueFull, got %v", err)
	}

	completion := FetchedWPComThemes{Payload: &FetchedThemesPayload{}}
	for i := 0; i < 3; i++ {
		if err := d.DispatchCompletion(completion); err != nil {
			t.Fatalf("DispatchCompletion failed with a full queue: %v", err)
		}
	}

	close(h.release)
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	handled := h.getHandled()
	if len(handled) != 5 {
		t.Fatalf("Expected 5 handled actions, got %d", len(handled))
	}
	for i := 1; i <= 3; i++ {
		if _, ok := handled[i].(FetchedWPComThemes); !ok {
			t.Errorf("Expected completion at %d, got %T", i, handled[i])
		}
	}
	if _, ok := handled[4].(SearchThemes); !ok {
		t.Errorf("Expected queued intent last, got %T", handled[4])
	}
	if h.overlap {
		t.Error("Handler ran concurrently")
	}

	if err := d.DispatchCompletion(completion); !errors.Is(err, ErrDispatcherStopped) {
		t.Errorf("Expected ErrDispatcherStopped after Stop, got %v", err)
	}
}
