package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/themesync/pkg/models"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var order []string

	bus.Subscribe(func(ctx context.Context, e Event) { order = append(order, "first") }, nil)
	bus.Subscribe(func(ctx context.Context, e Event) { order = append(order, "second") }, nil)

	bus.Emit(context.Background(), OnThemeRemoved{})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("Unexpected delivery order: %v", order)
	}
}

func TestBusFilters(t *testing.T) {
	site := &models.Site{ID: 7}
	other := &models.Site{ID: 8}
	failure := NewThemesError(ErrorTypeNotAvailable, "")

	tests := []struct {
		name   string
		filter EventFilter
		event  Event
		want   bool
	}{
		{"name match", FilterByName(EventThemeInstalled), OnThemeInstalled{}, true},
		{"name mismatch", FilterByName(EventThemeInstalled), OnThemeDeleted{}, false},
		{"site match", FilterBySite(7), OnThemesChanged{Site: site}, true},
		{"site mismatch", FilterBySite(7), OnThemesChanged{Site: other}, false},
		{"site-agnostic", FilterBySite(7), OnThemeRemoved{}, false},
		{"errors only", FilterErrors(), OnThemeActivated{Error: failure}, true},
		{"success filtered", FilterErrors(), OnThemeActivated{}, false},
		{"all", All(FilterBySite(7), FilterErrors()), OnCurrentThemeFetched{Site: site, Error: failure}, true},
		{"all partial", All(FilterBySite(7), FilterErrors()), OnCurrentThemeFetched{Site: site}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter(tt.event); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	count := 0
	unsubscribe := bus.Subscribe(func(ctx context.Context, e Event) { count++ }, nil)

	bus.Emit(context.Background(), OnThemeRemoved{})
	unsubscribe()
	bus.Emit(context.Background(), OnThemeRemoved{})

	if count != 1 {
		t.Errorf("Expected 1 delivery, got %d", count)
	}
}

func TestBusRecoversFromPanickingSubscriber(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	delivered := false
	bus.Subscribe(func(ctx context.Context, e Event) { panic("boom") }, nil)
	bus.Subscribe(func(ctx context.Context, e Event) { delivered = true }, nil)

	bus.Emit(context.Background(), OnThemeRemoved{})

	if !delivered {
		t.Error("Expected later subscriber to receive the notification")
	}
}

func TestBusAwait(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := bus.Await(ctx, FilterByName(EventThemeDeleted))
	bus.Emit(ctx, OnThemeInstalled{})
	bus.Emit(ctx, OnThemeDeleted{Theme: &models.Theme{ThemeID: "first"}})
	bus.Emit(ctx, OnThemeDeleted{Theme: &models.Theme{ThemeID: "second"}})

	select {
	case e := <-ch:
		if ThemeOf(e).ThemeID != "first" {
			t.Errorf("Expected first match, got %s", ThemeOf(e).ThemeID)
		}
	case <-ctx.Done():
		t.Fatal("Timed out")
	}
}
