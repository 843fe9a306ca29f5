package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weatherdash/weather-api-handler/internal/models"
)

type mockViewSource struct {
	snaps []models.Snapshot
	err   error
	calls int
}

func (m *mockViewSource) RecentReadings(cityNames []string, limit int) ([]models.Snapshot, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.snaps, nil
}

func TestWarmer_Warm(t *testing.T) {
	source := &mockViewSource{snaps: []models.Snapshot{
		snapshotFor("London"),
		snapshotFor("Paris"),
	}}
	c := NewInMemoryCache()
	warmer := NewWarmer(c, source, time.Minute, nil)

	if err := warmer.Warm(context.Background(), []string{"London", "Paris", "Oslo"}); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	for _, city := range []string{"London", "Paris"} {
		snap, ok, err := c.Get(context.Background(), Key(city))
		if err != nil || !ok {
			t.Fatalf("%s not warmed: ok=%v err=%v", city, ok, err)
		}
		if snap.Location.Name != city {
			t.Errorf("warmed view for %s carries name %q", city, snap.Location.Name)
		}
	}

	// Oslo has no stored history; it stays cold rather than triggering a
	// provider call.
	if _, ok, _ := c.Get(context.Background(), Key("Oslo")); ok {
		t.Error("city without history was warmed")
	}
}

func TestWarmer_Warm_EmptyCities(t *testing.T) {
	source := &mockViewSource{}
	warmer := NewWarmer(NewInMemoryCache(), source, time.Minute, nil)

	if err := warmer.Warm(context.Background(), nil); err != nil {
		t.Fatalf("Warm() with nil cities error = %v", err)
	}
	if err := warmer.Warm(context.Background(), []string{}); err != nil {
		t.Fatalf("Warm() with empty cities error = %v", err)
	}
	if source.calls != 0 {
		t.Errorf("storage queried %d times for empty city list, want 0", source.calls)
	}
}

func TestWarmer_Warm_SourceError(t *testing.T) {
	source := &mockViewSource{err: errors.New("db down")}
	warmer := NewWarmer(NewInMemoryCache(), source, time.Minute, nil)

	if err := warmer.Warm(context.Background(), []string{"London"}); err == nil {
		t.Fatal("Warm() error = nil, want storage error")
	}
}
