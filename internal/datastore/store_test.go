package datastore

import (
	"path/filepath"
	"testing"

	"github.com/weatherdash/weather-api-handler/internal/models"
)

func newTestStore(t *testing.T) Interface {
	t.Helper()

	store, err := New(&Config{
		Engine:   "sqlite",
		Database: filepath.Join(t.TempDir(), "weather.db"),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }

func londonLocation() *models.Location {
	return &models.Location{
		Name:           "London",
		Region:         "City of London, Greater London",
		Country:        "United Kingdom",
		Lat:            floatPtr(51.52),
		Lon:            floatPtr(-0.11),
		TzID:           "Europe/London",
		LocaltimeEpoch: int64Ptr(1756600000),
		Localtime:      "2025-08-31 01:06",
	}
}

func londonSnapshot(epoch int64, tempC float64) *models.Snapshot {
	return &models.Snapshot{
		Location: *londonLocation(),
		Current: models.Current{
			LastUpdatedEpoch: epoch,
			LastUpdated:      "2025-08-31 00:55",
			TempC:            floatPtr(tempC),
			TempF:            floatPtr(tempC*9/5 + 32),
			IsDay:            intPtr(0),
			Condition: models.Condition{
				Text: "Partly cloudy",
				Icon: "//cdn.weatherapi.com/113.png",
				Code: intPtr(1003),
			},
			WindKph:  floatPtr(11.2),
			Humidity: intPtr(82),
		},
	}
}

func TestNew_UnsupportedEngine(t *testing.T) {
	if _, err := New(&Config{Engine: "mongodb"}); err == nil {
		t.Error("expected error for unsupported engine")
	}
}

func TestUpsertLocation_InsertThenUpdate(t *testing.T) {
	store := newTestStore(t)

	id1, err := store.UpsertLocation(londonLocation())
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if id1 == 0 {
		t.Fatal("first upsert returned zero id")
	}

	// Same identity with refreshed mutable fields returns the same row.
	second := londonLocation()
	second.Lat = floatPtr(51.53)
	second.LocaltimeEpoch = int64Ptr(1756600120)
	second.Localtime = "2025-08-31 01:08"

	id2, err := store.UpsertLocation(second)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id2 != id1 {
		t.Errorf("second upsert id = %d, want %d", id2, id1)
	}

	locations, _, err := store.Counts()
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if locations != 1 {
		t.Errorf("locations count = %d, want 1", locations)
	}
}

func TestUpsertLocation_DistinctIdentities(t *testing.T) {
	store := newTestStore(t)

	id1, err := store.UpsertLocation(londonLocation())
	if err != nil {
		t.Fatalf("upsert London UK: %v", err)
	}

	// Same name, different country is a different location.
	other := londonLocation()
	other.Country = "Canada"
	other.Region = "Ontario"
	id2, err := store.UpsertLocation(other)
	if err != nil {
		t.Fatalf("upsert London CA: %v", err)
	}
	if id2 == id1 {
		t.Error("distinct identities mapped to the same row")
	}

	locations, _, err := store.Counts()
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if locations != 2 {
		t.Errorf("locations count = %d, want 2", locations)
	}
}

func TestAppendReading_AccumulatesHistory(t *testing.T) {
	store := newTestStore(t)

	locID, err := store.UpsertLocation(londonLocation())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	for i, epoch := range []int64{1756599300, 1756600200, 1756601100} {
		raw := []byte(`{"location":{},"current":{}}`)
		if _, err := store.AppendReading(locID, londonSnapshot(epoch, 14.0+float64(i)), raw); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	_, readings, err := store.Counts()
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if readings != 3 {
		t.Errorf("readings count = %d, want 3", readings)
	}
}

func TestRecentReadings_LatestWins(t *testing.T) {
	store := newTestStore(t)

	locID, err := store.UpsertLocation(londonLocation())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := store.AppendReading(locID, londonSnapshot(1756599300, 14.0), nil); err != nil {
		t.Fatalf("append old: %v", err)
	}
	if _, err := store.AppendReading(locID, londonSnapshot(1756602900, 16.5), nil); err != nil {
		t.Fatalf("append new: %v", err)
	}

	snaps, err := store.RecentReadings([]string{"London"}, 10)
	if err != nil {
		t.Fatalf("RecentReadings() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	snap := snaps[0]
	if snap.Current.LastUpdatedEpoch != 1756602900 {
		t.Errorf("LastUpdatedEpoch = %d, want newest 1756602900", snap.Current.LastUpdatedEpoch)
	}
	if snap.Current.TempC == nil || *snap.Current.TempC != 16.5 {
		t.Errorf("TempC = %v, want 16.5", snap.Current.TempC)
	}
	if snap.Location.Name != "London" || snap.Location.Country != "United Kingdom" {
		t.Errorf("location fields not reconstructed: %+v", snap.Location)
	}
	if snap.Current.Condition.Code == nil || *snap.Current.Condition.Code != 1003 {
		t.Errorf("Condition.Code = %v, want 1003", snap.Current.Condition.Code)
	}
}

func TestRecentReadings_NullsSurviveRoundTrip(t *testing.T) {
	store := newTestStore(t)

	loc := londonLocation()
	loc.Lat = nil
	loc.Lon = nil
	locID, err := store.UpsertLocation(loc)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	snap := &models.Snapshot{
		Location: *loc,
		Current: models.Current{
			LastUpdatedEpoch: 1756599300,
			LastUpdated:      "2025-08-31 00:55",
		},
	}
	if _, err := store.AppendReading(locID, snap, nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	snaps, err := store.RecentReadings([]string{"London"}, 10)
	if err != nil {
		t.Fatalf("RecentReadings() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	got := snaps[0]
	if got.Location.Lat != nil || got.Location.Lon != nil {
		t.Errorf("null coordinates came back non-null: lat=%v lon=%v", got.Location.Lat, got.Location.Lon)
	}
	if got.Current.TempC != nil || got.Current.Humidity != nil {
		t.Errorf("null readings came back non-null: tempC=%v humidity=%v", got.Current.TempC, got.Current.Humidity)
	}
}

func TestRecentReadings_MultipleCities(t *testing.T) {
	store := newTestStore(t)

	londonID, err := store.UpsertLocation(londonLocation())
	if err != nil {
		t.Fatalf("upsert London: %v", err)
	}
	paris := londonLocation()
	paris.Name = "Paris"
	paris.Country = "France"
	paris.Region = "Ile-de-France"
	parisID, err := store.UpsertLocation(paris)
	if err != nil {
		t.Fatalf("upsert Paris: %v", err)
	}

	if _, err := store.AppendReading(londonID, londonSnapshot(1756599300, 14.0), nil); err != nil {
		t.Fatalf("append London: %v", err)
	}
	parisSnap := londonSnapshot(1756599400, 19.0)
	parisSnap.Location = *paris
	if _, err := store.AppendReading(parisID, parisSnap, nil); err != nil {
		t.Fatalf("append Paris: %v", err)
	}

	snaps, err := store.RecentReadings([]string{"London", "Paris", "Ghost Town"}, 10)
	if err != nil {
		t.Fatalf("RecentReadings() error = %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2 (unknown city silently absent)", len(snaps))
	}
	names := map[string]bool{}
	for _, s := range snaps {
		names[s.Location.Name] = true
	}
	if !names["London"] || !names["Paris"] {
		t.Errorf("snapshot names = %v, want London and Paris", names)
	}
}

func TestRecentReadings_EmptyInput(t *testing.T) {
	store := newTestStore(t)

	snaps, err := store.RecentReadings(nil, 10)
	if err != nil {
		t.Fatalf("RecentReadings() error = %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("got %d snapshots, want 0", len(snaps))
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	if err := store.Ping(); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
