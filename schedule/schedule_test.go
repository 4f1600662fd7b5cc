package schedule

import (
	"context"
	"testing"
	"time"
)

func TestLateCutoff(t *testing.T) {
	sched := GroupSchedule{
		Start: 9 * time.Hour,
		Grace: 15 * time.Minute,
		Zone:  time.UTC,
	}
	day := time.Date(2026, time.March, 2, 11, 30, 0, 0, time.UTC)

	cutoff := sched.LateCutoff(day)
	want := time.Date(2026, time.March, 2, 9, 15, 0, 0, time.UTC)
	if !cutoff.Equal(want) {
		t.Errorf("expected cutoff %v, got %v", want, cutoff)
	}
}

func TestLateCutoffRespectsZone(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	sched := GroupSchedule{Start: 8 * time.Hour, Zone: jakarta}

	// 01:30 UTC is 08:30 local, past the local 08:00 start.
	at := time.Date(2026, time.March, 2, 1, 30, 0, 0, time.UTC)
	if !at.After(sched.LateCutoff(at)) {
		t.Error("08:30 local should be past an 08:00 cutoff")
	}
}

func TestDayUsesScheduleZone(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	sched := GroupSchedule{Zone: jakarta}

	// 22:00 UTC on March 1 is already March 2 locally.
	at := time.Date(2026, time.March, 1, 22, 0, 0, 0, time.UTC)
	if got := sched.Day(at); got != "2026-03-02" {
		t.Errorf("expected local day 2026-03-02, got %q", got)
	}
}

func TestGeofenceContains(t *testing.T) {
	square := Geofence{Polygon: []Point{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: 2},
		{Latitude: 2, Longitude: 2},
		{Latitude: 2, Longitude: 0},
	}}

	cases := []struct {
		name string
		p    Point
		want bool
	}{
		{"center", Point{1, 1}, true},
		{"outside", Point{3, 3}, false},
		{"outside negative", Point{-1, 1}, false},
		{"near corner inside", Point{0.01, 0.01}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := square.Contains(tc.p); got != tc.want {
				t.Errorf("Contains(%+v) = %v, want %v", tc.p, got, tc.want)
			}
		})
	}
}

func TestGeofenceEmptyPolygonDisablesCheck(t *testing.T) {
	open := Geofence{}
	if !open.Contains(Point{Latitude: 89, Longitude: 179}) {
		t.Error("an empty polygon should accept any point")
	}
}

func TestStaticProviderDefaults(t *testing.T) {
	p := &StaticProvider{Sched: GroupSchedule{Start: 9 * time.Hour}}

	sched, err := p.Schedule(context.Background(), "g-1")
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if sched.Zone == nil {
		t.Error("zone should default to UTC")
	}

	fence, err := p.Fence(context.Background(), "g-1")
	if err != nil {
		t.Fatalf("Fence failed: %v", err)
	}
	if fence == nil {
		t.Fatal("fence should not be nil")
	}
}
