// Package schedule defines the contract for the external schedule and
// geofence provider and ships a static implementation for single-site
// deployments and tests.
package schedule

import (
	"context"
	"time"
)

// Point is a WGS84 coordinate.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GroupSchedule is the expected working window for one group. Grace is
// added to Start before a check-in counts as late.
type GroupSchedule struct {
	Start time.Duration // offset from local midnight
	End   time.Duration
	Grace time.Duration
	Zone  *time.Location
}

// Geofence is the polygon a check-in is expected to come from. An empty
// polygon disables the check.
type Geofence struct {
	Polygon []Point
}

// Provider supplies per-group schedule and geofence data. It is
// read-only external data as far as the core is concerned.
type Provider interface {
	Schedule(ctx context.Context, groupID string) (*GroupSchedule, error)
	Fence(ctx context.Context, groupID string) (*Geofence, error)
}

// Contains reports whether p lies inside the polygon, by ray casting.
// Points on an edge count as inside.
func (g *Geofence) Contains(p Point) bool {
	poly := g.Polygon
	if len(poly) < 3 {
		return true
	}
	inside := false
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		pi, pj := poly[i], poly[j]
		if (pi.Latitude > p.Latitude) != (pj.Latitude > p.Latitude) {
			cross := (pj.Longitude-pi.Longitude)*(p.Latitude-pi.Latitude)/(pj.Latitude-pi.Latitude) + pi.Longitude
			if p.Longitude < cross {
				inside = !inside
			} else if p.Longitude == cross {
				return true
			}
		}
		j = i
	}
	return inside
}

// StaticProvider serves one fixed schedule and fence for every group.
type StaticProvider struct {
	Sched GroupSchedule
	Geo   Geofence
}

func (s *StaticProvider) Schedule(ctx context.Context, groupID string) (*GroupSchedule, error) {
	sc := s.Sched
	if sc.Zone == nil {
		sc.Zone = time.UTC
	}
	return &sc, nil
}

func (s *StaticProvider) Fence(ctx context.Context, groupID string) (*Geofence, error) {
	g := s.Geo
	return &g, nil
}

// LateCutoff computes the instant after which a check-in on day t is
// classified late.
func (g *GroupSchedule) LateCutoff(t time.Time) time.Time {
	zone := g.Zone
	if zone == nil {
		zone = time.UTC
	}
	local := t.In(zone)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
	return midnight.Add(g.Start + g.Grace)
}

// Day renders the schedule-local calendar day of t, the key attendance
// events deduplicate on.
func (g *GroupSchedule) Day(t time.Time) string {
	zone := g.Zone
	if zone == nil {
		zone = time.UTC
	}
	return t.In(zone).Format("2006-01-02")
}
