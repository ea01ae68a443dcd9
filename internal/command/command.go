// Package command implements the reversible edit operations that mutate
// world.State, plus the strict-LIFO undo/redo log that owns them.
//
// Commands are a closed tagged variant: one struct, one Kind enum, and
// apply/undo implemented as a switch. This keeps the log serializable and
// avoids owning polymorphic objects by pointer.
package command

import (
	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
)

// Kind discriminates the command variant.
type Kind uint8

const (
	KindAddRoad Kind = iota + 1
	KindExtendRoad
	KindMoveRoadPoint
	KindDeleteRoadPoint
	KindAddZone
	KindClearZonesForRoad
)

// Command is a single reversible edit. Only the fields for its Kind are
// meaningful; the zero values of the rest are ignored.
type Command struct {
	Kind Kind

	// AddRoad
	Road world.Road

	// ExtendRoad / MoveRoadPoint / DeleteRoadPoint / ClearZonesForRoad
	RoadID world.RoadID

	// ExtendRoad
	Points  []worldmap.Vec3
	AtStart bool

	// MoveRoadPoint / DeleteRoadPoint
	PointIndex int
	OldPos     worldmap.Vec3
	NewPos     worldmap.Vec3

	// AddZone
	Zone world.ZoneStrip

	// Captured on apply for undo.
	removedPoint worldmap.Vec3
	didDelete    bool
	removedZones []world.ZoneStrip
}

// AddRoad creates a command appending a new road. The road's id must
// already be assigned from State.NextRoadID by the caller.
func AddRoad(r world.Road) *Command {
	return &Command{Kind: KindAddRoad, Road: r}
}

// ExtendRoad creates a command inserting points at the head (atStart) or
// tail of an existing road.
func ExtendRoad(id world.RoadID, pts []worldmap.Vec3, atStart bool) *Command {
	return &Command{Kind: KindExtendRoad, RoadID: id, Points: pts, AtStart: atStart}
}

// MoveRoadPoint creates a command replacing a single road point.
func MoveRoadPoint(id world.RoadID, index int, oldPos, newPos worldmap.Vec3) *Command {
	return &Command{Kind: KindMoveRoadPoint, RoadID: id, PointIndex: index, OldPos: oldPos, NewPos: newPos}
}

// DeleteRoadPoint creates a command removing a single road point. The
// command refuses to shrink a road below two points.
func DeleteRoadPoint(id world.RoadID, index int) *Command {
	return &Command{Kind: KindDeleteRoadPoint, RoadID: id, PointIndex: index}
}

// AddZone creates a command appending a zone strip. Overlap against
// existing strips on the same road/side is the caller's responsibility,
// checked before the command is constructed.
func AddZone(z world.ZoneStrip) *Command {
	return &Command{Kind: KindAddZone, Zone: z}
}

// ClearZonesForRoad creates a command removing every strip owned by the
// given road.
func ClearZonesForRoad(id world.RoadID) *Command {
	return &Command{Kind: KindClearZonesForRoad, RoadID: id}
}

// Name returns a short identifier for logging.
func (c *Command) Name() string {
	switch c.Kind {
	case KindAddRoad:
		return "AddRoad"
	case KindExtendRoad:
		return "ExtendRoad"
	case KindMoveRoadPoint:
		return "MoveRoadPoint"
	case KindDeleteRoadPoint:
		return "DeleteRoadPoint"
	case KindAddZone:
		return "AddZone"
	case KindClearZonesForRoad:
		return "ClearZonesForRoad"
	}
	return "Unknown"
}

// Apply mutates the state. Commands targeting roads that no longer exist
// silently no-op; they never corrupt state. Re-applying is idempotent for
// the append-style commands so redo after undo behaves.
func (c *Command) Apply(s *world.State) {
	switch c.Kind {
	case KindAddRoad:
		if s.FindRoad(c.Road.ID) == nil {
			r := c.Road
			r.Pts = append([]worldmap.Vec3(nil), c.Road.Pts...)
			for i := range r.Pts {
				r.Pts[i] = r.Pts[i].Grounded()
			}
			r.RebuildLengths()
			s.Roads = append(s.Roads, &r)
		}
		s.MarkRoadsDirty()

	case KindExtendRoad:
		r := s.FindRoad(c.RoadID)
		if r == nil || len(c.Points) == 0 {
			return
		}
		if c.AtStart {
			r.Pts = append(append([]worldmap.Vec3(nil), c.Points...), r.Pts...)
		} else {
			r.Pts = append(r.Pts, c.Points...)
		}
		r.RebuildLengths()
		s.MarkRoadsDirty()

	case KindMoveRoadPoint:
		r := s.FindRoad(c.RoadID)
		if r == nil || c.PointIndex < 0 || c.PointIndex >= len(r.Pts) {
			return
		}
		r.Pts[c.PointIndex] = c.NewPos.Grounded()
		r.RebuildLengths()
		s.MarkRoadsDirty()

	case KindDeleteRoadPoint:
		r := s.FindRoad(c.RoadID)
		if r == nil || c.PointIndex < 0 || c.PointIndex >= len(r.Pts) {
			return
		}
		if len(r.Pts) <= world.MinRoadPoints {
			// Roads never drop below two points.
			return
		}
		c.removedPoint = r.Pts[c.PointIndex]
		c.didDelete = true
		r.Pts = append(r.Pts[:c.PointIndex], r.Pts[c.PointIndex+1:]...)
		r.RebuildLengths()
		s.MarkRoadsDirty()

	case KindAddZone:
		found := false
		for i := range s.Zones {
			if s.Zones[i].ID == c.Zone.ID {
				found = true
				break
			}
		}
		if !found {
			s.Zones = append(s.Zones, c.Zone)
		}
		s.MarkZonesDirty()

	case KindClearZonesForRoad:
		c.removedZones = c.removedZones[:0]
		kept := s.Zones[:0]
		for _, z := range s.Zones {
			if z.RoadID == c.RoadID {
				c.removedZones = append(c.removedZones, z)
			} else {
				kept = append(kept, z)
			}
		}
		s.Zones = kept
		s.MarkZonesDirty()
	}
}

// Undo reverts the state change made by the most recent Apply.
func (c *Command) Undo(s *world.State) {
	switch c.Kind {
	case KindAddRoad:
		s.RemoveRoad(c.Road.ID)
		// Zone strips referencing the removed road are kept; they derive
		// nothing until the road comes back.
		s.MarkRoadsDirty()

	case KindExtendRoad:
		r := s.FindRoad(c.RoadID)
		if r == nil || len(c.Points) == 0 {
			return
		}
		if len(r.Pts) <= len(c.Points) {
			return
		}
		if c.AtStart {
			r.Pts = append(r.Pts[:0], r.Pts[len(c.Points):]...)
		} else {
			r.Pts = r.Pts[:len(r.Pts)-len(c.Points)]
		}
		r.RebuildLengths()
		s.MarkRoadsDirty()

	case KindMoveRoadPoint:
		r := s.FindRoad(c.RoadID)
		if r == nil || c.PointIndex < 0 || c.PointIndex >= len(r.Pts) {
			return
		}
		r.Pts[c.PointIndex] = c.OldPos.Grounded()
		r.RebuildLengths()
		s.MarkRoadsDirty()

	case KindDeleteRoadPoint:
		if !c.didDelete {
			return
		}
		r := s.FindRoad(c.RoadID)
		if r == nil {
			return
		}
		idx := c.PointIndex
		if idx > len(r.Pts) {
			idx = len(r.Pts)
		}
		if idx < 0 {
			idx = 0
		}
		r.Pts = append(r.Pts, worldmap.Vec3{})
		copy(r.Pts[idx+1:], r.Pts[idx:])
		r.Pts[idx] = c.removedPoint
		r.RebuildLengths()
		s.MarkRoadsDirty()

	case KindAddZone:
		for i := range s.Zones {
			if s.Zones[i].ID == c.Zone.ID {
				s.Zones = append(s.Zones[:i], s.Zones[i+1:]...)
				break
			}
		}
		s.MarkZonesDirty()

	case KindClearZonesForRoad:
		s.Zones = append(s.Zones, c.removedZones...)
		s.MarkZonesDirty()
	}
}
