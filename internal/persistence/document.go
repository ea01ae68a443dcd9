// Package persistence serializes the world as a versioned JSON document
// and stores it either as a plain file or in named save slots inside an
// embedded sqlite database.
package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
)

// DocumentVersion is the only format version this build reads or writes.
const DocumentVersion = 1

// Document is the on-disk world format.
type Document struct {
	Version    int          `json:"version"`
	NextRoadID world.RoadID `json:"nextRoadId"`
	NextZoneID world.ZoneID `json:"nextZoneId"`
	Roads      []RoadRecord `json:"roads"`
	Zones      []ZoneRecord `json:"zones"`
}

// RoadRecord stores one road as an id plus ordered point triples.
type RoadRecord struct {
	ID  world.RoadID `json:"id"`
	Pts [][3]float64 `json:"pts"`
}

// ZoneRecord stores one zone strip.
type ZoneRecord struct {
	ID       world.ZoneID   `json:"id"`
	RoadID   world.RoadID   `json:"roadId"`
	D0       float64        `json:"d0"`
	D1       float64        `json:"d1"`
	SideMask int            `json:"sideMask"`
	ZoneType world.ZoneType `json:"zoneType"`
	Depth    float64        `json:"depth"`
}

// Snapshot captures the current world state into a document.
func Snapshot(s *world.State) *Document {
	doc := &Document{
		Version:    DocumentVersion,
		NextRoadID: s.NextRoadID,
		NextZoneID: s.NextZoneID,
		Roads:      make([]RoadRecord, 0, len(s.Roads)),
		Zones:      make([]ZoneRecord, 0, len(s.Zones)),
	}
	for _, r := range s.Roads {
		rec := RoadRecord{ID: r.ID, Pts: make([][3]float64, len(r.Pts))}
		for i, p := range r.Pts {
			rec.Pts[i] = [3]float64{p.X, p.Y, p.Z}
		}
		doc.Roads = append(doc.Roads, rec)
	}
	for _, z := range s.Zones {
		doc.Zones = append(doc.Zones, ZoneRecord{
			ID:       z.ID,
			RoadID:   z.RoadID,
			D0:       z.D0,
			D1:       z.D1,
			SideMask: z.SideMask,
			ZoneType: z.Type,
			Depth:    z.Depth,
		})
	}
	return doc
}

// Restore builds a fresh world state from a document. Road points are
// pinned to the ground plane and arc lengths rebuilt; unknown zone types
// and side masks are normalized rather than rejected.
func Restore(doc *Document) (*world.State, error) {
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("unsupported document version %d", doc.Version)
	}
	s := world.NewState()
	if doc.NextRoadID > 0 {
		s.NextRoadID = doc.NextRoadID
	}
	if doc.NextZoneID > 0 {
		s.NextZoneID = doc.NextZoneID
	}
	for _, rec := range doc.Roads {
		r := &world.Road{ID: rec.ID, Pts: make([]worldmap.Vec3, len(rec.Pts))}
		for i, p := range rec.Pts {
			r.Pts[i] = worldmap.Vec3{X: p[0], Z: p[2]}
		}
		r.RebuildLengths()
		s.Roads = append(s.Roads, r)
	}
	for _, rec := range doc.Zones {
		z := world.ZoneStrip{
			ID:       rec.ID,
			RoadID:   rec.RoadID,
			D0:       rec.D0,
			D1:       rec.D1,
			SideMask: rec.SideMask & world.SideBoth,
			Type:     rec.ZoneType,
			Depth:    rec.Depth,
		}
		if z.SideMask == 0 {
			z.SideMask = world.SideBoth
		}
		if !world.ValidZoneType(z.Type) {
			z.Type = world.ZoneResidential
		}
		if z.Depth <= 0 {
			z.Depth = world.DefaultZoneDepth
		}
		s.Zones = append(s.Zones, z)
	}
	s.MarkAllDirty()
	return s, nil
}

// Marshal encodes a document as indented JSON.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a document from JSON.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return &doc, nil
}
