// Package tracker assigns stable integer identities to detected bounding
// boxes across frames using nearest-centroid matching. One Tracker is kept
// per tracked object class.
package tracker

import (
	"math"
)

// Box is a detected bounding box in frame coordinates.
type Box struct {
	X int
	Y int
	W int
	H int
}

// Centroid returns the box identity point used for matching. The formula
// is the midpoint of (x, y) and (x+w, y+h) corner sums with integer
// truncation; persisted detections carry the same value, so it must not
// change.
func (b Box) Centroid() (int, int) {
	return (b.X + b.W) / 2, (b.Y + b.H) / 2
}

// TrackedBox is an input box augmented with its assigned object id.
type TrackedBox struct {
	Box
	ObjectID int
}

// entity is an object the tracker has seen before.
type entity struct {
	id       int
	cx       int
	cy       int
	lastSeen uint64
}

// Tracker matches boxes of a single class against previously seen
// centroids. Entities are retained until the tracker is reset at day
// rollover; objects that leave the scene keep their slot so a returning
// object close to its old position keeps its id. Pure and deterministic,
// no I/O.
type Tracker struct {
	entities    []entity
	nextID      int
	maxDistance float64
	tick        uint64
}

// New creates a tracker whose first allocated id is idStart and which
// links boxes to existing entities when their centroids are at most
// maxDistance apart.
func New(idStart int, maxDistance float64) *Tracker {
	return &Tracker{
		nextID:      idStart,
		maxDistance: maxDistance,
	}
}

// Update matches the boxes detected in the current frame against the
// tracked entities and returns each box with its object id. Matched
// entities have their centroid moved to the new position; unmatched boxes
// allocate the next unused id.
func (t *Tracker) Update(boxes []Box) []TrackedBox {
	t.tick++
	out := make([]TrackedBox, 0, len(boxes))

	for _, box := range boxes {
		cx, cy := box.Centroid()

		best := -1
		bestDist := math.Inf(1)
		for i := range t.entities {
			e := &t.entities[i]
			dist := math.Hypot(float64(cx-e.cx), float64(cy-e.cy))
			if dist > t.maxDistance {
				continue
			}
			// Entities are stored in id order and only a strictly smaller
			// distance replaces the candidate, so ties resolve to the
			// lowest existing id.
			if dist < bestDist {
				bestDist = dist
				best = i
			}
		}

		if best >= 0 {
			e := &t.entities[best]
			e.cx, e.cy = cx, cy
			e.lastSeen = t.tick
			out = append(out, TrackedBox{Box: box, ObjectID: e.id})
			continue
		}

		id := t.nextID
		t.nextID++
		t.entities = append(t.entities, entity{id: id, cx: cx, cy: cy, lastSeen: t.tick})
		out = append(out, TrackedBox{Box: box, ObjectID: id})
	}

	return out
}

// Count returns the number of entities currently tracked.
func (t *Tracker) Count() int {
	return len(t.entities)
}

// NextID returns the id the next unmatched box would receive.
func (t *Tracker) NextID() int {
	return t.nextID
}
