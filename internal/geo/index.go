// Package geo holds the in-process spatial index used for proximity search.
//
// Points are bucketed into a fixed lat/lon grid. A radius query derives the
// exact great-circle bounding box of the circle, visits only the grid cells
// that overlap it, and filters candidates by haversine distance. Locks are
// striped by cell and by id, so writers in different parts of the map do not
// contend.
package geo

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"prohori/pkg/e"
)

const (
	// DefaultCellDeg is about 5.5 km of latitude, close to the default
	// nearby radius.
	DefaultCellDeg = 0.05

	stripes = 64
	// beyond this many candidate cells a query walks every occupied cell
	maxScanCells = 1 << 14
)

type Neighbor struct {
	ID             uuid.UUID
	Lat            float64
	Lon            float64
	DistanceMeters float64
	seq            uint64
}

type cellKey struct {
	lat int32
	lon int32
}

type point struct {
	lat float64
	lon float64
	seq uint64
}

type cellStripe struct {
	mu    sync.RWMutex
	cells map[cellKey]map[uuid.UUID]point
}

type idStripe struct {
	mu    sync.Mutex
	where map[uuid.UUID]cellKey
}

type Index struct {
	cellDeg  float64
	latCells int32
	lonCells int32

	seq  atomic.Uint64
	size atomic.Int64

	cells [stripes]cellStripe
	ids   [stripes]idStripe
}

func NewIndex(cellDeg float64) *Index {
	if cellDeg <= 0 || cellDeg > 90 || math.IsNaN(cellDeg) {
		cellDeg = DefaultCellDeg
	}
	idx := &Index{
		cellDeg:  cellDeg,
		latCells: int32(math.Ceil(180 / cellDeg)),
		lonCells: int32(math.Ceil(360 / cellDeg)),
	}
	for i := range idx.cells {
		idx.cells[i].cells = make(map[cellKey]map[uuid.UUID]point)
		idx.ids[i].where = make(map[uuid.UUID]cellKey)
	}
	return idx
}

// Insert registers id at (lat, lon), replacing any earlier position.
func (idx *Index) Insert(id uuid.UUID, lat, lon float64) error {
	const op = "geo.Index.Insert"

	if !ValidCoordinates(lat, lon) {
		return fmt.Errorf("%s: lat=%v lon=%v: %w", op, lat, lon, e.ErrInvalidCoordinates)
	}

	key := idx.keyFor(lat, lon)
	is := idx.idStripeFor(id)
	is.mu.Lock()
	defer is.mu.Unlock()

	if old, ok := is.where[id]; ok {
		idx.removeFromCell(old, id)
	} else {
		idx.size.Add(1)
	}
	idx.addToCell(key, id, point{lat: lat, lon: lon, seq: idx.seq.Add(1)})
	is.where[id] = key
	return nil
}

// Remove deletes id. Removing an unknown id is a no-op.
func (idx *Index) Remove(id uuid.UUID) {
	is := idx.idStripeFor(id)
	is.mu.Lock()
	defer is.mu.Unlock()

	key, ok := is.where[id]
	if !ok {
		return
	}
	idx.removeFromCell(key, id)
	delete(is.where, id)
	idx.size.Add(-1)
}

func (idx *Index) Len() int { return int(idx.size.Load()) }

// QueryRadius returns every point within radiusMeters of (lat, lon), nearest
// first. Equal distances keep insertion order.
func (idx *Index) QueryRadius(ctx context.Context, lat, lon, radiusMeters float64) ([]Neighbor, error) {
	const op = "geo.Index.QueryRadius"

	if !ValidCoordinates(lat, lon) {
		return nil, fmt.Errorf("%s: lat=%v lon=%v: %w", op, lat, lon, e.ErrInvalidCoordinates)
	}
	if !(radiusMeters > 0) || math.IsInf(radiusMeters, 0) {
		return nil, fmt.Errorf("%s: radius=%v: %w", op, radiusMeters, e.ErrInvalidInput)
	}

	b := boundingBox(lat, lon, radiusMeters)
	hits, err := idx.collect(ctx, op, b, func(p point) (float64, bool) {
		d := Haversine(lat, lon, p.lat, p.lon)
		return d, d <= radiusMeters
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceMeters != hits[j].DistanceMeters {
			return hits[i].DistanceMeters < hits[j].DistanceMeters
		}
		return hits[i].seq < hits[j].seq
	})
	return hits, nil
}

func (idx *Index) collect(ctx context.Context, op string, b Bounds, match func(point) (float64, bool)) ([]Neighbor, error) {
	seen := make(map[uuid.UUID]int)
	var hits []Neighbor

	visit := func(points map[uuid.UUID]point) {
		for id, p := range points {
			d, ok := match(p)
			if !ok {
				continue
			}
			n := Neighbor{ID: id, Lat: p.lat, Lon: p.lon, DistanceMeters: d, seq: p.seq}
			// a point moving between cells mid-scan can be seen twice
			if i, dup := seen[id]; dup {
				if p.seq > hits[i].seq {
					hits[i] = n
				}
				continue
			}
			seen[id] = len(hits)
			hits = append(hits, n)
		}
	}

	keys, all := idx.cellsIn(b)
	if all {
		for i := range idx.cells {
			if err := ctx.Err(); err != nil {
				return nil, e.FromContext(ctx, op)
			}
			cs := &idx.cells[i]
			cs.mu.RLock()
			for _, points := range cs.cells {
				visit(points)
			}
			cs.mu.RUnlock()
		}
		return hits, nil
	}

	for i, key := range keys {
		if i%64 == 0 && ctx.Err() != nil {
			return nil, e.FromContext(ctx, op)
		}
		cs := idx.cellStripeFor(key)
		cs.mu.RLock()
		visit(cs.cells[key])
		cs.mu.RUnlock()
	}
	return hits, nil
}

// cellsIn lists the grid cells overlapping b, or reports that the caller
// should walk every cell instead.
func (idx *Index) cellsIn(b Bounds) ([]cellKey, bool) {
	latLo := idx.latIndex(b.MinLat)
	latHi := idx.latIndex(b.MaxLat)

	type span struct{ lo, hi int32 }
	var spans []span
	if b.MinLon <= b.MaxLon {
		spans = append(spans, span{idx.lonIndex(b.MinLon), idx.lonIndex(b.MaxLon)})
	} else {
		spans = append(spans,
			span{idx.lonIndex(b.MinLon), idx.lonCells - 1},
			span{0, idx.lonIndex(b.MaxLon)},
		)
	}

	total := 0
	for _, s := range spans {
		total += int(s.hi-s.lo+1) * int(latHi-latLo+1)
	}
	if total > maxScanCells {
		return nil, true
	}

	keys := make([]cellKey, 0, total)
	for la := latLo; la <= latHi; la++ {
		for _, s := range spans {
			for lo := s.lo; lo <= s.hi; lo++ {
				keys = append(keys, cellKey{lat: la, lon: lo})
			}
		}
	}
	return keys, false
}

func (idx *Index) keyFor(lat, lon float64) cellKey {
	return cellKey{lat: idx.latIndex(lat), lon: idx.lonIndex(lon)}
}

func (idx *Index) latIndex(lat float64) int32 {
	i := int32(math.Floor((lat + 90) / idx.cellDeg))
	return clamp(i, 0, idx.latCells-1)
}

func (idx *Index) lonIndex(lon float64) int32 {
	i := int32(math.Floor((lon + 180) / idx.cellDeg))
	return clamp(i, 0, idx.lonCells-1)
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (idx *Index) addToCell(key cellKey, id uuid.UUID, p point) {
	cs := idx.cellStripeFor(key)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	points, ok := cs.cells[key]
	if !ok {
		points = make(map[uuid.UUID]point)
		cs.cells[key] = points
	}
	points[id] = p
}

func (idx *Index) removeFromCell(key cellKey, id uuid.UUID) {
	cs := idx.cellStripeFor(key)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	points, ok := cs.cells[key]
	if !ok {
		return
	}
	delete(points, id)
	if len(points) == 0 {
		delete(cs.cells, key)
	}
}

func (idx *Index) cellStripeFor(key cellKey) *cellStripe {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(key.lat))
	binary.LittleEndian.PutUint32(buf[4:], uint32(key.lon))
	return &idx.cells[xxhash.Sum64(buf[:])%stripes]
}

func (idx *Index) idStripeFor(id uuid.UUID) *idStripe {
	return &idx.ids[xxhash.Sum64(id[:])%stripes]
}
