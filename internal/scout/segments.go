package scout

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/HerbHall/lanwatch/pkg/models"
)

// SegmentStatus is a read-only view of one assigned segment and its scan state.
type SegmentStatus struct {
	Segment  models.Segment `json:"segment"`
	LastScan time.Time      `json:"last_scan"`
	Scanning bool           `json:"scanning"`
}

type segmentState struct {
	def      models.Segment
	lastScan time.Time
	scanning bool
}

// SegmentTable holds the segments the control plane assigned to this agent.
// The heartbeat loop writes it, the scan loop and remote scans claim entries
// from it, and the status endpoint reads it.
type SegmentTable struct {
	mu       sync.Mutex
	segments map[string]*segmentState
}

// NewSegmentTable returns an empty table.
func NewSegmentTable() *SegmentTable {
	return &SegmentTable{segments: make(map[string]*segmentState)}
}

// Reconcile makes the table match segs. Absent segments are dropped, new ones
// start with zero scan state and existing ones keep their scan state while
// taking the new definition. It returns how many segments were added and removed.
func (t *SegmentTable) Reconcile(segs []models.Segment) (added, removed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	present := make(map[string]struct{}, len(segs))
	for _, s := range segs {
		present[s.ID] = struct{}{}
	}
	for id := range t.segments {
		if _, ok := present[id]; !ok {
			delete(t.segments, id)
			removed++
		}
	}
	for _, s := range segs {
		if st, ok := t.segments[s.ID]; ok {
			st.def = s
			continue
		}
		t.segments[s.ID] = &segmentState{def: s}
		added++
	}
	return added, removed
}

// Add inserts seg with zero scan state, or updates its definition if present.
func (t *SegmentTable) Add(seg models.Segment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.segments[seg.ID]; ok {
		st.def = seg
		return
	}
	t.segments[seg.ID] = &segmentState{def: seg}
}

// TryBeginScan claims a segment for a scheduled scan. The claim succeeds only
// when the segment is not being scanned and at least its scan interval has
// passed since the last scan; a never-scanned segment is always due. On
// success the segment is marked scanning with lastScan set to now.
func (t *SegmentTable) TryBeginScan(id string, now time.Time) (models.Segment, bool) {
	return t.begin(id, now, false)
}

// BeginManualScan claims a segment for an on-demand scan, ignoring the interval.
func (t *SegmentTable) BeginManualScan(id string, now time.Time) (models.Segment, bool) {
	return t.begin(id, now, true)
}

func (t *SegmentTable) begin(id string, now time.Time, ignoreInterval bool) (models.Segment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.segments[id]
	if !ok || st.scanning {
		return models.Segment{}, false
	}
	if !ignoreInterval && !st.lastScan.IsZero() {
		interval := time.Duration(st.def.ScanIntervalSeconds) * time.Second
		if now.Sub(st.lastScan) < interval {
			return models.Segment{}, false
		}
	}
	st.scanning = true
	st.lastScan = now
	return st.def, true
}

// FinishScan clears the scanning flag. Segments removed mid-scan are ignored.
func (t *SegmentTable) FinishScan(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.segments[id]; ok {
		st.scanning = false
	}
}

// Has reports whether id is assigned.
func (t *SegmentTable) Has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.segments[id]
	return ok
}

// IDs returns the assigned segment ids in ascending order.
func (t *SegmentTable) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.segments))
	for id := range t.segments {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of assigned segments.
func (t *SegmentTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.segments)
}

// Snapshot returns a copy of the table ordered by segment id.
func (t *SegmentTable) Snapshot() []SegmentStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SegmentStatus, 0, len(t.segments))
	for _, st := range t.segments {
		out = append(out, SegmentStatus{
			Segment:  st.def,
			LastScan: st.lastScan,
			Scanning: st.scanning,
		})
	}
	slices.SortFunc(out, func(a, b SegmentStatus) int {
		return cmp.Compare(a.Segment.ID, b.Segment.ID)
	})
	return out
}
