package monitor

// seenWindowCap bounds the per-account de-duplication window. Once the
// cap is reached the oldest UID is evicted and becomes eligible to be
// reported again should it reappear — an accepted tradeoff.
const seenWindowCap = 2000

// seenWindow tracks which message UIDs have already been reported. It
// pairs a membership set with an insertion-ordered queue so eviction is
// FIFO by discovery order. Not safe for concurrent use; each account's
// window is owned by its serialized poll path.
type seenWindow struct {
	cap   int
	ids   map[uint32]struct{}
	order []uint32
}

func newSeenWindow(capacity int) *seenWindow {
	if capacity <= 0 {
		capacity = seenWindowCap
	}
	return &seenWindow{
		cap: capacity,
		ids: make(map[uint32]struct{}, capacity),
	}
}

// Contains reports whether uid is in the window.
func (w *seenWindow) Contains(uid uint32) bool {
	_, ok := w.ids[uid]
	return ok
}

// Add registers uid, evicting the oldest entry if the window is full.
// It returns false when the uid was already present (idempotent).
func (w *seenWindow) Add(uid uint32) bool {
	if _, ok := w.ids[uid]; ok {
		return false
	}

	w.ids[uid] = struct{}{}
	w.order = append(w.order, uid)

	if len(w.order) > w.cap {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.ids, oldest)
	}

	return true
}

// Len returns the number of tracked UIDs.
func (w *seenWindow) Len() int {
	return len(w.ids)
}
