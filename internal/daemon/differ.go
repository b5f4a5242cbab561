package daemon

import "github.com/1broseidon/pinwheel/internal/platform"

// Diff returns the ids in current but not previous (in current order) and
// the ids in previous but not current (in previous order).
func Diff(previous, current []platform.WindowID) (added, removed []platform.WindowID) {
	prev := make(map[platform.WindowID]bool, len(previous))
	for _, id := range previous {
		prev[id] = true
	}
	cur := make(map[platform.WindowID]bool, len(current))
	for _, id := range current {
		cur[id] = true
	}

	for _, id := range current {
		if !prev[id] {
			added = append(added, id)
			prev[id] = true // report a repeated id once
		}
	}
	for _, id := range previous {
		if !cur[id] {
			removed = append(removed, id)
			cur[id] = true
		}
	}
	return added, removed
}

// Differ tracks the last observed top-level window list.
type Differ struct {
	known []platform.WindowID
}

// Update diffs current against the stored list and stores current as the
// new list, dropping duplicate ids.
func (d *Differ) Update(current []platform.WindowID) (added, removed []platform.WindowID) {
	current = dedupe(current)
	added, removed = Diff(d.known, current)
	d.known = current
	return added, removed
}

// Known returns the last observed list.
func (d *Differ) Known() []platform.WindowID {
	return append([]platform.WindowID(nil), d.known...)
}

func dedupe(ids []platform.WindowID) []platform.WindowID {
	seen := make(map[platform.WindowID]struct{}, len(ids))
	out := make([]platform.WindowID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
