package device

// Watcher remembers the last values it saw and reports what changed.
// It is not safe for concurrent use.
type Watcher struct {
	last map[string]string
}

func NewWatcher() *Watcher {
	return &Watcher{last: map[string]string{}}
}

// Diff returns the values that differ from the previous call.
// The first call returns everything.
func (w *Watcher) Diff(values []Value) []Value {
	var changed []Value
	for _, v := range values {
		key := v.Device + "\x00" + v.Param
		if prev, ok := w.last[key]; ok && prev == v.Value {
			continue
		}
		w.last[key] = v.Value
		changed = append(changed, v)
	}
	return changed
}

// Reset forgets everything, so the next Diff reports all values.
func (w *Watcher) Reset() {
	w.last = map[string]string{}
}
