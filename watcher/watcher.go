// Package watcher keeps the last two successful samples of a polled value.
package watcher

// Watcher holds the two most recent successful samples of one memory
// location. The zero value is ready to use and holds two zero samples.
type Watcher[T comparable] struct {
	Current T
	Old     T
}

// Update shifts Current into Old and stores value as Current.
func (w *Watcher[T]) Update(value T) {
	w.Old, w.Current = w.Current, value
}

// TryUpdate samples source and records the result. On error both slots are
// left as they were and the error is returned, so Old and Current always
// describe the last two successful samples, however many ticks apart.
func (w *Watcher[T]) TryUpdate(source func() (T, error)) error {
	value, err := source()
	if err != nil {
		return err
	}
	w.Update(value)
	return nil
}

// Changed reports whether the last two samples differ.
func (w *Watcher[T]) Changed() bool {
	return w.Old != w.Current
}

// Transitioned reports whether the last two samples went from one value to
// the other.
func (w *Watcher[T]) Transitioned(from, to T) bool {
	return w.Old == from && w.Current == to
}

// Reset forgets both samples.
func (w *Watcher[T]) Reset() {
	var zero T
	w.Old, w.Current = zero, zero
}
