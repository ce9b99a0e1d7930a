package sandbox

import "context"

// Future is the pending outcome of one script run. On failure Wait returns
// the partial value together with the error.
type Future[T any] struct {
	done   chan struct{}
	value  T
	report *RunReport
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(value T, report *RunReport) {
	f.value = value
	f.report = report
	close(f.done)
}

// Done is closed once the run has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the run finishes or ctx is done. Giving up on the wait
// does not stop the run.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.report.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Report returns the run report, or nil while the run is in flight.
func (f *Future[T]) Report() *RunReport {
	select {
	case <-f.done:
		return f.report
	default:
		return nil
	}
}
