package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// holdTimeout only has to outlast the run's own deadline; holds are always
// cleared on delivery or close.
const holdTimeout = 24 * time.Hour

// loopGlobals are installed by the event loop but are not part of the
// guest API.
var loopGlobals = []string{
	"require",
	"setTimeout", "clearTimeout",
	"setInterval", "clearInterval",
	"setImmediate", "clearImmediate",
}

// runLoop drives one run on a goja_nodejs event loop. Every pending
// sendRequest holds a timer so the loop keeps running until its continuation
// is delivered. Once closed, reservations fail and continuations are
// dropped.
type runLoop struct {
	loop *eventloop.EventLoop

	mu     sync.Mutex
	holds  map[*eventloop.Timer]struct{}
	closed bool
}

func newRunLoop() *runLoop {
	return &runLoop{
		loop:  eventloop.NewEventLoop(eventloop.EnableConsole(false)),
		holds: make(map[*eventloop.Timer]struct{}),
	}
}

// reserve announces a continuation that will be posted later.
func (l *runLoop) reserve() (*eventloop.Timer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, false
	}
	hold := l.loop.SetTimeout(func(*goja.Runtime) {}, holdTimeout)
	l.holds[hold] = struct{}{}
	return hold, true
}

// post runs fn on the loop and releases hold. fn is skipped when the loop
// was closed in the meantime.
func (l *runLoop) post(hold *eventloop.Timer, fn func()) {
	l.loop.RunOnLoop(func(*goja.Runtime) {
		if l.release(hold) {
			fn()
		}
	})
}

func (l *runLoop) release(hold *eventloop.Timer) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.holds[hold]; !ok {
		return false
	}
	delete(l.holds, hold)
	l.loop.ClearTimeout(hold)
	return true
}

// run calls fn with the loop's runtime and then serves continuations until
// none are held. When ctx is done the runtime is interrupted and the loop
// is closed, so run returns even with requests still in flight.
func (l *runLoop) run(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	var (
		err  error
		stop = func() bool { return false }
	)
	l.loop.Run(func(vm *goja.Runtime) {
		for _, name := range loopGlobals {
			_ = vm.GlobalObject().Delete(name)
		}
		stop = context.AfterFunc(ctx, func() {
			vm.Interrupt(ErrScriptTimeout)
			l.close()
		})
		if err = fn(vm); err != nil {
			l.close()
		}
	})
	stop()
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func (l *runLoop) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for hold := range l.holds {
		l.loop.ClearTimeout(hold)
	}
	clear(l.holds)
}
