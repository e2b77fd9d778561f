package op

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	internalUtils "github.com/ephroot/takeover/internal/utils"
)

// CleanupGuard is the safety net between staging-root creation and the commit
// point. While armed, termination signals and the normal failure path run the
// cleanup exactly once. Disarm consumes the guard at the instant the pivot
// becomes irreversible; after that no cleanup can run.
type CleanupGuard struct {
	cleanup func()
	armed   atomic.Bool
	once    sync.Once
	signals chan os.Signal
}

func NewCleanupGuard(cleanup func()) *CleanupGuard {
	return &CleanupGuard{cleanup: cleanup}
}

// Arm hooks process-termination signals. A signal while armed cleans up and
// exits nonzero.
func (g *CleanupGuard) Arm() {
	g.armed.Store(true)
	g.signals = make(chan os.Signal, 1)
	signal.Notify(g.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig, ok := <-g.signals
		if !ok {
			return
		}
		internalUtils.Log.Warn().Str("signal", sig.String()).Msg("Interrupted, cleaning up staging root")
		g.Trigger()
		os.Exit(1)
	}()
}

// Trigger runs the cleanup if the guard is still armed. Safe to call from the
// normal exit path as well as the signal path.
func (g *CleanupGuard) Trigger() {
	if !g.armed.Load() {
		return
	}
	g.once.Do(g.cleanup)
}

// Disarm consumes the guard. Once disarmed it can never fire again: past the
// commit point an unmount of the staging root would take down the machine.
func (g *CleanupGuard) Disarm() {
	g.armed.Store(false)
	if g.signals != nil {
		signal.Stop(g.signals)
		close(g.signals)
		g.signals = nil
	}
}

// Armed reports whether the guard can still fire.
func (g *CleanupGuard) Armed() bool {
	return g.armed.Load()
}
