package op

import (
	"os"
	"sort"
	"syscall"

	internalUtils "github.com/ephroot/takeover/internal/utils"
	"github.com/hashicorp/go-multierror"
)

// SortForTeardown orders mount points longest-path-first so nested mounts are
// released before their parents. Equal depths fall back to lexical order to
// keep the teardown deterministic.
func SortForTeardown(points []string) []string {
	sorted := make([]string, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) == len(sorted[j]) {
			return sorted[i] < sorted[j]
		}
		return len(sorted[i]) > len(sorted[j])
	})
	return sorted
}

// RecursiveUnmount releases everything mounted at or below root, deepest
// first, then removes the directory. Best effort: every failure is collected
// and reported, none stops the remaining teardown.
func RecursiveUnmount(root string) error {
	var allErrors *multierror.Error

	points, err := internalUtils.MountsUnder(root)
	if err != nil {
		allErrors = multierror.Append(allErrors, err)
		points = []string{root}
	}

	for _, p := range SortForTeardown(points) {
		internalUtils.Log.Debug().Str("what", p).Msg("Unmounting")
		if err := syscall.Unmount(p, 0); err != nil {
			// Busy mounts get a lazy detach so the directory removal below
			// still has a chance.
			if err := syscall.Unmount(p, syscall.MNT_DETACH); err != nil {
				internalUtils.Log.Err(err).Str("what", p).Msg("Error unmounting")
				allErrors = multierror.Append(allErrors, err)
			}
		}
	}

	if err := os.RemoveAll(root); err != nil {
		allErrors = multierror.Append(allErrors, err)
	}
	return allErrors.ErrorOrNil()
}
