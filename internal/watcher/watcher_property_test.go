//go:build property
// +build property

package watcher

import (
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	names := []string{"a.yaml", "b.yaml", "c.json", "d.yml"}

	// Property: a burst yields one batch holding each path once, in order
	properties.Property("burst collapses to distinct paths", prop.ForAll(
		func(picks []int) bool {
			if len(picks) == 0 {
				return true
			}
			paths := make([]string, len(picks))
			for i, n := range picks {
				paths[i] = names[n]
			}

			d := NewDebouncer(time.Hour)
			for _, p := range paths {
				d.addEvent(ChangeEvent{Type: EventTypeModified, Path: p})
			}
			d.stop()
			d.flush()

			batch := <-d.output

			want := map[string]bool{}
			for _, p := range paths {
				want[p] = true
			}
			if len(batch) != len(want) {
				return false
			}

			return sort.SliceIsSorted(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
		},
		gen.SliceOfN(20, gen.IntRange(0, len(names)-1)),
	))

	properties.TestingRun(t)
}
