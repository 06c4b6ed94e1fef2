package layers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/school-risk/internal/analysis"
	"github.com/sells-group/school-risk/internal/model"
)

// ErrRefreshInProgress is returned when a refresh is already running.
var ErrRefreshInProgress = eris.New("layers: refresh already in progress")

// State is one immutable load of all layers. Readers must not modify it.
type State struct {
	Snapshot analysis.Snapshot
	// Schools is the merged school collection.
	Schools  []model.School
	Counts   map[string]int
	Failed   []string
	LoadedAt time.Time
}

// Holder publishes the current State. Refresh swaps in a new State; readers
// keep whatever State they fetched.
type Holder struct {
	loader     *Loader
	state      atomic.Pointer[State]
	refreshing atomic.Bool
}

// NewHolder creates a Holder with no state.
func NewHolder(loader *Loader) *Holder {
	return &Holder{loader: loader}
}

// Current returns the published state, or nil before the first load.
func (h *Holder) Current() *State {
	return h.state.Load()
}

// Set publishes s.
func (h *Holder) Set(s *State) {
	h.state.Store(s)
}

// Refresh loads all layers and publishes the result. The previous state stays
// published when the load fails.
func (h *Holder) Refresh(ctx context.Context, opts LoadOpts) error {
	if !h.refreshing.CompareAndSwap(false, true) {
		return ErrRefreshInProgress
	}
	defer h.refreshing.Store(false)

	s, err := h.loader.Load(ctx, opts)
	if err != nil {
		return err
	}
	h.state.Store(s)
	return nil
}

// Refreshing reports whether a refresh is running.
func (h *Holder) Refreshing() bool {
	return h.refreshing.Load()
}
