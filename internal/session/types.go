package session

import (
	"context"
	"time"

	"zipdive/internal/layer"
)

type OverallState string

const (
	StateNeedInit OverallState = "need_init"
	StateRunning  OverallState = "running"
	StateFinished OverallState = "finished"
)

// LayerRunner executes one layer and reports through emit. *layer.Engine is
// the production implementation.
type LayerRunner interface {
	Run(ctx context.Context, depth int, inputDir, outputDir, password string, emit func(layer.Event))
}

// Snapshot is a point-in-time copy of a session. It never carries the password.
type Snapshot struct {
	ID          string        `json:"id"`
	State       OverallState  `json:"state"`
	AutoAdvance bool          `json:"auto_advance"`
	InputRoot   string        `json:"input_root"`
	OutputRoot  string        `json:"output_root"`
	CreatedAt   time.Time     `json:"created_at"`
	Layers      []layer.Layer `json:"layers"`
}

// CurrentLayer returns the most recently created layer.
func (s Snapshot) CurrentLayer() (layer.Layer, bool) {
	if len(s.Layers) == 0 {
		return layer.Layer{}, false
	}
	return s.Layers[len(s.Layers)-1], true
}

// StartRequest carries the inputs of Start.
type StartRequest struct {
	Input    string
	Output   string
	Password string
	// AutoAdvance overrides the manager default when set.
	AutoAdvance *bool
}
