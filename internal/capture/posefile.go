package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/signalsfoundry/flyin/core"
	"github.com/signalsfoundry/flyin/model"
)

// PoseFile is the document PoseWriter writes for each frame.
type PoseFile struct {
	Index int               `json:"index"`
	Frame model.CameraFrame `json:"frame"`
	ECEF  *core.Vec3        `json:"ecef,omitempty"` // kilometres
}

// PoseWriter is a Surface that renders nothing: each capture writes the
// current pose as JSON, for renderers that run out of process.
type PoseWriter struct {
	IncludeECEF bool

	mu    sync.Mutex
	index int
	pose  model.CameraFrame
	posed bool
}

// NewPoseWriter returns a PoseWriter.
func NewPoseWriter(includeECEF bool) *PoseWriter {
	return &PoseWriter{IncludeECEF: includeECEF, index: -1}
}

func (w *PoseWriter) Apply(_ context.Context, frame model.CameraFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.index++
	w.pose = frame
	w.posed = true
	return nil
}

// TilesLoaded is always true; there is nothing to stream.
func (w *PoseWriter) TilesLoaded(context.Context) (bool, error) { return true, nil }

func (w *PoseWriter) WaitForRender(context.Context) error { return nil }

func (w *PoseWriter) Capture(_ context.Context, path string) error {
	w.mu.Lock()
	doc := PoseFile{Index: w.index, Frame: w.pose}
	posed := w.posed
	w.mu.Unlock()
	if !posed {
		return fmt.Errorf("capture %s before any pose was applied", path)
	}
	if w.IncludeECEF {
		v := core.FramePositionECEF(doc.Frame)
		doc.ECEF = &v
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
