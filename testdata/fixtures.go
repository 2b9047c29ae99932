// Package testdata provides recorded elbow-angle sequences and blank camera
// frames for pipeline tests.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/curlcount/internal/detector"
)

//go:embed sequences/*.json
var sequencesFS embed.FS

// Sequence is a recording of left/right elbow angles, one pair per frame.
// A null frame is a detection dropout.
type Sequence struct {
	Description string        `json:"description"`
	Expected    Counts        `json:"expected"`
	Frames      []*[2]float64 `json:"frames"`
}

// Counts are the repetitions a sequence should produce.
type Counts struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// LoadSequence loads a sequence by file name without extension.
func LoadSequence(name string) (*Sequence, error) {
	data, err := sequencesFS.ReadFile("sequences/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", name, err)
	}

	var seq Sequence
	if err := json.Unmarshal(data, &seq); err != nil {
		return nil, fmt.Errorf("decode sequence %s: %w", name, err)
	}
	return &seq, nil
}

// LandmarkFrames renders the sequence as synthetic pose frames.
func (s *Sequence) LandmarkFrames() []*detector.LandmarkFrame {
	frames := make([]*detector.LandmarkFrame, len(s.Frames))
	for i, f := range s.Frames {
		if f != nil {
			frames[i] = detector.ArmFrame(f[0], f[1])
		}
	}
	return frames
}

// BlankFrames returns n black BGR frames. Callers close them with CloseFrames.
func BlankFrames(n, width, height int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	return frames
}

// CloseFrames releases frames.
func CloseFrames(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
