package detector

import (
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It replays a scripted sequence of frames, one per Detect call, and
// reports no person once the script is exhausted.
type MockDetector struct {
	mu     sync.Mutex
	frames []*LandmarkFrame
	next   int
	loop   bool
	err    error
	calls  int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFrames sets the frames that will be returned by Detect, in order.
// A nil entry simulates a detection dropout.
func (m *MockDetector) SetFrames(frames []*LandmarkFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
	m.next = 0
}

// SetLoop makes the script repeat instead of ending.
func (m *MockDetector) SetLoop(loop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loop = loop
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next scripted frame or the configured error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*LandmarkFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	if m.next >= len(m.frames) {
		if !m.loop || len(m.frames) == 0 {
			return nil, nil
		}
		m.next = 0
	}

	f := m.frames[m.next]
	m.next++
	return f, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Synthetic pose layout in normalized image coordinates.
const (
	upperArmLength = 0.15
	forearmLength  = 0.14
	mockVisibility = 0.98
)

// StandingFrame returns a frame of a person facing the camera with both arms
// hanging straight down.
func StandingFrame() *LandmarkFrame {
	return ArmFrame(180, 180)
}

// ArmFrame returns a synthetic frame whose left and right elbow angles are
// the given values in degrees. Upper arms hang vertically; forearms swing in
// the image plane, so the 2D and 3D angles agree.
func ArmFrame(leftDeg, rightDeg float64) *LandmarkFrame {
	f := &LandmarkFrame{}
	for i := range f.Joints {
		f.Joints[i] = Joint{
			Point3D:    Point3D{X: 0.5, Y: 0.2 + float64(i)*0.02},
			Visibility: mockVisibility,
		}
	}

	// The subject's left side appears on the right of the image.
	placeArm(f, LeftArm, 0.62, leftDeg)
	placeArm(f, RightArm, 0.38, rightDeg)

	f.Joints[LeftHip].Point3D = Point3D{X: 0.58, Y: 0.65}
	f.Joints[RightHip].Point3D = Point3D{X: 0.42, Y: 0.65}
	return f
}

func placeArm(f *LandmarkFrame, arm Arm, x, deg float64) {
	rad := deg * math.Pi / 180
	shoulder := Point3D{X: x, Y: 0.3}
	elbow := Point3D{X: x, Y: shoulder.Y + upperArmLength}
	// Rotate the forearm away from the shoulder direction (0, -1) by deg.
	wrist := Point3D{
		X: elbow.X + forearmLength*math.Sin(rad),
		Y: elbow.Y - forearmLength*math.Cos(rad),
	}

	f.Joints[arm.Shoulder].Point3D = shoulder
	f.Joints[arm.Elbow].Point3D = elbow
	f.Joints[arm.Wrist].Point3D = wrist
}
