// Package detector provides pose detection interfaces and the body landmark model.
package detector

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Pose landmark indices following the MediaPipe Pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
	NumLandmarks
)

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec converts the point for use with the geometry package.
func (p Point3D) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// Joint is a single body landmark. Coordinates are normalized to the image
// (x, y in [0, 1]); z is a relative depth. Visibility is the model's
// confidence that the joint is visible, in [0, 1].
type Joint struct {
	Point3D
	Visibility float64 `json:"visibility"`
}

// LandmarkFrame holds every landmark detected for one person in one frame.
// A nil *LandmarkFrame means nobody was detected.
type LandmarkFrame struct {
	Joints    [NumLandmarks]Joint `json:"landmarks"`
	Timestamp int64               `json:"timestamp"` // milliseconds
}

// Arm names the three joints that define an elbow angle.
type Arm struct {
	Shoulder int
	Elbow    int
	Wrist    int
}

// The two tracked arms.
var (
	LeftArm  = Arm{Shoulder: LeftShoulder, Elbow: LeftElbow, Wrist: LeftWrist}
	RightArm = Arm{Shoulder: RightShoulder, Elbow: RightElbow, Wrist: RightWrist}
)

// Arm returns the shoulder, elbow and wrist joints of arm.
func (f *LandmarkFrame) Arm(arm Arm) (shoulder, elbow, wrist Joint) {
	return f.Joints[arm.Shoulder], f.Joints[arm.Elbow], f.Joints[arm.Wrist]
}

// ArmVisible reports whether all three joints of arm meet minVisibility.
func (f *LandmarkFrame) ArmVisible(arm Arm, minVisibility float64) bool {
	s, e, w := f.Arm(arm)
	return s.Visibility >= minVisibility &&
		e.Visibility >= minVisibility &&
		w.Visibility >= minVisibility
}

// NewLandmarkFrame builds a frame from a landmark list as produced by the
// pose model. The list must match the 33-point schema exactly; a nil or empty
// list yields a nil frame.
func NewLandmarkFrame(joints []Joint, timestamp int64) (*LandmarkFrame, error) {
	if len(joints) == 0 {
		return nil, nil
	}
	if len(joints) != NumLandmarks {
		return nil, fmt.Errorf("expected %d pose landmarks, got %d", NumLandmarks, len(joints))
	}

	f := &LandmarkFrame{Timestamp: timestamp}
	copy(f.Joints[:], joints)
	return f, nil
}
