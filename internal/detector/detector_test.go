package detector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/curlcount/internal/geometry"
)

func armAngle(f *LandmarkFrame, arm Arm, mode geometry.Mode) float64 {
	s, e, w := f.Arm(arm)
	return geometry.Angle(mode, s.Vec(), e.Vec(), w.Vec())
}

func TestLandmarkIndices(t *testing.T) {
	// MediaPipe Pose schema: 33 points, arms at 11..16.
	assert.Equal(t, 33, NumLandmarks)
	assert.Equal(t, 11, LeftShoulder)
	assert.Equal(t, 12, RightShoulder)
	assert.Equal(t, 13, LeftElbow)
	assert.Equal(t, 14, RightElbow)
	assert.Equal(t, 15, LeftWrist)
	assert.Equal(t, 16, RightWrist)
	assert.Equal(t, 32, RightFootIndex)
}

func TestNewLandmarkFrame(t *testing.T) {
	t.Run("empty list means no person", func(t *testing.T) {
		f, err := NewLandmarkFrame(nil, 1)
		assert.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("wrong length rejected", func(t *testing.T) {
		f, err := NewLandmarkFrame(make([]Joint, 21), 1)
		assert.Error(t, err)
		assert.Nil(t, f)
	})

	t.Run("copies joints", func(t *testing.T) {
		joints := make([]Joint, NumLandmarks)
		joints[LeftElbow] = Joint{Point3D: Point3D{X: 0.4, Y: 0.5, Z: -0.1}, Visibility: 0.7}

		f, err := NewLandmarkFrame(joints, 42)
		require.NoError(t, err)
		require.NotNil(t, f)

		joints[LeftElbow].X = 9
		assert.Equal(t, 0.4, f.Joints[LeftElbow].X)
		assert.Equal(t, int64(42), f.Timestamp)
	})
}

func TestLandmarkFrame_ArmVisible(t *testing.T) {
	f := ArmFrame(90, 90)
	assert.True(t, f.ArmVisible(LeftArm, 0.5))

	f.Joints[LeftWrist].Visibility = 0.2
	assert.False(t, f.ArmVisible(LeftArm, 0.5))
	assert.True(t, f.ArmVisible(RightArm, 0.5))
	assert.True(t, f.ArmVisible(LeftArm, 0))
}

func TestArmFrame(t *testing.T) {
	for _, deg := range []float64{10, 40, 59, 90, 121, 140, 180} {
		f := ArmFrame(deg, 180-deg)
		for _, mode := range []geometry.Mode{geometry.Mode2D, geometry.Mode3D} {
			assert.InDelta(t, deg, armAngle(f, LeftArm, mode), 1e-5, "left %v %s", deg, mode)
			assert.InDelta(t, 180-deg, armAngle(f, RightArm, mode), 1e-5, "right %v %s", deg, mode)
		}
	}

	s := StandingFrame()
	assert.InDelta(t, 180, armAngle(s, LeftArm, geometry.Mode2D), 1e-5)
}

func TestMockDetector(t *testing.T) {
	t.Run("returns nil frame by default", func(t *testing.T) {
		mock := NewMockDetector()

		f, err := mock.Detect(nil)

		assert.NoError(t, err)
		assert.Nil(t, f)
		assert.Equal(t, 1, mock.Calls())
	})

	t.Run("replays frames in order", func(t *testing.T) {
		mock := NewMockDetector()
		a, b := ArmFrame(40, 40), ArmFrame(140, 140)
		mock.SetFrames([]*LandmarkFrame{a, nil, b})

		got := make([]*LandmarkFrame, 0, 4)
		for i := 0; i < 4; i++ {
			f, err := mock.Detect(nil)
			require.NoError(t, err)
			got = append(got, f)
		}

		assert.Equal(t, []*LandmarkFrame{a, nil, b, nil}, got)
	})

	t.Run("loops when asked", func(t *testing.T) {
		mock := NewMockDetector()
		a := ArmFrame(40, 40)
		mock.SetFrames([]*LandmarkFrame{a})
		mock.SetLoop(true)

		for i := 0; i < 3; i++ {
			f, err := mock.Detect(nil)
			require.NoError(t, err)
			assert.Same(t, a, f)
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetFrames([]*LandmarkFrame{ArmFrame(40, 40)})
		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		f, err := mock.Detect(nil)

		assert.ErrorIs(t, err, expectedErr)
		assert.Nil(t, f)
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
		assert.NoError(t, NewMockDetector().Close())
	})
}

func TestParseResponse(t *testing.T) {
	t.Run("no person", func(t *testing.T) {
		f, err := parseResponse([]byte(`{"landmarks":null}`+"\n"), 5)
		assert.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("full pose", func(t *testing.T) {
		line := []byte(`{"landmarks":[`)
		for i := 0; i < NumLandmarks; i++ {
			if i > 0 {
				line = append(line, ',')
			}
			line = append(line, []byte(`{"x":0.5,"y":0.25,"z":-0.1,"visibility":0.9}`)...)
		}
		line = append(line, []byte("]}\n")...)

		f, err := parseResponse(line, 7)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, Joint{Point3D: Point3D{X: 0.5, Y: 0.25, Z: -0.1}, Visibility: 0.9}, f.Joints[RightWrist])
		assert.Equal(t, int64(7), f.Timestamp)
	})

	t.Run("schema mismatch", func(t *testing.T) {
		_, err := parseResponse([]byte(`{"landmarks":[{"x":1,"y":1,"z":0,"visibility":1}]}`), 0)
		assert.Error(t, err)
	})

	t.Run("service error", func(t *testing.T) {
		_, err := parseResponse([]byte(`{"landmarks":null,"error":"bad jpeg"}`), 0)
		assert.ErrorContains(t, err, "bad jpeg")
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := parseResponse([]byte(`not json`), 0)
		assert.Error(t, err)
	})
}

func TestMediaPipeDetector_Args(t *testing.T) {
	d := &MediaPipeDetector{config: DefaultConfig(), script: "/tmp/svc.py"}

	assert.Equal(t, []string{
		"/tmp/svc.py",
		"--model-complexity", "1",
		"--smooth-landmarks", "true",
		"--min-detection-confidence", "0.5",
		"--min-tracking-confidence", "0.5",
	}, d.args())
}

func TestMediaPipeDetector_CloseUnstarted(t *testing.T) {
	d := &MediaPipeDetector{config: DefaultConfig()}
	assert.NoError(t, d.Close())
}
