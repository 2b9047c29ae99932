package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestMockCamera_Playback(t *testing.T) {
	frame1 := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame1, &frame2}, false)

	_, err := cam.ReadFrame()
	assert.ErrorIs(t, err, ErrCameraNotOpen)

	require.NoError(t, cam.Open())
	defer cam.Close()

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, DefaultWidth, f.Cols())
		f.Close()
	}

	_, err = cam.ReadFrame()
	assert.ErrorIs(t, err, ErrNoMoreFrames)
}

func TestMockCamera_Loop(t *testing.T) {
	frame := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	require.NoError(t, cam.Open())
	defer cam.Close()

	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		require.NoError(t, err, "iteration %d", i)
		f.Close()
	}
}

func TestMockCamera_Opens(t *testing.T) {
	cam := NewMockCamera(nil, false)

	require.NoError(t, cam.Open())
	require.NoError(t, cam.Open())
	assert.Equal(t, 1, cam.Opens())

	require.NoError(t, cam.Close())
	assert.False(t, cam.IsOpen())
	require.NoError(t, cam.Open())
	assert.Equal(t, 2, cam.Opens())

	cam.SetFPS(30)
	cam.SetFPS(0)
	assert.Equal(t, 30, cam.FPS())
}
