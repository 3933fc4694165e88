package components

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/math"
)

type fakeInput struct {
	keys   map[core.KeyCode]bool
	dx, dy float64
}

func (f *fakeInput) IsKeyDown(key core.KeyCode) bool { return f.keys[key] }
func (f *fakeInput) MouseDelta() (float64, float64)  { return f.dx, f.dy }

func keys(codes ...core.KeyCode) *fakeInput {
	in := &fakeInput{keys: map[core.KeyCode]bool{}}
	for _, c := range codes {
		in.keys[c] = true
	}
	return in
}

func assertVec3(t *testing.T, want, got math.Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-4)
	assert.InDelta(t, want.Y, got.Y, 1e-4)
	assert.InDelta(t, want.Z, got.Z, 1e-4)
}

func TestDefaultCameraLooksDownNegativeZ(t *testing.T) {
	c := NewCamera(16.0 / 9.0)
	assertVec3(t, math.NewVec3(0, 0, 5), c.Position)
	assertVec3(t, math.NewVec3(0, 0, -1), c.Forward())

	view := c.GetView()
	assertVec3(t, math.NewVec3(0, 0, -5), view.TransformPoint(math.NewVec3Zero()))
}

func TestCameraMovement(t *testing.T) {
	cases := map[string]struct {
		input *fakeInput
		want  math.Vec3
	}{
		"forward":       {keys(core.KEY_W), math.NewVec3(0, 0, 4)},
		"backward":      {keys(core.KEY_S), math.NewVec3(0, 0, 6)},
		"left":          {keys(core.KEY_A), math.NewVec3(-1, 0, 5)},
		"right":         {keys(core.KEY_D), math.NewVec3(1, 0, 5)},
		"up":            {keys(core.KEY_SPACE), math.NewVec3(0, 1, 5)},
		"down":          {keys(core.KEY_LCONTROL), math.NewVec3(0, -1, 5)},
		"fast forward":  {keys(core.KEY_W, core.KEY_E), math.NewVec3(0, 0, -5)},
		"nothing held":  {keys(), math.NewVec3(0, 0, 5)},
		"forward right": {keys(core.KEY_W, core.KEY_D), math.NewVec3(1, 0, 4)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewCamera(1)
			c.Update(0.5, tc.input)
			assertVec3(t, tc.want, c.Position)
		})
	}
}

func TestHorizontalSpeedIgnoresPitch(t *testing.T) {
	c := NewCamera(1)
	c.Rotate(math.NewVec3(60, 0, 0))
	c.Update(0.5, keys(core.KEY_W))
	assertVec3(t, math.NewVec3(0, 0, 4), c.Position)
}

func TestMouseLook(t *testing.T) {
	c := NewCamera(1)
	in := keys()
	in.dx, in.dy = 10, -5
	c.Update(0.1, in)
	// delta * dt * rotation speed
	assert.InDelta(t, 3, c.EulerRotation.X, 1e-4)
	assert.InDelta(t, -84, c.EulerRotation.Y, 1e-4)

	in.dx, in.dy = 0.00001, 0
	c.Update(0.1, in)
	assert.InDelta(t, -84, c.EulerRotation.Y, 1e-4)
}

func TestPitchIsClamped(t *testing.T) {
	c := NewCamera(1)
	c.Rotate(math.NewVec3(120, 0, 0))
	assert.Equal(t, float32(89), c.EulerRotation.X)
	c.Rotate(math.NewVec3(-500, 0, 0))
	assert.Equal(t, float32(-89), c.EulerRotation.X)
}

func TestProjectionFollowsAspectRatio(t *testing.T) {
	c := NewCamera(1)
	halfTan := math32.Tan(math.DegToRad(45) / 2)
	assert.InDelta(t, 1/halfTan, c.GetProjection().Data[0], 1e-4)

	c.SetAspectRatio(2)
	assert.InDelta(t, 1/(2*halfTan), c.GetProjection().Data[0], 1e-4)
	assert.InDelta(t, 1/halfTan, c.GetProjection().Data[5], 1e-4)
}

func TestViewIsCachedUntilMoved(t *testing.T) {
	c := NewCamera(1)
	first := c.GetView()
	assert.Equal(t, first, c.GetView())

	c.SetPosition(math.NewVec3(1, 2, 3))
	assert.NotEqual(t, first, c.GetView())
}
