package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func assertMat4(t *testing.T, want, got Mat4) {
	t.Helper()
	for i := range want.Data {
		assert.InDelta(t, want.Data[i], got.Data[i], 1e-5, "element %d", i)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 1, 3))
	assert.Equal(t, 1, Clamp(-2, 1, 3))
	assert.Equal(t, float32(2.5), Clamp(float32(2.5), 1, 3))
	assert.Equal(t, uint32(800), Clamp(uint32(800), 1, 4096))
}

func TestMat4InverseOfTranslation(t *testing.T) {
	tr := NewMat4Translation(NewVec3(1, 2, 3))
	inv := tr.Inverse()
	assertMat4(t, NewMat4Translation(NewVec3(-1, -2, -3)), inv)
	assertMat4(t, NewMat4Identity(), tr.Mul(inv))
}

func TestTransformAppliesScaleRotationTranslation(t *testing.T) {
	tr := NewTransformFrom(
		NewVec3(10, 0, 0),
		NewQuatFromAxisAngle(NewVec3Up(), DegToRad(90), true),
		NewVec3(2, 2, 2),
	)
	p := NewVec3(1, 0, 0).Transform(tr.GetLocal())
	// scaled to (2,0,0), rotated about +Y to (0,0,-2), moved by +10 on X.
	assert.True(t, p.Compare(NewVec3(10, 0, -2), 1e-4), "got %+v", p)
	assert.False(t, tr.IsDirty)
}

func TestLookAtPlacesTargetInFront(t *testing.T) {
	view := NewMat4LookAt(NewVec3(0, 0, 5), NewVec3Zero(), NewVec3Up())
	p := NewVec3Zero().Transform(view)
	assert.True(t, p.Compare(NewVec3(0, 0, -5), 1e-5), "got %+v", p)
}

func TestMat4AppendBytes(t *testing.T) {
	b := NewMat4Identity().AppendBytes(nil)
	assert.Len(t, b, Mat4Size)
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, b[0:4])
	assert.Equal(t, []byte{0, 0, 0, 0}, b[4:8])
}
