package math

import "testing"

func TestClamp(t *testing.T) {
	cases := []struct {
		in, low, high, want float32
	}{
		{0.05, 0.1, 1.0, 0.1},
		{0.5, 0.1, 1.0, 0.5},
		{3, 0.1, 1.0, 1.0},
	}
	for _, c := range cases {
		if got := Clamp(c.in, c.low, c.high); got != c.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", c.in, c.low, c.high, got, c.want)
		}
	}
	if got := Clamp(-4, 0, 10); got != 0 {
		t.Errorf("Clamp int = %d, want 0", got)
	}
}

func TestTransformMatrixTranslates(t *testing.T) {
	tr := NewTransform(NewVec3(1, 2, 3), NewQuatIdentity(), NewVec3(2, 2, 2))
	p := NewVec3(1, 1, 1).Transform(tr.Matrix())
	if !p.Compare(NewVec3(3, 4, 5), 1e-5) {
		t.Errorf("unexpected transformed point %+v", p)
	}
}

func TestQuaternionRotation(t *testing.T) {
	q := NewQuatFromAxisAngle(NewVec3Up(), DegToRad(90), true)
	p := NewVec3(1, 0, 0).Transform(q.ToMat4())
	if !p.Compare(NewVec3(0, 0, -1), 1e-5) {
		t.Errorf("rotating X by 90 degrees around Y gave %+v", p)
	}
}

func TestBoundingBoxExtend(t *testing.T) {
	b := NewBoundingBox(NewVec3Zero(), NewVec3Zero())
	b = b.Extend(NewVec3(-1, 2, 0.5))
	if b.Min != NewVec3(-1, 0, 0) || b.Max != NewVec3(0, 2, 0.5) {
		t.Errorf("unexpected box %+v", b)
	}
	if len(b.Corners()) != 8 {
		t.Errorf("expected 8 corners")
	}
}
