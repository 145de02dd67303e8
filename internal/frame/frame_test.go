package frame

import "testing"

func TestHConcat(t *testing.T) {
	a := NewColor(2, 2)
	b := NewColor(3, 2)
	a.Set(1, 1, 1, 2, 3)
	b.Set(0, 0, 4, 5, 6)
	b.Set(2, 1, 7, 8, 9)

	out, err := HConcat(a, b)
	if err != nil {
		t.Fatalf("HConcat: %v", err)
	}
	if out.Width != 5 || out.Height != 2 {
		t.Fatalf("size %dx%d, want 5x2", out.Width, out.Height)
	}
	checks := []struct {
		x, y    int
		r, g, b byte
	}{
		{1, 1, 1, 2, 3},
		{2, 0, 4, 5, 6},
		{4, 1, 7, 8, 9},
		{0, 0, 0, 0, 0},
	}
	for _, c := range checks {
		if r, g, b := out.At(c.x, c.y); r != c.r || g != c.g || b != c.b {
			t.Errorf("(%d,%d) = (%d,%d,%d), want (%d,%d,%d)", c.x, c.y, r, g, b, c.r, c.g, c.b)
		}
	}
}

func TestHConcatRejectsHeightMismatch(t *testing.T) {
	if _, err := HConcat(NewColor(2, 2), NewColor(2, 3)); err == nil {
		t.Fatal("expected height mismatch error")
	}
	bad := &Color{Width: 2, Height: 2, Pix: make([]byte, 3)}
	if _, err := HConcat(bad, NewColor(2, 2)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestGray16KeepsRawValues(t *testing.T) {
	d := NewDepth(2, 1)
	d.Pix = []uint16{0x1234, 65535}
	img := d.Gray16()
	if got := img.Gray16At(0, 0).Y; got != 0x1234 {
		t.Fatalf("pixel 0 = %#x", got)
	}
	if got := img.Gray16At(1, 0).Y; got != 65535 {
		t.Fatalf("pixel 1 = %#x", got)
	}
}

func TestColorConversions(t *testing.T) {
	c := NewColor(1, 1)
	c.Set(0, 0, 10, 20, 30)
	rgba := c.RGBA()
	if px := rgba.RGBAAt(0, 0); px.R != 10 || px.G != 20 || px.B != 30 || px.A != 255 {
		t.Fatalf("RGBA = %+v", px)
	}
	if bgr := c.BGR(); bgr[0] != 30 || bgr[1] != 20 || bgr[2] != 10 {
		t.Fatalf("BGR = %v", bgr)
	}
}
