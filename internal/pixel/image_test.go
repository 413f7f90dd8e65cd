package pixel

import (
	"image"
	"image/color"
	"testing"
)

func TestImageRoundTrip_Gray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			src.SetGray(x, y, color.Gray{Y: uint8(y*4 + x)})
		}
	}

	buf := FromImage(src)
	if buf.Rows != 3 || buf.Cols != 4 || buf.Samples != 1 || buf.Depth != 8 {
		t.Fatalf("unexpected geometry: %+v", buf)
	}
	if buf.Data[5] != 5 {
		t.Errorf("Data[5] = %d, want 5", buf.Data[5])
	}

	img, err := ToImage(buf)
	if err != nil {
		t.Fatalf("ToImage failed: %v", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("expected *image.Gray, got %T", img)
	}
	if gray.GrayAt(1, 2).Y != 9 {
		t.Errorf("pixel (1,2) = %d, want 9", gray.GrayAt(1, 2).Y)
	}
}

func TestImageRoundTrip_Gray16(t *testing.T) {
	src := image.NewGray16(image.Rect(0, 0, 2, 2))
	src.SetGray16(1, 1, color.Gray16{Y: 40000})

	buf := FromImage(src)
	if buf.Depth != 16 {
		t.Fatalf("expected depth 16, got %d", buf.Depth)
	}
	if buf.Data[3] != 40000 {
		t.Errorf("Data[3] = %d, want 40000", buf.Data[3])
	}

	img, err := ToImage(buf)
	if err != nil {
		t.Fatalf("ToImage failed: %v", err)
	}
	if got := img.(*image.Gray16).Gray16At(1, 1).Y; got != 40000 {
		t.Errorf("pixel (1,1) = %d, want 40000", got)
	}
}

func TestFromImage_ColorBecomesRGB(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	src.Set(1, 0, color.RGBA{R: 0, G: 0, B: 255, A: 255})

	buf := FromImage(src)
	if buf.Samples != 3 {
		t.Fatalf("expected 3 samples, got %d", buf.Samples)
	}
	want := []int32{255, 0, 0, 0, 0, 255}
	for i, v := range want {
		if buf.Data[i] != v {
			t.Errorf("Data[%d] = %d, want %d", i, buf.Data[i], v)
		}
	}

	img, err := ToImage(buf)
	if err != nil {
		t.Fatalf("ToImage failed: %v", err)
	}
	if _, ok := img.(*image.RGBA); !ok {
		t.Errorf("expected *image.RGBA, got %T", img)
	}
}

func TestToImage_RejectsSigned(t *testing.T) {
	_, err := ToImage(Buffer{Rows: 1, Cols: 1, Samples: 1, Depth: 16, Signed: true, Data: []int32{0}})
	if err == nil {
		t.Error("expected error for signed buffer")
	}
}
