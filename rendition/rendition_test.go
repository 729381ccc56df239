package rendition

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// createTempImage writes a gradient test image and returns its path.
func createTempImage(dir, name string, w, h int) (string, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}

	path := filepath.Join(dir, name)
	fd, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer fd.Close()

	switch filepath.Ext(name) {
	case ".png":
		err = png.Encode(fd, img)
	default:
		err = jpeg.Encode(fd, img, nil)
	}
	return path, err
}

func TestWebSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{100, 100, 100, 100},     // under budget, untouched
		{900, 1000, 900, 1000},   // exactly at budget
		{2000, 1000, 1341, 670},  // sqrt(2000*900000/1000)=1341.6
		{1000, 2000, 670, 1341},
	}
	for _, tc := range tests {
		gotW, gotH := WebSize(tc.w, tc.h)
		if gotW != tc.wantW || gotH != tc.wantH {
			t.Errorf("WebSize(%d, %d) = (%d, %d), want (%d, %d)",
				tc.w, tc.h, gotW, gotH, tc.wantW, tc.wantH)
		}
		if gotW*gotH > MaxWebArea {
			t.Errorf("WebSize(%d, %d) exceeds area budget", tc.w, tc.h)
		}
	}
}

func TestThumbSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
		wantShrink   float64
	}{
		// Fits the box and stays under the shrink threshold.
		{100, 100, 100, 100, 1},
		// Square over the box: fitted 170x170, both over 120, shrunk.
		{400, 400, 136, 136, 0.80},
		// Tall image: fitted 85x170, width under threshold, no shrink.
		{200, 400, 85, 170, 1},
	}
	for _, tc := range tests {
		gotW, gotH, gotShrink := ThumbSize(tc.w, tc.h)
		if gotW != tc.wantW || gotH != tc.wantH || gotShrink != tc.wantShrink {
			t.Errorf("ThumbSize(%d, %d) = (%d, %d, %v), want (%d, %d, %v)",
				tc.w, tc.h, gotW, gotH, gotShrink, tc.wantW, tc.wantH, tc.wantShrink)
		}
	}
}

func TestIsImage(t *testing.T) {
	dir := t.TempDir()

	imgPath, err := createTempImage(dir, "a.jpg", 50, 50)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	if !IsImage(imgPath) {
		t.Errorf("Expected %s to be detected as image", imgPath)
	}

	txtPath := filepath.Join(dir, "readme.txt")
	if err := os.WriteFile(txtPath, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if IsImage(txtPath) {
		t.Errorf("Expected %s not to be detected as image", txtPath)
	}
}

func TestResizeRenditions(t *testing.T) {
	root := t.TempDir()
	r := New(root, "jpeg", 85, 65)

	if err := os.MkdirAll(filepath.Join(root, SizeOriginal), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := createTempImage(filepath.Join(root, SizeOriginal), "page.jpg", 2000, 1000); err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}

	geo, err := r.Resize("page.jpg", SizeWeb)
	if err != nil {
		t.Fatalf("Resize web failed: %v", err)
	}
	if geo.Width*geo.Height > MaxWebArea {
		t.Errorf("Web rendition area %d over budget", geo.Width*geo.Height)
	}

	thumb, err := r.Resize("page.jpg", SizeThumb)
	if err != nil {
		t.Fatalf("Resize thumb failed: %v", err)
	}
	if thumb.Width > 170 || thumb.Height > 170 {
		t.Errorf("Thumb rendition (%d, %d) over 170 box", thumb.Width, thumb.Height)
	}
	if thumb.Shrink != 1 && thumb.Shrink != 0.80 {
		t.Errorf("Unexpected thumb shrink: %v", thumb.Shrink)
	}

	for _, size := range []string{SizeWeb, SizeThumb} {
		if _, err := os.Stat(r.Path("page.jpg", size)); err != nil {
			t.Errorf("Expected %s rendition to exist: %v", size, err)
		}
	}
}

// With web_format=webp the web rendition must land where Path and
// FileName say it does, under the changed extension.
func TestResizeWebp(t *testing.T) {
	root := t.TempDir()
	r := New(root, "webp", 85, 65)

	if err := os.MkdirAll(filepath.Join(root, SizeOriginal), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := createTempImage(filepath.Join(root, SizeOriginal), "page.jpg", 500, 500); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Resize("page.jpg", SizeWeb); err != nil {
		t.Fatalf("Resize web failed: %v", err)
	}

	if got := r.FileName("page.jpg", SizeWeb); got != "page.webp" {
		t.Errorf("FileName = %q, want %q", got, "page.webp")
	}
	if _, err := os.Stat(r.Path("page.jpg", SizeWeb)); err != nil {
		t.Errorf("Web rendition missing at its advertised path: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, SizeWeb, "page.webp")); err != nil {
		t.Errorf("Web rendition not written as webp: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, SizeWeb, "page.jpg")); !os.IsNotExist(err) {
		t.Error("Web rendition left under the original extension")
	}

	// Thumb keeps the original extension and the original is untouched.
	if got := r.FileName("page.jpg", SizeThumb); got != "page.jpg" {
		t.Errorf("Thumb FileName = %q, want %q", got, "page.jpg")
	}
	if got := r.FileName("page.jpg", SizeOriginal); got != "page.jpg" {
		t.Errorf("Original FileName = %q, want %q", got, "page.jpg")
	}
}

// Resizing twice must produce byte-identical output.
func TestResizeIdempotent(t *testing.T) {
	root := t.TempDir()
	r := New(root, "jpeg", 85, 65)

	if err := os.MkdirAll(filepath.Join(root, SizeOriginal), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := createTempImage(filepath.Join(root, SizeOriginal), "page.jpg", 1500, 1500); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Resize("page.jpg", SizeWeb); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(r.Path("page.jpg", SizeWeb))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Resize("page.jpg", SizeWeb); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(r.Path("page.jpg", SizeWeb))
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(first, second) {
		t.Error("Expected identical bytes from repeated resize")
	}
}

func TestDeleteAll(t *testing.T) {
	root := t.TempDir()
	r := New(root, "jpeg", 85, 65)

	if err := os.MkdirAll(filepath.Join(root, SizeOriginal), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := createTempImage(filepath.Join(root, SizeOriginal), "page.jpg", 300, 300); err != nil {
		t.Fatal(err)
	}
	for _, size := range []string{SizeWeb, SizeThumb} {
		if _, err := r.Resize("page.jpg", size); err != nil {
			t.Fatal(err)
		}
	}

	if err := r.DeleteAll("page.jpg"); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	for _, size := range []string{SizeOriginal, SizeWeb, SizeThumb} {
		if _, err := os.Stat(r.Path("page.jpg", size)); !os.IsNotExist(err) {
			t.Errorf("Expected %s rendition to be removed", size)
		}
	}

	// Deleting again must not fail on missing files.
	if err := r.DeleteAll("page.jpg"); err != nil {
		t.Errorf("DeleteAll on missing files failed: %v", err)
	}
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	for i, ext := range []string{".jpg", ".png"} {
		path, err := createTempImage(dir, fmt.Sprintf("img%d%s", i, ext), 120, 80)
		if err != nil {
			t.Fatal(err)
		}
		desc, err := Describe(path)
		if err != nil {
			t.Fatalf("Describe(%s) failed: %v", path, err)
		}
		if desc.Width != 120 || desc.Height != 80 {
			t.Errorf("Describe(%s) = %dx%d, want 120x80", path, desc.Width, desc.Height)
		}
	}

	txt := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Describe(txt); err != ErrNotImage {
		t.Errorf("Describe(txt) error = %v, want ErrNotImage", err)
	}
}
