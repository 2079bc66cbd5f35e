package keypoint

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cvatImage renders an <image> element whose point k is (k, k).
func cvatImage(name string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  <image id=\"0\" name=\"%s\" width=\"640\" height=\"480\">\n", name)
	for k := 0; k < n; k++ {
		fmt.Fprintf(&b, "    <points label=\"p%d\" occluded=\"0\" points=\"%d,%d\"/>\n", k, k, k)
	}
	b.WriteString("  </image>\n")
	return b.String()
}

func cvatDoc(images ...string) string {
	return "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<annotations>\n  <version>1.1</version>\n" +
		strings.Join(images, "") + "</annotations>\n"
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "annotations.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConvert(t *testing.T) {
	t.Run("Should convert the diagonal image", func(t *testing.T) {
		got, err := Convert(strings.NewReader(cvatDoc(cvatImage("img001", 18))))
		require.NoError(t, err)

		want := Annotations{"img001": {
			{0, 0, 1}, {14, 14, 1}, {15, 15, 1}, {16, 16, 1}, {17, 17, 1},
			{5, 5, 1}, {2, 2, 1}, {6, 6, 1}, {3, 3, 1}, {7, 7, 1}, {4, 4, 1},
			{11, 11, 1}, {8, 8, 1}, {12, 12, 1}, {9, 9, 1}, {13, 13, 1}, {10, 10, 1},
		}}
		assert.Equal(t, want, got)
	})

	t.Run("Should produce one entry per image", func(t *testing.T) {
		doc := cvatDoc(cvatImage("a.jpg", 18), cvatImage("b.jpg", 18), cvatImage("c.jpg", 20))
		got, err := Convert(strings.NewReader(doc))
		require.NoError(t, err)
		assert.Len(t, got, 3)
		for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
			assert.Len(t, got[name], TargetLandmarks, name)
		}
	})

	t.Run("Should fail the whole document when one image is short", func(t *testing.T) {
		doc := cvatDoc(cvatImage("good", 18), cvatImage("short", 10))
		got, err := Convert(strings.NewReader(doc))
		require.ErrorIs(t, err, ErrIndexOutOfRange)
		assert.Nil(t, got)
		assert.Contains(t, err.Error(), `"short"`)
	})

	t.Run("Should fail an image with no points", func(t *testing.T) {
		_, err := Convert(strings.NewReader(cvatDoc(cvatImage("empty", 0))))
		require.ErrorIs(t, err, ErrIndexOutOfRange)
	})

	t.Run("Should return an empty mapping for a document without images", func(t *testing.T) {
		got, err := Convert(strings.NewReader(cvatDoc()))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Should find points nested below the image", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("<annotations><meta><task/></meta><image name=\"deep\"><skeleton label=\"person\">")
		for k := 0; k < 18; k++ {
			fmt.Fprintf(&b, "<points points=\"%d.5,%d.25\"></points>", k, k)
		}
		b.WriteString("</skeleton></image></annotations>")

		got, err := Convert(strings.NewReader(b.String()))
		require.NoError(t, err)
		require.Len(t, got["deep"], TargetLandmarks)
		assert.Equal(t, Keypoint{14.5, 14.25, 1}, got["deep"][1])
	})

	t.Run("Should keep the last image for a repeated name", func(t *testing.T) {
		second := strings.Replace(cvatImage("dup", 18), `points="0,0"`, `points="99,98"`, 1)
		got, err := Convert(strings.NewReader(cvatDoc(cvatImage("dup", 18), second)))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, Keypoint{99, 98, 1}, got["dup"][0])
	})

	t.Run("Should report an unparsable coordinate", func(t *testing.T) {
		doc := strings.Replace(cvatDoc(cvatImage("bad", 18)), `points="3,3"`, `points="3,abc"`, 1)
		_, err := Convert(strings.NewReader(doc))
		require.ErrorIs(t, err, ErrValueParse)
	})

	t.Run("Should report a point with three components", func(t *testing.T) {
		doc := strings.Replace(cvatDoc(cvatImage("bad", 18)), `points="3,3"`, `points="3,3,3"`, 1)
		_, err := Convert(strings.NewReader(doc))
		require.ErrorIs(t, err, ErrValueParse)
	})

	t.Run("Should report a points element without coordinates", func(t *testing.T) {
		doc := strings.Replace(cvatDoc(cvatImage("bad", 18)), `points="3,3"`, `pts="3,3"`, 1)
		_, err := Convert(strings.NewReader(doc))
		require.ErrorIs(t, err, ErrValueParse)
	})

	t.Run("Should report malformed XML before a short image", func(t *testing.T) {
		doc := cvatDoc(cvatImage("short", 3)) + "<unclosed>"
		_, err := Convert(strings.NewReader(doc))
		require.ErrorIs(t, err, ErrMalformedDocument)
	})

	t.Run("Should report an empty document as malformed", func(t *testing.T) {
		_, err := Convert(strings.NewReader(""))
		require.ErrorIs(t, err, ErrMalformedDocument)
	})

	t.Run("Should report an image without a name as malformed", func(t *testing.T) {
		_, err := Convert(strings.NewReader(`<annotations><image id="1"></image></annotations>`))
		require.ErrorIs(t, err, ErrMalformedDocument)
	})

	t.Run("Should decode a latin-1 document", func(t *testing.T) {
		doc := strings.Replace(cvatDoc(cvatImage("caf\xe9.jpg", 18)), `encoding="utf-8"`, `encoding="ISO-8859-1"`, 1)
		got, err := Convert(strings.NewReader(doc))
		require.NoError(t, err)
		assert.Contains(t, got, "café.jpg")
	})
}

func TestConvertFile(t *testing.T) {
	t.Run("Should be idempotent", func(t *testing.T) {
		path := writeDoc(t, cvatDoc(cvatImage("img001", 18), cvatImage("img002", 19)))

		first, err := ConvertFile(path)
		require.NoError(t, err)
		second, err := ConvertFile(path)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("Should surface a missing file as not-exist", func(t *testing.T) {
		_, err := ConvertFile(filepath.Join(t.TempDir(), "missing.xml"))
		require.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("Should name the file in conversion errors", func(t *testing.T) {
		path := writeDoc(t, "<annotations>")
		_, err := ConvertFile(path)
		require.ErrorIs(t, err, ErrMalformedDocument)
		assert.Contains(t, err.Error(), path)
	})
}

func TestConvertFileFs(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "data/train.xml", []byte(cvatDoc(cvatImage("mem.jpg", 18))), 0644))

	got, err := ConvertFileFs(mem, "data/train.xml")
	require.NoError(t, err)
	assert.Equal(t, Keypoint{14, 14, 1}, got["mem.jpg"][1])

	_, err = ConvertFileFs(mem, "data/val.xml")
	require.ErrorIs(t, err, fs.ErrNotExist)

	id, err := FingerprintFs(mem, "data/train.xml")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(mem, "data/train.xml", []byte(cvatDoc()), 0644))
	changed, err := FingerprintFs(mem, "data/train.xml")
	require.NoError(t, err)
	assert.NotEqual(t, id, changed)
}

func TestDecodeImages(t *testing.T) {
	images, err := DecodeImages(strings.NewReader(cvatDoc(cvatImage("one", 2), cvatImage("two", 1))))
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, Image{Name: "one", Points: []Point{{0, 0}, {1, 1}}}, images[0])
	assert.Equal(t, "two", images[1].Name)
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		raw     string
		want    Point
		wantErr bool
	}{
		{"1,2", Point{1, 2}, false},
		{"120.55,33.1", Point{120.55, 33.1}, false},
		{" 4 , 5 ", Point{4, 5}, false},
		{"-1e2,0", Point{-100, 0}, false},
		{"1", Point{}, true},
		{"", Point{}, true},
		{"1;2", Point{}, true},
		{"x,2", Point{}, true},
		{"1,2,3", Point{}, true},
		{"NaN,1", Point{}, true},
		{"1,+Inf", Point{}, true},
		{"infinity,0", Point{}, true},
		{"0x1p-2,3", Point{}, true},
		{"1,-0X10", Point{}, true},
		{"1e400,0", Point{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePoint(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValueParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFingerprint(t *testing.T) {
	path := writeDoc(t, cvatDoc())

	id, err := Fingerprint(path)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	again, err := Fingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	require.NoError(t, os.WriteFile(path, []byte(cvatDoc(cvatImage("x", 18))), 0644))
	changed, err := Fingerprint(path)
	require.NoError(t, err)
	assert.NotEqual(t, id, changed)

	_, err = Fingerprint(filepath.Join(t.TempDir(), "nope.xml"))
	assert.Error(t, err)
}
