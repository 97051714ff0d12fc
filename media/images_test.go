package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileHeader builds a multipart.FileHeader the way a parsed request would carry it.
func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(10<<20))
	return req.MultipartForm.File["image"][0]
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestNormalizeShrinksLargeImages(t *testing.T) {
	fh := fileHeader(t, "big.png", pngBytes(t, 2048, 1024))

	buf, err := Normalize(fh)
	require.NoError(t, err)

	img, err := jpeg.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 1024, img.Bounds().Dx())
	assert.Equal(t, 512, img.Bounds().Dy())
}

func TestNormalizeKeepsSmallImages(t *testing.T) {
	fh := fileHeader(t, "small.png", pngBytes(t, 64, 32))

	buf, err := Normalize(fh)
	require.NoError(t, err)

	img, err := jpeg.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestNormalizeRejects(t *testing.T) {
	_, err := Normalize(fileHeader(t, "doc.pdf", []byte("%PDF")))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Normalize(fileHeader(t, "fake.png", []byte("not an image")))
	assert.ErrorIs(t, err, ErrInvalidImage)
}
