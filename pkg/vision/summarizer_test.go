package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVision struct {
	reply  string
	err    error
	prompt string
	images [][]byte
}

func (f *fakeVision) Describe(_ context.Context, prompt string, img []byte) (string, error) {
	f.prompt = prompt
	f.images = append(f.images, img)
	return f.reply, f.err
}

func encodedImage(t *testing.T, w, h int, jpg bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}

	var buf bytes.Buffer
	if jpg {
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	} else {
		require.NoError(t, png.Encode(&buf, img))
	}
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestSummarize(t *testing.T) {
	fake := &fakeVision{reply: "A number line from 0 to 10."}
	s := NewSummarizer(fake, 0)

	desc, err := s.Summarize(context.Background(), encodedImage(t, 40, 20, true))
	require.NoError(t, err)
	assert.Equal(t, "A number line from 0 to 10.", desc)
	assert.Equal(t, Prompt, fake.prompt)

	// re-encoded as PNG, size unchanged
	require.Len(t, fake.images, 1)
	w, h := decodedSize(t, fake.images[0])
	assert.Equal(t, 40, w)
	assert.Equal(t, 20, h)
}

func TestSummarize_Downscales(t *testing.T) {
	fake := &fakeVision{reply: "graph"}
	s := NewSummarizer(fake, 100)

	_, err := s.Summarize(context.Background(), encodedImage(t, 400, 100, false))
	require.NoError(t, err)

	w, h := decodedSize(t, fake.images[0])
	assert.Equal(t, 100, w)
	assert.Equal(t, 25, h)
}

func TestSummarize_Failures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, nil},
		{"undecodable", []byte("definitely not an image"), nil},
		{"model error", nil, errors.New("model llava-cpu not found")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.data
			if tc.err != nil {
				data = encodedImage(t, 8, 8, false)
			}
			s := NewSummarizer(&fakeVision{reply: "unused", err: tc.err}, 0)

			desc, err := s.Summarize(context.Background(), data)
			assert.Error(t, err)
			assert.Equal(t, FallbackSummary, desc)
		})
	}
}

func TestThumbnail(t *testing.T) {
	tests := []struct {
		name         string
		w, h, maxDim int
		wantW, wantH int
	}{
		{"small kept", 300, 200, 1024, 300, 200},
		{"exact kept", 1024, 1024, 1024, 1024, 1024},
		{"landscape", 2048, 1024, 1024, 1024, 512},
		{"portrait", 1000, 3000, 300, 100, 300},
		{"sliver", 5000, 1, 100, 100, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := thumbnail(image.NewRGBA(image.Rect(0, 0, tc.w, tc.h)), tc.maxDim)
			assert.Equal(t, tc.wantW, got.Bounds().Dx())
			assert.Equal(t, tc.wantH, got.Bounds().Dy())
		})
	}
}
