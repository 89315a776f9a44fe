package knockout

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var gifMagic = [][]byte{[]byte("GIF87a"), []byte("GIF89a")}

// AutoDecoder decodes GIFs frame by frame and any other registered still
// format (PNG, JPEG, BMP, WebP) as a single-frame sequence.
type AutoDecoder struct{}

func (AutoDecoder) DecodeFrames(r io.Reader) (*Sequence, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	for _, m := range gifMagic {
		if bytes.HasPrefix(data, m) {
			return decodeGIF(data)
		}
	}

	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := checkCanvas(config.Width, config.Height, 1); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	return &Sequence{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Frames: []image.Image{img},
		Delays: []time.Duration{0},
	}, nil
}
