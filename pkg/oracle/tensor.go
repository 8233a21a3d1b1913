package oracle

import (
	"fmt"
	"image"
)

// Tensorize samples img into dst as a height x width x 3 RGB tensor with
// channel values scaled to [0, 1]. Sampling is nearest neighbour on the
// pixel centres, which is enough for the model's fixed input size.
func Tensorize(img image.Image, width, height int, dst []float32) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid tensor size %dx%d", width, height)
	}
	if len(dst) != width*height*3 {
		return fmt.Errorf("tensor buffer holds %d values, need %d", len(dst), width*height*3)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return fmt.Errorf("image has no pixels")
	}

	i := 0
	for y := 0; y < height; y++ {
		sy := bounds.Min.Y + (2*y+1)*bounds.Dy()/(2*height)
		for x := 0; x < width; x++ {
			sx := bounds.Min.X + (2*x+1)*bounds.Dx()/(2*width)
			r, g, b, _ := img.At(sx, sy).RGBA()
			dst[i] = float32(r) / 0xffff
			dst[i+1] = float32(g) / 0xffff
			dst[i+2] = float32(b) / 0xffff
			i += 3
		}
	}
	return nil
}
