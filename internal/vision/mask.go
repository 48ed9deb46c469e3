// Package vision turns a camera frame into the binary foreground mask the
// occupancy classifier counts pixels in.  The default pipeline is written
// in pure Go so the service and its tests run without OpenCV; building
// with the gocv tag adds an OpenCV-backed Binarizer with the same
// parameters.
//
// The filters operate on images rooted at (0,0), which is what Grayscale
// produces.
package vision

import (
	"image"
	"math"
)

// Params configures the mask pipeline.  Kernel sizes must be odd.
type Params struct {
	BlurKernel       int     // gaussian pre-blur kernel (3)
	BlurSigma        float64 // gaussian pre-blur sigma (1)
	BlockSize        int     // adaptive threshold neighbourhood (25)
	Offset           int     // constant subtracted from the local mean (16)
	MedianKernel     int     // denoise window (5)
	DilateKernel     int     // dilation structuring element (3)
	DilateIterations int     // dilation passes (1)
}

// DefaultParams returns the parameters the occupancy threshold was tuned
// against.
func DefaultParams() Params {
	return Params{
		BlurKernel:       3,
		BlurSigma:        1,
		BlockSize:        25,
		Offset:           16,
		MedianKernel:     5,
		DilateKernel:     3,
		DilateIterations: 1,
	}
}

// Binarizer converts a frame into a foreground mask where non-zero pixels
// are foreground.  The returned mask has the same bounds origin as (0,0)
// and the frame's width and height.
type Binarizer interface {
	Binarize(img image.Image) (*image.Gray, error)
}

// Pipeline is the pure Go Binarizer: grayscale, gaussian blur, inverted
// gaussian adaptive threshold, median denoise and dilation.
type Pipeline struct {
	Params Params
}

// NewPipeline returns a Pipeline with the given parameters.
func NewPipeline(p Params) *Pipeline { return &Pipeline{Params: p} }

// newBinarizer is replaced by the OpenCV build.
var newBinarizer = func(p Params) Binarizer { return NewPipeline(p) }

// NewBinarizer returns the best Binarizer compiled into the binary.
func NewBinarizer(p Params) Binarizer { return newBinarizer(p) }

// Binarize implements Binarizer.
func (p *Pipeline) Binarize(img image.Image) (*image.Gray, error) {
	gray := Grayscale(img)
	blurred := GaussianBlur(gray, p.Params.BlurKernel, p.Params.BlurSigma)
	thresh := AdaptiveThresholdInv(blurred, p.Params.BlockSize, p.Params.Offset)
	denoised := MedianBinary(thresh, p.Params.MedianKernel)
	out := denoised
	for i := 0; i < p.Params.DilateIterations; i++ {
		out = Dilate(out, p.Params.DilateKernel)
	}
	return out, nil
}

// Grayscale converts img to an 8-bit luma image using BT.601 weights
// (0.299 R + 0.587 G + 0.114 B).  The result is rebased to (0,0).
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			src := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride+(b.Min.X-rgba.Rect.Min.X)*4:]
			row := dst.Pix[y*dst.Stride : y*dst.Stride+w]
			for x := range row {
				r, g, bl := uint32(src[x*4]), uint32(src[x*4+1]), uint32(src[x*4+2])
				row[x] = uint8((r*4899 + g*9617 + bl*1868 + 8192) >> 14)
			}
		}
		return dst
	}
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], g.Pix[(y+b.Min.Y-g.Rect.Min.Y)*g.Stride+(b.Min.X-g.Rect.Min.X):])
		}
		return dst
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			r8, g8, b8 := r>>8, g>>8, bl>>8
			dst.Pix[y*dst.Stride+x] = uint8((r8*4899 + g8*9617 + b8*1868 + 8192) >> 14)
		}
	}
	return dst
}

// gaussianKernel returns a normalized 1-D gaussian kernel.  A non-positive
// sigma is derived from the size the same way OpenCV does.
func gaussianKernel(size int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}
	k := make([]float64, size)
	half := size / 2
	sum := 0.0
	for i := range k {
		x := float64(i - half)
		k[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// reflect101 maps an out-of-range index into [0,n) mirroring around the
// edge pixel without repeating it (gfedcb|abcdefgh|gfedcba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func replicate(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// separableFilter convolves src with k horizontally then vertically and
// returns unrounded results.
func separableFilter(src *image.Gray, k []float64, border func(int, int) int) []float64 {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	half := len(k) / 2
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			acc := 0.0
			for i, kv := range k {
				acc += kv * float64(row[border(x+i-half, w)])
			}
			tmp[y*w+x] = acc
		}
	}
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := 0.0
			for i, kv := range k {
				acc += kv * tmp[border(y+i-half, h)*w+x]
			}
			out[y*w+x] = acc
		}
	}
	return out
}

func toGray(vals []float64, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := math.Round(vals[y*w+x])
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			dst.Pix[y*dst.Stride+x] = uint8(v)
		}
	}
	return dst
}

// GaussianBlur smooths src with a size×size gaussian kernel.
func GaussianBlur(src *image.Gray, size int, sigma float64) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if size <= 1 {
		return cloneGray(src)
	}
	return toGray(separableFilter(src, gaussianKernel(size, sigma), reflect101), w, h)
}

// AdaptiveThresholdInv marks a pixel as foreground (255) when it is at
// least offset levels darker than the gaussian-weighted mean of its
// blockSize×blockSize neighbourhood, and background (0) otherwise.
func AdaptiveThresholdInv(src *image.Gray, blockSize, offset int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	mean := toGray(separableFilter(src, gaussianKernel(blockSize, 0), replicate), w, h)
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := int(src.Pix[y*src.Stride+x]) - int(mean.Pix[y*mean.Stride+x])
			if d <= -offset {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// MedianBinary applies a size×size median filter to a binary mask.  For
// inputs holding only 0 and 255 the median equals the majority value, so
// the window count comes from an integral image instead of a sort.
// Borders replicate the edge pixels.
func MedianBinary(src *image.Gray, size int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if size <= 1 {
		return cloneGray(src)
	}
	half := size / 2
	pw, ph := w+2*half, h+2*half
	// integral has one extra leading row and column of zeros.
	integral := make([]int32, (pw+1)*(ph+1))
	for y := 0; y < ph; y++ {
		sy := replicate(y-half, h)
		var rowSum int32
		for x := 0; x < pw; x++ {
			sx := replicate(x-half, w)
			if src.Pix[sy*src.Stride+sx] != 0 {
				rowSum++
			}
			integral[(y+1)*(pw+1)+x+1] = integral[y*(pw+1)+x+1] + rowSum
		}
	}
	majority := int32(size*size/2 + 1)
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0, x1, y1 := x, y, x+size, y+size
			n := integral[y1*(pw+1)+x1] - integral[y0*(pw+1)+x1] - integral[y1*(pw+1)+x0] + integral[y0*(pw+1)+x0]
			if n >= majority {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// Dilate replaces each pixel with the maximum of its size×size
// neighbourhood.  Pixels outside the image do not contribute.
func Dilate(src *image.Gray, size int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if size <= 1 {
		return cloneGray(src)
	}
	half := size / 2
	tmp := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			var m uint8
			for i := x - half; i <= x+half; i++ {
				if i >= 0 && i < w && row[i] > m {
					m = row[i]
				}
			}
			tmp[y*w+x] = m
		}
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var m uint8
			for j := y - half; j <= y+half; j++ {
				if j >= 0 && j < h && tmp[j*w+x] > m {
					m = tmp[j*w+x]
				}
			}
			dst.Pix[y*dst.Stride+x] = m
		}
	}
	return dst
}

// CountNonZero counts foreground pixels of mask inside r.  The rectangle
// is clipped to the mask bounds.
func CountNonZero(mask *image.Gray, r image.Rectangle) int {
	r = r.Intersect(mask.Rect)
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := (y-mask.Rect.Min.Y)*mask.Stride - mask.Rect.Min.X
		for _, v := range mask.Pix[off+r.Min.X : off+r.Max.X] {
			if v != 0 {
				n++
			}
		}
	}
	return n
}

func cloneGray(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[y*src.Stride:])
	}
	return dst
}
