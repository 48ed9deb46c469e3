//go:build gocv

package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// OpenCVPipeline is the OpenCV-backed Binarizer.  It runs the same stages
// as Pipeline through gocv and is selected when the service is built with
// the gocv tag.
type OpenCVPipeline struct {
	Params Params
}

func init() {
	newBinarizer = func(p Params) Binarizer { return NewOpenCVPipeline(p) }
}

// NewOpenCVPipeline returns an OpenCVPipeline with the given parameters.
func NewOpenCVPipeline(p Params) *OpenCVPipeline { return &OpenCVPipeline{Params: p} }

// Binarize implements Binarizer.
func (p *OpenCVPipeline) Binarize(img image.Image) (*image.Gray, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("image to mat: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorRGBToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := p.Params.BlurKernel
	gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), p.Params.BlurSigma, p.Params.BlurSigma, gocv.BorderDefault)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(blurred, &thresh, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv,
		p.Params.BlockSize, float32(p.Params.Offset))

	median := gocv.NewMat()
	defer median.Close()
	gocv.MedianBlur(thresh, &median, p.Params.MedianKernel)

	kernel := gocv.Ones(p.Params.DilateKernel, p.Params.DilateKernel, gocv.MatTypeCV8U)
	defer kernel.Close()
	out := median.Clone()
	defer out.Close()
	for i := 0; i < p.Params.DilateIterations; i++ {
		next := gocv.NewMat()
		gocv.Dilate(out, &next, kernel)
		out.Close()
		out = next
	}

	res, err := out.ToImage()
	if err != nil {
		return nil, fmt.Errorf("mat to image: %w", err)
	}
	if g, ok := res.(*image.Gray); ok {
		return g, nil
	}
	return Grayscale(res), nil
}
