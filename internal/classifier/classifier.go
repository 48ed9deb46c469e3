// Package classifier decides, for every region of a frame, whether the
// parking space is available, occupied or reserved.
package classifier

import (
	"fmt"
	"image"

	"github.com/iliyamo/smartpark/internal/model"
	"github.com/iliyamo/smartpark/internal/vision"
)

// DefaultThreshold is the foreground pixel count below which an
// unreserved space is considered available.  Tuned for 107x48 regions.
const DefaultThreshold = 900

// Classify computes a status for every region from a precomputed
// foreground mask.  Precedence per region: reserved (present in reserved)
// wins, then raw count below threshold is available, otherwise occupied.
// The function has no side effects.
func Classify(mask *image.Gray, regions []model.Region, reserved map[int]model.Reservation, threshold int) ([]model.RegionStatus, model.AggregateStatus) {
	spaces := make([]model.RegionStatus, 0, len(regions))
	available, reservedCount := 0, 0
	for _, r := range regions {
		count := vision.CountNonZero(mask, r.Rect())
		st := model.RegionStatus{
			ID:          r.ID,
			Position:    [2]int{r.X, r.Y},
			Count:       count,
			Coordinates: model.Coordinates{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height},
		}
		if res, ok := reserved[r.ID]; ok {
			res := res
			st.Status = model.StateReserved
			st.IsReserved = true
			st.Reservation = &res
			reservedCount++
		} else if count < threshold {
			st.Status = model.StateAvailable
			available++
		} else {
			st.Status = model.StateOccupied
		}
		spaces = append(spaces, st)
	}
	return spaces, model.NewAggregateStatus(len(regions), available, reservedCount)
}

// Classifier binds a mask pipeline to a fixed region list.
type Classifier struct {
	binarizer vision.Binarizer
	regions   []model.Region
	threshold int
}

// New returns a Classifier.  A non-positive threshold falls back to
// DefaultThreshold.
func New(b vision.Binarizer, regions []model.Region, threshold int) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{binarizer: b, regions: regions, threshold: threshold}
}

// ClassifyFrame builds the foreground mask once for img and classifies
// every region against it.
func (c *Classifier) ClassifyFrame(img image.Image, reserved map[int]model.Reservation) ([]model.RegionStatus, model.AggregateStatus, error) {
	mask, err := c.binarizer.Binarize(img)
	if err != nil {
		return nil, model.AggregateStatus{}, fmt.Errorf("binarize frame: %w", err)
	}
	spaces, agg := Classify(mask, c.regions, reserved, c.threshold)
	return spaces, agg, nil
}

// Regions returns the regions the classifier was built with.
func (c *Classifier) Regions() []model.Region { return c.regions }
