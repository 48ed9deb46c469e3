package model

import "image"

// Region describes one monitored parking space in the camera frame.
// Regions are created once at startup from the layout artifact and never
// change afterwards.  The ID is the 1-based position of the region in
// the catalog, so catalog order defines identity.
//
// Fields:
//  ID     – 1-based, stable region identifier.
//  X, Y   – top-left pixel coordinate in the frame.
//  Width  – width of the rectangle in pixels (shared by all regions).
//  Height – height of the rectangle in pixels (shared by all regions).
type Region struct {
	ID     int
	X      int
	Y      int
	Width  int
	Height int
}

// Rect returns the region as an image rectangle in frame coordinates.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Coordinates is the JSON shape used to describe a region's rectangle.
type Coordinates struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}
