package detector

import "image"

// Box is a face bounding box in pixel coordinates. Right and Bottom are
// exclusive.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the box width.
func (b Box) Width() int { return b.Right - b.Left }

// Height returns the box height.
func (b Box) Height() int { return b.Bottom - b.Top }

// Valid reports whether the box has non-negative coordinates and a positive
// area.
func (b Box) Valid() bool {
	return b.Left >= 0 && b.Top >= 0 && b.Right > b.Left && b.Bottom > b.Top
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Clamp restricts the box to a width x height frame. The result may be
// invalid if the box lies entirely outside the frame.
func (b Box) Clamp(width, height int) Box {
	r := b.Rect().Intersect(image.Rect(0, 0, width, height))
	return Box{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}

// AtLeast reports whether both box dimensions are at least size pixels.
func (b Box) AtLeast(size int) bool {
	return b.Width() >= size && b.Height() >= size
}

// Face is a single detection.
type Face struct {
	Box Box `json:"box"`
	// TrackingID identifies the same physical face across consecutive
	// frames. It is only meaningful when Tracked is true.
	TrackingID int  `json:"tracking_id,omitempty"`
	Tracked    bool `json:"tracked"`
}

// TrackedFace returns a face carrying a tracking id.
func TrackedFace(box Box, id int) Face {
	return Face{Box: box, TrackingID: id, Tracked: true}
}
