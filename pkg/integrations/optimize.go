package integrations

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sort"

	"golang.org/x/image/draw"
)

// DeviceProfile describes a reading screen pages are fitted to.
type DeviceProfile struct {
	Name      string
	Width     int
	Height    int
	Grayscale bool // E-ink screens
	Quality   int  // JPEG quality
}

var DeviceProfiles = map[string]DeviceProfile{
	"kindle-paperwhite": {Name: "Kindle Paperwhite", Width: 1236, Height: 1648, Grayscale: true, Quality: 85},
	"kindle-oasis":      {Name: "Kindle Oasis", Width: 1264, Height: 1680, Grayscale: true, Quality: 85},
	"kobo-clara":        {Name: "Kobo Clara", Width: 1072, Height: 1448, Grayscale: true, Quality: 85},
	"tablet":            {Name: "Tablet", Width: 1600, Height: 2560, Quality: 90},
	"phone":             {Name: "Phone", Width: 1080, Height: 2340, Quality: 90},
}

func GetDeviceProfile(id string) (DeviceProfile, bool) {
	p, ok := DeviceProfiles[id]
	return p, ok
}

// ListDevices returns "id: name" lines sorted by id.
func ListDevices() []string {
	out := make([]string, 0, len(DeviceProfiles))
	for id, p := range DeviceProfiles {
		out = append(out, id+": "+p.Name)
	}
	sort.Strings(out)
	return out
}

// PageOptimizer shrinks page images to fit a device and re-encodes them as JPEG.
type PageOptimizer struct {
	profile DeviceProfile
}

func NewPageOptimizer(profile DeviceProfile) *PageOptimizer {
	if profile.Quality <= 0 || profile.Quality > 100 {
		profile.Quality = 85
	}
	return &PageOptimizer{profile: profile}
}

func (o *PageOptimizer) Optimize(content []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	b := img.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), o.profile.Width, o.profile.Height)
	var out image.Image = img
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		out = dst
	}
	if o.profile.Grayscale {
		gray := image.NewGray(out.Bounds())
		draw.Draw(gray, gray.Bounds(), out, out.Bounds().Min, draw.Src)
		out = gray
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: o.profile.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales width x height down to fit maxW x maxH, keeping the
// aspect ratio. Smaller images and zero limits are left alone.
func fitWithin(width, height, maxW, maxH int) (int, int) {
	if maxW <= 0 || maxH <= 0 || (width <= maxW && height <= maxH) {
		return width, height
	}
	scale := float64(maxW) / float64(width)
	if hs := float64(maxH) / float64(height); hs < scale {
		scale = hs
	}
	w, h := int(float64(width)*scale), int(float64(height)*scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
