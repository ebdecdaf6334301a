package panel

import (
	"fmt"
	"strings"

	"github.com/smazurov/ffpanel/internal/ffmpeg"
)

// SizeResult is the outcome of the resize dialog. Empty fields clear the fragment.
type SizeResult struct {
	Scale  string // scale=w:h
	Setdar string // setdar=16/9
	Setsar string // setsar=1/1
}

// LacingResult is the outcome of the interlacing dialog.
// Deinterlace wins when both are set.
type LacingResult struct {
	Deinterlace string
	Interlace   string
}

// ApplyCrop stores the crop area given as w:h:x:y. A cancelled dialog changes nothing.
func (c *Controller) ApplyCrop(area string, confirmed bool) error {
	return c.applyFilter("crop", confirmed, func(f *ffmpeg.Filters) {
		f.Crop = ""
		if area = strings.TrimSpace(area); area != "" {
			f.Crop = "crop=" + strings.TrimPrefix(area, "crop=")
		}
	})
}

// ApplySize stores the scale, setdar and setsar fragments.
func (c *Controller) ApplySize(r SizeResult, confirmed bool) error {
	return c.applyFilter("size", confirmed, func(f *ffmpeg.Filters) {
		f.Scale = strings.TrimSpace(r.Scale)
		f.Setdar = strings.TrimSpace(r.Setdar)
		f.Setsar = strings.TrimSpace(r.Setsar)
	})
}

// ApplyRotate stores the rotation filter and its display label.
func (c *Controller) ApplyRotate(filter, label string, confirmed bool) error {
	return c.applyFilter("rotate", confirmed, func(f *ffmpeg.Filters) {
		f.Rotate = strings.TrimSpace(filter)
		f.RotateLabel = label
		if f.Rotate == "" {
			f.RotateLabel = ""
		}
	})
}

// ApplyLacing stores either a deinterlace or an interlace filter.
func (c *Controller) ApplyLacing(r LacingResult, confirmed bool) error {
	return c.applyFilter("lacing", confirmed, func(f *ffmpeg.Filters) {
		f.Deinterlace = strings.TrimSpace(r.Deinterlace)
		f.Interlace = ""
		if f.Deinterlace == "" {
			f.Interlace = strings.TrimSpace(r.Interlace)
		}
	})
}

// ApplyDenoiser stores the denoise filter.
func (c *Controller) ApplyDenoiser(filter string, confirmed bool) error {
	return c.applyFilter("denoiser", confirmed, func(f *ffmpeg.Filters) {
		f.Denoiser = strings.TrimSpace(filter)
	})
}

// ClearFilters removes every filter. ErrNoFilters when none is set.
func (c *Controller) ClearFilters() error {
	if c.opts.Filters.IsZero() {
		return ErrNoFilters
	}
	c.opts.Filters = ffmpeg.Filters{}
	c.opts.VideoFilter = ""
	c.publish("filters-clear")
	return nil
}

func (c *Controller) applyFilter(kind string, confirmed bool, apply func(*ffmpeg.Filters)) error {
	if !c.Enablement().FiltersEnabled {
		return fmt.Errorf("%w: %s filter", ErrControlDisabled, kind)
	}
	if !confirmed {
		return nil
	}
	apply(&c.opts.Filters)
	c.opts.VideoFilter = c.opts.Filters.Arg()
	c.publish("filter-" + kind)
	return nil
}
