package ffmpeg

import "strings"

// Chain joins the confirmed filter fragments in their fixed order:
// crop, scale, setdar, setsar, rotate, deinterlace or interlace, denoise.
func (f Filters) Chain() string {
	lacing := f.Deinterlace
	if lacing == "" {
		lacing = f.Interlace
	}

	var videoFilterChain []string
	for _, frag := range []string{f.Crop, f.Scale, f.Setdar, f.Setsar, f.Rotate, lacing, f.Denoiser} {
		if frag = strings.TrimSpace(frag); frag != "" {
			videoFilterChain = append(videoFilterChain, frag)
		}
	}
	return strings.Join(videoFilterChain, ",")
}

// Arg returns the -vf flag for the chain, or "" when no filter is set.
func (f Filters) Arg() string {
	chain := f.Chain()
	if chain == "" {
		return ""
	}
	return "-vf " + chain
}

// IsZero reports whether no filter is configured.
func (f Filters) IsZero() bool {
	return f.Chain() == ""
}
