package catalog

// Family groups containers by the encoder rules that apply to them.
type Family int

// Codec families
const (
	FamilyOther Family = iota
	FamilyX264
	FamilyX265
	FamilyVPX
	FamilyAV1
	FamilyCopy
)

func (f Family) String() string {
	switch f {
	case FamilyX264:
		return "x264"
	case FamilyX265:
		return "x265"
	case FamilyVPX:
		return "vpx"
	case FamilyAV1:
		return "av1"
	case FamilyCopy:
		return "copy"
	default:
		return "other"
	}
}

// Container labels referenced outside the catalog.
const (
	LabelCopyVideo      = "Copy video codec"
	LabelDefault        = "MKV (h.264/AVC)"
	PixelFormatYUV420P  = "-pix_fmt yuv420p"
	videoCodecCopy      = "-c:v copy"
	videoCodecX264      = "-c:v libx264"
	videoCodecX265      = "-c:v libx265"
	videoCodecAV1Strict = "-c:v libaom-av1 -strict -2"
)

// Container is an output choice pairing a video encoder flag with a file extension.
type Container struct {
	Label      string `json:"label"`
	VideoCodec string `json:"video_codec"`
	Extension  string `json:"extension"`
	Family     Family `json:"family"`
}

// Containers lists every selectable container in menu order.
var Containers = []Container{
	{Label: "AVI (XVID mpeg4)", VideoCodec: "-c:v mpeg4 -vtag xvid", Extension: "avi", Family: FamilyOther},
	{Label: "AVI (FFmpeg mpeg4)", VideoCodec: "-c:v mpeg4", Extension: "avi", Family: FamilyOther},
	{Label: "AVI (h.264/AVC)", VideoCodec: videoCodecX264, Extension: "avi", Family: FamilyX264},
	{Label: "AVI (h.265/HEVC)", VideoCodec: videoCodecX265, Extension: "avi", Family: FamilyX265},
	{Label: "MP4 (mpeg4)", VideoCodec: "-c:v mpeg4", Extension: "mp4", Family: FamilyOther},
	{Label: "MP4 (h.264/AVC)", VideoCodec: videoCodecX264, Extension: "mp4", Family: FamilyX264},
	{Label: "MP4 (h.265/HEVC)", VideoCodec: videoCodecX265, Extension: "mp4", Family: FamilyX265},
	{Label: "M4V (h.264/AVC)", VideoCodec: videoCodecX264, Extension: "m4v", Family: FamilyX264},
	{Label: "M4V (h.265/HEVC)", VideoCodec: videoCodecX265, Extension: "m4v", Family: FamilyX265},
	{Label: "MKV (h.264/AVC)", VideoCodec: videoCodecX264, Extension: "mkv", Family: FamilyX264},
	{Label: "MKV (h.265/HEVC)", VideoCodec: videoCodecX265, Extension: "mkv", Family: FamilyX265},
	{Label: "OGG theora", VideoCodec: "-c:v libtheora", Extension: "ogg", Family: FamilyOther},
	{Label: "WebM vp8 (HTML5)", VideoCodec: "-c:v libvpx", Extension: "webm", Family: FamilyVPX},
	{Label: "WebM vp9 (HTML5)", VideoCodec: "-c:v libvpx-vp9", Extension: "webm", Family: FamilyVPX},
	{Label: "FLV (h.264/AVC)", VideoCodec: videoCodecX264, Extension: "flv", Family: FamilyX264},
	{Label: LabelCopyVideo, VideoCodec: videoCodecCopy, Extension: "", Family: FamilyCopy},
	{Label: "MKV (AV1/libaom)", VideoCodec: videoCodecAV1Strict, Extension: "mkv", Family: FamilyAV1},
}

// muxers maps an extension to the ffmpeg -f muxer name used for measurement passes.
var muxers = map[string]string{
	"mkv":  "matroska",
	"avi":  "avi",
	"flv":  "flv",
	"mp4":  "mp4",
	"m4v":  "null",
	"ogg":  "ogg",
	"webm": "webm",
}

// ContainerByLabel looks up a container by its menu label.
func ContainerByLabel(label string) (Container, bool) {
	for _, c := range Containers {
		if c.Label == label {
			return c, true
		}
	}
	return Container{}, false
}

// DefaultContainer returns the container selected on startup.
func DefaultContainer() Container {
	c, _ := ContainerByLabel(LabelDefault)
	return c
}

// IsCopy reports whether the container copies the source video stream.
func (c Container) IsCopy() bool {
	return c.Family == FamilyCopy
}

// IsZero reports whether no container has been selected.
func (c Container) IsZero() bool {
	return c.Label == ""
}

// Muxer returns the muxer name for the container extension, or "null" when unknown.
func (c Container) Muxer() string {
	if m, ok := muxers[c.Extension]; ok {
		return m
	}
	return "null"
}

// PixelFormat returns the pixel format flag the encoder family requires.
func (c Container) PixelFormat() string {
	switch c.Family {
	case FamilyX264, FamilyX265, FamilyVPX, FamilyAV1:
		return PixelFormatYUV420P
	default:
		return ""
	}
}

// PassFlags returns the first and second pass flags for two-pass encoding.
func (c Container) PassFlags() (string, string) {
	if c.Family == FamilyX265 {
		return "-x265-params pass=1", "-x265-params pass=2"
	}
	return "-pass 1", "-pass 2"
}

// CRFRange returns the slider maximum and default CRF for the family.
func (c Container) CRFRange() (maxCRF, def int) {
	switch c.Family {
	case FamilyX265:
		return 51, 28
	case FamilyVPX, FamilyAV1:
		return 63, 31
	default:
		return 51, 23
	}
}
