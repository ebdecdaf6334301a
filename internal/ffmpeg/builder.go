package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/smazurov/ffpanel/internal/catalog"
)

// ErrNoContainer is returned when the options have no container selected.
var ErrNoContainer = errors.New("no container selected")

// Mode tells the dispatcher how to run the built passes.
type Mode string

// Dispatch modes
const (
	ModeOnePass    Mode = "onepass"
	ModeTwoPass    Mode = "twopass"
	ModeTwoPassEBU Mode = "two pass EBU"
)

// Commands is the builder output: the argument string of each pass plus
// what the dispatcher needs to run them.
type Commands struct {
	Mode           Mode
	Passes         []string
	Extension      string
	LoudnessFilter string
}

// BuildCommands assembles the pass arguments for the given options.
// It performs no I/O and returns identical output for identical input.
func BuildCommands(o Options) (Commands, error) {
	if o.Container.IsZero() || o.VideoCodec == "" {
		return Commands{}, ErrNoContainer
	}

	switch {
	case o.Normalization == catalog.NormalizeEBU:
		return buildEBU(o), nil
	case o.Container.IsCopy():
		return Commands{
			Mode:      ModeOnePass,
			Passes:    []string{buildCopy(o)},
			Extension: o.Extension,
		}, nil
	case o.Pass == PassDouble:
		pass1, pass2 := buildTwoPass(o)
		return Commands{
			Mode:      ModeTwoPass,
			Passes:    []string{pass1, pass2},
			Extension: o.Extension,
		}, nil
	default:
		return Commands{
			Mode:      ModeOnePass,
			Passes:    []string{buildSinglePass(o)},
			Extension: o.Extension,
		}, nil
	}
}

func buildCopy(o Options) string {
	args := []string{o.VideoCodec, o.Aspect, o.FrameRate}
	args = append(args, o.audioArgs()...)
	args = append(args, o.Map)
	return joinArgs(args...)
}

func buildSinglePass(o Options) string {
	args := []string{o.VideoCodec}
	args = append(args, o.qualityArgs()...)
	args = append(args, o.pictureArgs()...)
	args = append(args, o.audioArgs()...)
	args = append(args, o.Map)
	return joinArgs(args...)
}

func buildTwoPass(o Options) (string, string) {
	opt1, opt2 := o.Container.PassFlags()

	first := []string{"-an", o.VideoCodec}
	first = append(first, o.qualityArgs()...)
	first = append(first, o.pictureArgs()...)
	first = append(first, opt1, "-f rawvideo")

	second := []string{o.VideoCodec}
	second = append(second, o.qualityArgs()...)
	second = append(second, o.pictureArgs()...)
	second = append(second, o.audioArgs()...)
	second = append(second, o.Map, opt2)

	return joinArgs(first...), joinArgs(second...)
}

func buildEBU(o Options) Commands {
	loud := o.EBU.Filter()
	opt1, opt2 := o.Container.PassFlags()

	var first, second []string
	if o.Container.IsCopy() {
		// Measurement runs on audio only; the video stream is dropped.
		first = []string{"-af " + loud, "-vn -sn", opt1, o.Aspect, o.FrameRate, o.Map, "-f null"}
		second = []string{o.VideoCodec, opt2, o.Aspect, o.FrameRate}
		second = append(second, o.audioArgs()...)
		second = append(second, o.Map)
	} else {
		first = []string{"-af " + loud, o.VideoCodec, opt1}
		first = append(first, o.qualityArgs()...)
		first = append(first, o.pictureArgs()...)
		first = append(first, o.Map, "-f "+o.Container.Muxer())

		second = []string{o.VideoCodec, opt2}
		second = append(second, o.qualityArgs()...)
		second = append(second, o.pictureArgs()...)
		second = append(second, o.audioArgs()...)
		second = append(second, o.Map)
	}

	return Commands{
		Mode:           ModeTwoPassEBU,
		Passes:         []string{joinArgs(first...), joinArgs(second...)},
		Extension:      o.Extension,
		LoudnessFilter: loud,
	}
}

// Filter renders the first-pass loudnorm filter for the targets.
func (l LoudnessParams) Filter() string {
	return fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s:offset=0.0:print_format=summary",
		formatLevel(l.Integrated), formatLevel(l.TruePeak), formatLevel(l.LRA))
}

// formatLevel prints a level with one decimal, matching the spinner precision.
func formatLevel(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// joinArgs joins fragments with single spaces, dropping empty ones.
func joinArgs(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
