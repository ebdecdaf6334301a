package ffmpeg

import (
	"fmt"

	"github.com/smazurov/ffpanel/internal/catalog"
)

// SummaryRow is one labelled line of the pre-start summary.
type SummaryRow struct {
	Field string
	Value string
}

// Summary lists the settings about to be applied to count queued files.
func Summary(o Options, count int, tr TimeRange) []SummaryRow {
	normalize := o.Normalization.String()
	audio := string(o.Audio)
	if a, ok := catalog.AudioByKey(o.Audio); ok {
		audio = a.Label
	}
	timeSel := "Disabled"
	if !tr.IsZero() {
		timeSel = tr.Args()
	}

	rows := []SummaryRow{
		{"File to Queue", fmt.Sprintf("%d file in pending", count)},
		{"Video Format", o.Container.Label},
	}
	if o.Container.IsCopy() {
		rows = append(rows,
			SummaryRow{"Video Codec", o.VideoCodec},
			SummaryRow{"Video Aspect", o.Aspect},
			SummaryRow{"Video Rate", o.FrameRate},
		)
	} else {
		rows = append(rows,
			SummaryRow{"Pass Encoding", o.Pass.String()},
			SummaryRow{"Video Codec", o.VideoCodec},
			SummaryRow{"Video bit-rate", o.Bitrate},
			SummaryRow{"CRF", o.CRF},
			SummaryRow{"VP8/VP9 Options", joinArgs(o.Deadline, o.CPUUsed, o.RowMT)},
			SummaryRow{"Applied Filters", o.VideoFilter},
			SummaryRow{"Video Aspect", o.Aspect},
			SummaryRow{"Video Rate", o.FrameRate},
			SummaryRow{"Preset h.264/h.265", o.Preset},
			SummaryRow{"Profile h.264/h.265", o.Profile},
			SummaryRow{"Tune h.264/h.265", o.Tune},
		)
	}
	rows = append(rows,
		SummaryRow{"Audio Format", audio},
		SummaryRow{"Audio Codec", o.AudioCodecFlag},
		SummaryRow{"Audio Channels", o.AudioChannel.Description},
		SummaryRow{"Audio Rate", o.AudioRate.Description},
		SummaryRow{"Audio bit-rate", o.AudioBitrate.Description},
		SummaryRow{"Bit per Sample", o.AudioDepth.Description},
		SummaryRow{"Audio Normalization", normalize},
		SummaryRow{"Map", o.Map},
		SummaryRow{"Time selection", timeSel},
	)
	return rows
}
