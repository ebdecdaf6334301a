package panel

import (
	"fmt"

	"github.com/smazurov/ffpanel/internal/catalog"
	"github.com/smazurov/ffpanel/internal/ffmpeg"
)

const pcmDefault = "-c:a pcm_s16le"

// AudioParams is the outcome of the audio parameter dialog. Each value pairs
// a description with its flag; an empty flag means the encoder default.
type AudioParams struct {
	Channel ffmpeg.Param
	Rate    ffmpeg.Param
	Bitrate ffmpeg.Param
	Depth   ffmpeg.Param // for wav/aiff the flag is the pcm codec, e.g. -c:a pcm_s24le
}

// SelectAudio picks the audio codec. The codec must be offered by the
// container. Parameters are cleared on every change; copy and silent
// switch normalization off.
func (c *Controller) SelectAudio(key catalog.AudioCodec) error {
	format, ok := catalog.AudioByKey(key)
	if !ok {
		return fmt.Errorf("%w: unknown codec %q", ErrAudioNotAllowed, key)
	}
	if !catalog.IsAudioAllowed(c.opts.Container, key) {
		return fmt.Errorf("%w: %s in %s", ErrAudioNotAllowed, format.Label, c.opts.Container.Label)
	}

	switch {
	case key == catalog.AudioDefault:
		c.audioDefault()
	case key.DisablesNormalization():
		c.normalizeDefault(true)
		c.opts.ClearAudioParams()
	default:
		c.opts.ClearAudioParams()
	}
	c.opts.Audio = key
	c.opts.AudioCodecFlag = format.Flag
	c.publish("audio")
	return nil
}

// audioDefault resets the audio selection to the encoder default.
func (c *Controller) audioDefault() {
	c.opts.Audio = catalog.AudioDefault
	c.opts.AudioCodecFlag = ""
	c.opts.ClearAudioParams()
}

// ApplyAudioParams stores the dialog values. A cancelled dialog changes nothing.
func (c *Controller) ApplyAudioParams(p AudioParams, confirmed bool) error {
	if !c.Enablement().AudioParamsEnabled {
		return fmt.Errorf("%w: audio parameters", ErrControlDisabled)
	}
	if !confirmed {
		return nil
	}

	o := c.opts
	o.AudioChannel = p.Channel
	o.AudioRate = p.Rate
	o.AudioBitrate = p.Bitrate
	if o.Audio.IsPCM() {
		// bit depth selects the pcm encoder itself
		o.AudioCodecFlag = pcmDefault
		if p.Depth.Flag != "" {
			o.AudioCodecFlag = p.Depth.Flag
		}
		o.AudioDepth = ffmpeg.Param{Description: p.Depth.Description}
	} else {
		o.AudioDepth = p.Depth
	}
	c.publish("audio-params")
	return nil
}
