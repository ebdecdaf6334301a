package catalog

import "slices"

// AudioCodec identifies an audio encoding choice.
type AudioCodec string

// Audio codec keys in menu order
const (
	AudioDefault AudioCodec = "default"
	AudioWav     AudioCodec = "wav"
	AudioAiff    AudioCodec = "aiff"
	AudioFlac    AudioCodec = "flac"
	AudioAAC     AudioCodec = "aac"
	AudioALAC    AudioCodec = "alac"
	AudioAC3     AudioCodec = "ac3"
	AudioVorbis  AudioCodec = "ogg"
	AudioMP3     AudioCodec = "mp3"
	AudioOpus    AudioCodec = "opus"
	AudioCopy    AudioCodec = "copy"
	AudioSilent  AudioCodec = "silent"
)

// AudioFormat describes an audio codec choice with its display label and flag.
type AudioFormat struct {
	Key   AudioCodec `json:"key"`
	Label string     `json:"label"`
	Flag  string     `json:"flag"`
}

// AudioFormats lists every audio choice in menu order.
var AudioFormats = []AudioFormat{
	{Key: AudioDefault, Label: "Default (managed by FFmpeg)", Flag: ""},
	{Key: AudioWav, Label: "Wav (Raw, No_MultiChannel)", Flag: "-c:a pcm_s16le"},
	{Key: AudioAiff, Label: "Aiff (Raw, No_MultiChannel)", Flag: "-c:a pcm_s16le"},
	{Key: AudioFlac, Label: "Flac (Lossless, No_MultiChannel)", Flag: "-c:a flac"},
	{Key: AudioAAC, Label: "Aac (Lossy, MultiChannel)", Flag: "-c:a aac"},
	{Key: AudioALAC, Label: "Alac (Lossless, m4v, No_MultiChannel)", Flag: "-c:a alac"},
	{Key: AudioAC3, Label: "Ac3 (Lossy, MultiChannel)", Flag: "-c:a ac3"},
	{Key: AudioVorbis, Label: "Ogg (Lossy, No_MultiChannel)", Flag: "-c:a libvorbis"},
	{Key: AudioMP3, Label: "Mp3 (Lossy, No_MultiChannel)", Flag: "-c:a libmp3lame"},
	{Key: AudioOpus, Label: "Opus (Lossy, No_MultiChannel)", Flag: "-c:a libopus"},
	{Key: AudioCopy, Label: "Try to copy audio source", Flag: "-c:a copy"},
	{Key: AudioSilent, Label: "No audio stream (silent)", Flag: "-an"},
}

// containerAudio lists the audio codecs each extension can carry.
var containerAudio = map[string][]AudioCodec{
	"avi":  {AudioDefault, AudioWav, AudioAiff, AudioAC3, AudioMP3, AudioCopy, AudioSilent},
	"flv":  {AudioDefault, AudioAAC, AudioAC3, AudioMP3, AudioCopy, AudioSilent},
	"mp4":  {AudioDefault, AudioAAC, AudioAC3, AudioMP3, AudioCopy, AudioSilent},
	"m4v":  {AudioDefault, AudioAAC, AudioALAC, AudioCopy, AudioSilent},
	"mkv":  {AudioDefault, AudioWav, AudioAiff, AudioFlac, AudioAAC, AudioAC3, AudioVorbis, AudioMP3, AudioOpus, AudioCopy, AudioSilent},
	"webm": {AudioDefault, AudioVorbis, AudioOpus, AudioCopy, AudioSilent},
	"ogg":  {AudioDefault, AudioFlac, AudioVorbis, AudioOpus, AudioCopy, AudioSilent},
}

// AudioByKey looks up an audio format by key.
func AudioByKey(key AudioCodec) (AudioFormat, bool) {
	for _, a := range AudioFormats {
		if a.Key == key {
			return a, true
		}
	}
	return AudioFormat{}, false
}

// AudioByLabel looks up an audio format by its menu label.
func AudioByLabel(label string) (AudioFormat, bool) {
	for _, a := range AudioFormats {
		if a.Label == label {
			return a, true
		}
	}
	return AudioFormat{}, false
}

// AllowedAudio returns the audio codecs offered for a container, in menu order.
// Copying the video stream offers every audio codec.
func AllowedAudio(c Container) []AudioCodec {
	if c.IsCopy() {
		all := make([]AudioCodec, len(AudioFormats))
		for i, a := range AudioFormats {
			all[i] = a.Key
		}
		return all
	}
	allowed := containerAudio[c.Extension]
	out := make([]AudioCodec, 0, len(allowed))
	for _, a := range AudioFormats {
		if slices.Contains(allowed, a.Key) {
			out = append(out, a.Key)
		}
	}
	return out
}

// AudioMask returns one entry per AudioFormats slot, true when the codec is offered.
func AudioMask(c Container) []bool {
	allowed := AllowedAudio(c)
	mask := make([]bool, len(AudioFormats))
	for i, a := range AudioFormats {
		mask[i] = slices.Contains(allowed, a.Key)
	}
	return mask
}

// IsAudioAllowed reports whether the container can carry the audio codec.
func IsAudioAllowed(c Container, codec AudioCodec) bool {
	return slices.Contains(AllowedAudio(c), codec)
}

// IsPCM reports whether the codec is raw PCM, where bit depth selects the encoder.
func (a AudioCodec) IsPCM() bool {
	return a == AudioWav || a == AudioAiff
}

// DisablesNormalization reports whether the codec leaves no audio to normalize.
func (a AudioCodec) DisablesNormalization() bool {
	return a == AudioCopy || a == AudioSilent
}
