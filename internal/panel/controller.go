package panel

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/smazurov/ffpanel/internal/catalog"
	"github.com/smazurov/ffpanel/internal/events"
	"github.com/smazurov/ffpanel/internal/ffmpeg"
	"github.com/smazurov/ffpanel/internal/logging"
	"github.com/smazurov/ffpanel/internal/volume"
)

// Controller errors.
var (
	ErrUnknownContainer = errors.New("unknown container")
	ErrAudioNotAllowed  = errors.New("audio codec not allowed for container")
	ErrControlDisabled  = errors.New("control is disabled")
	ErrPassLocked       = errors.New("pass mode is locked")
	ErrAnalysisRequired = errors.New("volume analysis required: run the volumedetect analysis first")
	ErrNoFilters        = errors.New("no filter enabled")
	ErrNoInputs         = errors.New("no input files")
	ErrOutOfRange       = errors.New("value out of range")
)

// Option configures a Controller.
type Option func(*Controller)

// WithPublisher attaches an event publisher notified after every mutation.
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithLogger overrides the controller logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// Controller owns the Options of one conversion panel and applies the
// synchronization rules between its controls. It is not safe for
// concurrent use.
type Controller struct {
	opts *ffmpeg.Options

	// control values applied to opts by Finalize
	bitrate  int
	crf      int
	deadline string
	cpuUsed  int
	rowMT    bool

	target   float64
	inputs   []string
	analyzed bool
	report   volume.Report

	publisher events.Publisher
	logger    logging.Logger
}

// New creates a controller with startup defaults.
func New(options ...Option) *Controller {
	c := &Controller{
		opts:     ffmpeg.DefaultOptions(),
		bitrate:  catalog.BitrateDefault,
		deadline: catalog.DefaultDeadline,
		rowMT:    true,
		target:   catalog.NormalizePeak.DefaultTarget(),
		logger:   logging.GetLogger("panel"),
	}
	for _, opt := range options {
		opt(c)
	}
	c.applyContainer(c.opts.Container)
	return c
}

// Options returns a deep copy of the current option table.
func (c *Controller) Options() ffmpeg.Options {
	return c.opts.Snapshot()
}

// State returns the inputs of Derive.
func (c *Controller) State() State {
	return State{
		Container:     c.opts.Container,
		Pass:          c.opts.Pass,
		Normalization: c.opts.Normalization,
		Audio:         c.opts.Audio,
		Analyzed:      c.analyzed,
	}
}

// Enablement returns the control enablement for the current state.
func (c *Controller) Enablement() Enablement {
	return Derive(c.State())
}

// Inputs returns the queued input files.
func (c *Controller) Inputs() []string {
	return slices.Clone(c.inputs)
}

// SelectContainer switches the output container and resets dependent settings.
func (c *Controller) SelectContainer(label string) error {
	ct, ok := catalog.ContainerByLabel(label)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownContainer, label)
	}
	c.applyContainer(ct)
	c.publish("container")
	return nil
}

func (c *Controller) applyContainer(ct catalog.Container) {
	o := c.opts
	o.Container = ct
	o.VideoCodec = ct.VideoCodec
	o.Extension = ct.Extension
	o.PixelFormat = ct.PixelFormat()
	o.Bitrate = ""
	o.CRF = ""
	o.Deadline = ""
	o.CPUUsed = ""
	o.RowMT = ""

	switch ct.Family {
	case catalog.FamilyX264, catalog.FamilyX265, catalog.FamilyVPX, catalog.FamilyAV1:
		_, c.crf = ct.CRFRange()
	}
	if ct.Family == catalog.FamilyVPX || ct.Family == catalog.FamilyAV1 {
		c.deadline = catalog.DefaultDeadline
		c.cpuUsed = 0
		c.rowMT = true
	}

	c.syncPass()

	o.Preset = ""
	o.Profile = ""
	o.Tune = ""

	c.audioDefault()
}

// syncPass applies the pass lock to the pass mode.
func (c *Controller) syncPass() {
	switch passLock(c.State()) {
	case PassForcedOn:
		c.opts.Pass = ffmpeg.PassDouble
	case PassForcedOff:
		c.opts.Pass = ffmpeg.PassSingle
	}
}

// SetTwoPass toggles two-pass encoding.
func (c *Controller) SetTwoPass(on bool) error {
	want := ffmpeg.PassSingle
	if on {
		want = ffmpeg.PassDouble
	}
	if lock := c.Enablement().PassLock; lock != PassUnlocked {
		if c.opts.Pass != want {
			return fmt.Errorf("%w: %s", ErrPassLocked, lock)
		}
		return nil
	}
	c.opts.Pass = want
	c.publish("pass")
	return nil
}

// SetBitrate sets the video bitrate in kbit/s.
func (c *Controller) SetBitrate(kbps int) error {
	if !c.Enablement().BitrateEnabled {
		return fmt.Errorf("%w: bitrate", ErrControlDisabled)
	}
	if kbps < catalog.BitrateMin || kbps > catalog.BitrateMax {
		return fmt.Errorf("%w: bitrate %d not in [%d, %d]", ErrOutOfRange, kbps, catalog.BitrateMin, catalog.BitrateMax)
	}
	c.bitrate = kbps
	c.applyBitrate()
	c.publish("bitrate")
	return nil
}

func (c *Controller) applyBitrate() {
	o := c.opts
	switch o.Container.Family {
	case catalog.FamilyVPX:
	case catalog.FamilyAV1:
		if o.Pass == ffmpeg.PassDouble {
			o.CRF = ""
		}
	default:
		o.CRF = ""
	}
	o.Bitrate = fmt.Sprintf("-b:v %dk", c.bitrate)
}

// SetCRF sets the constant rate factor.
func (c *Controller) SetCRF(v int) error {
	if !c.Enablement().CRFEnabled {
		return fmt.Errorf("%w: crf", ErrControlDisabled)
	}
	maxCRF, _ := c.opts.Container.CRFRange()
	if v < 0 || v > maxCRF {
		return fmt.Errorf("%w: crf %d not in [0, %d]", ErrOutOfRange, v, maxCRF)
	}
	c.crf = v
	c.applyCRF()
	c.publish("crf")
	return nil
}

func (c *Controller) applyCRF() {
	o := c.opts
	switch o.Container.Family {
	case catalog.FamilyVPX, catalog.FamilyAV1:
	default:
		o.Bitrate = ""
	}
	o.CRF = fmt.Sprintf("-crf %d", c.crf)
}

// SetAspect sets the display aspect ratio. "Default" removes the flag.
func (c *Controller) SetAspect(v string) error {
	if err := catalog.ValidateChoice("aspect", v, catalog.Aspects); err != nil {
		return err
	}
	c.opts.Aspect = choiceFlag("-aspect", v, "Default")
	c.publish("aspect")
	return nil
}

// SetFrameRate sets the output frame rate. "Default" removes the flag.
func (c *Controller) SetFrameRate(v string) error {
	if err := catalog.ValidateChoice("frame rate", v, catalog.FrameRates); err != nil {
		return err
	}
	c.opts.FrameRate = choiceFlag("-r", v, "Default")
	c.publish("rate")
	return nil
}

// SetPreset sets the h.264/h.265 preset.
func (c *Controller) SetPreset(v string) error {
	if !c.Enablement().H264TabEnabled {
		return fmt.Errorf("%w: preset", ErrControlDisabled)
	}
	if err := catalog.ValidateChoice("preset", v, catalog.X264Presets); err != nil {
		return err
	}
	c.opts.Preset = choiceFlag("-preset:v", v, catalog.Disabled)
	c.publish("preset")
	return nil
}

// SetProfile sets the h.264/h.265 profile.
func (c *Controller) SetProfile(v string) error {
	if !c.Enablement().H264TabEnabled {
		return fmt.Errorf("%w: profile", ErrControlDisabled)
	}
	if err := catalog.ValidateChoice("profile", v, catalog.X264Profiles); err != nil {
		return err
	}
	c.opts.Profile = choiceFlag("-profile:v", v, catalog.Disabled)
	c.publish("profile")
	return nil
}

// SetTune sets the h.264/h.265 tune. libx265 rejects some x264 tunes.
func (c *Controller) SetTune(v string) error {
	if !c.Enablement().H264TabEnabled {
		return fmt.Errorf("%w: tune", ErrControlDisabled)
	}
	if err := catalog.ValidateChoice("tune", v, catalog.X264Tunes); err != nil {
		return err
	}
	if !catalog.TuneAllowed(c.opts.Container.Family, v) {
		return fmt.Errorf("%w: tune %q for %s", ErrControlDisabled, v, c.opts.Container.Family)
	}
	c.opts.Tune = choiceFlag("-tune:v", v, catalog.Disabled)
	c.publish("tune")
	return nil
}

// SetDeadline sets the VP8/VP9/AV1 deadline and resets cpu-used to 0.
func (c *Controller) SetDeadline(v string) error {
	if !c.Enablement().VPXPanelVisible {
		return fmt.Errorf("%w: deadline", ErrControlDisabled)
	}
	if err := catalog.ValidateChoice("deadline", v, catalog.Deadlines); err != nil {
		return err
	}
	c.deadline = v
	c.cpuUsed = 0
	c.publish("deadline")
	return nil
}

// SetCPUUsed sets cpu-used within the range of the current deadline.
func (c *Controller) SetCPUUsed(v int) error {
	if !c.Enablement().VPXPanelVisible {
		return fmt.Errorf("%w: cpu-used", ErrControlDisabled)
	}
	lo, hi := catalog.CPUUsedRange(c.deadline)
	if v < lo || v > hi {
		return fmt.Errorf("%w: cpu-used %d not in [%d, %d] for deadline %s", ErrOutOfRange, v, lo, hi, c.deadline)
	}
	c.cpuUsed = v
	c.publish("cpu-used")
	return nil
}

// SetRowMT toggles row based multithreading.
func (c *Controller) SetRowMT(on bool) error {
	if !c.Enablement().VPXPanelVisible {
		return fmt.Errorf("%w: row-mt", ErrControlDisabled)
	}
	c.rowMT = on
	c.publish("row-mt")
	return nil
}

// Finalize copies the current control values into the option table the way
// the panel does right before a start. Stream copy is left untouched.
func (c *Controller) Finalize() {
	o := c.opts
	if o.Container.IsCopy() {
		return
	}
	e := c.Enablement()
	switch {
	case e.BitrateEnabled && !e.CRFEnabled:
		c.applyBitrate()
	case e.CRFEnabled && !e.BitrateEnabled:
		c.applyCRF()
	case e.BitrateEnabled && e.CRFEnabled:
		c.applyBitrate()
		c.applyCRF()
	default:
		o.Bitrate = ""
		o.CRF = ""
	}

	if e.VPXPanelVisible {
		o.CPUUsed = fmt.Sprintf("-cpu-used %d", c.cpuUsed)
		o.Deadline = "-deadline " + c.deadline
		o.RowMT = ""
		if c.rowMT {
			o.RowMT = "-row-mt 1"
		}
	} else {
		o.CPUUsed = ""
		o.Deadline = ""
		o.RowMT = ""
	}
}

// ReadyToStart returns ErrAnalysisRequired while PEAK/RMS gains are pending.
func (c *Controller) ReadyToStart() error {
	if c.opts.Normalization.NeedsAnalysis() && !c.analyzed {
		return ErrAnalysisRequired
	}
	return nil
}

// Commands finalizes the option table and builds the pass commands.
func (c *Controller) Commands() (ffmpeg.Commands, error) {
	if err := c.ReadyToStart(); err != nil {
		return ffmpeg.Commands{}, err
	}
	c.Finalize()
	return ffmpeg.BuildCommands(c.opts.Snapshot())
}

// Summary lists the settings for the queued inputs.
func (c *Controller) Summary(tr ffmpeg.TimeRange) []ffmpeg.SummaryRow {
	return ffmpeg.Summary(c.opts.Snapshot(), len(c.inputs), tr)
}

func (c *Controller) publish(operation string) {
	c.logger.Debug("Options changed", "operation", operation,
		"container", c.opts.Container.Label,
		"pass", c.opts.Pass.String(),
		"normalization", c.opts.Normalization.String())
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(events.OptionsChangedEvent{
		Operation:     operation,
		Container:     c.opts.Container.Label,
		Pass:          c.opts.Pass.String(),
		Normalization: c.opts.Normalization.String(),
		Audio:         string(c.opts.Audio),
		Timestamp:     time.Now(),
	})
}

// choiceFlag renders "flag value", or "" when value is the no-op entry.
func choiceFlag(flag, value, none string) string {
	if value == none {
		return ""
	}
	return flag + " " + value
}
