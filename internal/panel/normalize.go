package panel

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/smazurov/ffpanel/internal/catalog"
	"github.com/smazurov/ffpanel/internal/events"
	"github.com/smazurov/ffpanel/internal/ffmpeg"
	"github.com/smazurov/ffpanel/internal/metrics"
	"github.com/smazurov/ffpanel/internal/volume"
)

// SetNormalization selects the audio normalization mode. Any previous
// analysis is discarded. EBU pins two-pass on.
func (c *Controller) SetNormalization(mode catalog.NormalizationMode) error {
	if mode != catalog.NormalizeOff && !c.Enablement().NormalizationEnabled {
		return fmt.Errorf("%w: normalization with audio %s", ErrControlDisabled, c.opts.Audio)
	}
	c.normalizeDefault(false)
	c.opts.Normalization = mode
	c.target = mode.DefaultTarget()
	c.syncPass()
	c.publish("normalization")
	return nil
}

// SetTarget sets the PEAK/RMS target level in dBFS and re-enables analysis.
func (c *Controller) SetTarget(db float64) error {
	if !c.Enablement().PeakPanelVisible {
		return fmt.Errorf("%w: target level", ErrControlDisabled)
	}
	if db < catalog.TargetMin || db > catalog.TargetMax {
		return fmt.Errorf("%w: target %.1f not in [%.1f, %.1f]", ErrOutOfRange, db, catalog.TargetMin, catalog.TargetMax)
	}
	c.target = db
	c.analyzed = false
	c.publish("target")
	return nil
}

// Target returns the PEAK/RMS target level.
func (c *Controller) Target() float64 {
	return c.target
}

// SetLoudness sets the EBU R128 loudnorm targets.
func (c *Controller) SetLoudness(l ffmpeg.LoudnessParams) error {
	if !c.Enablement().EBUPanelVisible {
		return fmt.Errorf("%w: loudness parameters", ErrControlDisabled)
	}
	checks := []struct {
		name      string
		v, lo, hi float64
	}{
		{"integrated loudness", l.Integrated, catalog.EBUIntegratedMin, catalog.EBUIntegratedMax},
		{"true peak", l.TruePeak, catalog.EBUTruePeakMin, catalog.EBUTruePeakMax},
		{"loudness range", l.LRA, catalog.EBULRAMin, catalog.EBULRAMax},
	}
	for _, ch := range checks {
		if ch.v < ch.lo || ch.v > ch.hi {
			return fmt.Errorf("%w: %s %.1f not in [%.1f, %.1f]", ErrOutOfRange, ch.name, ch.v, ch.lo, ch.hi)
		}
	}
	c.opts.EBU = l
	c.publish("loudness")
	return nil
}

// SetInputs replaces the queued input files and switches normalization off.
func (c *Controller) SetInputs(files []string) {
	c.inputs = slices.Clone(files)
	c.normalizeDefault(true)
	c.syncPass()
	c.publish("inputs")
}

// Analyze measures the queued inputs and stores one gain per file. On
// failure nothing is committed and the analyzer error is returned as is.
func (c *Controller) Analyze(ctx context.Context, a volume.Analyzer, tr ffmpeg.TimeRange) (volume.Report, error) {
	mode := c.opts.Normalization
	if !c.Enablement().AnalyzeEnabled {
		return volume.Report{}, fmt.Errorf("%w: volume analysis", ErrControlDisabled)
	}
	if len(c.inputs) == 0 {
		return volume.Report{}, ErrNoInputs
	}

	ms, err := a.Analyze(ctx, c.inputs, tr)
	if err == nil && len(ms) != len(c.inputs) {
		err = fmt.Errorf("%w: %d measurements for %d files", volume.ErrAnalysis, len(ms), len(c.inputs))
	}
	metrics.RecordAnalysis(mode.String(), err)
	if err != nil {
		return volume.Report{}, err
	}
	report, err := volume.ComputeGains(mode, c.target, ms)
	if err != nil {
		return volume.Report{}, err
	}

	c.opts.PeakGains = nil
	c.opts.RMSGains = nil
	if mode == catalog.NormalizePeak {
		c.opts.PeakGains = report.Gains
	} else {
		c.opts.RMSGains = report.Gains
	}
	c.report = report
	c.analyzed = true

	c.logger.Info("Volume analysis completed", "mode", mode.String(), "files", len(ms), "target", c.target)
	if c.publisher != nil {
		c.publisher.Publish(events.AnalysisCompletedEvent{
			Mode:      mode.String(),
			Files:     len(ms),
			Status:    report.Status.Message(),
			Timestamp: time.Now(),
		})
	}
	c.publish("analyze")
	return report, nil
}

// Details returns the rows of the last analysis.
func (c *Controller) Details() []volume.Row {
	return slices.Clone(c.report.Rows)
}

// normalizeDefault drops analysis results, optionally switching normalization off.
func (c *Controller) normalizeDefault(setOff bool) {
	if setOff {
		c.opts.Normalization = catalog.NormalizeOff
	}
	c.analyzed = false
	c.target = catalog.NormalizePeak.DefaultTarget()
	c.opts.PeakGains = nil
	c.opts.RMSGains = nil
	c.report = volume.Report{}
}
