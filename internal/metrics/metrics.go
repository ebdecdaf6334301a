// Package metrics provides Prometheus metrics for conversion jobs and volume analysis.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every ffpanel metric. It is separate from the default
// registry so a textfile export contains only job data.
var Registry = prometheus.NewRegistry()

var (
	factory = promauto.With(Registry)

	filesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffpanel",
		Subsystem: "job",
		Name:      "files_total",
		Help:      "Files processed by result",
	}, []string{"mode", "result"})

	passesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffpanel",
		Subsystem: "job",
		Name:      "passes_total",
		Help:      "ffmpeg passes run",
	}, []string{"mode"})

	fileDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ffpanel",
		Subsystem: "job",
		Name:      "file_duration_seconds",
		Help:      "Wall time spent per file across all passes",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"mode"})

	encodeSpeed = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ffpanel",
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "ffmpeg processing speed multiplier",
	}, []string{"job_id"})

	encodeFrames = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ffpanel",
		Subsystem: "ffmpeg",
		Name:      "frames",
		Help:      "Frames encoded in the current pass",
	}, []string{"job_id"})

	encodeOutTime = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ffpanel",
		Subsystem: "ffmpeg",
		Name:      "out_time_seconds",
		Help:      "Output position of the current pass",
	}, []string{"job_id"})

	analysisTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffpanel",
		Subsystem: "volume",
		Name:      "analysis_total",
		Help:      "Volume analysis runs by mode and result",
	}, []string{"mode", "result"})

	// Local cache for progress readers.
	encodeCache   = make(map[string]*EncodeMetrics)
	encodeCacheMu sync.RWMutex
)

// File results
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
	ResultCancelled = "cancelled"
)

// EncodeMetrics holds current progress values for a job.
type EncodeMetrics struct {
	Frames  int64
	Speed   float64
	OutTime time.Duration
}

// RecordFile counts one finished file and its duration.
func RecordFile(mode, result string, d time.Duration) {
	filesTotal.WithLabelValues(mode, result).Inc()
	fileDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordPass counts one ffmpeg pass.
func RecordPass(mode string) {
	passesTotal.WithLabelValues(mode).Inc()
}

// RecordAnalysis counts one volume analysis run.
func RecordAnalysis(mode string, err error) {
	result := ResultCompleted
	if err != nil {
		result = ResultFailed
	}
	analysisTotal.WithLabelValues(mode, result).Inc()
}

// SetEncodeProgress sets the current progress for a job.
func SetEncodeProgress(jobID string, frames int64, speed float64, outTime time.Duration) {
	encodeFrames.WithLabelValues(jobID).Set(float64(frames))
	encodeSpeed.WithLabelValues(jobID).Set(speed)
	encodeOutTime.WithLabelValues(jobID).Set(outTime.Seconds())

	encodeCacheMu.Lock()
	defer encodeCacheMu.Unlock()
	encodeCache[jobID] = &EncodeMetrics{Frames: frames, Speed: speed, OutTime: outTime}
}

// DeleteEncodeMetrics removes the progress metrics of a job.
func DeleteEncodeMetrics(jobID string) {
	encodeFrames.DeleteLabelValues(jobID)
	encodeSpeed.DeleteLabelValues(jobID)
	encodeOutTime.DeleteLabelValues(jobID)

	encodeCacheMu.Lock()
	delete(encodeCache, jobID)
	encodeCacheMu.Unlock()
}

// GetEncodeMetrics returns current progress values for a job.
func GetEncodeMetrics(jobID string) *EncodeMetrics {
	encodeCacheMu.RLock()
	defer encodeCacheMu.RUnlock()
	if m, ok := encodeCache[jobID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// WriteTextfile writes all metrics in the node_exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
