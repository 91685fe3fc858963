// Package metrics exposes Prometheus instrumentation for the frame
// pipeline. Collectors are process-wide; they observe the pipeline without
// affecting it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	framesRendered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "displayd",
		Subsystem: "pipeline",
		Name:      "frames_rendered_total",
		Help:      "Frames processed and handed to the dispatcher",
	})

	framesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "displayd",
		Subsystem: "pipeline",
		Name:      "frames_skipped_total",
		Help:      "Frames skipped because transmission could not keep up",
	})

	framesClean = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "displayd",
		Subsystem: "pipeline",
		Name:      "frames_clean_total",
		Help:      "Frames identical to the previous frame",
	})

	dirtyRegions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "displayd",
		Subsystem: "pipeline",
		Name:      "dirty_regions_total",
		Help:      "Dirty regions emitted by the tile differ",
	})

	deferredRegions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "displayd",
		Subsystem: "pipeline",
		Name:      "deferred_regions_total",
		Help:      "Regions deferred by the bandwidth limiter",
	})

	pixelsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "displayd",
		Subsystem: "pipeline",
		Name:      "pixels_sent_total",
		Help:      "Pixels handed to the transmission callback",
	})

	currentFPS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "displayd",
		Subsystem: "pipeline",
		Name:      "fps",
		Help:      "Current sampling rate in frames per second",
	})

	dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "displayd",
		Subsystem: "pipeline",
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of transmission callbacks in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		framesRendered, framesSkipped, framesClean,
		dirtyRegions, deferredRegions, pixelsSent,
		currentFPS, dispatchDuration,
	)
}

func IncRendered()          { framesRendered.Inc() }
func IncSkipped()           { framesSkipped.Inc() }
func IncClean()             { framesClean.Inc() }
func AddDirtyRegions(n int) { dirtyRegions.Add(float64(n)) }
func IncDeferred()          { deferredRegions.Inc() }
func AddPixelsSent(n int)   { pixelsSent.Add(float64(n)) }
func SetFPS(fps int)        { currentFPS.Set(float64(fps)) }

func ObserveDispatch(d time.Duration) { dispatchDuration.Observe(d.Seconds()) }
