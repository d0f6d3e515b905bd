package imagedrop

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures pipeline telemetry.
type Observer interface {
	RecordEntry(accepted bool)
	RecordDecode(duration time.Duration, err error)
	RecordUpload(duration time.Duration, err error)
	RecordInsert()
}

type nopObserver struct{}

func (nopObserver) RecordEntry(bool)                   {}
func (nopObserver) RecordDecode(time.Duration, error) {}
func (nopObserver) RecordUpload(time.Duration, error) {}
func (nopObserver) RecordInsert()                      {}

// PrometheusObserver exports pipeline metrics to Prometheus.
type PrometheusObserver struct {
	entries        *prometheus.CounterVec
	decodes        *prometheus.CounterVec
	uploads        *prometheus.CounterVec
	uploadDuration prometheus.Histogram
	inserts        prometheus.Counter
}

// NewPrometheusObserver registers the pipeline metrics with reg.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "imagedrop"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Dropped or pasted entries by filter result.",
		}, []string{"result"}),
		decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decodes_total",
			Help:      "Data URI decodes by outcome.",
		}, []string{"outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload attempts by status code, or \"error\" when no response arrived.",
		}, []string{"code"}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Latency of upload round trips.",
			Buckets:   prometheus.DefBuckets,
		}),
		inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inserts_total",
			Help:      "Images inserted into the editor.",
		}),
	}

	var err error
	if o.entries, err = register(reg, o.entries); err != nil {
		return nil, err
	}
	if o.decodes, err = register(reg, o.decodes); err != nil {
		return nil, err
	}
	if o.uploads, err = register(reg, o.uploads); err != nil {
		return nil, err
	}
	if o.uploadDuration, err = register(reg, o.uploadDuration); err != nil {
		return nil, err
	}
	if o.inserts, err = register(reg, o.inserts); err != nil {
		return nil, err
	}
	return o, nil
}

// register registers c, reusing an identical collector that is already
// registered so that several handlers can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register imagedrop metric: %w", err)
	}
	return c, nil
}

// RecordEntry counts an entry as accepted or rejected by the MIME filter.
func (o *PrometheusObserver) RecordEntry(accepted bool) {
	if accepted {
		o.entries.WithLabelValues("accepted").Inc()
		return
	}
	o.entries.WithLabelValues("rejected").Inc()
}

// RecordDecode counts a finished decode.
func (o *PrometheusObserver) RecordDecode(_ time.Duration, err error) {
	if err != nil {
		o.decodes.WithLabelValues("error").Inc()
		return
	}
	o.decodes.WithLabelValues("ok").Inc()
}

// RecordUpload tracks upload latency and status.
func (o *PrometheusObserver) RecordUpload(duration time.Duration, err error) {
	o.uploadDuration.Observe(duration.Seconds())

	var uerr *UploadError
	switch {
	case errors.As(err, &uerr):
		o.uploads.WithLabelValues(strconv.Itoa(uerr.Code)).Inc()
	case err != nil:
		o.uploads.WithLabelValues("error").Inc()
	default:
		o.uploads.WithLabelValues("2xx").Inc()
	}
}

// RecordInsert counts an insertion.
func (o *PrometheusObserver) RecordInsert() {
	o.inserts.Inc()
}
