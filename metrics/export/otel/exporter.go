package otel

import (
	"context"
	"errors"

	"github.com/miaomc/passport"
	"github.com/miaomc/passport/metrics/export/internaldefs"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is satisfied by *passport.Engine.
type MetricsSource interface {
	MetricsSnapshot() passport.MetricsSnapshot
	AuditDropped() uint64
}

type counterBinding struct {
	id  passport.MetricID
	ins metric.Int64ObservableCounter
}

// histogramBinding exposes one cumulative gauge per bucket plus a count gauge.
type histogramBinding struct {
	id      passport.MetricID
	buckets [internaldefs.BucketCount]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter observes engine snapshots from a single meter callback.
type Exporter struct {
	source       MetricsSource
	registration metric.Registration
	counters     []counterBinding
	histograms   []histogramBinding
	dropped      metric.Int64ObservableCounter
}

// NewExporter binds an engine to meter.
func NewExporter(meter metric.Meter, engine *passport.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, instrumentErr(def.Name, err)
		}
		e.counters = append(e.counters, counterBinding{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := histogramBinding{id: def.ID}
		for i := range h.buckets {
			name := def.Name + "_bucket_le_" + internaldefs.BoundSuffix(i)
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative bucket count. "+def.Help))
			if err != nil {
				return nil, instrumentErr(name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Sample count. "+def.Help))
		if err != nil {
			return nil, instrumentErr(def.Name+"_count", err)
		}
		h.count = count
		observables = append(observables, count)
		e.histograms = append(e.histograms, h)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, instrumentErr(internaldefs.AuditDroppedName, err)
	}
	e.dropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, oops.In("metrics_otel").Code("CALLBACK_REGISTER").Wrap(err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snap.Counters[c.id]))
	}
	for _, h := range e.histograms {
		raw, ok := snap.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, v := range cumulative {
			o.ObserveInt64(h.buckets[i], int64(v))
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.dropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. It is safe on a nil exporter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

func instrumentErr(name string, err error) error {
	return oops.In("metrics_otel").Code("INSTRUMENT_CREATE").With("instrument", name).Wrap(err)
}
