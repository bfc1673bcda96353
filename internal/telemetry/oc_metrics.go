package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	ocprom "contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"

	"github.com/gocorefs/corefs/internal/logger"
)

// FSOp tags an OpenCensus measurement with the corefs.FS method that
// produced it, mirroring the teacher's common/oc_metrics.go FSOp tag.
const FSOp = "fs_op"

var (
	opsCount      = stats.Int64("corefs/ops_count", "Calls to a corefs.FS operation.", stats.UnitDimensionless)
	opsErrorCount = stats.Int64("corefs/ops_error_count", "Calls to a corefs.FS operation that returned an error.", stats.UnitDimensionless)
	opsLatency    = stats.Float64("corefs/ops_latency", "Latency of a corefs.FS operation.", "ms")

	ocOnce     sync.Once
	ocInitErr  error
	ocExporter *ocprom.Exporter
)

// SetupOpenCensus registers the legacy OpenCensus views alongside the OTel
// providers from Setup, and returns an http.Handler serving them in
// Prometheus exposition format — a second, independent registry from
// internal/metrics and the OTel-backed one, the way the teacher ran OTel and
// OpenCensus side by side during its metrics migration.
func SetupOpenCensus() (http.Handler, error) {
	ocOnce.Do(func() {
		ocExporter, ocInitErr = ocprom.NewExporter(ocprom.Options{Namespace: "corefs_oc"})
		if ocInitErr != nil {
			return
		}
		view.RegisterExporter(ocExporter)
		ocInitErr = view.Register(
			&view.View{
				Name:        "corefs/ops_count",
				Measure:     opsCount,
				Description: "The cumulative number of corefs.FS operations processed.",
				Aggregation: view.Sum(),
				TagKeys:     []tag.Key{tag.MustNewKey(FSOp)},
			},
			&view.View{
				Name:        "corefs/ops_error_count",
				Measure:     opsErrorCount,
				Description: "The cumulative number of corefs.FS operations that returned an error.",
				Aggregation: view.Sum(),
				TagKeys:     []tag.Key{tag.MustNewKey(FSOp)},
			},
			&view.View{
				Name:        "corefs/ops_latency",
				Measure:     opsLatency,
				Description: "The distribution of corefs.FS operation latencies.",
				Aggregation: view.Distribution(0, 1, 2, 5, 10, 25, 50, 100, 250, 500),
				TagKeys:     []tag.Key{tag.MustNewKey(FSOp)},
			},
		)
	})
	if ocInitErr != nil {
		return nil, fmt.Errorf("telemetry: opencensus views: %w", ocInitErr)
	}
	return ocExporter, nil
}

// RecordOp records one call to a corefs.FS operation: its name, latency, and
// whether it returned an error. Errors recording the measurement are logged
// and otherwise ignored, since a lost metric must never fail the filesystem
// call it describes.
func RecordOp(ctx context.Context, op string, start time.Time, err error) {
	mutators := []tag.Mutator{tag.Upsert(tag.MustNewKey(FSOp), op)}
	ms := []stats.Measurement{
		opsCount.M(1),
		opsLatency.M(float64(time.Since(start).Microseconds()) / 1000),
	}
	if err != nil {
		ms = append(ms, opsErrorCount.M(1))
	}
	if recErr := stats.RecordWithTags(ctx, mutators, ms...); recErr != nil {
		logger.Errorf("telemetry: record op %s: %v", op, recErr)
	}
}
