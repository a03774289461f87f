package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type eventStat struct {
	count int64
	bytes int64
}

var (
	errorsFeed   int64
	errorsProxy  int64
	warnsFeed    int64
	warnsProxy   int64
	ordersQueued int64
	events       sync.Map // map[string]*eventStat
)

func recordWarn(component string) {
	if strings.Contains(component, "feed") {
		atomic.AddInt64(&warnsFeed, 1)
	} else if strings.Contains(component, "proxy") {
		atomic.AddInt64(&warnsProxy, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "feed") {
		atomic.AddInt64(&errorsFeed, 1)
	} else if strings.Contains(component, "proxy") {
		atomic.AddInt64(&errorsProxy, 1)
	}
}

// IncrementOrdersQueued counts one order accepted onto the shared feed
// queue, independent of which source produced it.
func IncrementOrdersQueued() {
	atomic.AddInt64(&ordersQueued, 1)
}

// RecordEvent accumulates a named counter and byte total that the report
// loop surfaces; cmd/marketforge's enqueue path records
// "orders_enqueued" through it.
func RecordEvent(name string, size int) {
	v, _ := events.LoadOrStore(name, &eventStat{})
	es := v.(*eventStat)
	atomic.AddInt64(&es.count, 1)
	atomic.AddInt64(&es.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of engine and channel statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	eventData := map[string]map[string]int64{}
	events.Range(func(k, v any) bool {
		name := k.(string)
		es := v.(*eventStat)
		eventData[name] = map[string]int64{
			"count": atomic.LoadInt64(&es.count),
			"bytes": atomic.LoadInt64(&es.bytes),
		}
		return true
	})

	fields := Fields{
		"errors_feed":   atomic.LoadInt64(&errorsFeed),
		"errors_proxy":  atomic.LoadInt64(&errorsProxy),
		"warns_feed":    atomic.LoadInt64(&warnsFeed),
		"warns_proxy":   atomic.LoadInt64(&warnsProxy),
		"orders_queued": atomic.LoadInt64(&ordersQueued),
		"goroutines":    runtime.NumGoroutine(),
		"events":        eventData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("MarketForge-Goroutines"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["goroutines"].(int)))},
		{MetricName: aws.String("MarketForge-ErrorsFeed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_feed"].(int64)))},
		{MetricName: aws.String("MarketForge-ErrorsProxy"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_proxy"].(int64)))},
		{MetricName: aws.String("MarketForge-WarnsFeed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_feed"].(int64)))},
		{MetricName: aws.String("MarketForge-WarnsProxy"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_proxy"].(int64)))},
		{MetricName: aws.String("MarketForge-OrdersQueued"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_queued"].(int64)))},
	}

	for name, stats := range eventData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("MarketForge-EventCount"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Event"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["count"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("MarketForge-EventBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Event"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
