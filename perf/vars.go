package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency        = metric.NewHistogram("1m1s")
	AdvertisementsSent     = metric.NewCounter("10s1s")
	AdvertisementsReceived = metric.NewCounter("10s1s")
	PacketsForwarded       = metric.NewCounter("10s1s")
	PacketsDropped         = metric.NewCounter("10s1s")
	ProbesDelivered        = metric.NewCounter("1m1s")
	ProbesLost             = metric.NewCounter("1m1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("distvec:AdvertisementsSent/s", AdvertisementsSent)
	expvar.Publish("distvec:AdvertisementsReceived/s", AdvertisementsReceived)
	expvar.Publish("distvec:PacketsForwarded/s", PacketsForwarded)
	expvar.Publish("distvec:PacketsDropped/s", PacketsDropped)
	expvar.Publish("distvec:ProbesDelivered", ProbesDelivered)
	expvar.Publish("distvec:ProbesLost", ProbesLost)
	expvar.Publish("distvec:DispatchLatency (µs)", DispatchLatency)
}
