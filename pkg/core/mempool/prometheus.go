package mempool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric used in monitoring service.
var mempoolUnconfirmedTx = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Help:      "Mempool unconfirmed transactions",
		Name:      "mempool_unconfirmed_tx",
		Namespace: "qoober",
	},
)

func init() {
	prometheus.MustRegister(
		mempoolUnconfirmedTx,
	)
}

func updatePoolSizeMetric(pSize int) {
	mempoolUnconfirmedTx.Set(float64(pSize))
}
