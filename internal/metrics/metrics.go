// Package metrics registers the counters, gauges, and histograms spec.md
// §6 names, all labeled by allocation except the vouchers_redeem gauge and
// the vouchers_redeem_duration histogram, which are unlabeled.
// Registration happens once at startup (append-only, spec.md §5) against
// a private registry so cmd/collector/main.go can expose exactly this set
// through promhttp without picking up the default Go-runtime collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector this core reports.
type Metrics struct {
	Registry *prometheus.Registry

	ReceiptsToCollect       *prometheus.GaugeVec
	ReceiptsFailed          *prometheus.CounterVec
	VouchersToExchange      *prometheus.GaugeVec
	ReceiptsExchangeSeconds *prometheus.HistogramVec
	Vouchers                *prometheus.CounterVec
	VoucherExchangesOK      *prometheus.CounterVec
	VoucherExchangesInvalid *prometheus.CounterVec
	VoucherRedeemsFailed    *prometheus.CounterVec
	VouchersRedeemSeconds   prometheus.Histogram
	VouchersRedeem          prometheus.Gauge
	VoucherCollectedFees    *prometheus.GaugeVec
}

// New creates and registers every metric against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		ReceiptsToCollect: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "receipts_to_collect",
			Help: "Receipts currently queued for gateway exchange, by allocation.",
		}, []string{"allocation"}),
		ReceiptsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipts_failed",
			Help: "Receipt batches that failed gateway exchange, by allocation.",
		}, []string{"allocation"}),
		VouchersToExchange: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vouchers_to_exchange",
			Help: "Partial vouchers pending assembly into a final voucher, by allocation.",
		}, []string{"allocation"}),
		ReceiptsExchangeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "receipts_exchange_duration",
			Help:    "Time spent exchanging a receipt batch with the gateway, by allocation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"allocation"}),
		Vouchers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vouchers",
			Help: "Vouchers persisted after a successful gateway exchange, by allocation.",
		}, []string{"allocation"}),
		VoucherExchangesOK: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voucher_exchanges_ok",
			Help: "Successful on-chain redemptions, by allocation.",
		}, []string{"allocation"}),
		VoucherExchangesInvalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voucher_exchanges_invalid",
			Help: "Redemptions rejected by a paused/unauthorized sentinel, by allocation.",
		}, []string{"allocation"}),
		VoucherRedeemsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voucher_redeems_failed",
			Help: "Redemption attempts that errored, by allocation.",
		}, []string{"allocation"}),
		VouchersRedeemSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vouchers_redeem_duration",
			Help:    "Time spent on one redemption tick, end to end.",
			Buckets: prometheus.DefBuckets,
		}),
		VouchersRedeem: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vouchers_redeem",
			Help: "Vouchers submitted in the most recent redemption batch.",
		}),
		VoucherCollectedFees: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voucher_collected_fees",
			Help: "Cumulative collected fees recorded for an allocation's summary.",
		}, []string{"allocation"}),
	}

	reg.MustRegister(
		m.ReceiptsToCollect,
		m.ReceiptsFailed,
		m.VouchersToExchange,
		m.ReceiptsExchangeSeconds,
		m.Vouchers,
		m.VoucherExchangesOK,
		m.VoucherExchangesInvalid,
		m.VoucherRedeemsFailed,
		m.VouchersRedeemSeconds,
		m.VouchersRedeem,
		m.VoucherCollectedFees,
	)
	return m
}
