// Package metrics holds the station's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodwatch_readings_total",
			Help: "Sensor lines received, by parse result",
		},
		[]string{"result"},
	)

	RiverHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "floodwatch_river_height_cm",
		Help: "Current river height in centimetres",
	})

	FlowRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "floodwatch_flow_rate_lpm",
		Help: "Current flow rate in litres per minute",
	})

	StatusRank = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "floodwatch_status_rank",
		Help: "Severity rank of the current status (0 normal, 1 warning, 2 severe)",
	})

	RemainingCapacity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "floodwatch_remaining_capacity_m3",
		Help: "Projected reservoir capacity left after the active forecast",
	})

	TimeToFillHours = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "floodwatch_time_to_fill_hours",
		Help: "Projected hours until the reservoir is full, -1 without inflow",
	})

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodwatch_alerts_total",
			Help: "Alert attempts, by outcome",
		},
		[]string{"outcome"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodwatch_alert_deliveries_total",
			Help: "Per-recipient alert deliveries, by channel and result",
		},
		[]string{"channel", "result"},
	)

	ForecastErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodwatch_forecast_errors_total",
			Help: "Rejected or failed forecast runs, by source",
		},
		[]string{"source"},
	)

	BulletinRowsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "floodwatch_bulletin_rows_skipped_total",
		Help: "Malformed rows skipped while scraping the rainfall bulletin",
	})

	SourceReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodwatch_source_reconnects_total",
			Help: "Reconnect attempts of the reading source",
		},
		[]string{"source"},
	)
)
