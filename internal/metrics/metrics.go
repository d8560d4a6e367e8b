package metrics

import (
	"sync"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "evcharge_"

	commandResultAcked  = "acked"
	commandResultFailed = "failed"
)

var (
	registerOnce sync.Once

	ticksTotal      *prometheus.CounterVec
	tickLatency     prometheus.Histogram
	commandsTotal   *prometheus.CounterVec
	currentSetpoint prometheus.Gauge
	appliedCurrent  prometheus.Gauge
	availablePower  prometheus.Gauge
	householdPower  prometheus.Gauge
	chargingAllowed prometheus.Gauge
)

// Init registers the charge control metrics on the default registry.
func Init() {
	registerOnce.Do(func() {
		ticksTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ticks_total",
				Help: "Total control ticks by reason",
			},
			[]string{"reason"},
		)
		tickLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "tick_latency_seconds",
				Help:    "Control tick latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)
		commandsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "charger_commands_total",
				Help: "Total charger commands by kind and result",
			},
			[]string{"kind", "result"},
		)
		currentSetpoint = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "max_charging_current_amps",
			Help: "Latest current setpoint, 0 when charging is not allowed",
		})
		appliedCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "applied_current_amps",
			Help: "Current last applied to the charger",
		})
		availablePower = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "available_power_watts",
			Help: "Import headroom left for charging",
		})
		householdPower = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "household_power_watts",
			Help: "Household consumption excluding the charger",
		})
		chargingAllowed = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "charging_allowed",
			Help: "1 when the latest verdict allows charging",
		})

		prometheus.MustRegister(
			ticksTotal,
			tickLatency,
			commandsTotal,
			currentSetpoint,
			appliedCurrent,
			availablePower,
			householdPower,
			chargingAllowed,
		)
	})
}

// ObserveTick records the outcome of a control tick.
func ObserveTick(r *domain.TickResult, duration time.Duration) {
	if ticksTotal == nil {
		return
	}
	ticksTotal.WithLabelValues(string(r.Reason)).Inc()
	tickLatency.Observe(duration.Seconds())

	for _, cmd := range r.Commands {
		result := commandResultAcked
		if cmd.Failed() {
			result = commandResultFailed
		}
		commandsTotal.WithLabelValues(string(cmd.Kind), result).Inc()
	}

	currentSetpoint.Set(float64(r.Verdict.PublishedCurrent()))
	if r.ChargerState.Charging {
		appliedCurrent.Set(float64(r.ChargerState.CurrentAmps))
	} else {
		appliedCurrent.Set(0)
	}
	if r.Verdict.Allowed {
		chargingAllowed.Set(1)
	} else {
		chargingAllowed.Set(0)
	}
	if r.Snapshot != nil {
		availablePower.Set(r.AvailablePowerWatt)
		householdPower.Set(r.HouseholdPowerWatt)
	}
}
