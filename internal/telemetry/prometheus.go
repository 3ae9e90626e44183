package telemetry

import "github.com/prometheus/client_golang/prometheus"

const seminarNamespace string = "seminar"

var (
	promRoomsTotal          prometheus.Gauge
	promParticipantsTotal   prometheus.Gauge
	ServiceOperationCounter *prometheus.CounterVec
)

func init() {
	promRoomsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: seminarNamespace,
		Subsystem: "rooms",
		Name:      "total",
	})

	promParticipantsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: seminarNamespace,
		Subsystem: "participants",
		Name:      "total",
	})

	ServiceOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   seminarNamespace,
			Subsystem:   "node",
			Name:        "service_operation",
			ConstLabels: prometheus.Labels{"node_id": "1"},
		},
		[]string{"type", "status", "error_type"},
	)

	prometheus.MustRegister(promRoomsTotal)
	prometheus.MustRegister(promParticipantsTotal)
	prometheus.MustRegister(ServiceOperationCounter)
}

func RoomOpened() {
	promRoomsTotal.Inc()
}

func RoomClosed() {
	promRoomsTotal.Dec()
}

func ParticipantJoined() {
	promParticipantsTotal.Inc()
}

func ParticipantLeft() {
	promParticipantsTotal.Dec()
}
