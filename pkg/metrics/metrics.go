// Package metrics экспортирует Prometheus метрики SIP сигнализации и presence потоков.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector собирает метрики транспорта и refresh потоков.
//
// Все методы безопасны для nil получателя: компоненты, созданные без метрик,
// просто ничего не записывают.
type MetricsCollector struct {
	requestsSent     *prometheus.CounterVec
	responses        *prometheus.CounterVec
	timeouts         *prometheus.CounterVec
	sendLatency      *prometheus.HistogramVec
	stateTransitions *prometheus.CounterVec
	flowsActive      *prometheus.GaugeVec
	notifications    *prometheus.CounterVec
	reRegistrations  prometheus.Counter
}

// MetricsConfig конфигурация системы метрик
type MetricsConfig struct {
	// Namespace префикс для Prometheus метрик
	Namespace string

	// Subsystem подсистема для Prometheus метрик
	Subsystem string
}

// DefaultMetricsConfig возвращает конфигурацию по умолчанию
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "ims",
		Subsystem: "sip",
	}
}

// NewMetricsCollector создает сборщик и регистрирует метрики в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetricsCollector(config MetricsConfig, reg prometheus.Registerer) *MetricsCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	ns, sub := config.Namespace, config.Subsystem

	return &MetricsCollector{
		requestsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "requests_sent_total",
			Help:      "Total number of SIP requests sent",
		}, []string{"method"}),
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "responses_total",
			Help:      "Total number of final SIP responses received",
		}, []string{"method", "class"}),
		timeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "transaction_timeouts_total",
			Help:      "Total number of client transactions without a final response",
		}, []string{"method"}),
		sendLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "transaction_duration_seconds",
			Help:      "Time from request send to final response",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 32},
		}, []string{"method"}),
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "refresh_state_transitions_total",
			Help:      "Refresh flow state machine transitions",
		}, []string{"flow", "from", "to"}),
		flowsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "refresh_flow_active",
			Help:      "1 while the refresh flow holds an armed refresh timer",
		}, []string{"flow"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "notifications_total",
			Help:      "Inbound NOTIFY bodies by decoded part kind",
		}, []string{"kind"}),
		reRegistrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "reregistrations_total",
			Help:      "Re-registrations triggered by 403 without Warning",
		}),
	}
}

// RequestSent учитывает отправленный запрос
func (mc *MetricsCollector) RequestSent(method string) {
	if mc == nil {
		return
	}
	mc.requestsSent.WithLabelValues(method).Inc()
}

// ResponseReceived учитывает финальный ответ и время транзакции
func (mc *MetricsCollector) ResponseReceived(method string, status int, elapsed time.Duration) {
	if mc == nil {
		return
	}
	mc.responses.WithLabelValues(method, statusClass(status)).Inc()
	mc.sendLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Timeout учитывает транзакцию без ответа
func (mc *MetricsCollector) Timeout(method string) {
	if mc == nil {
		return
	}
	mc.timeouts.WithLabelValues(method).Inc()
}

// StateTransition учитывает переход refresh потока
func (mc *MetricsCollector) StateTransition(flow, from, to string) {
	if mc == nil {
		return
	}
	mc.stateTransitions.WithLabelValues(flow, from, to).Inc()
}

// FlowActive выставляет признак активности потока
func (mc *MetricsCollector) FlowActive(flow string, active bool) {
	if mc == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	mc.flowsActive.WithLabelValues(flow).Set(v)
}

// NotifyReceived учитывает разобранную часть входящего NOTIFY
func (mc *MetricsCollector) NotifyReceived(kind string) {
	if mc == nil {
		return
	}
	mc.notifications.WithLabelValues(kind).Inc()
}

// ReRegistration учитывает запуск перерегистрации
func (mc *MetricsCollector) ReRegistration() {
	if mc == nil {
		return
	}
	mc.reRegistrations.Inc()
}

func statusClass(status int) string {
	if status < 100 || status > 699 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
