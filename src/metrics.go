package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Prometheus instrumentation.
 *
 * Description: Optional plugin exposing stack counters over HTTP.
 *		The counter helpers below are safe to call whether or
 *		not the plugin is configured; they are cheap no-ops
 *		until start.
 *
 *---------------------------------------------------------------*/

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics_plugin_t struct {
	name   string
	listen string
	server *http.Server

	frames_rx *prometheus.CounterVec
	frames_tx *prometheus.CounterVec
	bad_fcs   prometheus.Counter
	retrans   prometheus.Counter
	t1_exp    prometheus.Counter
	log_lost  prometheus.Counter
	sessions  prometheus.Gauge
}

var metrics_active atomic.Pointer[metrics_plugin_t]

func metrics_get_plugin(name string, configurator configurator_func, context any, ex *exception_t) any {
	var mp = &metrics_plugin_t{name: name}

	var descriptor = []setting_descriptor_t{
		{"listen", CSTR_T, &mp.listen, ":9110", false},
	}
	if !configurator(mp, descriptor, context, ex) {
		return nil
	}

	mp.frames_rx = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "borzoi_frames_received_total",
		Help: "AX.25 frames received, by frame type.",
	}, []string{"type"})
	mp.frames_tx = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "borzoi_frames_sent_total",
		Help: "AX.25 frames sent, by frame type.",
	}, []string{"type"})
	mp.bad_fcs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "borzoi_frames_bad_fcs_total",
		Help: "Received frames dropped for a bad FCS.",
	})
	mp.retrans = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "borzoi_lapb_retransmissions_total",
		Help: "LAPB I-frame retransmissions.",
	})
	mp.t1_exp = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "borzoi_lapb_t1_expirations_total",
		Help: "T1 retry timer expirations.",
	})
	mp.log_lost = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "borzoi_log_bytes_lost_total",
		Help: "Log bytes dropped by the asynchronous log ring.",
	})
	mp.sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "borzoi_sessions_active",
		Help: "Active LAPB sessions.",
	})
	return mp
}

func metrics_start(handle any, ex *exception_t) bool {
	var mp = handle.(*metrics_plugin_t)
	DBG_DEBUG("Start", mp.name)

	var registry = prometheus.NewRegistry()
	registry.MustRegister(mp.frames_rx, mp.frames_tx, mp.bad_fcs,
		mp.retrans, mp.t1_exp, mp.log_lost, mp.sessions)

	var mux = http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mp.server = &http.Server{Addr: mp.listen, Handler: mux}

	go func() {
		if err := mp.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			DBG_ERROR("Metrics listener failed", err.Error())
		}
	}()

	metrics_active.Store(mp)
	DBG_INFO("Metrics on", mp.listen)
	return true
}

func metrics_stop(handle any, ex *exception_t) bool {
	var mp = handle.(*metrics_plugin_t)
	DBG_DEBUG("Stop", mp.name)

	metrics_active.Store(nil)
	if mp.server != nil {
		mp.server.Close()
		mp.server = nil
	}
	return true
}

var metrics_plugin_descriptor = plugin_descriptor_t{
	get_plugin:   metrics_get_plugin,
	start_plugin: metrics_start,
	stop_plugin:  metrics_stop,
}

/*------------------------------------------------------------------
 *
 * Helpers used from the hot paths.
 *
 *---------------------------------------------------------------*/

func metrics_frame_type(typ AX25_CMD_t) string {
	if name, ok := ax25_cmd_names[typ]; ok {
		return name
	}
	return "OTHER"
}

func metrics_count_frame_rx(typ AX25_CMD_t) {
	if mp := metrics_active.Load(); mp != nil {
		mp.frames_rx.WithLabelValues(metrics_frame_type(typ)).Inc()
	}
}

func metrics_count_frame_tx(typ AX25_CMD_t) {
	if mp := metrics_active.Load(); mp != nil {
		mp.frames_tx.WithLabelValues(metrics_frame_type(typ)).Inc()
	}
}

func metrics_count_bad_fcs() {
	if mp := metrics_active.Load(); mp != nil {
		mp.bad_fcs.Inc()
	}
}

func metrics_count_retransmission() {
	if mp := metrics_active.Load(); mp != nil {
		mp.retrans.Inc()
	}
}

func metrics_count_t1_expired() {
	if mp := metrics_active.Load(); mp != nil {
		mp.t1_exp.Inc()
	}
}

func metrics_count_log_lost(n int) {
	if mp := metrics_active.Load(); mp != nil {
		mp.log_lost.Add(float64(n))
	}
}

func metrics_set_sessions(n int) {
	if mp := metrics_active.Load(); mp != nil {
		mp.sessions.Set(float64(n))
	}
}
