package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	The AX.25 protocol module: binds codec, sessions and
 *		LAPB into one loadable unit.
 *
 * Description: The module registers one DLSAP for its client (the
 *		terminal or another upper layer) and opens the DLSAP
 *		of its physical peer with a private back channel.
 *		Primitives arriving on either side only get queued;
 *		all protocol work happens in the tick handler, which
 *		drains the RX buffer, the TX buffer and the elapsed
 *		timer list until all three are empty.
 *
 *---------------------------------------------------------------*/

import (
	"sync"
)

type ax25_plugin_t struct {
	name string

	/* Settings. */
	peer       string /* DLSAP name of the physical layer below. */
	n_sessions int
	maxframe   int
	paclen     int
	window     int
	pthresh    int
	n2         int
	irtt       uint /* Initial round trip time, ms.      */
	maxwait    uint /* Upper bound for T1 backoff, ms.   */
	lapbtimer  int  /* T1 backoff policy.                */
	t3_ms      uint
	t4_ms      uint
	modulo128  bool

	default_addr addressField_t

	sessions      []*session_t
	session_mutex sync.Mutex

	rx_buffer primbuffer_t
	tx_buffer primbuffer_t

	client_dls dls_t /* Registered; the upper layer writes here.  */
	server_dls dls_t /* Back channel handed to the physical peer. */

	tick tick_listener_t
}

/*-------------------------------------------------------------------
 *
 * Name:	onTick
 *
 * Purpose:	One cooperative pass: drain up to one RX primitive,
 *		one TX primitive and one elapsed timer, repeating
 *		until all three sources are empty.
 *
 *---------------------------------------------------------------*/

func (plugin *ax25_plugin_t) onTick(user_data any, ex *exception_t) bool {
	for {
		var busy = false
		/* Handle RX. */
		if prim := primbuffer_read_nonblock(&plugin.rx_buffer, nil); prim != nil {
			if !session_rx(plugin, prim, ex) {
				del_prim(prim)
				return false
			}
			del_prim(prim)
			busy = true
		}
		/* Handle TX. */
		if prim := primbuffer_read_nonblock(&plugin.tx_buffer, nil); prim != nil {
			if !session_tx(plugin, prim, ex) {
				del_prim(prim)
				return false
			}
			del_prim(prim)
			busy = true
		}
		/* Handle timer. */
		if t := timer_pop_elapsed(); t != nil {
			t.function(t)
			busy = true
		}
		if !busy {
			return true
		}
	}
}

/*------------------------------------------------------------------
 *
 * Outbound plumbing used by the LAPB engine and the session glue.
 *
 *---------------------------------------------------------------*/

/* Ship one frame primitive to the physical peer.  Consumes the
 * caller's reference. */
func (plugin *ax25_plugin_t) send_frame(prim *primitive_t) {
	monitor_put(prim, plugin.name, true)
	metrics_count_frame_tx(prim_get_AX25_CMD(prim))
	var ex exception_t
	if !dlsap_write(plugin.server_dls.peer, prim, false, &ex) {
		log_ex(&ex)
	}
	del_prim(prim)
}

/* Deliver one primitive to the upper layer.  Consumes the caller's
 * reference. */
func (plugin *ax25_plugin_t) send_to_client(prim *primitive_t, expedited bool) {
	monitor_put(prim, plugin.name, false)
	var peer = plugin.client_dls.peer
	if peer == nil {
		DBG_DEBUG(plugin.name, "No client attached, indication dropped")
		del_prim(prim)
		return
	}
	var ex exception_t
	if !dlsap_write(peer, prim, expedited, &ex) {
		log_ex(&ex)
	}
	del_prim(prim)
}

/* LAPB state transition upcall. */
func (plugin *ax25_plugin_t) state_upcall(axp *session_t, oldstate int, newstate int) {
	var ex exception_t

	metrics_set_sessions(plugin.count_active_sessions())

	switch {
	case newstate == LAPB_CONNECTED && oldstate == LAPB_SETUP:
		var cnf = new_DL_CONNECT_Confirm(axp.client_id, axp.server_id, &ex)
		if cnf != nil {
			plugin.send_to_client(cnf, true)
		}
	case newstate == LAPB_CONNECTED &&
		(oldstate == LAPB_DISCONNECTED || oldstate == LAPB_LISTEN):
		var ind = new_DL_CONNECT_Indication(axp.server_id,
			[]byte(callsignToString(axp.addr.source)),
			[]byte(callsignToString(axp.addr.destination)), &ex)
		if ind != nil {
			plugin.send_to_client(ind, true)
		}
	case newstate == LAPB_DISCONNECTED:
		var ind = new_DL_DISCONNECT_Indication(axp.client_id, axp.server_id,
			uint8(axp.reason), &ex)
		if ind != nil {
			plugin.send_to_client(ind, true)
		}
		del_session(axp)
	}
}

/* Received payload upcall. */
func (plugin *ax25_plugin_t) data_upcall(axp *session_t, pid uint8, data []byte) {
	var ex exception_t
	var ind = new_DL_DATA_Indication(axp.client_id, axp.server_id, data, &ex)
	if ind == nil {
		log_ex(&ex)
		return
	}
	_ = pid /* Only NO_L3 payloads have a consumer so far. */
	plugin.send_to_client(ind, false)
}

func (plugin *ax25_plugin_t) count_active_sessions() int {
	plugin.session_mutex.Lock()
	defer plugin.session_mutex.Unlock()
	var n = 0
	for _, axp := range plugin.sessions {
		if axp.is_active {
			n++
		}
	}
	return n
}

/*------------------------------------------------------------------
 *
 * DLSAP surface.
 *
 *---------------------------------------------------------------*/

func ax25_set_client_local_addr(dls *dls_t, addr string, norm *string, ex *exception_t) bool {
	var plugin, ok = dls.session.(*ax25_plugin_t)
	if !ok || dls != &plugin.client_dls {
		exception_fill(ex, EINVAL, "AX25", "set_default_local_addr",
			"Channel disruption", "")
		return false
	}
	var call = callsignFromString(addr, nil, ex)
	if call == 0 {
		return false
	}
	plugin.default_addr.source = call
	if getNRepeaters(&plugin.default_addr) == 0 && plugin.default_addr.destination != 0 {
		setXBit(&plugin.default_addr.source, true)
	}
	if norm != nil {
		*norm = callsignToString(call)
	}
	return true
}

func ax25_set_client_remote_addr(dls *dls_t, addr string, norm *string, ex *exception_t) bool {
	var plugin, ok = dls.session.(*ax25_plugin_t)
	if !ok || dls != &plugin.client_dls {
		exception_fill(ex, EINVAL, "AX25", "set_default_remote_addr",
			"Channel disruption", "")
		return false
	}
	var af addressField_t
	if !addressFieldFromString(plugin.default_addr.source, addr, &af, ex) {
		return false
	}
	plugin.default_addr = af
	if norm != nil {
		*norm = addressFieldToString(&af)
	}
	return true
}

func ax25_client_open(dls *dls_t, back *dls_t, ex *exception_t) bool {
	var plugin, ok = dls.session.(*ax25_plugin_t)
	if !ok || dls != &plugin.client_dls {
		exception_fill(ex, EINVAL, "AX25", "dls_open",
			"Channel disruption", "")
		return false
	}
	if back != nil && plugin.client_dls.peer != nil {
		exception_fill(ex, EEXIST, "AX25", "dls_open",
			"Channel already connected", "")
		return false
	}
	plugin.client_dls.peer = back
	return true
}

func ax25_client_close(dls *dls_t) {
	var plugin, ok = dls.session.(*ax25_plugin_t)
	if !ok || dls != &plugin.client_dls {
		return
	}
	plugin.client_dls.peer = nil
}

/* The upper layer writes DL requests; a connect request grabs a
 * session slot first so its serverHandle travels with the prim. */
func ax25_client_write(dls *dls_t, prim *primitive_t, expedited bool, ex *exception_t) bool {
	var plugin, ok = dls.session.(*ax25_plugin_t)
	if !ok || dls != &plugin.client_dls {
		exception_fill(ex, EINVAL, "AX25", "on_write",
			"Channel disruption", "")
		return false
	}
	if prim == nil {
		exception_fill(ex, EINVAL, "AX25", "on_write",
			"Primitive is nil", "")
		return false
	}

	switch prim.protocol {
	case DL:
		if prim.cmd == DL_CONNECT_REQUEST {
			var axp = alloc_session(plugin, ex)
			if axp == nil {
				return false
			}
			axp.client_id = prim.clientHandle
			prim.serverHandle = axp.server_id
		}
	case MDL:
		/* Queued for the tick handler like everything else. */
	default:
		exception_fill(ex, EXIT_FAILURE, "AX25", "on_write",
			"Unhandled protocol", "")
		return false
	}

	monitor_put(prim, dls.name, true)
	if !primbuffer_write_nonblock(&plugin.tx_buffer, prim, expedited) {
		exception_fill(ex, EAGAIN, "AX25", "on_write",
			"TX buffer full", "")
		return false
	}
	return true
}

func ax25_client_queue_stats(dls *dls_t, stats *dls_stats_t) {
	var plugin, ok = dls.session.(*ax25_plugin_t)
	if !ok {
		return
	}
	var pbs primbuffer_stats_t
	primbuffer_stats(&plugin.tx_buffer, &pbs)
	stats.queue_size = pbs.size
	stats.queue_free = pbs.free
}

/* The physical peer writes received frames into the RX buffer. */
func ax25_server_write(dls *dls_t, prim *primitive_t, expedited bool, ex *exception_t) bool {
	var plugin, ok = dls.session.(*ax25_plugin_t)
	if !ok || dls != &plugin.server_dls {
		exception_fill(ex, EINVAL, "AX25", "on_write",
			"Channel disruption", "")
		return false
	}
	if !primbuffer_write_nonblock(&plugin.rx_buffer, prim, expedited) {
		exception_fill(ex, EAGAIN, "AX25", "on_write",
			"RX buffer full", "")
		return false
	}
	return true
}

/*------------------------------------------------------------------
 *
 * Plugin lifecycle.
 *
 *---------------------------------------------------------------*/

func ax25_get_plugin(name string, configurator configurator_func, context any, ex *exception_t) any {
	var plugin = &ax25_plugin_t{name: name}

	var modulo uint
	var pthresh int
	var descriptor = []setting_descriptor_t{
		{"peer", CSTR_T, &plugin.peer, "axudp", false},
		{"n_sessions", NSIZE_T, &plugin.n_sessions, "8", false},
		{"maxframe", NSIZE_T, &plugin.maxframe, "4", false},
		{"paclen", NSIZE_T, &plugin.paclen, "256", false},
		{"window", NSIZE_T, &plugin.window, "2048", false},
		{"pthresh", INT_T, &pthresh, "128", false},
		{"n2", NSIZE_T, &plugin.n2, "10", false},
		{"irtt", UINT_T, &plugin.irtt, "3000", false},
		{"maxwait", UINT_T, &plugin.maxwait, "30000", false},
		{"lapbtimer", INT_T, &plugin.lapbtimer, "0", false},
		{"t3", UINT_T, &plugin.t3_ms, "300000", false},
		{"t4", UINT_T, &plugin.t4_ms, "900000", false},
		{"modulo", UINT_T, &modulo, "8", false},
	}
	if !configurator(plugin, descriptor, context, ex) {
		return nil
	}
	plugin.pthresh = pthresh
	plugin.modulo128 = modulo == 128

	plugin.client_dls = dls_t{
		name:                    name,
		set_default_local_addr:  ax25_set_client_local_addr,
		set_default_remote_addr: ax25_set_client_remote_addr,
		open:                    ax25_client_open,
		close:                   ax25_client_close,
		on_write:                ax25_client_write,
		get_queue_stats:         ax25_client_queue_stats,
		session:                 plugin,
	}
	plugin.server_dls = dls_t{
		name:     name + ".phy",
		on_write: ax25_server_write,
		session:  plugin,
	}

	DBG_INFO("Register Service Access Point", name)
	if !dlsap_register_dls(&plugin.client_dls, ex) {
		return nil
	}
	return plugin
}

func ax25_start_plugin(handle any, ex *exception_t) bool {
	var plugin = handle.(*ax25_plugin_t)
	DBG_DEBUG("Start", plugin.name)

	plugin.sessions = make([]*session_t, plugin.n_sessions)
	for i := range plugin.sessions {
		plugin.sessions[i] = &session_t{}
		init_session(plugin.sessions[i], plugin, uint16(i))
	}

	primbuffer_init(&plugin.rx_buffer, 0)
	primbuffer_init(&plugin.tx_buffer, 0)

	var peer = dlsap_lookup_dls(plugin.peer)
	if peer == nil {
		exception_fill(ex, ENOENT, plugin.name, "start_plugin",
			"SAP not found", plugin.peer)
		return false
	}
	plugin.server_dls.peer = peer
	if !dlsap_open(peer, &plugin.server_dls, ex) {
		return false
	}

	plugin.tick = tick_listener_t{
		onTick:    plugin.onTick,
		user_data: plugin,
	}
	registerTickListener(&plugin.tick)
	return true
}

func ax25_stop_plugin(handle any, ex *exception_t) bool {
	var plugin = handle.(*ax25_plugin_t)
	DBG_DEBUG("Stop", plugin.name)

	unregisterTickListener(&plugin.tick)
	dlsap_close(plugin.server_dls.peer)
	plugin.server_dls.peer = nil
	primbuffer_destroy(&plugin.rx_buffer)
	primbuffer_destroy(&plugin.tx_buffer)
	for _, axp := range plugin.sessions {
		term_session(axp)
	}
	plugin.sessions = nil
	dlsap_unregister_dls(&plugin.client_dls, nil)
	return true
}

var ax25_plugin_descriptor = plugin_descriptor_t{
	get_plugin:   ax25_get_plugin,
	start_plugin: ax25_start_plugin,
	stop_plugin:  ax25_stop_plugin,
}
