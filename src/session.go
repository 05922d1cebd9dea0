package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Per-connection control blocks and the glue between
 *		DLSAP primitives and the LAPB engine.
 *
 * Description: Sessions live in a fixed pool owned by the AX.25
 *		module.  session_rx handles frames coming up from the
 *		physical layer; session_tx handles DL requests coming
 *		down from the client.  Both run only in the tick
 *		thread.
 *
 *---------------------------------------------------------------*/

type session_flags_t struct {
	rejsent     bool /* REJ frame has been sent            */
	remotebusy  bool /* Remote sent RNR                    */
	rtt_run     bool /* Round trip "timer" is running      */
	retrans     bool /* A retransmission has occurred      */
	clone       bool /* Server-type block, will be cloned  */
	rxd_i_frame bool /* I frame received since last SABM   */
	local_busy  bool /* Upper layer turned flow off        */
}

type session_t struct {
	server_id uint16
	client_id uint16
	is_active bool

	plugin *ax25_plugin_t
	addr   addressField_t /* source = local, destination = remote */

	modulo128 bool
	proto     int /* V1 or V2 */
	state     int
	flags     session_flags_t
	reason    int
	response  uint8 /* Response owed to the other end */

	vs    int /* Our send state variable     */
	vr    int /* Our receive state variable  */
	unack int /* Number of unacked frames    */

	maxframe int /* Transmit flow control level, frames  */
	paclen   int /* Maximum outbound packet size, bytes  */
	window   int /* Local flow control limit, bytes      */
	pthresh  int /* Poll threshold, bytes                */
	n2       int /* Retry limit                          */
	retries  int /* Retry counter                        */

	txq       [][]byte /* I fields (PID + data), oldest first; the  */
	/*                    first unack entries are sent but unacked. */
	rxasm     []byte   /* Segment reassembly buffer                 */
	segremain int      /* Segmenter state                           */
	rxq       [][]byte /* Held indications while flow is off        */

	t1 timer_t /* Retry timer           */
	t3 timer_t /* Keep-alive poll timer */
	t4 timer_t /* Link redundancy timer */

	rtt_time int64 /* Clock value for RTT, jiffies   */
	rtt_seq  int   /* Sequence number being timed    */
	srt      int64 /* Smoothed round-trip time, ms   */
	mdev     int64 /* Mean rtt deviation, ms         */
}

func init_session(axp *session_t, plugin *ax25_plugin_t, server_id uint16) {
	axp.server_id = server_id
	axp.plugin = plugin
	axp.is_active = false
	axp.state = LAPB_DISCONNECTED

	timer_init(&axp.t1, int64(2*plugin.irtt), axp, func(*timer_t) { t1_expired(axp) })
	timer_init(&axp.t3, int64(plugin.t3_ms), axp, func(*timer_t) { t3_expired(axp) })
	timer_init(&axp.t4, int64(plugin.t4_ms), axp, func(*timer_t) { t4_expired(axp) })
}

func term_session(axp *session_t) {
	timer_destroy(&axp.t1)
	timer_destroy(&axp.t3)
	timer_destroy(&axp.t4)
	axp.is_active = false
}

/* Return a finished session to the pool.  Timers stay initialized. */
func del_session(axp *session_t) {
	timer_stop(&axp.t1)
	timer_stop(&axp.t3)
	timer_stop(&axp.t4)
	axp.txq = nil
	axp.rxq = nil
	axp.rxasm = nil
	axp.segremain = 0

	var plugin = axp.plugin
	plugin.session_mutex.Lock()
	axp.is_active = false
	plugin.session_mutex.Unlock()
}

/* Reset the working set of a (re)activated session from the plugin
 * defaults. */
func reset_session(axp *session_t) {
	var p = axp.plugin
	axp.state = LAPB_DISCONNECTED
	axp.flags = session_flags_t{}
	axp.reason = LB_NORMAL
	axp.response = 0
	axp.vs = 0
	axp.vr = 0
	axp.unack = 0
	axp.retries = 0
	axp.maxframe = p.maxframe
	axp.paclen = p.paclen
	axp.window = p.window
	axp.pthresh = p.pthresh
	axp.n2 = p.n2
	axp.proto = V2
	axp.modulo128 = p.modulo128
	axp.txq = nil
	axp.rxq = nil
	axp.rxasm = nil
	axp.segremain = 0
	axp.srt = int64(p.irtt)
	axp.mdev = 0
	axp.rtt_seq = 0
	axp.rtt_time = 0
	timer_set_duration_ms(&axp.t1, 2*axp.srt)
	timer_set_duration_ms(&axp.t3, int64(p.t3_ms))
	timer_set_duration_ms(&axp.t4, int64(p.t4_ms))
}

/*-------------------------------------------------------------------
 *
 * Name:	find_session / alloc_session
 *
 * Purpose:	Look up the active session matching an inbound frame
 *		by (remote, local) address pair; allocate a fresh one
 *		from the pool.
 *
 *---------------------------------------------------------------*/

/* Callsign comparison ignoring the C/H/X flag bits. */
func same_call(a callsign, b callsign) bool {
	const flagmask = callsign(0x81) << 48
	return a&^flagmask == b&^flagmask
}

func find_session(plugin *ax25_plugin_t, remote callsign, local callsign) *session_t {
	plugin.session_mutex.Lock()
	defer plugin.session_mutex.Unlock()
	for _, axp := range plugin.sessions {
		if axp.is_active &&
			same_call(axp.addr.destination, remote) &&
			same_call(axp.addr.source, local) {
			return axp
		}
	}
	return nil
}

func alloc_session(plugin *ax25_plugin_t, ex *exception_t) *session_t {
	plugin.session_mutex.Lock()
	defer plugin.session_mutex.Unlock()
	for _, axp := range plugin.sessions {
		if !axp.is_active {
			axp.is_active = true
			return axp
		}
	}
	exception_fill(ex, ENOMEM, plugin.name, "alloc_session",
		"No session available", "")
	return nil
}

/*-------------------------------------------------------------------
 *
 * Name:	session_rx
 *
 * Purpose:	Handle one AX25 frame primitive coming up from the
 *		physical layer.
 *
 *---------------------------------------------------------------*/

func session_rx(plugin *ax25_plugin_t, prim *primitive_t, ex *exception_t) bool {
	if prim.protocol != AX25 {
		exception_fill(ex, EINVAL, plugin.name, "session_rx",
			"Unhandled protocol", "")
		return false
	}
	if !prim_check_AX25_CRC(prim) {
		DBG_DEBUG("session_rx", "Bad FCS, frame dropped")
		metrics_count_bad_fcs()
		return true
	}

	var af addressField_t
	var alen = getFrameAddress(prim.payload, &af, ex)
	if alen < 0 {
		DBG_DEBUG("session_rx", "Malformed address field, frame dropped")
		return true
	}
	var body = prim.payload[alen : len(prim.payload)-2]

	monitor_put(prim, plugin.name, false)
	metrics_count_frame_rx(prim_get_AX25_CMD(prim))

	/* Command or response?  AX.25 v2 signals this with opposing C
	 * bits; v1 sets neither or both. */
	var cmdrsp = LAPB_UNKNOWN
	if prim_get_AX25_V2(prim) {
		if prim_get_AX25_CmdRes(prim) {
			cmdrsp = LAPB_COMMAND
		} else {
			cmdrsp = LAPB_RESPONSE
		}
	}

	/* Connectionless frames never touch a session. */
	var typ, _, _, pf, _ = decode_control(body, false)
	switch typ {
	case AX25_UI:
		rx_ui(plugin, &af, body, ex)
		return true
	case AX25_TEST:
		rx_test(plugin, &af, body, cmdrsp, pf, ex)
		return true
	case AX25_XID:
		/* Negotiation is not offered; silence makes a v2.2 peer
		 * fall back to defaults. */
		return true
	}

	/* On the wire the frame carries our address as destination.  The
	 * session's address field is in transmit orientation.  A frame
	 * with no matching session gets a throwaway control block in
	 * DISCONNECTED state, which answers DISC with DM and accepts
	 * SABM. */
	var axp = find_session(plugin, af.source, af.destination)
	if axp == nil {
		axp = alloc_session(plugin, ex)
		if axp == nil {
			return true /* Pool exhausted; drop. */
		}
		reset_session(axp)
		axp.client_id = prim.clientHandle
		/* Flip into transmit orientation: his source is our remote. */
		addressFieldReverse(&af, &axp.addr)
	}

	lapb_input(axp, cmdrsp, body)
	return true
}

/* Build the transmit-orientation address field for replying. */
func addressFieldReverse(rx *addressField_t, tx *addressField_t) {
	*tx = addressField_t{}
	tx.destination = rx.source
	tx.source = rx.destination
	setHBit(&tx.destination, false)
	setHBit(&tx.source, false)
	setXBit(&tx.destination, false)
	/* Digipeaters travel in reverse order on the way back. */
	var n = getNRepeaters(rx)
	for i := 0; i < n; i++ {
		tx.repeaters[i] = rx.repeaters[n-1-i]
		setHBit(&tx.repeaters[i], false)
		setXBit(&tx.repeaters[i], false)
	}
	if n > 0 {
		setXBit(&tx.source, false)
		setXBit(&tx.repeaters[n-1], true)
	} else {
		setXBit(&tx.source, true)
	}
}

/* Inbound UI frame: DL_UNIT_DATA_Indication upstairs. */
func rx_ui(plugin *ax25_plugin_t, af *addressField_t, body []byte, ex *exception_t) {
	var cl = control_length(body, false)
	if len(body) < cl+1 {
		return
	}
	var data = body[cl+1:]
	var prim = new_DL_UNIT_DATA_Indication(0,
		[]byte(callsignToString(af.destination)),
		[]byte(callsignToString(af.source)),
		data, ex)
	if prim == nil {
		return
	}
	plugin.send_to_client(prim, false)
}

/* Inbound TEST frame: echo a response to a command, confirm a
 * response upstairs. */
func rx_test(plugin *ax25_plugin_t, af *addressField_t, body []byte, cmdrsp int, pf bool, ex *exception_t) {
	var cl = control_length(body, false)
	var data = body[cl:]

	if cmdrsp == LAPB_COMMAND {
		var tx addressField_t
		addressFieldReverse(af, &tx)
		var reply = new_AX25_TEST(0, 0, &tx, false, pf, data, ex)
		if reply != nil {
			plugin.send_frame(reply)
		}
		var ind = new_DL_TEST_Indication(0,
			[]byte(callsignToString(af.destination)),
			[]byte(callsignToString(af.source)),
			data, ex)
		if ind != nil {
			plugin.send_to_client(ind, false)
		}
		return
	}

	var cnf = new_DL_TEST_Confirm(0, 0, data, ex)
	if cnf != nil {
		plugin.send_to_client(cnf, false)
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	session_tx
 *
 * Purpose:	Handle one DL request primitive coming down from the
 *		client.
 *
 *---------------------------------------------------------------*/

func session_tx(plugin *ax25_plugin_t, prim *primitive_t, ex *exception_t) bool {
	if prim.protocol == MDL {
		return session_tx_mdl(plugin, prim, ex)
	}
	if prim.protocol != DL {
		exception_fill(ex, EINVAL, plugin.name, "session_tx",
			"Unhandled protocol", "")
		return false
	}

	switch prim.cmd {
	case DL_CONNECT_REQUEST:
		return tx_connect_request(plugin, prim, ex)

	case DL_DATA_REQUEST:
		var axp = session_by_handle(plugin, prim.serverHandle)
		if axp == nil {
			return true
		}
		send_ax25(axp, PID_NO_L3, get_prim_param_data(get_prim_param(prim, 0)))

	case DL_DISCONNECT_REQUEST:
		var axp = session_by_handle(plugin, prim.serverHandle)
		if axp == nil {
			return true
		}
		disc_ax25(axp)

	case DL_UNIT_DATA_REQUEST:
		return tx_unit_data_request(plugin, prim, ex)

	case DL_TEST_REQUEST:
		return tx_test_request(plugin, prim, ex)

	case DL_FLOW_OFF_REQUEST:
		var axp = session_by_handle(plugin, prim.serverHandle)
		if axp != nil {
			flow_off_ax25(axp)
		}

	case DL_FLOW_ON_REQUEST:
		var axp = session_by_handle(plugin, prim.serverHandle)
		if axp != nil {
			flow_on_ax25(axp)
		}

	default:
		DBG_DEBUG("session_tx", "Unhandled DL command")
	}
	return true
}

/* MDL negotiation is acknowledged with current defaults. */
func session_tx_mdl(plugin *ax25_plugin_t, prim *primitive_t, ex *exception_t) bool {
	if prim.cmd == MDL_NEGOTIATE_REQUEST {
		var cnf = new_MDL_NEGOTIATE_Confirm(prim.clientHandle, prim.serverHandle, ex)
		if cnf != nil {
			plugin.send_to_client(cnf, true)
		}
	}
	return true
}

func session_by_handle(plugin *ax25_plugin_t, serverHandle uint16) *session_t {
	if int(serverHandle) >= len(plugin.sessions) {
		return nil
	}
	var axp = plugin.sessions[serverHandle]
	if !axp.is_active {
		return nil
	}
	return axp
}

func tx_connect_request(plugin *ax25_plugin_t, prim *primitive_t, ex *exception_t) bool {
	var axp = session_by_handle(plugin, prim.serverHandle)
	if axp == nil {
		return true
	}
	axp.client_id = prim.clientHandle
	reset_session(axp)
	axp.is_active = true

	var dst = get_prim_param_str(get_prim_param(prim, 0))
	var src = get_prim_param_str(get_prim_param(prim, 1))

	var source callsign
	if src != "" {
		source = callsignFromString(src, nil, ex)
		if source == 0 {
			del_session(axp)
			return true
		}
	} else {
		source = plugin.default_addr.source
	}
	if dst != "" {
		if !addressFieldFromString(source, dst, &axp.addr, ex) {
			del_session(axp)
			return true
		}
	} else {
		axp.addr = plugin.default_addr
	}

	est_link(axp)
	lapbstate(axp, LAPB_SETUP)
	return true
}

func tx_unit_data_request(plugin *ax25_plugin_t, prim *primitive_t, ex *exception_t) bool {
	var dst = get_prim_param_str(get_prim_param(prim, 0))
	var src = get_prim_param_str(get_prim_param(prim, 1))
	var data = get_prim_param_data(get_prim_param(prim, 2))

	var af, ok = resolve_addr(plugin, dst, src, ex)
	if !ok {
		return true
	}
	var ui = new_AX25_UI(prim.clientHandle, 0, PID_NO_L3, &af, true, false, data, ex)
	if ui == nil {
		return true
	}
	plugin.send_frame(ui)
	return true
}

func tx_test_request(plugin *ax25_plugin_t, prim *primitive_t, ex *exception_t) bool {
	var dst = get_prim_param_str(get_prim_param(prim, 0))
	var src = get_prim_param_str(get_prim_param(prim, 1))
	var data = get_prim_param_data(get_prim_param(prim, 2))

	var af, ok = resolve_addr(plugin, dst, src, ex)
	if !ok {
		return true
	}
	var test = new_AX25_TEST(prim.clientHandle, 0, &af, true, true, data, ex)
	if test == nil {
		return true
	}
	plugin.send_frame(test)
	return true
}

/* Address field from explicit strings, falling back to the module
 * defaults. */
func resolve_addr(plugin *ax25_plugin_t, dst string, src string, ex *exception_t) (addressField_t, bool) {
	var af addressField_t

	var source callsign
	if src != "" {
		source = callsignFromString(src, nil, ex)
		if source == 0 {
			return af, false
		}
	} else {
		source = plugin.default_addr.source
	}
	if dst == "" {
		af = plugin.default_addr
		return af, af.destination != 0
	}
	if !addressFieldFromString(source, dst, &af, ex) {
		return af, false
	}
	return af, true
}
