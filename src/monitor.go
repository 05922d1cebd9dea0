package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Pluggable monitor: renders one primitive to one
 *		human-readable line and fans it out to listeners.
 *
 * Description: One formatter per protocol.  monitor_put formats the
 *		primitive once and hands the line to every registered
 *		listener synchronously under a lock; listeners must
 *		not block.  Overlong lines are truncated with an
 *		ellipsis.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"strings"
	"sync"
)

type monitor_provider_func func(prim *primitive_t) string
type monitor_listener_func func(line string, service string, tx bool, user_data any)

type monitor_listener_t struct {
	fn        monitor_listener_func
	user_data any
}

const monitor_max_line = 256

var monitor_providers map[protocol_t]monitor_provider_func
var monitor_listeners []*monitor_listener_t
var monitor_mutex sync.Mutex

func monitor_init() {
	monitor_mutex.Lock()
	monitor_providers = make(map[protocol_t]monitor_provider_func)
	monitor_listeners = nil
	monitor_mutex.Unlock()

	register_monitor_provider(DL, dl_monitor_provider)
	register_monitor_provider(MDL, dl_monitor_provider)
	register_monitor_provider(AX25, ax25_monitor_provider)
}

func monitor_term() {
	monitor_mutex.Lock()
	monitor_providers = nil
	monitor_listeners = nil
	monitor_mutex.Unlock()
}

func register_monitor_provider(protocol protocol_t, fn monitor_provider_func) {
	monitor_mutex.Lock()
	monitor_providers[protocol] = fn
	monitor_mutex.Unlock()
}

func register_monitor_listener(fn monitor_listener_func, user_data any) *monitor_listener_t {
	var l = &monitor_listener_t{fn: fn, user_data: user_data}
	monitor_mutex.Lock()
	monitor_listeners = append(monitor_listeners, l)
	monitor_mutex.Unlock()
	return l
}

func unregister_monitor_listener(l *monitor_listener_t) {
	monitor_mutex.Lock()
	for i, cand := range monitor_listeners {
		if cand == l {
			monitor_listeners = append(monitor_listeners[:i], monitor_listeners[i+1:]...)
			break
		}
	}
	monitor_mutex.Unlock()
}

/*-------------------------------------------------------------------
 *
 * Name:	monitor
 *
 * Purpose:	Render one primitive to one line, dispatching on its
 *		protocol.
 *
 *---------------------------------------------------------------*/

func monitor(prim *primitive_t) string {
	monitor_mutex.Lock()
	var provider = monitor_providers[prim.protocol]
	monitor_mutex.Unlock()

	var line string
	if provider == nil {
		line = fmt.Sprintf("[proto %d cmd %d size %d]",
			prim.protocol, prim.cmd, len(prim.payload))
	} else {
		line = provider(prim)
	}
	if len(line) > monitor_max_line {
		line = line[:monitor_max_line-1] + "…"
	}
	return line
}

/* Fan one primitive out to every listener. */
func monitor_put(prim *primitive_t, service string, tx bool) {
	monitor_mutex.Lock()
	var idle = len(monitor_listeners) == 0
	monitor_mutex.Unlock()
	if idle {
		return
	}

	var line = monitor(prim)
	monitor_mutex.Lock()
	defer monitor_mutex.Unlock()
	for _, l := range monitor_listeners {
		l.fn(line, service, tx, l.user_data)
	}
}

/*------------------------------------------------------------------
 *
 * Built-in formatters.
 *
 *---------------------------------------------------------------*/

var dl_cmd_names = map[uint8]string{
	DL_CONNECT_REQUEST:       "DL_CONNECT_REQUEST",
	DL_CONNECT_INDICATION:    "DL_CONNECT_INDICATION",
	DL_CONNECT_CONFIRM:       "DL_CONNECT_CONFIRM",
	DL_DISCONNECT_REQUEST:    "DL_DISCONNECT_REQUEST",
	DL_DISCONNECT_INDICATION: "DL_DISCONNECT_INDICATION",
	DL_DISCONNECT_CONFIRM:    "DL_DISCONNECT_CONFIRM",
	DL_DATA_REQUEST:          "DL_DATA_REQUEST",
	DL_DATA_INDICATION:       "DL_DATA_INDICATION",
	DL_UNIT_DATA_REQUEST:     "DL_UNIT_DATA_REQUEST",
	DL_UNIT_DATA_INDICATION:  "DL_UNIT_DATA_INDICATION",
	DL_ERROR_INDICATION:      "DL_ERROR_INDICATION",
	DL_FLOW_OFF_REQUEST:      "DL_FLOW_OFF_REQUEST",
	DL_FLOW_ON_REQUEST:       "DL_FLOW_ON_REQUEST",
	MDL_NEGOTIATE_REQUEST:    "MDL_NEGOTIATE_REQUEST",
	MDL_NEGOTIATE_CONFIRM:    "MDL_NEGOTIATE_CONFIRM",
	MDL_ERROR_INDICATION:     "MDL_ERROR_INDICATION",
	DL_TEST_REQUEST:          "DL_TEST_REQUEST",
	DL_TEST_INDICATION:       "DL_TEST_INDICATION",
	DL_TEST_CONFIRM:          "DL_TEST_CONFIRM",
}

/* Printable rendition of an information field. */
func monitor_put_info(data []byte) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, ch := range data {
		if ch >= 0x20 && ch < 0x7f {
			sb.WriteByte(ch)
		} else {
			sb.WriteByte('.')
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func dl_monitor_provider(prim *primitive_t) string {
	var name, ok = dl_cmd_names[prim.cmd]
	if !ok {
		name = fmt.Sprintf("DL[%d]", prim.cmd)
	}
	var sb strings.Builder
	sb.WriteString(name)
	for i := 0; ; i++ {
		var param = get_prim_param(prim, i)
		if param == nil {
			break
		}
		sb.WriteByte(' ')
		sb.WriteString(monitor_put_info(get_prim_param_data(param)))
	}
	return sb.String()
}

var ax25_cmd_names = map[AX25_CMD_t]string{
	AX25_I:     "I",
	AX25_RR:    "RR",
	AX25_RNR:   "RNR",
	AX25_REJ:   "REJ",
	AX25_SREJ:  "SREJ",
	AX25_SABME: "SABME",
	AX25_SABM:  "SABM",
	AX25_DISC:  "DISC",
	AX25_DM:    "DM",
	AX25_UA:    "UA",
	AX25_FRMR:  "FRMR",
	AX25_UI:    "UI",
	AX25_XID:   "XID",
	AX25_TEST:  "TEST",
}

func ax25_monitor_provider(prim *primitive_t) string {
	var af addressField_t
	if getFrameAddress(prim.payload, &af, nil) < 0 {
		return fmt.Sprintf("AX25 ??? %d octets", len(prim.payload))
	}

	var typ = prim_get_AX25_CMD(prim)
	var name, ok = ax25_cmd_names[typ]
	if !ok {
		name = fmt.Sprintf("?%02x", uint8(typ))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", addressFieldToString(&af), name)

	if prim_get_AX25_CmdRes(prim) {
		sb.WriteString(" C")
	} else {
		sb.WriteString(" R")
	}
	if prim_get_AX25_PollFinal(prim, false) {
		sb.WriteString(" P/F")
	}

	switch typ {
	case AX25_I:
		var nr = prim_get_AX25_NR(prim, false)
		var ns = prim_get_AX25_NS(prim, false)
		var pid, data, _ = prim_get_AX25_data(prim, false)
		fmt.Fprintf(&sb, " nr=%d ns=%d pid=%s %s",
			nr, ns, pid_name(pid), monitor_put_info(data))
	case AX25_UI:
		var pid, data, _ = prim_get_AX25_data(prim, false)
		fmt.Fprintf(&sb, " pid=%s %s", pid_name(pid), monitor_put_info(data))
	case AX25_RR, AX25_RNR, AX25_REJ, AX25_SREJ:
		fmt.Fprintf(&sb, " nr=%d", prim_get_AX25_NR(prim, false))
	case AX25_TEST, AX25_XID, AX25_FRMR:
		var _, data, has = prim_get_AX25_data(prim, false)
		if has && len(data) > 0 {
			sb.WriteByte(' ')
			sb.WriteString(monitor_put_info(data))
		}
	}

	if !prim_check_AX25_CRC(prim) {
		sb.WriteString(" [BAD FCS]")
	}
	return sb.String()
}
