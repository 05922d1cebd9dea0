package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Line-oriented terminal front end.
 *
 * Description: The terminal talks to the data link layer through its
 *		DLSAP like any other client.  Typed lines go out as
 *		connected data; a leading escape character switches to
 *		command mode with single-character commands:
 *
 *		  I <call>	set own callsign
 *		  R <addr>	set remote address
 *		  C [addr]	connect
 *		  D		disconnect
 *		  T [text]	send TEST
 *		  U <text>	send UI
 *		  M		toggle monitor output
 *		  L <level>	set log level
 *		  H		help
 *		  Q		quit
 *
 *		Output lines carry a lead column - ':' input echo,
 *		'>' remote data, '+' status, '!' error - unless
 *		--noleads was given.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

const terminal_client_handle = 1

type terminal_plugin_t struct {
	name string
	peer string

	dls      dls_t /* Back channel for indications. */
	peer_dls *dls_t

	mu            sync.Mutex
	server_handle uint16
	connected     bool
	cmd_mode      bool
	monitor_on    bool
	mon_listener  *monitor_listener_t

	wg      sync.WaitGroup
	running bool
}

func terminal_get_plugin(name string, configurator configurator_func, context any, ex *exception_t) any {
	var t = &terminal_plugin_t{name: name, cmd_mode: true}

	var descriptor = []setting_descriptor_t{
		{"peer", CSTR_T, &t.peer, "AX25", false},
	}
	if !configurator(t, descriptor, context, ex) {
		return nil
	}

	t.dls = dls_t{
		name:     name,
		on_write: terminal_on_write,
		session:  t,
	}
	return t
}

func terminal_start_plugin(handle any, ex *exception_t) bool {
	var t = handle.(*terminal_plugin_t)
	DBG_DEBUG("Start", t.name)

	t.peer_dls = dlsap_lookup_dls(t.peer)
	if t.peer_dls == nil {
		exception_fill(ex, ENOENT, t.name, "start_plugin",
			"SAP not found", t.peer)
		return false
	}
	if !dlsap_open(t.peer_dls, &t.dls, ex) {
		return false
	}

	t.running = true
	t.wg.Add(1)
	go t.input_thread()

	t.lead('+', "Borzoi terminal ready.  ESC for command mode, H for help.")
	return true
}

func terminal_stop_plugin(handle any, ex *exception_t) bool {
	var t = handle.(*terminal_plugin_t)
	DBG_DEBUG("Stop", t.name)

	t.running = false
	t.set_monitor(false)
	dlsap_close(t.peer_dls)
	return true
}

/*------------------------------------------------------------------
 *
 * Output.
 *
 *---------------------------------------------------------------*/

/* Width of the controlling terminal, for truncating monitor lines. */
func terminal_width() int {
	var ws, err = unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return 80
	}
	return int(ws.Col)
}

func (t *terminal_plugin_t) lead(lead byte, text string) {
	if configuration.noleads {
		fmt.Println(text)
		return
	}
	fmt.Printf("%c %s\n", lead, text)
}

func (t *terminal_plugin_t) monitor_line(line string, service string, tx bool, user_data any) {
	var dir = "<-"
	if tx {
		dir = "->"
	}
	var text = fmt.Sprintf("%s %s %s", service, dir, line)
	var width = terminal_width() - 2
	if len(text) > width && width > 1 {
		text = text[:width-1] + "…"
	}
	t.lead('+', text)
}

func (t *terminal_plugin_t) set_monitor(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if on && t.mon_listener == nil {
		t.mon_listener = register_monitor_listener(t.monitor_line, nil)
	}
	if !on && t.mon_listener != nil {
		unregister_monitor_listener(t.mon_listener)
		t.mon_listener = nil
	}
	t.monitor_on = on
}

/*------------------------------------------------------------------
 *
 * Indications from the data link layer.
 *
 *---------------------------------------------------------------*/

func terminal_on_write(dls *dls_t, prim *primitive_t, expedited bool, ex *exception_t) bool {
	var t, ok = dls.session.(*terminal_plugin_t)
	if !ok {
		exception_fill(ex, EINVAL, "Terminal", "on_write",
			"Channel disruption", "")
		return false
	}

	switch prim.cmd {
	case DL_CONNECT_CONFIRM:
		t.mu.Lock()
		t.server_handle = prim.serverHandle
		t.connected = true
		t.cmd_mode = false
		t.mu.Unlock()
		t.lead('+', "*** Connected")

	case DL_CONNECT_INDICATION:
		t.mu.Lock()
		t.server_handle = prim.serverHandle
		t.connected = true
		t.cmd_mode = false
		t.mu.Unlock()
		var remote = get_prim_param_str(get_prim_param(prim, 1))
		t.lead('+', "*** Connected by "+remote)

	case DL_DISCONNECT_INDICATION, DL_DISCONNECT_CONFIRM:
		t.mu.Lock()
		t.connected = false
		t.cmd_mode = true
		t.mu.Unlock()
		t.lead('+', "*** Disconnected")

	case DL_DATA_INDICATION:
		t.lead('>', get_prim_param_str(get_prim_param(prim, 0)))

	case DL_UNIT_DATA_INDICATION:
		var src = get_prim_param_str(get_prim_param(prim, 1))
		var text = get_prim_param_str(get_prim_param(prim, 2))
		t.lead('>', fmt.Sprintf("UI %s: %s", src, text))

	case DL_TEST_INDICATION:
		var src = get_prim_param_str(get_prim_param(prim, 1))
		t.lead('+', "TEST from "+src)

	case DL_TEST_CONFIRM:
		t.lead('+', "TEST reply: "+get_prim_param_str(get_prim_param(prim, 0)))

	case DL_ERROR_INDICATION:
		t.lead('!', get_prim_param_str(get_prim_param(prim, 1)))
	}
	return true
}

/*------------------------------------------------------------------
 *
 * Input.
 *
 *---------------------------------------------------------------*/

func (t *terminal_plugin_t) input_thread() {
	defer t.wg.Done()
	var scanner = bufio.NewScanner(os.Stdin)
	for t.running && scanner.Scan() {
		var line = scanner.Text()
		t.handle_line(line)
	}
}

func (t *terminal_plugin_t) handle_line(line string) {
	var esc = configuration.escape
	if esc == 0 {
		esc = 0x1b
	}
	if len(line) > 0 && line[0] == esc {
		t.mu.Lock()
		t.cmd_mode = !t.cmd_mode
		var mode = t.cmd_mode
		t.mu.Unlock()
		if mode {
			t.lead('+', "Command mode.")
		} else {
			t.lead('+', "Converse mode.")
		}
		line = line[1:]
		if line == "" {
			return
		}
	}

	t.mu.Lock()
	var cmd_mode = t.cmd_mode
	t.mu.Unlock()

	if cmd_mode {
		t.handle_command(line)
	} else {
		t.send_data(line)
	}
}

func (t *terminal_plugin_t) send_data(line string) {
	t.mu.Lock()
	var connected = t.connected
	var handle = t.server_handle
	t.mu.Unlock()
	if !connected {
		t.lead('!', "Not connected.")
		return
	}
	var ex exception_t
	var prim = new_DL_DATA_Request(terminal_client_handle, handle,
		[]byte(line+"\r"), &ex)
	if prim == nil || !dlsap_write(t.peer_dls, prim, false, &ex) {
		t.lead('!', ex.Error())
	}
	del_prim(prim)
	t.lead(':', line)
}

func (t *terminal_plugin_t) handle_command(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	var cmd = line[0]
	var arg = strings.TrimSpace(line[1:])
	var ex exception_t

	switch cmd {
	case 'i', 'I':
		var norm string
		if !dlsap_set_default_local_addr(t.peer_dls, arg, &norm, &ex) {
			t.lead('!', ex.Error())
			return
		}
		t.lead('+', "Identity "+norm)

	case 'r', 'R':
		var norm string
		if !dlsap_set_default_remote_addr(t.peer_dls, arg, &norm, &ex) {
			t.lead('!', ex.Error())
			return
		}
		t.lead('+', "Remote "+norm)

	case 'c', 'C':
		var prim = new_DL_CONNECT_Request(terminal_client_handle,
			[]byte(arg), nil, &ex)
		if prim == nil || !dlsap_write(t.peer_dls, prim, false, &ex) {
			t.lead('!', ex.Error())
		}
		del_prim(prim)
		t.lead('+', "Connecting...")

	case 'd', 'D':
		t.mu.Lock()
		var handle = t.server_handle
		t.mu.Unlock()
		var prim = new_DL_DISCONNECT_Request(terminal_client_handle, handle, &ex)
		if prim == nil || !dlsap_write(t.peer_dls, prim, false, &ex) {
			t.lead('!', ex.Error())
		}
		del_prim(prim)

	case 't', 'T':
		var prim = new_DL_TEST_Request(terminal_client_handle,
			nil, nil, []byte(arg), &ex)
		if prim == nil || !dlsap_write(t.peer_dls, prim, false, &ex) {
			t.lead('!', ex.Error())
		}
		del_prim(prim)

	case 'u', 'U':
		var prim = new_DL_UNIT_DATA_Request(terminal_client_handle,
			nil, nil, []byte(arg), &ex)
		if prim == nil || !dlsap_write(t.peer_dls, prim, false, &ex) {
			t.lead('!', ex.Error())
		}
		del_prim(prim)
		t.lead(':', arg)

	case 'm', 'M':
		t.mu.Lock()
		var on = !t.monitor_on
		t.mu.Unlock()
		t.set_monitor(on)
		if on {
			t.lead('+', "Monitor on.")
		} else {
			t.lead('+', "Monitor off.")
		}

	case 'l', 'L':
		var dl, ok = debug_level_from_string(strings.ToUpper(arg))
		if !ok {
			t.lead('!', "Log level is NONE|ERROR|WARNING|INFO|DEBUG.")
			return
		}
		configuration.loglevel = dl
		t.lead('+', "Log level "+strings.ToUpper(arg))

	case 'h', 'H':
		t.lead('+', "I <call>  R <addr>  C [addr]  D  T [text]  U <text>  M  L <level>  H  Q")

	case 'q', 'Q':
		t.lead('+', "Bye.")
		die()

	default:
		t.lead('!', "Unknown command.  H for help.")
	}
}

var terminal_plugin_descriptor = plugin_descriptor_t{
	get_plugin:   terminal_get_plugin,
	start_plugin: terminal_start_plugin,
	stop_plugin:  terminal_stop_plugin,
}
