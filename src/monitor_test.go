package borzoi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorUIFrame(t *testing.T) {
	monitor_init()
	defer monitor_term()

	var ex exception_t
	var af = test_af(t, "DF9RY-7", "APRS VIA WIDE1-1")
	var ui = new_AX25_UI(0, 0, PID_NO_L3, &af, true, false, []byte("hello"), &ex)
	require.NotNil(t, ui)

	var line = monitor(ui)
	assert.Contains(t, line, "DF9RY-7")
	assert.Contains(t, line, "APRS")
	assert.Contains(t, line, "WIDE1-1")
	assert.Contains(t, line, " UI ")
	assert.Contains(t, line, "NO_L3")
	assert.Contains(t, line, `"hello"`)
	assert.NotContains(t, line, "BAD FCS")
}

func TestMonitorIFrame(t *testing.T) {
	monitor_init()
	defer monitor_term()

	var ex exception_t
	var af = test_af(t, "DF9RY-7", "APRS")
	var prim = new_AX25_I(0, 0, PID_NO_L3, false, &af, 3, 5, []byte("x"), &ex)

	var line = monitor(prim)
	assert.Contains(t, line, "nr=3")
	assert.Contains(t, line, "ns=5")
}

func TestMonitorUnprintableBytes(t *testing.T) {
	monitor_init()
	defer monitor_term()

	var ex exception_t
	var af = test_af(t, "DF9RY-7", "APRS")
	var ui = new_AX25_UI(0, 0, PID_NO_L3, &af, true, false, []byte{'a', 0x01, 'b'}, &ex)

	var line = monitor(ui)
	assert.Contains(t, line, `"a.b"`)
}

func TestMonitorDLPrimitive(t *testing.T) {
	monitor_init()
	defer monitor_term()

	var ex exception_t
	var prim = new_DL_UNIT_DATA_Request(1, []byte("APRS"), []byte("N0CALL"), []byte("hi"), &ex)

	var line = monitor(prim)
	assert.Contains(t, line, "DL_UNIT_DATA_REQUEST")
	assert.Contains(t, line, `"APRS"`)
	assert.Contains(t, line, `"hi"`)
}

func TestMonitorBadFCSFlagged(t *testing.T) {
	monitor_init()
	defer monitor_term()

	var ex exception_t
	var af = test_af(t, "DF9RY-7", "APRS")
	var ui = new_AX25_UI(0, 0, PID_NO_L3, &af, true, false, []byte("x"), &ex)
	ui.payload[len(ui.payload)-1] ^= 0xff

	assert.Contains(t, monitor(ui), "[BAD FCS]")
}

func TestMonitorListenerFanout(t *testing.T) {
	monitor_init()
	defer monitor_term()

	var ex exception_t
	var prim = new_DL_CONNECT_Confirm(1, 2, &ex)

	type seen_t struct {
		line    string
		service string
		tx      bool
	}
	var first, second []seen_t

	var l1 = register_monitor_listener(func(line string, service string, tx bool, user_data any) {
		first = append(first, seen_t{line, service, tx})
	}, nil)
	var l2 = register_monitor_listener(func(line string, service string, tx bool, user_data any) {
		second = append(second, seen_t{line, service, tx})
	}, nil)

	monitor_put(prim, "AX25", true)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0], second[0])
	assert.Equal(t, "AX25", first[0].service)
	assert.True(t, first[0].tx)
	assert.Contains(t, first[0].line, "DL_CONNECT_CONFIRM")

	// After unregistering, only the survivor sees traffic.
	unregister_monitor_listener(l1)
	monitor_put(prim, "AX25", false)
	assert.Len(t, first, 1)
	assert.Len(t, second, 2)
	unregister_monitor_listener(l2)
}

func TestPidNames(t *testing.T) {
	assert.Equal(t, "NO_L3", pid_name(PID_NO_L3))
	assert.Equal(t, "IP", pid_name(PID_IP))
	assert.Equal(t, "0x42", pid_name(0x42))
}
