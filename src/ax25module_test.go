package borzoi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAX25ClientWriteConnectRequest(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	plugin.client_dls.on_write = ax25_client_write
	plugin.server_dls.on_write = ax25_server_write
	var ex exception_t

	require.True(t, ax25_set_client_local_addr(&plugin.client_dls, "N0CALL", nil, &ex), ex.Error())

	// A connect request grabs a session slot on the way in so the
	// serverHandle travels with the primitive.
	var cr = new_DL_CONNECT_Request(5, []byte("DF9RY-7"), nil, &ex)
	require.True(t, ax25_client_write(&plugin.client_dls, cr, false, &ex), ex.Error())
	assert.True(t, plugin.sessions[cr.serverHandle].is_active)

	// The tick handler drains the TX buffer and starts the SETUP.
	require.True(t, plugin.onTick(plugin, &ex), ex.Error())
	del_prim(cr)

	var axp = plugin.sessions[0]
	assert.Equal(t, LAPB_SETUP, axp.state)
	assert.Equal(t, uint16(5), axp.client_id)
	assert.Equal(t, "DF9RY-7", callsignToString(axp.addr.destination))

	var sabm = phys.take(t)
	assert.Equal(t, AX25_SABM, sabm.typ)
	assert.Empty(t, client.prims)
}

func TestAX25ServerWriteFeedsRxBuffer(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	plugin.server_dls.on_write = ax25_server_write
	var ex exception_t
	var af = remote_af(t)

	var sabm = new_AX25_SABM(0xffff, 0, &af, &ex)
	require.True(t, ax25_server_write(&plugin.server_dls, sabm, false, &ex))
	del_prim(sabm)

	// Nothing happens until the tick runs.
	assert.Empty(t, phys.frames)
	require.True(t, plugin.onTick(plugin, &ex), ex.Error())

	assert.Equal(t, AX25_UA, phys.take(t).typ)
	assert.Equal(t, uint8(DL_CONNECT_INDICATION), client.take(t).cmd)
}

func TestAX25SetRemoteAddrStoresParsedField(t *testing.T) {
	var plugin, _, _ = test_ax25_setup(t)
	var ex exception_t

	require.True(t, ax25_set_client_local_addr(&plugin.client_dls, "N0CALL-3", nil, &ex))

	var norm string
	require.True(t, ax25_set_client_remote_addr(&plugin.client_dls,
		"APRS VIA WIDE1-1", &norm, &ex), ex.Error())

	assert.Equal(t, "APRS-0", callsignToString(plugin.default_addr.destination))
	assert.Equal(t, "WIDE1-1", callsignToString(plugin.default_addr.repeaters[0]))
	assert.Equal(t, 1, getNRepeaters(&plugin.default_addr))
	assert.Contains(t, norm, "APRS-0")
}

func TestAX25TickDrainsElapsedTimers(t *testing.T) {
	var plugin, _, _ = test_ax25_setup(t)
	var ex exception_t

	var fired = 0
	var tm timer_t
	timer_init(&tm, 1, nil, func(*timer_t) { fired++ })
	tm.state = TIMER_ELAPSED
	tm.elapsed = true
	elapsed_timer_mutex.Lock()
	elapsed_timer_list = append(elapsed_timer_list, &tm)
	elapsed_timer_mutex.Unlock()

	require.True(t, plugin.onTick(plugin, &ex))
	assert.Equal(t, 1, fired)
}
