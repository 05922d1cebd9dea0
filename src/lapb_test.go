package borzoi

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* Captured traffic on the fake physical layer below the AX.25
 * module, decoded for easy assertions. */

type sent_frame_t struct {
	typ   AX25_CMD_t
	nr    int
	ns    int
	pf    bool
	cmd   bool
	pid   uint8
	data  []byte
	wire  []byte
}

type phys_capture_t struct {
	dls    dls_t
	frames []sent_frame_t
}

func (pc *phys_capture_t) on_write(dls *dls_t, prim *primitive_t, expedited bool, ex *exception_t) bool {
	var af addressField_t
	var alen = getFrameAddress(prim.payload, &af, ex)
	if alen < 0 {
		return false
	}
	var body = prim.payload[alen : len(prim.payload)-2]
	var typ, nr, ns, pf, _ = decode_control(body, false)
	var pid, data, _ = prim_get_AX25_data(prim, false)

	pc.frames = append(pc.frames, sent_frame_t{
		typ:  typ,
		nr:   int(nr),
		ns:   int(ns),
		pf:   pf,
		cmd:  prim_get_AX25_CmdRes(prim),
		pid:  pid,
		data: append([]byte{}, data...),
		wire: append([]byte{}, prim.payload...),
	})
	return true
}

func (pc *phys_capture_t) take(t *testing.T) sent_frame_t {
	t.Helper()
	require.NotEmpty(t, pc.frames, "expected a transmitted frame")
	var f = pc.frames[0]
	pc.frames = pc.frames[1:]
	return f
}

/* Captured DL indications on the fake client above. */

type client_prim_t struct {
	cmd    uint8
	server uint16
	params [][]byte
}

type client_capture_t struct {
	dls   dls_t
	prims []client_prim_t
}

func (cc *client_capture_t) on_write(dls *dls_t, prim *primitive_t, expedited bool, ex *exception_t) bool {
	var cp = client_prim_t{cmd: prim.cmd, server: prim.serverHandle}
	for i := 0; ; i++ {
		var param = get_prim_param(prim, i)
		if param == nil {
			break
		}
		cp.params = append(cp.params, append([]byte{}, get_prim_param_data(param)...))
	}
	cc.prims = append(cc.prims, cp)
	return true
}

func (cc *client_capture_t) take(t *testing.T) client_prim_t {
	t.Helper()
	require.NotEmpty(t, cc.prims, "expected an indication")
	var p = cc.prims[0]
	cc.prims = cc.prims[1:]
	return p
}

func test_ax25_setup(t *testing.T) (*ax25_plugin_t, *phys_capture_t, *client_capture_t) {
	t.Helper()
	timer_system_init()

	var plugin = &ax25_plugin_t{
		name:       "AX25",
		n_sessions: 4,
		maxframe:   4,
		paclen:     256,
		window:     2048,
		pthresh:    PTHRESH_OFF,
		n2:         10,
		irtt:       3000,
		maxwait:    30000,
		t3_ms:      300000,
		t4_ms:      900000,
	}
	plugin.sessions = make([]*session_t, plugin.n_sessions)
	for i := range plugin.sessions {
		plugin.sessions[i] = &session_t{}
		init_session(plugin.sessions[i], plugin, uint16(i))
	}
	primbuffer_init(&plugin.rx_buffer, 0)
	primbuffer_init(&plugin.tx_buffer, 0)

	var phys = &phys_capture_t{}
	phys.dls = dls_t{name: "phys", on_write: phys.on_write}

	var client = &client_capture_t{}
	client.dls = dls_t{name: "client", on_write: client.on_write}

	plugin.client_dls = dls_t{name: "AX25", session: plugin}
	plugin.client_dls.peer = &client.dls
	plugin.server_dls = dls_t{name: "AX25.phy", session: plugin}
	plugin.server_dls.peer = &phys.dls

	t.Cleanup(func() {
		for _, axp := range plugin.sessions {
			term_session(axp)
		}
	})
	return plugin, phys, client
}

/* Feed one wire frame, remote -> local, into the module. */
func rx_frame(t *testing.T, plugin *ax25_plugin_t, prim *primitive_t) {
	t.Helper()
	require.NotNil(t, prim)
	var ex exception_t
	require.True(t, session_rx(plugin, prim, &ex), ex.Error())
	del_prim(prim)
}

/* Address field as seen by the remote station sending to us. */
func remote_af(t *testing.T) addressField_t {
	return test_af(t, "DF9RY-7", "N0CALL")
}

func TestLapbInboundSABM(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))

	// UA with F, per the poll on the SABM.
	var ua = phys.take(t)
	assert.Equal(t, AX25_UA, ua.typ)
	assert.True(t, ua.pf)
	assert.False(t, ua.cmd)

	var axp = plugin.sessions[0]
	assert.True(t, axp.is_active)
	assert.Equal(t, LAPB_CONNECTED, axp.state)
	assert.Equal(t, 0, axp.vs)
	assert.Equal(t, 0, axp.vr)
	assert.Equal(t, 0, axp.unack)
	assert.False(t, axp.flags.rejsent)
	assert.False(t, axp.flags.remotebusy)
	assert.True(t, timer_running(&axp.t3))
	assert.True(t, timer_running(&axp.t4))

	// The reply travels back through the digipeater-free reverse path.
	assert.Equal(t, "N0CALL-0", callsignToString(axp.addr.source))
	assert.Equal(t, "DF9RY-7", callsignToString(axp.addr.destination))

	var ind = client.take(t)
	assert.Equal(t, uint8(DL_CONNECT_INDICATION), ind.cmd)
}

func TestLapbInboundDISCWhenDisconnected(t *testing.T) {
	var plugin, phys, _ = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	rx_frame(t, plugin, new_AX25_DISC(0, 0, &af, &ex))

	var dm = phys.take(t)
	assert.Equal(t, AX25_DM, dm.typ)

	// The throwaway control block went straight back to the pool.
	assert.False(t, plugin.sessions[0].is_active)
}

func TestLapbInboundIFrame(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))
	phys.take(t)  // UA
	client.take(t) // CONNECT indication

	rx_frame(t, plugin, new_AX25_I(0, 0, PID_NO_L3, false, &af, 0, 0, []byte("HELLO"), &ex))

	var axp = plugin.sessions[0]
	assert.Equal(t, 1, axp.vr)
	assert.True(t, axp.flags.rxd_i_frame)

	// The ack went out as RR with the updated N(R).
	var rr = phys.take(t)
	assert.Equal(t, AX25_RR, rr.typ)
	assert.Equal(t, 1, rr.nr)

	var ind = client.take(t)
	assert.Equal(t, uint8(DL_DATA_INDICATION), ind.cmd)
	require.Len(t, ind.params, 1)
	assert.Equal(t, []byte("HELLO"), ind.params[0])
}

func TestLapbOutOfSequenceIFrame(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))
	phys.take(t)
	client.take(t)

	// ns=1 when V(R)=0: one REJ, frame dropped.
	rx_frame(t, plugin, new_AX25_I(0, 0, PID_NO_L3, false, &af, 0, 1, []byte("X"), &ex))
	var rej = phys.take(t)
	assert.Equal(t, AX25_REJ, rej.typ)
	assert.Equal(t, 0, rej.nr)
	assert.Empty(t, client.prims)

	var axp = plugin.sessions[0]
	assert.True(t, axp.flags.rejsent)
	assert.Equal(t, 0, axp.vr)

	// Under V2 the REJ is only sent once per gap; the repeated poll
	// gets an enquiry response instead of another REJ.
	rx_frame(t, plugin, new_AX25_I(0, 0, PID_NO_L3, false, &af, 0, 1, []byte("X"), &ex))
	var enq = phys.take(t)
	assert.Equal(t, AX25_RR, enq.typ)
	assert.Equal(t, 0, enq.nr)
	assert.Empty(t, phys.frames)
}

func TestLapbT1Recovery(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))
	phys.take(t)
	client.take(t)

	var axp = plugin.sessions[0]
	send_ax25(axp, PID_NO_L3, []byte("DATA"))

	var ifr = phys.take(t)
	assert.Equal(t, AX25_I, ifr.typ)
	assert.Equal(t, 0, ifr.ns)
	assert.Equal(t, []byte("DATA"), ifr.data)
	assert.Equal(t, 1, axp.unack)
	assert.Equal(t, 1, axp.vs)
	assert.True(t, timer_running(&axp.t1))

	// T1 expires: one poll, RECOVERY.
	t1_expired(axp)
	assert.Equal(t, 1, axp.retries)
	assert.Equal(t, LAPB_RECOVERY, axp.state)

	var poll = phys.take(t)
	assert.Equal(t, AX25_RR, poll.typ)
	assert.True(t, poll.pf)
	assert.True(t, poll.cmd)

	// Peer's RR with F acking the frame ends recovery.
	rx_frame(t, plugin, new_AX25_RR(0, 0, false, &af, 1, false, true, &ex))
	assert.Equal(t, LAPB_CONNECTED, axp.state)
	assert.Equal(t, 0, axp.unack)
	assert.Equal(t, 0, axp.retries)
	assert.False(t, timer_running(&axp.t1))
	assert.True(t, timer_running(&axp.t3))
}

func TestLapbT1RetransmitBelowPollThreshold(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	plugin.pthresh = 128
	var ex exception_t
	var af = remote_af(t)

	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))
	phys.take(t)
	client.take(t)

	var axp = plugin.sessions[0]
	axp.pthresh = 128
	send_ax25(axp, PID_NO_L3, []byte("SMALL"))
	phys.take(t)

	// A small oldest unacked frame is retransmitted instead of polled.
	t1_expired(axp)
	var rtx = phys.take(t)
	assert.Equal(t, AX25_I, rtx.typ)
	assert.Equal(t, 0, rtx.ns)
	assert.Equal(t, []byte("SMALL"), rtx.data)
}

func TestLapbREJRewindsAndRetransmits(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))
	phys.take(t)
	client.take(t)

	var axp = plugin.sessions[0]
	send_ax25(axp, PID_NO_L3, []byte("ONE"))
	send_ax25(axp, PID_NO_L3, []byte("TWO"))
	assert.Equal(t, []byte("ONE"), phys.take(t).data)
	assert.Equal(t, []byte("TWO"), phys.take(t).data)
	assert.Equal(t, 2, axp.unack)
	assert.Equal(t, 2, axp.vs)

	// REJ with nr=0 acks nothing and forces a full rewind.
	rx_frame(t, plugin, new_AX25_REJ(0, 0, false, &af, 0, false, false, &ex))

	var one = phys.take(t)
	assert.Equal(t, 0, one.ns)
	assert.Equal(t, []byte("ONE"), one.data)
	var two = phys.take(t)
	assert.Equal(t, 1, two.ns)
	assert.Equal(t, []byte("TWO"), two.data)
	assert.Equal(t, 2, axp.unack)
}

func TestLapbRNRWindowBackpressure(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))
	phys.take(t)
	client.take(t)

	var axp = plugin.sessions[0]
	axp.window = 1
	flow_off_ax25(axp)

	// First I is accepted but held back from the client.
	rx_frame(t, plugin, new_AX25_I(0, 0, PID_NO_L3, false, &af, 0, 0, []byte("AAAA"), &ex))
	phys.take(t) // RR
	assert.Empty(t, client.prims)
	assert.Equal(t, 1, axp.vr)

	// The queue now exceeds the window: the next I gets RNR and is
	// dropped without advancing V(R).
	rx_frame(t, plugin, new_AX25_I(0, 0, PID_NO_L3, false, &af, 0, 1, []byte("BBBB"), &ex))
	var rnr = phys.take(t)
	assert.Equal(t, AX25_RNR, rnr.typ)
	assert.Equal(t, 1, axp.vr)

	// Flow on releases the held data upstairs.
	flow_on_ax25(axp)
	var ind = client.take(t)
	assert.Equal(t, uint8(DL_DATA_INDICATION), ind.cmd)
	assert.Equal(t, []byte("AAAA"), ind.params[0])
}

func TestLapbInboundDISCWhenConnected(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))
	phys.take(t)
	client.take(t)

	rx_frame(t, plugin, new_AX25_DISC(0, 0, &af, &ex))
	var ua = phys.take(t)
	assert.Equal(t, AX25_UA, ua.typ)

	var ind = client.take(t)
	assert.Equal(t, uint8(DL_DISCONNECT_INDICATION), ind.cmd)
	assert.Equal(t, []byte{LB_NORMAL}, ind.params[0])
	assert.False(t, plugin.sessions[0].is_active)
}

func TestLapbT1Exhaustion(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))
	phys.take(t)
	client.take(t)

	var axp = plugin.sessions[0]
	axp.n2 = 1
	send_ax25(axp, PID_NO_L3, []byte("DATA"))
	phys.take(t)

	t1_expired(axp) // retries 1, still trying
	phys.take(t)
	t1_expired(axp) // retries 2 > n2: give up

	assert.False(t, plugin.sessions[0].is_active)
	var dm = phys.take(t)
	assert.Equal(t, AX25_DM, dm.typ)

	var ind = client.take(t)
	assert.Equal(t, uint8(DL_DISCONNECT_INDICATION), ind.cmd)
	assert.Equal(t, []byte{LB_TIMEOUT}, ind.params[0])
}

func TestLapbSABMHoldoff(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))
	phys.take(t)
	client.take(t)

	var axp = plugin.sessions[0]
	send_ax25(axp, PID_NO_L3, []byte("PROMPT"))
	phys.take(t)
	assert.Equal(t, 1, axp.vs)

	// Second SABM before any I frame arrived: he may just not have
	// got our UA.  UA only, no reset.
	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))
	assert.Equal(t, AX25_UA, phys.take(t).typ)
	assert.Equal(t, 1, axp.vs)
	assert.Equal(t, 1, axp.unack)

	// After an I frame has been seen, a SABM really resets the link.
	rx_frame(t, plugin, new_AX25_I(0, 0, PID_NO_L3, false, &af, 0, 0, []byte("HI"), &ex))
	phys.frames = nil
	client.prims = nil
	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))
	assert.Equal(t, AX25_UA, phys.take(t).typ)
	assert.Equal(t, 0, axp.vs)
	assert.Equal(t, 0, axp.unack)
	assert.Equal(t, LAPB_CONNECTED, axp.state)
}

func TestLapbOutboundConnect(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t

	var axp = plugin.sessions[0]
	axp.is_active = true
	reset_session(axp)
	axp.client_id = 7
	require.True(t, addressFieldFromString(
		callsignFromString("N0CALL", nil, &ex), "DF9RY-7", &axp.addr, &ex))

	est_link(axp)
	lapbstate(axp, LAPB_SETUP)

	var sabm = phys.take(t)
	assert.Equal(t, AX25_SABM, sabm.typ)
	assert.True(t, sabm.pf)
	assert.True(t, sabm.cmd)
	assert.True(t, timer_running(&axp.t1))

	// Peer accepts.
	var af = remote_af(t)
	rx_frame(t, plugin, new_AX25_UA(0, 0, &af, true, &ex))

	assert.Equal(t, LAPB_CONNECTED, axp.state)
	var cnf = client.take(t)
	assert.Equal(t, uint8(DL_CONNECT_CONFIRM), cnf.cmd)
	assert.False(t, timer_running(&axp.t1))
	assert.True(t, timer_running(&axp.t3))
}

func TestLapbFRMROnGarbageControl(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	rx_frame(t, plugin, new_AX25_SABM(0, 0, &af, &ex))
	phys.take(t)
	client.take(t)

	// An unassigned U-frame control byte in CONNECTED.
	var frame = new_AX25_Unnumbered(0, 0, AX25_CMD_t(0xc3), &af, true, false, nil, &ex)
	rx_frame(t, plugin, frame)

	var frmr = phys.take(t)
	assert.Equal(t, AX25_FRMR, frmr.typ)

	// The link re-establishes.
	var sabm = phys.take(t)
	assert.Equal(t, AX25_SABM, sabm.typ)
	assert.Equal(t, LAPB_SETUP, plugin.sessions[0].state)
}

func TestSegmenterReassembly(t *testing.T) {
	var plugin, _, client = test_ax25_setup(t)

	var axp = plugin.sessions[0]
	axp.is_active = true
	reset_session(axp)

	var payload = bytes.Repeat([]byte("0123456789"), 60) // 600 bytes
	var entries = segmenter(PID_NO_L3, payload, 256)
	require.Greater(t, len(entries), 1)

	// count_byte of the first fragment carries SEG_FIRST and N-1.
	assert.Equal(t, uint8(PID_SEGMENT), entries[0][0])
	assert.Equal(t, byte(len(entries)-1)|SEG_FIRST, entries[0][1])
	assert.Equal(t, byte(0), entries[len(entries)-1][1])

	// Feeding the fragments through the receiver reassembles the
	// original payload.
	for _, entry := range entries {
		procdata(axp, entry)
	}
	var ind = client.take(t)
	assert.Equal(t, uint8(DL_DATA_INDICATION), ind.cmd)
	assert.Equal(t, payload, ind.params[0])
}

func TestSegmenterSmallPayloadNotSegmented(t *testing.T) {
	var entries = segmenter(PID_NO_L3, []byte("short"), 256)
	require.Len(t, entries, 1)
	assert.Equal(t, uint8(PID_NO_L3), entries[0][0])
	assert.Equal(t, []byte("short"), entries[0][1:])
}

func TestSegmenterBackwardSequenceDropped(t *testing.T) {
	var plugin, _, client = test_ax25_setup(t)

	var axp = plugin.sessions[0]
	axp.is_active = true
	reset_session(axp)

	var payload = bytes.Repeat([]byte("x"), 600)
	var entries = segmenter(PID_NO_L3, payload, 256)
	require.GreaterOrEqual(t, len(entries), 3)

	procdata(axp, entries[0])
	procdata(axp, entries[2]) // out of order
	assert.Equal(t, 0, axp.segremain)
	assert.Nil(t, axp.rxasm)
	assert.Empty(t, client.prims)
}

func TestInboundUI(t *testing.T) {
	var plugin, _, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	var ui = new_AX25_UI(0, 0, PID_NO_L3, &af, true, false, []byte("BEACON"), &ex)
	rx_frame(t, plugin, ui)

	var ind = client.take(t)
	assert.Equal(t, uint8(DL_UNIT_DATA_INDICATION), ind.cmd)
	require.Len(t, ind.params, 3)
	assert.Equal(t, []byte("DF9RY-7"), ind.params[1])
	assert.Equal(t, []byte("BEACON"), ind.params[2])
}

func TestInboundTESTCommandEchoes(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	var test = new_AX25_TEST(0, 0, &af, true, true, []byte("ping"), &ex)
	rx_frame(t, plugin, test)

	var reply = phys.take(t)
	assert.Equal(t, AX25_TEST, reply.typ)
	assert.False(t, reply.cmd)
	assert.Equal(t, []byte("ping"), reply.data)

	var ind = client.take(t)
	assert.Equal(t, uint8(DL_TEST_INDICATION), ind.cmd)

	// A TEST response comes back as a confirm.
	var rsp = new_AX25_TEST(0, 0, &af, false, true, []byte("pong"), &ex)
	rx_frame(t, plugin, rsp)
	var cnf = client.take(t)
	assert.Equal(t, uint8(DL_TEST_CONFIRM), cnf.cmd)
	assert.Equal(t, []byte("pong"), cnf.params[0])
}

func TestBadFCSDropped(t *testing.T) {
	var plugin, phys, client = test_ax25_setup(t)
	var ex exception_t
	var af = remote_af(t)

	var sabm = new_AX25_SABM(0, 0, &af, &ex)
	sabm.payload[len(sabm.payload)-1] ^= 0xff
	rx_frame(t, plugin, sabm)

	assert.Empty(t, phys.frames)
	assert.Empty(t, client.prims)
	assert.False(t, plugin.sessions[0].is_active)
}
