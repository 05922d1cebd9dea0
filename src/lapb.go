package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Link Access Procedures Balanced (LAPB), the upper
 *		sublayer of AX.25 Level 2.
 *
 * Description: Per-session connection lifecycle, windowing,
 *		retransmission and timer-driven recovery, following
 *		the AX.25 v2.2 SDL.  Everything here runs exclusively
 *		inside the tick thread, so no two callbacks for the
 *		same session ever execute concurrently.
 *
 *		The jump-start holdoff: a second SABM on a live
 *		connection only resets the link if an I frame has been
 *		received since the previous SABM.  Otherwise the peer
 *		may just not have got our UA, and resetting would
 *		destroy a freshly jump-started session.
 *
 *---------------------------------------------------------------*/

/* Link states. */
const (
	LAPB_DISCONNECTED = 1
	LAPB_LISTEN       = 2
	LAPB_SETUP        = 3
	LAPB_DISCPENDING  = 4
	LAPB_CONNECTED    = 5
	LAPB_RECOVERY     = 6
)

/* Reason for connection closing. */
const (
	LB_NORMAL  = 0 /* Normal close                  */
	LB_DM      = 1 /* Received DM from other end    */
	LB_TIMEOUT = 2 /* Excessive retries             */
	LB_UNUSED  = 3 /* Link is redundant - unused    */
)

/* Protocol versions. */
const (
	V1 = 1
	V2 = 2
)

/* Command/response classification of an inbound frame. */
const (
	LAPB_RESPONSE = 0
	LAPB_COMMAND  = 1
	LAPB_UNKNOWN  = 2
)

/* T1 backoff policies. */
const (
	LAPB_TIMER_EXPONENTIAL = 0
	LAPB_TIMER_LINEAR      = 1
	LAPB_TIMER_FIXED       = 2
)

/* Sentinel poll threshold: never retransmit instead of polling. */
const PTHRESH_OFF = 65535

func (axp *session_t) seqmask() int {
	if axp.modulo128 {
		return 127
	}
	return 7
}

/*-------------------------------------------------------------------
 *
 * Name:	lapb_input
 *
 * Purpose:	Process one incoming frame for a session.
 *
 * Inputs:	cmdrsp	- LAPB_COMMAND / LAPB_RESPONSE / LAPB_UNKNOWN,
 *			  from the C/R bits of the address field.
 *		body	- Frame contents starting at the control
 *			  octet(s), FCS already stripped.
 *
 *---------------------------------------------------------------*/

func lapb_input(axp *session_t, cmdrsp int, body []byte) {
	var typ, nr8, ns8, pf, ok = decode_control(body, axp.modulo128)
	if !ok {
		return
	}
	var nr = int(nr8)
	var ns = int(ns8)
	var info = body[control_length(body, axp.modulo128):]

	var poll = false
	var final = false
	if pf {
		switch cmdrsp {
		case LAPB_COMMAND:
			poll = true
		case LAPB_RESPONSE:
			final = true
		}
	}

	var recovery = false

	switch axp.state {
	case LAPB_DISCONNECTED, LAPB_LISTEN:
		switch typ {
		case AX25_SABM, AX25_SABME:
			/* A new incoming connection.  Always accept. */
			axp.modulo128 = typ == AX25_SABME
			sendctl(axp, LAPB_RESPONSE, AX25_UA, pf)
			clr_ex(axp)
			axp.unack = 0
			axp.vr = 0
			axp.vs = 0
			lapbstate(axp, LAPB_CONNECTED)
			axp.srt = int64(axp.plugin.irtt)
			axp.mdev = 0
			timer_set_duration_ms(&axp.t1, 2*axp.srt)
			timer_start(&axp.t3)
			timer_start(&axp.t4)
			axp.flags.rxd_i_frame = false /* nothing received yet */
		case AX25_DISC:
			/* Always answer a DISC with a DM. */
			sendctl(axp, LAPB_RESPONSE, AX25_DM, pf)
		case AX25_DM:
			/* Ignore to avoid infinite loops. */
		default:
			if poll {
				sendctl(axp, LAPB_RESPONSE, AX25_DM, pf)
			}
		}
		if axp.state == LAPB_DISCONNECTED || axp.state == LAPB_LISTEN {
			del_session(axp)
			return
		}

	case LAPB_SETUP:
		switch typ {
		case AX25_SABM, AX25_SABME:
			/* Simultaneous open. */
			sendctl(axp, LAPB_RESPONSE, AX25_UA, pf)
		case AX25_DISC:
			sendctl(axp, LAPB_RESPONSE, AX25_DM, pf)
			axp.txq = nil
			timer_stop(&axp.t1)
			axp.reason = LB_DM
			lapbstate(axp, LAPB_DISCONNECTED)
			return
		case AX25_UA:
			/* Connection accepted.  Note: xmit queue not cleared. */
			timer_stop(&axp.t1)
			timer_start(&axp.t3)
			axp.unack = 0
			axp.vr = 0
			axp.vs = 0
			lapbstate(axp, LAPB_CONNECTED)
			timer_start(&axp.t4)
		case AX25_DM:
			/* Connection refused. */
			axp.txq = nil
			timer_stop(&axp.t1)
			axp.reason = LB_DM
			lapbstate(axp, LAPB_DISCONNECTED)
			return
		default:
			if poll {
				sendctl(axp, LAPB_RESPONSE, AX25_DM, pf)
			}
		}

	case LAPB_DISCPENDING:
		switch typ {
		case AX25_SABM, AX25_SABME:
			sendctl(axp, LAPB_RESPONSE, AX25_DM, pf)
		case AX25_DISC:
			sendctl(axp, LAPB_RESPONSE, AX25_UA, pf)
		case AX25_UA, AX25_DM:
			timer_stop(&axp.t1)
			lapbstate(axp, LAPB_DISCONNECTED)
			return
		default:
			if poll {
				sendctl(axp, LAPB_RESPONSE, AX25_DM, pf)
			}
		}

	case LAPB_RECOVERY, LAPB_CONNECTED:
		recovery = axp.state == LAPB_RECOVERY
		switch typ {
		case AX25_SABM, AX25_SABME:
			sendctl(axp, LAPB_RESPONSE, AX25_UA, pf)
			if axp.flags.rxd_i_frame {
				/* Only reset if we have had a valid I frame since the
				 * last SABM.  Otherwise the peer may just not have got
				 * our UA. */
				clr_ex(axp)
				if !recovery {
					axp.txq = nil
				}
				timer_stop(&axp.t1)
				timer_start(&axp.t3)
				axp.unack = 0
				axp.vr = 0
				axp.vs = 0
				lapbstate(axp, LAPB_CONNECTED)
				if recovery && !timer_running(&axp.t4) {
					timer_start(&axp.t4)
				}
			}
		case AX25_DISC:
			axp.txq = nil
			sendctl(axp, LAPB_RESPONSE, AX25_UA, pf)
			timer_stop(&axp.t1)
			timer_stop(&axp.t3)
			axp.reason = LB_NORMAL
			lapbstate(axp, LAPB_DISCONNECTED)
			return
		case AX25_DM:
			axp.reason = LB_DM
			lapbstate(axp, LAPB_DISCONNECTED)
			return
		case AX25_UA:
			/* Unexpected UA: re-establish. */
			est_link(axp)
			lapbstate(axp, LAPB_SETUP)
		case AX25_FRMR:
			est_link(axp)
			lapbstate(axp, LAPB_SETUP)
		case AX25_RR, AX25_RNR:
			axp.flags.remotebusy = typ == AX25_RNR
			if recovery && (axp.proto == V1 || final) {
				timer_stop(&axp.t1)
				ackours(axp, nr)
				if axp.unack != 0 {
					if typ != AX25_RNR || axp.pthresh != PTHRESH_OFF {
						inv_rex(axp)
					} else {
						timer_stop(&axp.t1)
						timer_start(&axp.t3)
					}
				} else {
					timer_start(&axp.t3)
					lapbstate(axp, LAPB_CONNECTED)
					if !timer_running(&axp.t4) {
						timer_start(&axp.t4)
					}
				}
			} else {
				if poll {
					enq_resp(axp)
				}
				ackours(axp, nr)
				/* Keep the timer running even if everything was acked;
				 * we must see a Final. */
				if typ == AX25_RNR && axp.pthresh == PTHRESH_OFF {
					timer_stop(&axp.t1)
					timer_start(&axp.t3)
				} else if recovery {
					if !timer_running(&axp.t1) {
						timer_start(&axp.t1)
					}
				}
			}
		case AX25_REJ:
			axp.flags.remotebusy = false
			if recovery {
				/* Do not insist on a Final from the old protocol. */
				if axp.proto == V1 || final {
					timer_stop(&axp.t1)
					ackours(axp, nr)
					if axp.unack != 0 {
						inv_rex(axp)
					} else {
						timer_start(&axp.t3)
						lapbstate(axp, LAPB_CONNECTED)
						if !timer_running(&axp.t4) {
							timer_start(&axp.t4)
						}
					}
				} else {
					if poll {
						enq_resp(axp)
					}
					ackours(axp, nr)
					if axp.unack != 0 {
						inv_rex(axp)
					}
					/* A REJ that acks everything but has no F bit can
					 * deadlock; make sure the timer runs. */
					if !timer_running(&axp.t1) {
						timer_start(&axp.t1)
					}
				}
			} else {
				if poll {
					enq_resp(axp)
				}
				ackours(axp, nr)
				timer_stop(&axp.t1)
				timer_start(&axp.t3)
				inv_rex(axp)
			}
		case AX25_I:
			ackours(axp, nr)
			axp.flags.rxd_i_frame = true
			if recovery {
				/* An I frame cannot satisfy a poll. */
				if !timer_running(&axp.t1) {
					timer_start(&axp.t1)
				}
			} else {
				timer_start(&axp.t4)
			}
			if rxq_len(axp) >= axp.window {
				/* He did not listen to our RNR; he will have to resend
				 * later.  Necessary to avoid deadlock. */
				if recovery || poll {
					sendctl(axp, LAPB_RESPONSE, AX25_RNR, pf)
				}
				break
			}
			/* Reject or ignore I frames with sequence errors. */
			if ns != axp.vr {
				if axp.proto == V1 || !axp.flags.rejsent {
					axp.flags.rejsent = true
					sendctl(axp, LAPB_RESPONSE, AX25_REJ, pf)
				} else if poll {
					enq_resp(axp)
				}
				axp.response = 0
				break
			}
			axp.flags.rejsent = false
			axp.vr = (axp.vr + 1) & axp.seqmask()
			var tmp AX25_CMD_t = AX25_RR
			if rxq_len(axp) >= axp.window {
				tmp = AX25_RNR
			}
			if poll {
				sendctl(axp, LAPB_RESPONSE, tmp, true)
			} else {
				axp.response = uint8(tmp)
			}
			procdata(axp, info)
		default:
			/* Unrecognized control field: frame reject, then
			 * re-establish. */
			frame_reject(axp, body)
		}
	}

	/* See if we can send some data, perhaps piggybacking an ack.
	 * A successful lapb_output clears axp.response. */
	lapb_output(axp)

	if axp.response != 0 {
		sendctl(axp, LAPB_RESPONSE, AX25_CMD_t(axp.response), false)
		axp.response = 0
	}
}

/* Bytes of received data currently held back from the upper layer. */
func rxq_len(axp *session_t) int {
	var n = 0
	for _, b := range axp.rxq {
		n += len(b)
	}
	return n
}

/*-------------------------------------------------------------------
 *
 * Name:	ackours
 *
 * Purpose:	Handle incoming acknowledgement N(R): release acked
 *		frames from the transmit queue and run the RTT
 *		estimator.
 *
 * Returns:	-1 when the peer acked an unsent frame (frame reject
 *		condition), 0 otherwise.
 *
 *---------------------------------------------------------------*/

func ackours(axp *session_t, n int) int {
	if ((axp.vs - n) & axp.seqmask()) > axp.unack {
		/* N(R) outside the window: acking an unsent frame. */
		return -1
	}
	var acked = 0
	var oldest = (axp.vs - axp.unack) & axp.seqmask()

	for axp.unack != 0 && oldest != n {
		if len(axp.txq) == 0 {
			/* Acking an unsent frame. */
			return -1
		}
		axp.txq = axp.txq[1:]
		axp.unack--
		acked++

		if axp.flags.rtt_run && axp.rtt_seq == oldest {
			/* A frame being timed has been acked. */
			axp.flags.rtt_run = false
			/* Update only if the frame was not retransmitted. */
			if !axp.flags.retrans {
				var rtt = jiffies() - axp.rtt_time
				var abserr = rtt - axp.srt
				if abserr < 0 {
					abserr = -abserr
				}
				/* Run the SRT and mdev integrators. */
				axp.srt = ((axp.srt * 7) + rtt + 4) >> 3
				axp.mdev = ((axp.mdev * 3) + abserr + 2) >> 2
				var waittime = 4*axp.mdev + axp.srt
				var maxwait = int64(axp.plugin.maxwait)
				if maxwait != 0 && waittime > maxwait {
					waittime = maxwait
				}
				timer_set_duration_ms(&axp.t1, waittime)
			}
		}
		axp.flags.retrans = false
		axp.retries = 0
		oldest = (oldest + 1) & axp.seqmask()
	}

	if axp.unack == 0 {
		/* All frames acked, stop timeout. */
		timer_stop(&axp.t1)
		timer_start(&axp.t3)
	} else if acked != 0 {
		/* Partial ACK; restart timer. */
		timer_start(&axp.t1)
	}
	return 0
}

/* Establish data link. */
func est_link(axp *session_t) {
	clr_ex(axp)
	axp.retries = 0
	if axp.modulo128 {
		sendctl(axp, LAPB_COMMAND, AX25_SABME, true)
	} else {
		sendctl(axp, LAPB_COMMAND, AX25_SABM, true)
	}
	timer_stop(&axp.t3)
	timer_start(&axp.t1)
}

/* Clear exception conditions. */
func clr_ex(axp *session_t) {
	axp.flags.remotebusy = false
	axp.flags.rejsent = false
	axp.response = 0
	timer_stop(&axp.t3)
}

/* Enquiry response. */
func enq_resp(axp *session_t) {
	var ctl AX25_CMD_t = AX25_RR
	if rxq_len(axp) >= axp.window {
		ctl = AX25_RNR
	}
	sendctl(axp, LAPB_RESPONSE, ctl, true)
	axp.response = 0
	timer_stop(&axp.t3)
}

/* Invoke retransmission: rewind V(S) to the first unacked frame. */
func inv_rex(axp *session_t) {
	axp.vs -= axp.unack
	axp.vs &= axp.seqmask()
	axp.unack = 0
}

/*-------------------------------------------------------------------
 *
 * Name:	sendctl
 *
 * Purpose:	Send an S or U frame to the currently connected
 *		station.  S frames carry V(R).
 *
 *---------------------------------------------------------------*/

func sendctl(axp *session_t, cmdrsp int, typ AX25_CMD_t, pf bool) {
	var ex exception_t
	var cmd = cmdrsp == LAPB_COMMAND
	var prim *primitive_t

	switch typ {
	case AX25_RR, AX25_RNR, AX25_REJ, AX25_SREJ:
		prim = new_AX25_Supervisory(axp.client_id, axp.server_id, typ,
			axp.modulo128, &axp.addr, uint8(axp.vr), cmd, pf, &ex)
	default:
		prim = new_AX25_Unnumbered(axp.client_id, axp.server_id, typ,
			&axp.addr, cmd, pf, nil, &ex)
	}
	if prim == nil {
		log_ex(&ex)
		return
	}
	axp.plugin.send_frame(prim)
}

/*-------------------------------------------------------------------
 *
 * Name:	lapb_output
 *
 * Purpose:	Start data transmission on the link, if possible.
 *		Sends I frames from the first unsent entry until the
 *		window is full.
 *
 * Returns:	Number of frames sent.
 *
 *---------------------------------------------------------------*/

func lapb_output(axp *session_t) int {
	if axp == nil ||
		(axp.state != LAPB_RECOVERY && axp.state != LAPB_CONNECTED) ||
		axp.flags.remotebusy {
		return 0
	}

	var sent = 0
	for i := axp.unack; i < len(axp.txq) && axp.unack < axp.maxframe; i++ {
		var entry = axp.txq[i]
		var ns = axp.vs
		axp.vs = (axp.vs + 1) & axp.seqmask()

		send_iframe(axp, entry, ns)
		timer_start(&axp.t4)
		axp.unack++
		/* Implicitly acking anything he sent; stop any delayed ack. */
		axp.response = 0
		if !timer_running(&axp.t1) {
			timer_stop(&axp.t3)
			timer_start(&axp.t1)
		}
		sent++

		if !axp.flags.rtt_run {
			/* Start round trip timer. */
			axp.rtt_seq = ns
			axp.rtt_time = jiffies()
			axp.flags.rtt_run = true
		}
	}
	return sent
}

/* Build and ship one I frame.  entry is PID followed by data. */
func send_iframe(axp *session_t, entry []byte, ns int) {
	var ex exception_t
	var prim = new_AX25_I(axp.client_id, axp.server_id, entry[0],
		axp.modulo128, &axp.addr, uint8(axp.vr), uint8(ns), entry[1:], &ex)
	if prim == nil {
		log_ex(&ex)
		return
	}
	axp.plugin.send_frame(prim)
}

/*-------------------------------------------------------------------
 *
 * Name:	lapbstate
 *
 * Purpose:	Set a new link state and notify the DLSAP peer of the
 *		transition.
 *
 *---------------------------------------------------------------*/

func lapbstate(axp *session_t, s int) {
	var oldstate = axp.state
	axp.state = s
	if s == LAPB_DISCONNECTED {
		timer_stop(&axp.t1)
		timer_stop(&axp.t3)
		timer_stop(&axp.t4)
		axp.txq = nil
	}
	if oldstate != s {
		axp.plugin.state_upcall(axp, oldstate, s)
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	procdata
 *
 * Purpose:	Process a valid incoming I field: strip the PID,
 *		reassemble segments, hand complete payloads upstairs.
 *
 *---------------------------------------------------------------*/

func procdata(axp *session_t, body []byte) {
	if len(body) < 1 {
		return
	}
	var pid = body[0]
	var bp = body[1:]

	if axp.segremain != 0 {
		/* Reassembly in progress; continue. */
		if len(bp) < 1 {
			drop_reassembly(axp)
			return
		}
		var seq = int(bp[0])
		if pid == PID_SEGMENT && seq&SEG_REM == axp.segremain-1 {
			/* Correct, in-order segment. */
			axp.rxasm = append(axp.rxasm, bp[1:]...)
			axp.segremain = seq & SEG_REM
			if axp.segremain == 0 {
				/* Done; kick it upstairs. */
				var whole = axp.rxasm
				axp.rxasm = nil
				if len(whole) >= 1 {
					handleit(axp, whole[0], whole[1:])
				}
			}
		} else {
			/* Sequence went backward or sideways. */
			drop_reassembly(axp)
		}
		return
	}

	if pid == PID_SEGMENT {
		if len(bp) < 1 {
			return
		}
		var seq = int(bp[0])
		if seq&SEG_FIRST == 0 {
			/* Not a first segment - error. */
			return
		}
		/* Start reassembly. */
		axp.segremain = seq & SEG_REM
		axp.rxasm = append([]byte{}, bp[1:]...)
		return
	}

	/* Normal frame; send upstairs. */
	handleit(axp, pid, bp)
}

func drop_reassembly(axp *session_t) {
	axp.rxasm = nil
	axp.segremain = 0
}

/* Deliver one complete payload to the DLSAP peer, or hold it in the
 * receive queue while the local side has flow turned off. */
func handleit(axp *session_t, pid uint8, data []byte) {
	if axp.flags.local_busy {
		var held = append([]byte{pid}, data...)
		axp.rxq = append(axp.rxq, held)
		return
	}
	axp.plugin.data_upcall(axp, pid, data)
}

/*-------------------------------------------------------------------
 *
 * Name:	segmenter
 *
 * Purpose:	Split an outbound payload into transmit-queue entries.
 *		Fragments get a 2-byte segmentation header; the first
 *		one carries SEG_FIRST.  Entries are PID + data.
 *
 *---------------------------------------------------------------*/

func segmenter(pid uint8, data []byte, ssize int) [][]byte {
	var stream = append([]byte{pid}, data...)

	/* 1-byte grace so the PID alone does not force segmentation. */
	if len(stream) <= ssize+1 {
		return [][]byte{stream}
	}

	ssize -= 2 /* data portion per segment */
	var segments = 1 + (len(stream)-1)/ssize
	var result = make([][]byte, 0, segments)
	var offset = 0
	for remaining := segments - 1; remaining >= 0; remaining-- {
		var end = offset + ssize
		if end > len(stream) {
			end = len(stream)
		}
		var count = byte(remaining)
		if offset == 0 {
			count |= SEG_FIRST
		}
		var entry = append([]byte{PID_SEGMENT, count}, stream[offset:end]...)
		result = append(result, entry)
		offset = end
	}
	return result
}

/*-------------------------------------------------------------------
 *
 * Name:	frame_reject
 *
 * Purpose:	Peer sent an impossible control field: notify with
 *		FRMR and fall back to SETUP.
 *
 *---------------------------------------------------------------*/

func frame_reject(axp *session_t, body []byte) {
	var ex exception_t
	var info = make([]byte, 0, 3)
	if len(body) > 0 {
		info = append(info, body[0])
	}
	info = append(info, byte(axp.vr<<5|axp.vs<<1), 0x01 /* W: invalid control */)
	var prim = new_AX25_FRMR(axp.client_id, axp.server_id, &axp.addr, info, &ex)
	if prim == nil {
		log_ex(&ex)
	} else {
		axp.plugin.send_frame(prim)
	}
	est_link(axp)
	lapbstate(axp, LAPB_SETUP)
}

/*------------------------------------------------------------------
 *
 * Timer recovery.
 *
 *---------------------------------------------------------------*/

/* Called whenever timer T1 expires. */
func t1_expired(axp *session_t) {
	axp.flags.retrans = true
	axp.retries++
	metrics_count_t1_expired()

	var waittime = timer_get_duration_ms(&axp.t1)
	switch axp.plugin.lapbtimer {
	case LAPB_TIMER_FIXED:
		waittime = axp.srt * 2
	case LAPB_TIMER_LINEAR:
		waittime += axp.srt
	case LAPB_TIMER_EXPONENTIAL:
		waittime *= 2
	}
	var maxwait = int64(axp.plugin.maxwait)
	if maxwait != 0 && waittime > maxwait {
		waittime = maxwait
	}
	timer_set_duration_ms(&axp.t1, waittime)

	switch axp.state {
	case LAPB_SETUP:
		if axp.n2 != 0 && axp.retries > axp.n2 {
			axp.txq = nil
			axp.reason = LB_TIMEOUT
			lapbstate(axp, LAPB_DISCONNECTED)
		} else {
			if axp.modulo128 {
				sendctl(axp, LAPB_COMMAND, AX25_SABME, true)
			} else {
				sendctl(axp, LAPB_COMMAND, AX25_SABM, true)
			}
			timer_start(&axp.t1)
		}
	case LAPB_DISCPENDING:
		if axp.n2 != 0 && axp.retries > axp.n2 {
			axp.reason = LB_TIMEOUT
			lapbstate(axp, LAPB_DISCONNECTED)
		} else {
			sendctl(axp, LAPB_COMMAND, AX25_DISC, true)
			timer_start(&axp.t1)
		}
	case LAPB_CONNECTED, LAPB_RECOVERY:
		if axp.n2 != 0 && axp.retries > axp.n2 {
			/* Give up. */
			sendctl(axp, LAPB_RESPONSE, AX25_DM, true)
			axp.txq = nil
			axp.reason = LB_TIMEOUT
			lapbstate(axp, LAPB_DISCONNECTED)
		} else {
			/* Transmit poll. */
			tx_enq(axp)
			lapbstate(axp, LAPB_RECOVERY)
		}
	}
}

/* Called whenever timer T3 (keep-alive) expires: send a poll. */
func t3_expired(axp *session_t) {
	if axp.proto == V1 {
		/* Not supported in the old protocol. */
		return
	}
	switch axp.state {
	case LAPB_RECOVERY, LAPB_CONNECTED:
		axp.retries = 0
		tx_enq(axp)
		lapbstate(axp, LAPB_RECOVERY)
	}
}

/* Called whenever timer T4 (link redundancy) expires. */
func t4_expired(axp *session_t) {
	switch axp.state {
	case LAPB_CONNECTED, LAPB_RECOVERY:
		axp.retries = 0
		sendctl(axp, LAPB_COMMAND, AX25_DISC, true)
		timer_start(&axp.t1)
		axp.txq = nil
		lapbstate(axp, LAPB_DISCPENDING)
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	tx_enq
 *
 * Purpose:	Transmit query.  Retransmitting the oldest unacked I
 *		frame tends to beat polling as long as the frame is
 *		not too large, because chances are the I frame got
 *		lost anyway.
 *
 *---------------------------------------------------------------*/

func tx_enq(axp *session_t) {
	if len(axp.txq) > 0 && axp.pthresh != PTHRESH_OFF &&
		(len(axp.txq[0]) < axp.pthresh || axp.proto == V1) {
		/* Retransmit oldest unacked I frame. */
		var ns = (axp.vs - axp.unack) & axp.seqmask()
		metrics_count_retransmission()
		send_iframe(axp, axp.txq[0], ns)
	} else {
		var ctl AX25_CMD_t = AX25_RR
		if rxq_len(axp) >= axp.window {
			ctl = AX25_RNR
		}
		sendctl(axp, LAPB_COMMAND, ctl, true)
	}
	axp.response = 0
	timer_stop(&axp.t3)
	timer_start(&axp.t1)
}

/*-------------------------------------------------------------------
 *
 * Name:	send_ax25 / disc_ax25
 *
 * Purpose:	Entry points for the session glue: queue outbound data
 *		(segmenting as needed) and initiate disconnect.
 *
 *---------------------------------------------------------------*/

func send_ax25(axp *session_t, pid uint8, data []byte) {
	for _, entry := range segmenter(pid, data, axp.paclen) {
		axp.txq = append(axp.txq, entry)
	}
	lapb_output(axp)
}

func disc_ax25(axp *session_t) {
	switch axp.state {
	case LAPB_CONNECTED, LAPB_RECOVERY:
		axp.txq = nil
		axp.retries = 0
		sendctl(axp, LAPB_COMMAND, AX25_DISC, true)
		timer_stop(&axp.t3)
		timer_start(&axp.t1)
		lapbstate(axp, LAPB_DISCPENDING)
	case LAPB_SETUP:
		axp.txq = nil
		axp.reason = LB_NORMAL
		lapbstate(axp, LAPB_DISCONNECTED)
	default:
		sendctl(axp, LAPB_RESPONSE, AX25_DM, true)
	}
}

/* Local flow control from the upper layer. */
func flow_off_ax25(axp *session_t) {
	axp.flags.local_busy = true
}

func flow_on_ax25(axp *session_t) {
	axp.flags.local_busy = false
	for _, held := range axp.rxq {
		axp.plugin.data_upcall(axp, held[0], held[1:])
	}
	axp.rxq = nil
}
