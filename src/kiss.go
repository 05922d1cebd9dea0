package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	KISS framing for byte-stream transports.
 *
 * Description: A KISS frame is FEND, a port/command octet, the frame
 *		data with FEND and FESC escaped, and a closing FEND.
 *		The decoder is a small state machine fed one chunk at
 *		a time; it tolerates back-to-back FENDs and unknown
 *		command nibbles.
 *
 *---------------------------------------------------------------*/

const FEND = 0xC0
const FESC = 0xDB
const TFEND = 0xDC
const TFESC = 0xDD

/* Command nibble of the port/command octet. */
const KISS_CMD_DATA_FRAME = 0x00

const kiss_max_frame = 2048

type kiss_state_e int

const (
	KS_SEARCHING kiss_state_e = iota /* Looking for FEND to start a frame. */
	KS_COLLECTING                    /* In a frame.                        */
	KS_ESCAPE                        /* Last octet was FESC.               */
)

type kiss_decoder_t struct {
	state kiss_state_e
	frame []byte
}

/*-------------------------------------------------------------------
 *
 * Name:	kiss_encapsulate
 *
 * Purpose:	Wrap one frame for the wire.
 *
 * Inputs:	port	- TNC port number (0..15).
 *		data	- The raw frame.
 *
 *---------------------------------------------------------------*/

func kiss_encapsulate(port int, data []byte) []byte {
	var out = make([]byte, 0, len(data)+8)
	out = append(out, FEND, byte(port<<4)|KISS_CMD_DATA_FRAME)
	for _, b := range data {
		switch b {
		case FEND:
			out = append(out, FESC, TFEND)
		case FESC:
			out = append(out, FESC, TFESC)
		default:
			out = append(out, b)
		}
	}
	return append(out, FEND)
}

/*-------------------------------------------------------------------
 *
 * Name:	kiss_decode
 *
 * Purpose:	Feed received bytes into the decoder.
 *
 * Inputs:	emit	- Called once per complete data frame with the
 *			  unescaped frame contents (port/command octet
 *			  stripped).
 *
 *---------------------------------------------------------------*/

func (kd *kiss_decoder_t) kiss_decode(chunk []byte, emit func(frame []byte)) {
	for _, b := range chunk {
		switch kd.state {
		case KS_SEARCHING:
			if b == FEND {
				kd.state = KS_COLLECTING
				kd.frame = kd.frame[:0]
			}

		case KS_COLLECTING:
			switch b {
			case FEND:
				kd.kiss_complete(emit)
			case FESC:
				kd.state = KS_ESCAPE
			default:
				kd.kiss_collect(b)
			}

		case KS_ESCAPE:
			switch b {
			case TFEND:
				kd.kiss_collect(FEND)
			case TFESC:
				kd.kiss_collect(FESC)
			default:
				/* Protocol violation; drop the frame. */
				kd.frame = kd.frame[:0]
			}
			kd.state = KS_COLLECTING
		}
	}
}

func (kd *kiss_decoder_t) kiss_collect(b byte) {
	if len(kd.frame) >= kiss_max_frame {
		/* Runaway frame, start over. */
		kd.frame = kd.frame[:0]
		kd.state = KS_SEARCHING
		return
	}
	kd.frame = append(kd.frame, b)
}

func (kd *kiss_decoder_t) kiss_complete(emit func(frame []byte)) {
	defer func() {
		kd.frame = kd.frame[:0]
	}()
	if len(kd.frame) < 2 {
		/* Empty or FEND keepalive. */
		return
	}
	if kd.frame[0]&0x0f != KISS_CMD_DATA_FRAME {
		/* Set-hardware and friends are ignored here. */
		return
	}
	var out = make([]byte, len(kd.frame)-1)
	copy(out, kd.frame[1:])
	emit(out)
}
