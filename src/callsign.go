package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Callsign and address-field codec.
 *
 * Description: A callsign is held in 64 bits as 7 octets: six
 *		shifted-ASCII characters padded with 0x40 (space << 1)
 *		plus one SSID octet.  The SSID octet carries the SSID
 *		in bits 1..4 and three flag bits:
 *
 *		  C (0x80)  command/response in destination/source
 *		  H (0x80)  has-been-repeated in a digipeater slot
 *		  X (0x01)  address-field extension, last address
 *
 *		String notation: up to six uppercase alphanumerics,
 *		optional "-SSID" (0..15), optional "*" for the H bit.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"strings"
)

type callsign uint64

type addressField_t struct {
	destination callsign
	source      callsign
	repeaters   [2]callsign
}

const C_BIT = 0x80
const H_BIT = 0x80
const X_BIT = 0x01

/* Octet i (0..6) of the encoded callsign. */
func cs_octet(c callsign, i int) byte {
	return byte(c >> (8 * uint(i)))
}

func cs_set_octet(c *callsign, i int, o byte) {
	var shift = 8 * uint(i)
	*c = (*c &^ (callsign(0xff) << shift)) | (callsign(o) << shift)
}

func getHBit(c callsign) bool { return cs_octet(c, 6)&H_BIT != 0 }
func getCBit(c callsign) bool { return cs_octet(c, 6)&C_BIT != 0 }
func getXBit(c callsign) bool { return cs_octet(c, 6)&X_BIT != 0 }

func setHBit(c *callsign, h bool) { cs_set_flag(c, H_BIT, h) }
func setCBit(c *callsign, v bool) { cs_set_flag(c, C_BIT, v) }
func setXBit(c *callsign, x bool) { cs_set_flag(c, X_BIT, x) }

func cs_set_flag(c *callsign, bit byte, v bool) {
	var o = cs_octet(*c, 6)
	if v {
		o |= bit
	} else {
		o &^= bit
	}
	cs_set_octet(c, 6, o)
}

func getSsid(c callsign) int {
	return int(cs_octet(c, 6)&0x1e) >> 1
}

/* Shifted octet for a callsign character, 0 for an illegal one. */
func cs_octet_of_char(ch byte) byte {
	if ch >= 'a' && ch <= 'z' {
		ch -= 0x20
	}
	if (ch >= '0' && ch <= '9') || (ch >= 'A' && ch <= 'Z') {
		return ch << 1
	}
	return 0
}

/*-------------------------------------------------------------------
 *
 * Name:	callsignFromString
 *
 * Purpose:	Parse one callsign in "CALL-N*" notation from the
 *		start of str.
 *
 * Outputs:	next	- When non-nil, receives the unparsed remainder
 *			  with leading whitespace skipped.
 *
 * Returns:	The callsign.  On failure ex holds the detail and the
 *		callsign is 0.
 *
 *---------------------------------------------------------------*/

func callsignFromString(str string, next *string, ex *exception_t) callsign {
	var c callsign
	var i = 0
	var pos = 0
	var with_ssid = false

	for pos < len(str) {
		var ch = str[pos]
		if ch == ' ' || ch == '\t' {
			break
		}
		if ch == '-' {
			pos++
			with_ssid = true
			break
		}
		if ch == '*' {
			break
		}
		if i > 5 {
			exception_fill(ex, EXIT_FAILURE, "Callsign", "callsignFromString",
				"Callsign too long (max. 6 characters)", str)
			return 0
		}
		var octet = cs_octet_of_char(ch)
		if octet == 0 {
			exception_fill(ex, EXIT_FAILURE, "Callsign", "callsignFromString",
				"Invalid callsign character", str)
			return 0
		}
		cs_set_octet(&c, i, octet)
		pos++
		i++
	}
	if i == 0 {
		exception_fill(ex, EXIT_FAILURE, "Callsign", "callsignFromString",
			"Callsign too short (min. 1 character)", str)
		return 0
	}
	for ; i < 6; i++ {
		cs_set_octet(&c, i, 0x40)
	}

	var ssid = 0
	if with_ssid {
		var start = pos
		for pos < len(str) && str[pos] >= '0' && str[pos] <= '9' {
			ssid = ssid*10 + int(str[pos]-'0')
			pos++
		}
		if pos == start || ssid > 15 {
			exception_fill(ex, EXIT_FAILURE, "Callsign", "callsignFromString",
				"SSID is out of range (0..15)", str)
			return 0
		}
	}
	cs_set_octet(&c, 6, 0x60|byte(ssid<<1))

	if pos < len(str) && str[pos] == '*' {
		setHBit(&c, true)
		pos++
	}

	if next != nil {
		*next = strings.TrimLeft(str[pos:], " \t")
	}
	return c
}

/*-------------------------------------------------------------------
 *
 * Name:	callsignToString
 *
 * Purpose:	Exact inverse of callsignFromString for valid input:
 *		uppercased call, "-SSID", trailing "*" iff H bit.
 *
 *---------------------------------------------------------------*/

func callsignToString(c callsign) string {
	if c == 0 {
		return "<NULL>"
	}
	var sb strings.Builder
	for i := 0; i < 6; i++ {
		var ch = (cs_octet(c, i) & 0xfe) >> 1
		if ch != ' ' {
			sb.WriteByte(ch)
		}
	}
	fmt.Fprintf(&sb, "-%d", getSsid(c))
	if getHBit(c) {
		sb.WriteByte('*')
	}
	return sb.String()
}

/*-------------------------------------------------------------------
 *
 * Name:	addressFieldFromString
 *
 * Purpose:	Parse "DEST [VIA D1 [D2]]" against a given source
 *		callsign.  The literal "VIA" (or "V") keyword before
 *		the digipeaters is optional.  The X bit is set on the
 *		last active address.
 *
 *---------------------------------------------------------------*/

func addressFieldFromString(source callsign, dest string, af *addressField_t, ex *exception_t) bool {
	*af = addressField_t{}
	af.source = source
	setXBit(&af.source, false)

	dest = strings.TrimLeft(dest, " \t")
	var next string

	af.destination = callsignFromString(dest, &next, ex)
	if af.destination == 0 {
		return false
	}
	dest = next
	if dest == "" {
		setXBit(&af.source, true)
		return true
	}

	/* Optional VIA keyword before the digipeater list. */
	var kw, rest, _ = strings.Cut(dest, " ")
	if strings.EqualFold(kw, "VIA") || strings.EqualFold(kw, "V") {
		dest = strings.TrimLeft(rest, " \t")
		if dest == "" {
			exception_fill(ex, EXIT_FAILURE, "Callsign", "addressFieldFromString",
				"VIA without digipeater", dest)
			return false
		}
	}

	for r := 0; r < 2; r++ {
		af.repeaters[r] = callsignFromString(dest, &next, ex)
		if af.repeaters[r] == 0 {
			return false
		}
		dest = next
		if dest == "" {
			setXBit(&af.repeaters[r], true)
			return true
		}
	}

	exception_fill(ex, EXIT_FAILURE, "Callsign", "addressFieldFromString",
		"Too many repeaters (max. 2)", dest)
	return false
}

/* "SRC>DEST" or "SRC>DEST,D1,D2" notation, digis in digi-order. */
func addressFieldToString(af *addressField_t) string {
	var sb strings.Builder
	sb.WriteString(callsignToString(af.source))
	sb.WriteByte('>')
	sb.WriteString(callsignToString(af.destination))
	for r := 0; r < getNRepeaters(af); r++ {
		sb.WriteByte(',')
		sb.WriteString(callsignToString(af.repeaters[r]))
	}
	return sb.String()
}

/* Number of active digipeaters, derived from the X bits. */
func getNRepeaters(af *addressField_t) int {
	if getXBit(af.source) {
		return 0
	}
	if getXBit(af.repeaters[0]) {
		return 1
	}
	return 2
}

/* Wire length of the address field: 14 + 7 per digipeater. */
func getFrameAddressLength(af *addressField_t) int {
	return 14 + 7*getNRepeaters(af)
}

/*-------------------------------------------------------------------
 *
 * Name:	putFrameAddress
 *
 * Purpose:	Write the address field in wire order: dest(7),
 *		src(7), digi1(7)?, digi2(7)?.  The X bit on the final
 *		octet is the authoritative end-of-address marker.
 *
 * Returns:	Number of octets written.
 *
 *---------------------------------------------------------------*/

func putFrameAddress(af *addressField_t, buf []byte) int {
	var i = 0
	for o := 0; o < 7; o++ {
		buf[i] = cs_octet(af.destination, o)
		i++
	}
	for o := 0; o < 7; o++ {
		buf[i] = cs_octet(af.source, o)
		i++
	}
	for r := 0; r < getNRepeaters(af); r++ {
		for o := 0; o < 7; o++ {
			buf[i] = cs_octet(af.repeaters[r], o)
			i++
		}
	}
	return i
}

/*-------------------------------------------------------------------
 *
 * Name:	getFrameAddress
 *
 * Purpose:	Parse the address field from the start of a wire
 *		frame, following the X bit.
 *
 * Returns:	Number of octets consumed, or -1 on a malformed field.
 *
 *---------------------------------------------------------------*/

func getFrameAddress(frame []byte, af *addressField_t, ex *exception_t) int {
	*af = addressField_t{}

	var calls [4]callsign
	var n = 0
	var i = 0
	for {
		if n >= 4 || i+7 > len(frame) {
			exception_fill(ex, EINVAL, "Callsign", "getFrameAddress",
				"Malformed address field", "")
			return -1
		}
		var c callsign
		for o := 0; o < 7; o++ {
			cs_set_octet(&c, o, frame[i+o])
		}
		calls[n] = c
		n++
		i += 7
		if frame[i-1]&X_BIT != 0 {
			break
		}
	}
	if n < 2 {
		exception_fill(ex, EINVAL, "Callsign", "getFrameAddress",
			"Address field too short", "")
		return -1
	}
	af.destination = calls[0]
	af.source = calls[1]
	for r := 0; r < n-2; r++ {
		af.repeaters[r] = calls[2+r]
	}
	return i
}
