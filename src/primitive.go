package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Reference-counted message primitives.
 *
 * Description: A primitive is the typed message unit that crosses a
 *		Data-Link Service Access Point.  The payload is a
 *		concatenation of length-prefixed parameters:
 *		u16 size (little-endian), followed by size bytes,
 *		repeating.
 *
 *		Primitives are shared by pointer across threads.  The
 *		lock counter keeps the backing store alive; creation
 *		sets it to 1, use_prim increments, del_prim decrements
 *		and the storage is poisoned when it reaches zero.
 *		Mutation after publication is forbidden.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"sync/atomic"
)

/* Maximum size of a payload. */
const MAX_PAYLOAD_SIZE = 32768

/* Canary octet placed just past the declared payload. */
const mem_canary = 0xA5

type protocol_t uint8

const (
	DL   protocol_t = 0 /* Data Link Layer (3)        */
	MDL  protocol_t = 1 /* Data Link Layer Management */
	LM   protocol_t = 2 /* Link Multiplexer           */
	PH   protocol_t = 3 /* Physical Layer             */
	AX25 protocol_t = 4 /* AX.25 Frame                */
)

type primitive_t struct {
	protocol     protocol_t /* Protocol of the prim.            */
	cmd          uint8      /* Protocol specific command.       */
	clientHandle uint16     /* Handle assigned by the client.   */
	serverHandle uint16     /* Handle assigned by the server.   */
	payload      []byte     /* Declared payload, len == size.   */

	store []byte       /* payload plus the trailing canary */
	locks atomic.Int32 /* Usage counter.                   */
}

/* A view into the parameter stream, starting at the u16 size prefix. */
type prim_param_t []byte

/*-------------------------------------------------------------------
 *
 * Name:	new_prim
 *
 * Purpose:	Allocate a new prim with lock count 1.
 *
 * Inputs:	payload_size	- Size of the payload in bytes.
 *		protocol	- Protocol of the prim.
 *		cmd		- Protocol specific command.
 *		clientHandle	- Handle assigned by the client.
 *		serverHandle	- Handle assigned by the server.
 *
 * Returns:	The new prim, or nil when the payload is too large.
 *
 *---------------------------------------------------------------*/

func new_prim(payload_size int, protocol protocol_t, cmd uint8, clientHandle uint16, serverHandle uint16, ex *exception_t) *primitive_t {
	if payload_size < 0 || payload_size > MAX_PAYLOAD_SIZE {
		exception_fill(ex, ERANGE, "Primitive", "new_prim",
			"Payload too large", "")
		return nil
	}

	var store = make([]byte, payload_size+1)
	store[payload_size] = mem_canary

	var prim = &primitive_t{
		protocol:     protocol,
		cmd:          cmd,
		clientHandle: clientHandle,
		serverHandle: serverHandle,
		payload:      store[:payload_size:payload_size],
		store:        store,
	}
	prim.locks.Store(1)
	return prim
}

/* Lock the prim.  It is guaranteed to stay valid until del_prim. */
func use_prim(prim *primitive_t) {
	if prim == nil {
		return
	}
	var n = prim.locks.Add(1)
	if n <= 1 {
		die_internal("Primitive", "use_prim", "lock after final release")
	}
}

/* Release the prim.  Deletion happens when the counter reaches 0. */
func del_prim(prim *primitive_t) {
	if prim == nil {
		return
	}
	var n = prim.locks.Add(-1)
	if n < 0 {
		die_internal("Primitive", "del_prim", "double free")
		return
	}
	if n == 0 {
		mem_chck(prim)
		/* Poison so that a late use_prim trips the counter check. */
		prim.store[len(prim.payload)] = ^byte(mem_canary)
		prim.payload = nil
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	mem_chck
 *
 * Purpose:	Assert the canary just past the declared payload.
 *		Catches writers overrunning the payload size.
 *
 *---------------------------------------------------------------*/

func mem_chck(prim *primitive_t) {
	if prim == nil {
		return
	}
	if prim.store[len(prim.payload)] != mem_canary {
		die_internal("Primitive", "mem_chck", "canary destroyed")
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	get_prim_param
 *
 * Purpose:	Get the i-th parameter by walking the length-prefixed
 *		parameter stream.
 *
 * Returns:	A view starting at the u16 size prefix, or nil when
 *		no such parameter exists.
 *
 *---------------------------------------------------------------*/

func get_prim_param(prim *primitive_t, i int) prim_param_t {
	var o = 0
	for ; i > 0; i-- {
		if o >= len(prim.payload) {
			return nil
		}
		var s = int(binary.LittleEndian.Uint16(prim.payload[o:]))
		o += s + 2
	}
	if o+2 > len(prim.payload) {
		return nil
	}
	return prim_param_t(prim.payload[o:])
}

/* Size of a prim parameter. */
func get_prim_param_size(param prim_param_t) int {
	if param == nil {
		return 0
	}
	return int(binary.LittleEndian.Uint16(param))
}

/* Data of a prim parameter. */
func get_prim_param_data(param prim_param_t) []byte {
	if param == nil {
		return nil
	}
	var s = get_prim_param_size(param)
	return param[2 : 2+s]
}

/* Data of a prim parameter as a string. */
func get_prim_param_str(param prim_param_t) string {
	return string(get_prim_param_data(param))
}

/*-------------------------------------------------------------------
 *
 * Name:	put_prim_param
 *
 * Purpose:	Append one parameter at index i of the payload.
 *
 * Returns:	New index in the payload.
 *
 *---------------------------------------------------------------*/

func put_prim_param(prim *primitive_t, i int, data []byte) int {
	binary.LittleEndian.PutUint16(prim.payload[i:], uint16(len(data)))
	i += 2
	copy(prim.payload[i:], data)
	return i + len(data)
}

/* Total payload size needed for a list of parameters. */
func prim_params_size(params ...[]byte) int {
	var n = 0
	for _, p := range params {
		n += len(p) + 2
	}
	return n
}

/*------------------------------------------------------------------
 *
 * DL commands and constructors.
 *
 *---------------------------------------------------------------*/

const (
	DL_CONNECT_REQUEST       = 0
	DL_CONNECT_INDICATION    = 1
	DL_CONNECT_CONFIRM       = 2
	DL_DISCONNECT_REQUEST    = 3
	DL_DISCONNECT_INDICATION = 4
	DL_DISCONNECT_CONFIRM    = 5
	DL_DATA_REQUEST          = 6
	DL_DATA_INDICATION       = 7
	DL_UNIT_DATA_REQUEST     = 8
	DL_UNIT_DATA_INDICATION  = 9
	DL_ERROR_INDICATION      = 10
	DL_FLOW_OFF_REQUEST      = 11
	DL_FLOW_ON_REQUEST       = 12
	MDL_NEGOTIATE_REQUEST    = 13
	MDL_NEGOTIATE_CONFIRM    = 14
	MDL_ERROR_INDICATION     = 15
	DL_TEST_REQUEST          = 16
	DL_TEST_INDICATION       = 17
	DL_TEST_CONFIRM          = 18
)

/* Build a prim whose payload is the given parameter list. */
func new_prim_with_params(protocol protocol_t, cmd uint8, clientHandle uint16, serverHandle uint16, ex *exception_t, params ...[]byte) *primitive_t {
	var prim = new_prim(prim_params_size(params...), protocol, cmd, clientHandle, serverHandle, ex)
	if prim == nil {
		return nil
	}
	var i = 0
	for _, p := range params {
		i = put_prim_param(prim, i, p)
	}
	mem_chck(prim)
	return prim
}

func new_DL_CONNECT_Request(clientHandle uint16, dstAddr []byte, srcAddr []byte, ex *exception_t) *primitive_t {
	return new_prim_with_params(DL, DL_CONNECT_REQUEST, clientHandle, 0, ex, dstAddr, srcAddr)
}

func new_DL_CONNECT_Indication(serverHandle uint16, dstAddr []byte, srcAddr []byte, ex *exception_t) *primitive_t {
	return new_prim_with_params(DL, DL_CONNECT_INDICATION, 0, serverHandle, ex, dstAddr, srcAddr)
}

func new_DL_CONNECT_Confirm(clientHandle uint16, serverHandle uint16, ex *exception_t) *primitive_t {
	return new_prim(0, DL, DL_CONNECT_CONFIRM, clientHandle, serverHandle, ex)
}

func new_DL_DISCONNECT_Request(clientHandle uint16, serverHandle uint16, ex *exception_t) *primitive_t {
	return new_prim(0, DL, DL_DISCONNECT_REQUEST, clientHandle, serverHandle, ex)
}

func new_DL_DISCONNECT_Indication(clientHandle uint16, serverHandle uint16, reason uint8, ex *exception_t) *primitive_t {
	return new_prim_with_params(DL, DL_DISCONNECT_INDICATION, clientHandle, serverHandle, ex, []byte{reason})
}

func new_DL_DISCONNECT_Confirm(clientHandle uint16, serverHandle uint16, ex *exception_t) *primitive_t {
	return new_prim(0, DL, DL_DISCONNECT_CONFIRM, clientHandle, serverHandle, ex)
}

func new_DL_DATA_Request(clientHandle uint16, serverHandle uint16, data []byte, ex *exception_t) *primitive_t {
	return new_prim_with_params(DL, DL_DATA_REQUEST, clientHandle, serverHandle, ex, data)
}

func new_DL_DATA_Indication(clientHandle uint16, serverHandle uint16, data []byte, ex *exception_t) *primitive_t {
	return new_prim_with_params(DL, DL_DATA_INDICATION, clientHandle, serverHandle, ex, data)
}

func new_DL_UNIT_DATA_Request(clientHandle uint16, dstAddr []byte, srcAddr []byte, data []byte, ex *exception_t) *primitive_t {
	return new_prim_with_params(DL, DL_UNIT_DATA_REQUEST, clientHandle, 0, ex, dstAddr, srcAddr, data)
}

func new_DL_UNIT_DATA_Indication(serverHandle uint16, dstAddr []byte, srcAddr []byte, data []byte, ex *exception_t) *primitive_t {
	return new_prim_with_params(DL, DL_UNIT_DATA_INDICATION, 0, serverHandle, ex, dstAddr, srcAddr, data)
}

func new_DL_ERROR_Indication(clientHandle uint16, serverHandle uint16, erc int, message string, ex *exception_t) *primitive_t {
	return new_prim_with_params(DL, DL_ERROR_INDICATION, clientHandle, serverHandle, ex,
		[]byte{byte(erc)}, []byte(message))
}

func new_DL_TEST_Request(clientHandle uint16, dstAddr []byte, srcAddr []byte, data []byte, ex *exception_t) *primitive_t {
	return new_prim_with_params(DL, DL_TEST_REQUEST, clientHandle, 0, ex, dstAddr, srcAddr, data)
}

func new_DL_TEST_Indication(serverHandle uint16, dstAddr []byte, srcAddr []byte, data []byte, ex *exception_t) *primitive_t {
	return new_prim_with_params(DL, DL_TEST_INDICATION, 0, serverHandle, ex, dstAddr, srcAddr, data)
}

func new_DL_TEST_Confirm(clientHandle uint16, serverHandle uint16, data []byte, ex *exception_t) *primitive_t {
	return new_prim_with_params(DL, DL_TEST_CONFIRM, clientHandle, serverHandle, ex, data)
}

func new_MDL_NEGOTIATE_Request(clientHandle uint16, serverHandle uint16, ex *exception_t) *primitive_t {
	return new_prim(0, MDL, MDL_NEGOTIATE_REQUEST, clientHandle, serverHandle, ex)
}

func new_MDL_NEGOTIATE_Confirm(clientHandle uint16, serverHandle uint16, ex *exception_t) *primitive_t {
	return new_prim(0, MDL, MDL_NEGOTIATE_CONFIRM, clientHandle, serverHandle, ex)
}

func new_MDL_ERROR_Indication(clientHandle uint16, serverHandle uint16, message string, ex *exception_t) *primitive_t {
	return new_prim_with_params(MDL, MDL_ERROR_INDICATION, clientHandle, serverHandle, ex, []byte(message))
}

func new_DL_FLOW_OFF_Request(clientHandle uint16, serverHandle uint16, ex *exception_t) *primitive_t {
	return new_prim(0, DL, DL_FLOW_OFF_REQUEST, clientHandle, serverHandle, ex)
}

func new_DL_FLOW_ON_Request(clientHandle uint16, serverHandle uint16, ex *exception_t) *primitive_t {
	return new_prim(0, DL, DL_FLOW_ON_REQUEST, clientHandle, serverHandle, ex)
}
