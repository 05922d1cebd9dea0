package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Serial KISS transport.
 *
 * Description: One instance per port.  The reader thread copies raw
 *		bytes into a ring buffer; the framer thread drains the
 *		ring, reassembles KISS frames and pushes each one as
 *		an AX25 primitive to the back channel of whoever
 *		opened us.  Outbound primitives are queued and written
 *		by the TX thread.
 *
 *---------------------------------------------------------------*/

import (
	"sync"
)

type hostmode_plugin_t struct {
	name      string
	instances []*hostmode_instance_t
}

type hostmode_instance_t struct {
	name     string
	plugin   *hostmode_plugin_t
	comport  string
	baudrate uint
	rxsize   int
	txsize   int

	dls  dls_t
	port serial_handle

	rx_ring   ringbuffer_t
	tx_buffer primbuffer_t
	wg        sync.WaitGroup
	running   bool
}

func hostmode_get_plugin(name string, configurator configurator_func, context any, ex *exception_t) any {
	var plugin = &hostmode_plugin_t{name: name}
	if !configurator(plugin, nil, context, ex) {
		return nil
	}
	return plugin
}

func hostmode_get_instance(phandle any, name string, configurator configurator_func, context any, ex *exception_t) any {
	var plugin = phandle.(*hostmode_plugin_t)
	var inst = &hostmode_instance_t{name: name, plugin: plugin}

	var descriptor = []setting_descriptor_t{
		{"comport", CSTR_T, &inst.comport, "", true},
		{"baudrate", UINT_T, &inst.baudrate, "9600", false},
		{"rxsize", NSIZE_T, &inst.rxsize, "4096", false},
		{"txsize", NSIZE_T, &inst.txsize, "64", false},
	}
	if !configurator(inst, descriptor, context, ex) {
		return nil
	}

	inst.dls = dls_t{
		name:     name,
		open:     transport_dls_open,
		close:    transport_dls_close,
		on_write: hostmode_on_write,
		session:  inst,
	}
	if !dlsap_register_dls(&inst.dls, ex) {
		return nil
	}
	plugin.instances = append(plugin.instances, inst)
	return inst
}

/* Shared by all byte-pipe transports: remember the back channel. */
func transport_dls_open(dls *dls_t, back *dls_t, ex *exception_t) bool {
	if back != nil && dls.peer != nil {
		exception_fill(ex, EEXIST, dls.name, "dls_open",
			"Channel already connected", "")
		return false
	}
	dls.peer = back
	return true
}

func transport_dls_close(dls *dls_t) {
	dls.peer = nil
}

func hostmode_on_write(dls *dls_t, prim *primitive_t, expedited bool, ex *exception_t) bool {
	var inst, ok = dls.session.(*hostmode_instance_t)
	if !ok {
		exception_fill(ex, EINVAL, dls.name, "on_write",
			"Channel disruption", "")
		return false
	}
	if prim.protocol != AX25 {
		exception_fill(ex, EINVAL, dls.name, "on_write",
			"Unhandled protocol", "")
		return false
	}
	if !primbuffer_write_nonblock(&inst.tx_buffer, prim, expedited) {
		exception_fill(ex, EAGAIN, dls.name, "on_write",
			"TX buffer full", "")
		return false
	}
	return true
}

func hostmode_start_instance(handle any, ex *exception_t) bool {
	var inst = handle.(*hostmode_instance_t)
	DBG_DEBUG("Start", inst.name)

	inst.port = serial_port_open(inst.comport, int(inst.baudrate), ex)
	if inst.port == nil {
		return false
	}
	rb_init(&inst.rx_ring, inst.rxsize)
	primbuffer_init(&inst.tx_buffer, inst.txsize)

	inst.running = true
	inst.wg.Add(3)
	go inst.rx_reader()
	go inst.rx_framer()
	go inst.tx_consumer()
	return true
}

func hostmode_stop_instance(handle any, ex *exception_t) bool {
	var inst = handle.(*hostmode_instance_t)
	DBG_DEBUG("Stop", inst.name)

	inst.running = false
	serial_port_close(inst.port)
	rb_destroy(&inst.rx_ring)
	primbuffer_destroy(&inst.tx_buffer)
	inst.wg.Wait()
	dlsap_unregister_dls(&inst.dls, nil)
	return true
}

/* Reader thread: port bytes into the ring. */
func (inst *hostmode_instance_t) rx_reader() {
	defer inst.wg.Done()
	var buf = make([]byte, 256)
	for inst.running {
		var n = serial_port_read(inst.port, buf)
		if n < 0 {
			if inst.running {
				DBG_ERROR("Serial read failed", inst.comport)
			}
			return
		}
		if rb_write_block(&inst.rx_ring, buf[:n]) < 0 {
			return
		}
	}
}

/* Framer thread: ring bytes through the KISS decoder, one primitive
 * per frame to the back channel. */
func (inst *hostmode_instance_t) rx_framer() {
	defer inst.wg.Done()
	var kd kiss_decoder_t
	var buf = make([]byte, 256)
	for {
		var n = rb_read_block(&inst.rx_ring, buf)
		if n < 0 {
			return
		}
		kd.kiss_decode(buf[:n], func(frame []byte) {
			transport_deliver(&inst.dls, frame)
		})
	}
}

/* Hand one received wire frame to whoever opened us. */
func transport_deliver(dls *dls_t, frame []byte) {
	var back = dls.peer
	if back == nil {
		return
	}
	var ex exception_t
	var prim = new_AX25_FromFrame(0xffff, 0, frame, false, &ex)
	if prim == nil {
		log_ex(&ex)
		return
	}
	if !dlsap_write(back, prim, false, &ex) {
		log_ex(&ex)
	}
	del_prim(prim)
}

/* TX thread: queued primitives to the port, KISS framed. */
func (inst *hostmode_instance_t) tx_consumer() {
	defer inst.wg.Done()
	for {
		var prim = primbuffer_read_block(&inst.tx_buffer, nil)
		if prim == nil {
			return
		}
		var wire = kiss_encapsulate(0, prim.payload)
		if serial_port_write(inst.port, wire) < 0 && inst.running {
			DBG_ERROR("Serial write failed", inst.comport)
		}
		del_prim(prim)
	}
}

var hostmode_plugin_descriptor = plugin_descriptor_t{
	get_plugin:     hostmode_get_plugin,
	get_instance:   hostmode_get_instance,
	start_instance: hostmode_start_instance,
	stop_instance:  hostmode_stop_instance,
}
