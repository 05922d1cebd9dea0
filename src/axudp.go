package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	UDP tunnel transport.
 *
 * Description: One datagram carries exactly one AX.25 frame, FCS
 *		included - no KISS framing on this path.  The RX
 *		thread pushes frames to the back channel; outbound
 *		primitives are queued and written by the TX thread.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"net"
	"sync"
)

type axudp_plugin_t struct {
	name      string
	instances []*axudp_instance_t
}

type axudp_instance_t struct {
	name      string
	plugin    *axudp_plugin_t
	host      string
	port      uint
	dest_host string
	dest_port uint
	txsize    int

	dls       dls_t
	conn      *net.UDPConn
	dest      *net.UDPAddr
	tx_buffer primbuffer_t
	wg        sync.WaitGroup
	running   bool
}

func axudp_get_plugin(name string, configurator configurator_func, context any, ex *exception_t) any {
	var plugin = &axudp_plugin_t{name: name}
	if !configurator(plugin, nil, context, ex) {
		return nil
	}
	return plugin
}

func axudp_get_instance(phandle any, name string, configurator configurator_func, context any, ex *exception_t) any {
	var plugin = phandle.(*axudp_plugin_t)
	var inst = &axudp_instance_t{name: name, plugin: plugin}

	var descriptor = []setting_descriptor_t{
		{"host", CSTR_T, &inst.host, "", false},
		{"port", UINT_T, &inst.port, "10093", false},
		{"dest_host", CSTR_T, &inst.dest_host, "", true},
		{"dest_port", UINT_T, &inst.dest_port, "10093", false},
		{"txsize", NSIZE_T, &inst.txsize, "64", false},
	}
	if !configurator(inst, descriptor, context, ex) {
		return nil
	}

	inst.dls = dls_t{
		name:     name,
		open:     transport_dls_open,
		close:    transport_dls_close,
		on_write: axudp_on_write,
		session:  inst,
	}
	if !dlsap_register_dls(&inst.dls, ex) {
		return nil
	}
	plugin.instances = append(plugin.instances, inst)
	return inst
}

func axudp_on_write(dls *dls_t, prim *primitive_t, expedited bool, ex *exception_t) bool {
	var inst, ok = dls.session.(*axudp_instance_t)
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

func axudp_start_instance(handle any, ex *exception_t) bool {
	var inst = handle.(*axudp_instance_t)
	DBG_DEBUG("Start", inst.name)

	var laddr, err = net.ResolveUDPAddr("udp",
		fmt.Sprintf("%s:%d", inst.host, inst.port))
	if err != nil {
		exception_fill(ex, EINVAL, inst.name, "start_instance",
			"Cannot resolve local address", err.Error())
		return false
	}
	inst.dest, err = net.ResolveUDPAddr("udp",
		fmt.Sprintf("%s:%d", inst.dest_host, inst.dest_port))
	if err != nil {
		exception_fill(ex, EINVAL, inst.name, "start_instance",
			"Cannot resolve destination address", err.Error())
		return false
	}
	inst.conn, err = net.ListenUDP("udp", laddr)
	if err != nil {
		exception_fill(ex, EIO, inst.name, "start_instance",
			"Cannot bind UDP socket", err.Error())
		return false
	}

	primbuffer_init(&inst.tx_buffer, inst.txsize)
	inst.running = true
	inst.wg.Add(2)
	go inst.rx_thread()
	go inst.tx_thread()
	return true
}

func axudp_stop_instance(handle any, ex *exception_t) bool {
	var inst = handle.(*axudp_instance_t)
	DBG_DEBUG("Stop", inst.name)

	inst.running = false
	if inst.conn != nil {
		inst.conn.Close()
	}
	primbuffer_destroy(&inst.tx_buffer)
	inst.wg.Wait()
	dlsap_unregister_dls(&inst.dls, nil)
	return true
}

func (inst *axudp_instance_t) rx_thread() {
	defer inst.wg.Done()
	var buf = make([]byte, 2048)
	for {
		var n, _, err = inst.conn.ReadFromUDP(buf)
		if err != nil {
			if inst.running {
				DBG_ERROR("UDP read failed", err.Error())
			}
			return
		}
		if n < 17 {
			continue /* Shorter than the smallest legal frame. */
		}
		var frame = make([]byte, n)
		copy(frame, buf[:n])
		transport_deliver(&inst.dls, frame)
	}
}

func (inst *axudp_instance_t) tx_thread() {
	defer inst.wg.Done()
	for {
		var prim = primbuffer_read_block(&inst.tx_buffer, nil)
		if prim == nil {
			return
		}
		var _, err = inst.conn.WriteToUDP(prim.payload, inst.dest)
		if err != nil && inst.running {
			DBG_ERROR("UDP write failed", err.Error())
		}
		del_prim(prim)
	}
}

var axudp_plugin_descriptor = plugin_descriptor_t{
	get_plugin:     axudp_get_plugin,
	get_instance:   axudp_get_instance,
	start_instance: axudp_start_instance,
	stop_instance:  axudp_stop_instance,
}
