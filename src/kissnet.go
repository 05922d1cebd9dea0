package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	KISS over TCP transport, announced with DNS-SD.
 *
 * Description: Accepts any number of TCP clients.  Frames received
 *		from any client go to the back channel; outbound
 *		frames fan out to all connected clients.  Most people
 *		have typed in enough IP addresses and ports by now, so
 *		the service can announce itself on the local network.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/brutella/dnssd"
	"github.com/rs/xid"
)

const KISSNET_DNS_SD_SERVICE = "_kiss-tnc._tcp"

type kissnet_plugin_t struct {
	name      string
	instances []*kissnet_instance_t
}

type kissnet_instance_t struct {
	name      string
	plugin    *kissnet_plugin_t
	port      uint
	advertise uint
	sd_name   string
	txsize    int

	dls       dls_t
	listener  net.Listener
	clients   map[string]net.Conn
	client_mu sync.Mutex
	tx_buffer primbuffer_t
	wg        sync.WaitGroup
	running   bool
	sd_cancel context.CancelFunc
}

func kissnet_get_plugin(name string, configurator configurator_func, context any, ex *exception_t) any {
	var plugin = &kissnet_plugin_t{name: name}
	if !configurator(plugin, nil, context, ex) {
		return nil
	}
	return plugin
}

func kissnet_get_instance(phandle any, name string, configurator configurator_func, context any, ex *exception_t) any {
	var plugin = phandle.(*kissnet_plugin_t)
	var inst = &kissnet_instance_t{name: name, plugin: plugin}

	var descriptor = []setting_descriptor_t{
		{"port", UINT_T, &inst.port, "8001", false},
		{"advertise", UINT_T, &inst.advertise, "1", false},
		{"service_name", CSTR_T, &inst.sd_name, "", false},
		{"txsize", NSIZE_T, &inst.txsize, "64", false},
	}
	if !configurator(inst, descriptor, context, ex) {
		return nil
	}

	inst.dls = dls_t{
		name:     name,
		open:     transport_dls_open,
		close:    transport_dls_close,
		on_write: kissnet_on_write,
		session:  inst,
	}
	if !dlsap_register_dls(&inst.dls, ex) {
		return nil
	}
	plugin.instances = append(plugin.instances, inst)
	return inst
}

func kissnet_on_write(dls *dls_t, prim *primitive_t, expedited bool, ex *exception_t) bool {
	var inst, ok = dls.session.(*kissnet_instance_t)
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

func kissnet_start_instance(handle any, ex *exception_t) bool {
	var inst = handle.(*kissnet_instance_t)
	DBG_DEBUG("Start", inst.name)

	var listener, err = net.Listen("tcp", fmt.Sprintf(":%d", inst.port))
	if err != nil {
		exception_fill(ex, EIO, inst.name, "start_instance",
			"Cannot listen", err.Error())
		return false
	}
	inst.listener = listener
	inst.clients = make(map[string]net.Conn)
	primbuffer_init(&inst.tx_buffer, inst.txsize)

	inst.running = true
	inst.wg.Add(2)
	go inst.accept_thread()
	go inst.tx_thread()

	if inst.advertise != 0 {
		inst.sd_announce()
	}
	return true
}

func kissnet_stop_instance(handle any, ex *exception_t) bool {
	var inst = handle.(*kissnet_instance_t)
	DBG_DEBUG("Stop", inst.name)

	inst.running = false
	if inst.sd_cancel != nil {
		inst.sd_cancel()
	}
	inst.listener.Close()
	inst.client_mu.Lock()
	for _, conn := range inst.clients {
		conn.Close()
	}
	inst.client_mu.Unlock()
	primbuffer_destroy(&inst.tx_buffer)
	inst.wg.Wait()
	dlsap_unregister_dls(&inst.dls, nil)
	return true
}

/*-------------------------------------------------------------------
 *
 * Name:	sd_announce
 *
 * Purpose:	Announce the KISS TCP service with DNS-SD so clients
 *		can discover the TNC instead of typing addresses.
 *
 *---------------------------------------------------------------*/

func (inst *kissnet_instance_t) sd_announce() {
	var name = inst.sd_name
	if name == "" {
		var hostname, err = os.Hostname()
		if err != nil {
			name = "Borzoi"
		} else {
			hostname, _, _ = strings.Cut(hostname, ".")
			name = "Borzoi on " + hostname
		}
	}

	var cfg = dnssd.Config{
		Name: name,
		Type: KISSNET_DNS_SD_SERVICE,
		Port: int(inst.port),
	}
	var sv, svErr = dnssd.NewService(cfg)
	if svErr != nil {
		DBG_ERROR("DNS-SD: failed to create service", svErr.Error())
		return
	}
	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		DBG_ERROR("DNS-SD: failed to create responder", rpErr.Error())
		return
	}
	if _, err := rp.Add(sv); err != nil {
		DBG_ERROR("DNS-SD: failed to add service", err.Error())
		return
	}

	var ctx, cancel = context.WithCancel(context.Background())
	inst.sd_cancel = cancel
	DBG_INFO("DNS-SD: announcing KISS TCP as", name)
	go func() {
		if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
			DBG_ERROR("DNS-SD: responder error", err.Error())
		}
	}()
}

func (inst *kissnet_instance_t) accept_thread() {
	defer inst.wg.Done()
	for {
		var conn, err = inst.listener.Accept()
		if err != nil {
			if inst.running {
				DBG_ERROR("Accept failed", err.Error())
			}
			return
		}
		var id = xid.New().String()
		inst.client_mu.Lock()
		inst.clients[id] = conn
		inst.client_mu.Unlock()
		DBG_INFO("KISS client connected", id)

		inst.wg.Add(1)
		go inst.client_rx(id, conn)
	}
}

func (inst *kissnet_instance_t) client_rx(id string, conn net.Conn) {
	defer inst.wg.Done()
	defer func() {
		conn.Close()
		inst.client_mu.Lock()
		delete(inst.clients, id)
		inst.client_mu.Unlock()
		DBG_INFO("KISS client disconnected", id)
	}()

	var kd kiss_decoder_t
	var buf = make([]byte, 1024)
	for {
		var n, err = conn.Read(buf)
		if err != nil {
			return
		}
		kd.kiss_decode(buf[:n], func(frame []byte) {
			transport_deliver(&inst.dls, frame)
		})
	}
}

func (inst *kissnet_instance_t) tx_thread() {
	defer inst.wg.Done()
	for {
		var prim = primbuffer_read_block(&inst.tx_buffer, nil)
		if prim == nil {
			return
		}
		var wire = kiss_encapsulate(0, prim.payload)
		inst.client_mu.Lock()
		for id, conn := range inst.clients {
			if _, err := conn.Write(wire); err != nil {
				DBG_DEBUG("KISS client write failed", id)
			}
		}
		inst.client_mu.Unlock()
		del_prim(prim)
	}
}

var kissnet_plugin_descriptor = plugin_descriptor_t{
	get_plugin:     kissnet_get_plugin,
	get_instance:   kissnet_get_instance,
	start_instance: kissnet_start_instance,
	stop_instance:  kissnet_stop_instance,
}
