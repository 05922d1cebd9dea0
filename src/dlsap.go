package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Data-Link Service Access Point registry.
 *
 * Description: Process-wide name -> service endpoint map.  Modules
 *		register a DLS under a unique name; peers find each
 *		other by lookup.  The capability set is a group of
 *		optional function fields; the dispatchers below return
 *		"Service not provided" when an endpoint did not supply
 *		a capability.
 *
 *		The registry lock is never held across a callback into
 *		a DLS - callers look up first, unlock, then invoke.
 *
 *---------------------------------------------------------------*/

import (
	"sync"
)

type dls_stats_t struct {
	queue_size int
	queue_free int
}

type dls_t struct {
	name string

	set_default_local_addr  func(dls *dls_t, addr string, norm *string, ex *exception_t) bool
	set_default_remote_addr func(dls *dls_t, addr string, norm *string, ex *exception_t) bool
	open                    func(dls *dls_t, back *dls_t, ex *exception_t) bool
	close                   func(dls *dls_t)
	on_write                func(dls *dls_t, prim *primitive_t, expedited bool, ex *exception_t) bool
	get_queue_stats         func(dls *dls_t, stats *dls_stats_t)

	peer    *dls_t /* Non-owning; valid while the referent stays registered. */
	session any    /* Owning module's per-endpoint state.                    */
}

var dls_map = make(map[string]*dls_t)
var dls_map_mutex sync.Mutex

func dlsap_init() {
	dls_map_mutex.Lock()
	dls_map = make(map[string]*dls_t)
	dls_map_mutex.Unlock()
}

func dlsap_term() {
	dls_map_mutex.Lock()
	dls_map = make(map[string]*dls_t)
	dls_map_mutex.Unlock()
}

/*-------------------------------------------------------------------
 *
 * Name:	dlsap_register_dls
 *
 * Purpose:	Register a Data Link Service.  Names are unique;
 *		double registration fails.
 *
 *---------------------------------------------------------------*/

func dlsap_register_dls(dls *dls_t, ex *exception_t) bool {
	if dls == nil {
		exception_fill(ex, EXIT_FAILURE, "DLSAP", "dlsap_register_dls",
			"Service Provider is nil", "")
		return false
	}
	if dls.name == "" {
		exception_fill(ex, EXIT_FAILURE, "DLSAP", "dlsap_register_dls",
			"Service Provider name is empty", "")
		return false
	}

	dls_map_mutex.Lock()
	defer dls_map_mutex.Unlock()
	if _, ok := dls_map[dls.name]; ok {
		exception_fill(ex, EEXIST, "DLSAP", "dlsap_register_dls",
			"Service Provider is already registered", dls.name)
		return false
	}
	dls_map[dls.name] = dls
	return true
}

func dlsap_unregister_dls(dls *dls_t, ex *exception_t) bool {
	if dls == nil {
		exception_fill(ex, EXIT_FAILURE, "DLSAP", "dlsap_unregister_dls",
			"Service Provider is nil", "")
		return false
	}

	dls_map_mutex.Lock()
	defer dls_map_mutex.Unlock()
	var registered, ok = dls_map[dls.name]
	if !ok {
		exception_fill(ex, ENOENT, "DLSAP", "dlsap_unregister_dls",
			"Service Provider not found", dls.name)
		return false
	}
	if registered != dls {
		exception_fill(ex, EINVAL, "DLSAP", "dlsap_unregister_dls",
			"Service Provider inconsistency", dls.name)
		return false
	}
	delete(dls_map, dls.name)
	return true
}

/* Lookup by name.  The handle is non-owning: its validity is bounded
 * by the registration lifetime of the callee. */
func dlsap_lookup_dls(name string) *dls_t {
	if name == "" {
		return nil
	}
	dls_map_mutex.Lock()
	defer dls_map_mutex.Unlock()
	return dls_map[name]
}

/*------------------------------------------------------------------
 *
 * Capability dispatchers.  Thin: validate, then delegate.
 *
 *---------------------------------------------------------------*/

func dlsap_set_default_local_addr(dls *dls_t, addr string, norm *string, ex *exception_t) bool {
	if dls == nil {
		exception_fill(ex, EXIT_FAILURE, "DLSAP", "dlsap_set_default_local_addr",
			"Data Link Service is nil", "")
		return false
	}
	if dls.set_default_local_addr == nil {
		exception_fill(ex, EXIT_FAILURE, "DLSAP", "dlsap_set_default_local_addr",
			"Service not provided", dls.name)
		return false
	}
	return dls.set_default_local_addr(dls, addr, norm, ex)
}

func dlsap_set_default_remote_addr(dls *dls_t, addr string, norm *string, ex *exception_t) bool {
	if dls == nil {
		exception_fill(ex, EXIT_FAILURE, "DLSAP", "dlsap_set_default_remote_addr",
			"Data Link Service is nil", "")
		return false
	}
	if dls.set_default_remote_addr == nil {
		exception_fill(ex, EXIT_FAILURE, "DLSAP", "dlsap_set_default_remote_addr",
			"Service not provided", dls.name)
		return false
	}
	return dls.set_default_remote_addr(dls, addr, norm, ex)
}

/* Open the connection to the peer, optionally providing a back channel. */
func dlsap_open(dls *dls_t, back *dls_t, ex *exception_t) bool {
	if dls == nil {
		exception_fill(ex, EXIT_FAILURE, "DLSAP", "dlsap_open",
			"Data Link Service is nil", "")
		return false
	}
	if dls.open == nil {
		exception_fill(ex, EXIT_FAILURE, "DLSAP", "dlsap_open",
			"Service not provided", dls.name)
		return false
	}
	return dls.open(dls, back, ex)
}

/* Close the connection.  Nothing arrives on the back channel afterwards. */
func dlsap_close(dls *dls_t) {
	if dls == nil || dls.close == nil {
		return
	}
	dls.close(dls)
}

/* Write a prim to the peer.  Non-blocking, usable from tick and timer
 * callbacks. */
func dlsap_write(dls *dls_t, prim *primitive_t, expedited bool, ex *exception_t) bool {
	if dls == nil {
		exception_fill(ex, EXIT_FAILURE, "DLSAP", "dlsap_write",
			"Data Link Service is nil", "")
		return false
	}
	if prim == nil {
		exception_fill(ex, EINVAL, "DLSAP", "dlsap_write",
			"Primitive is nil", "")
		return false
	}
	if dls.on_write == nil {
		exception_fill(ex, EXIT_FAILURE, "DLSAP", "dlsap_write",
			"Service not provided", dls.name)
		return false
	}
	return dls.on_write(dls, prim, expedited, ex)
}

func dlsap_get_queue_stats(dls *dls_t, stats *dls_stats_t) {
	if stats == nil {
		return
	}
	*stats = dls_stats_t{}
	if dls == nil || dls.get_queue_stats == nil {
		return
	}
	dls.get_queue_stats(dls, stats)
}
