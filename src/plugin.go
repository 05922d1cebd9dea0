package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Plugin runtime: registry, lifecycle ordering, global
 *		liveness.
 *
 * Description: The original design loaded protocol components from
 *		shared objects.  Here the providers are linked in and
 *		found by name in a registry; the interface contract is
 *		identical.  Loading happens in configuration order,
 *		all plugins start before any instance, stopping runs
 *		in reverse order.
 *
 *---------------------------------------------------------------*/

import (
	"sync"
	"sync/atomic"
)

type configurator_func func(handle any, descriptor []setting_descriptor_t, context any, ex *exception_t) bool

type plugin_descriptor_t struct {
	get_plugin   func(name string, configurator configurator_func, context any, ex *exception_t) any
	start_plugin func(handle any, ex *exception_t) bool
	stop_plugin  func(handle any, ex *exception_t) bool

	get_instance   func(plugin any, name string, configurator configurator_func, context any, ex *exception_t) any
	start_instance func(handle any, ex *exception_t) bool
	stop_instance  func(handle any, ex *exception_t) bool
}

/* Typed setting descriptors, populated by the configurator. */

type setting_type_t int

const (
	INT_T   setting_type_t = iota /* *int             */
	UINT_T                        /* *uint            */
	NSIZE_T                       /* *int, >= 0       */
	CSTR_T                        /* *string          */
	DEBUG_T                       /* *debug_level_t   */
	USTR_T                        /* *string, owned   */
)

type setting_descriptor_t struct {
	name     string
	typ      setting_type_t
	ptr      any
	def      string /* Default value; "-" leaves the target alone. */
	required bool
}

/*------------------------------------------------------------------
 *
 * Provider registry.  The compile-time replacement for dlopen.
 *
 *---------------------------------------------------------------*/

var plugin_providers = make(map[string]*plugin_descriptor_t)
var plugin_providers_mutex sync.Mutex

func register_plugin_provider(file string, pd *plugin_descriptor_t) {
	plugin_providers_mutex.Lock()
	plugin_providers[file] = pd
	plugin_providers_mutex.Unlock()
}

func lookup_plugin_provider(file string, ex *exception_t) *plugin_descriptor_t {
	plugin_providers_mutex.Lock()
	defer plugin_providers_mutex.Unlock()
	var pd = plugin_providers[file]
	if pd == nil {
		exception_fill(ex, ENOENT, "Runtime", "lookup_plugin_provider",
			"No such plugin", file)
	}
	return pd
}

/* The built-in providers, registered by the driver before loading
 * the configuration. */
func register_builtin_providers() {
	register_plugin_provider("ax25v2_2", &ax25_plugin_descriptor)
	register_plugin_provider("axudp", &axudp_plugin_descriptor)
	register_plugin_provider("hostmode", &hostmode_plugin_descriptor)
	register_plugin_provider("kissnet", &kissnet_plugin_descriptor)
	register_plugin_provider("terminal", &terminal_plugin_descriptor)
	register_plugin_provider("metrics", &metrics_plugin_descriptor)
	register_plugin_provider("activitylog", &activity_log_plugin_descriptor)
}

/*------------------------------------------------------------------
 *
 * Loaded configuration.
 *
 *---------------------------------------------------------------*/

type instance_t struct {
	name       string
	handle     any
	descriptor *plugin_descriptor_t
}

type plugin_t struct {
	name       string
	file       string
	handle     any
	descriptor *plugin_descriptor_t
	instances  []*instance_t
}

type configuration_t struct {
	name      string
	tick      uint /* Tick period, ms. */
	loglevel  debug_level_t
	plugins   []*plugin_t
	escape    byte /* Terminal escape character.       */
	noleads   bool /* Suppress the lead column.        */
}

var configuration configuration_t

/*------------------------------------------------------------------
 *
 * Liveness.
 *
 *---------------------------------------------------------------*/

var alive atomic.Bool

func die() {
	alive.Store(false)
}

func isAlive() bool {
	return alive.Load()
}

/* Unrecoverable internal inconsistency: log and shut down. */
func die_internal(module string, function string, message string) {
	ax_log(DEBUG_LEVEL_ERROR, "INTERNAL ERROR %s.%s: %s", module, function, message)
	die()
}

/*------------------------------------------------------------------
 *
 * Runtime lifecycle.
 *
 *---------------------------------------------------------------*/

func runtime_initialize() {
	timer_system_init()
	monitor_init()
	log_init()
	dlsap_init()
	tick_init()
}

func runtime_terminate() {
	tick_term()
	dlsap_term()
	log_term()
	monitor_term()
	timer_system_term()
}

/*-------------------------------------------------------------------
 *
 * Name:	start
 *
 * Purpose:	Start everything: all plugins first, then all
 *		instances, both in configuration order.  A failure
 *		rolls back with stop().
 *
 *---------------------------------------------------------------*/

func start(ex *exception_t) bool {
	alive.Store(true)
	DBG_DEBUG("alive", "true")

	for _, plugin := range configuration.plugins {
		DBG_INFO("START PLUG", plugin.name)
		if plugin.descriptor.start_plugin != nil &&
			!plugin.descriptor.start_plugin(plugin.handle, ex) {
			rollback()
			return false
		}
	}
	for _, plugin := range configuration.plugins {
		for _, inst := range plugin.instances {
			DBG_INFO("START INST", inst.name)
			if inst.descriptor.start_instance != nil &&
				!inst.descriptor.start_instance(inst.handle, ex) {
				rollback()
				return false
			}
		}
	}
	return true
}

func rollback() {
	var ex exception_t
	stop(&ex)
}

/*-------------------------------------------------------------------
 *
 * Name:	stop
 *
 * Purpose:	Stop the system in reverse dependency order:
 *		instances first, then plugins, both reversed.
 *
 *---------------------------------------------------------------*/

func stop(ex *exception_t) bool {
	die()
	DBG_DEBUG("alive", "false")

	var ok = true
	for i := len(configuration.plugins) - 1; i >= 0; i-- {
		var plugin = configuration.plugins[i]
		for j := len(plugin.instances) - 1; j >= 0; j-- {
			var inst = plugin.instances[j]
			DBG_INFO("STOP INST", inst.name)
			if inst.descriptor.stop_instance != nil &&
				!inst.descriptor.stop_instance(inst.handle, ex) {
				ok = false
			}
		}
	}
	for i := len(configuration.plugins) - 1; i >= 0; i-- {
		var plugin = configuration.plugins[i]
		DBG_INFO("STOP PLUG", plugin.name)
		if plugin.descriptor.stop_plugin != nil &&
			!plugin.descriptor.stop_plugin(plugin.handle, ex) {
			ok = false
		}
	}
	return ok
}
