package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Heartbeat tick dispatcher.
 *
 * Description: One heartbeat thread walks a registered list of tick
 *		listeners and calls each.  Listeners must not block;
 *		they drain queues, service timers and return promptly.
 *
 *---------------------------------------------------------------*/

import (
	"sync"
	"time"
)

type tick_listener_t struct {
	onTick    func(user_data any, ex *exception_t) bool
	user_data any
}

var tick_listeners []*tick_listener_t
var tick_mutex sync.Mutex

func tick_init() {
	tick_mutex.Lock()
	tick_listeners = nil
	tick_mutex.Unlock()
}

func tick_term() {
	tick_mutex.Lock()
	tick_listeners = nil
	tick_mutex.Unlock()
}

func registerTickListener(tl *tick_listener_t) {
	tick_mutex.Lock()
	tick_listeners = append(tick_listeners, tl)
	tick_mutex.Unlock()
}

func unregisterTickListener(tl *tick_listener_t) {
	tick_mutex.Lock()
	for i, l := range tick_listeners {
		if l == tl {
			tick_listeners = append(tick_listeners[:i], tick_listeners[i+1:]...)
			break
		}
	}
	tick_mutex.Unlock()
}

/*-------------------------------------------------------------------
 *
 * Name:	tick
 *
 * Purpose:	One heartbeat pass over all listeners.
 *
 * Returns:	False when the system is shutting down or a listener
 *		reported an unrecoverable error.
 *
 *---------------------------------------------------------------*/

func tick(ex *exception_t) bool {
	if !isAlive() {
		exception_fill(ex, EXIT_SUCCESS, "Tick", "tick", "Normal shutdown", "")
		return false
	}

	tick_mutex.Lock()
	var listeners = make([]*tick_listener_t, len(tick_listeners))
	copy(listeners, tick_listeners)
	tick_mutex.Unlock()

	for _, tl := range listeners {
		if !tl.onTick(tl.user_data, ex) {
			return false
		}
	}
	return true
}

/*-------------------------------------------------------------------
 *
 * Name:	tick_run
 *
 * Purpose:	The heartbeat loop.  Runs until die() or until a
 *		listener fails, then reports the exception.
 *
 * Inputs:	period	- Tick period in milliseconds.
 *
 *---------------------------------------------------------------*/

func tick_run(period uint, ex *exception_t) {
	if period == 0 {
		period = 10
	}
	for {
		if !tick(ex) {
			return
		}
		time.Sleep(time.Duration(period) * time.Millisecond)
	}
}
