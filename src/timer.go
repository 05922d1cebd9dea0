package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Jiffy-based one-shot timers.
 *
 * Description: A timer wraps a hardware timer (time.AfterFunc) and a
 *		small state machine: IDLE -> PENDING on start, PENDING
 *		-> ELAPSED when the hardware fires, ELAPSED -> IDLE
 *		when the tick loop runs the callback.  Expiry only
 *		moves the timer onto a global elapsed list; the actual
 *		callback is deferred to the tick thread so that session
 *		callbacks never race with packet handling.
 *
 *		Lock order: timer.mu before elapsed_timer_mutex, never
 *		the reverse.
 *
 *---------------------------------------------------------------*/

import (
	"sync"
	"time"
)

/* One jiffy is one millisecond of the monotonic clock. */

var jiffies_epoch = time.Now()

func jiffies() int64 {
	return time.Since(jiffies_epoch).Milliseconds()
}

type timer_state_t int

const (
	TIMER_IDLE timer_state_t = iota
	TIMER_PENDING
	TIMER_ELAPSED
	TIMER_SUSPENDED
	TIMER_DESTROYED
)

type timer_t struct {
	hw       *time.Timer /* Underlying hardware timer.        */
	state    timer_state_t
	session  *session_t /* Owning session, for diagnostics.   */
	duration int64      /* Jiffies.                           */
	expires  int64      /* Deadline in jiffies while PENDING. */
	rest     int64      /* Remaining jiffies while SUSPENDED. */
	mu       sync.Mutex
	function func(*timer_t)
	elapsed  bool /* Linked into the elapsed list.      */
	gen      int  /* Invalidates stale hardware expiry. */
}

var elapsed_timer_list []*timer_t
var elapsed_timer_mutex sync.Mutex

func timer_system_init() {
	elapsed_timer_mutex.Lock()
	elapsed_timer_list = nil
	elapsed_timer_mutex.Unlock()
}

func timer_system_term() {
	elapsed_timer_mutex.Lock()
	elapsed_timer_list = nil
	elapsed_timer_mutex.Unlock()
}

func timer_init(t *timer_t, duration_ms int64, session *session_t, function func(*timer_t)) {
	t.state = TIMER_IDLE
	t.session = session
	t.duration = duration_ms
	t.rest = 0
	t.function = function
	t.elapsed = false
}

func timer_set_duration_ms(t *timer_t, ms int64) {
	t.mu.Lock()
	t.duration = ms
	t.mu.Unlock()
}

func timer_get_duration_ms(t *timer_t) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

/* Unlink from the elapsed list.  Caller holds t.mu. */
func timer_unlink_elapsed(t *timer_t) {
	if !t.elapsed {
		return
	}
	elapsed_timer_mutex.Lock()
	for i, et := range elapsed_timer_list {
		if et == t {
			elapsed_timer_list = append(elapsed_timer_list[:i], elapsed_timer_list[i+1:]...)
			break
		}
	}
	elapsed_timer_mutex.Unlock()
	t.elapsed = false
}

/* Hardware expiry: move onto the global elapsed list.  The callback
 * itself runs later, in the tick thread.  A stale expiry from before
 * a restart carries an old generation and is ignored. */
func timer_fire(t *timer_t, gen int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TIMER_PENDING || t.gen != gen {
		return
	}
	t.state = TIMER_ELAPSED
	elapsed_timer_mutex.Lock()
	elapsed_timer_list = append(elapsed_timer_list, t)
	elapsed_timer_mutex.Unlock()
	t.elapsed = true
}

func timer_arm(t *timer_t, after int64) {
	if t.hw != nil {
		t.hw.Stop()
	}
	if after < 0 {
		after = 0
	}
	t.gen++
	var gen = t.gen
	t.hw = time.AfterFunc(time.Duration(after)*time.Millisecond, func() {
		timer_fire(t, gen)
	})
}

/* IDLE/ELAPSED/SUSPENDED -> PENDING with deadline now + duration. */
func timer_start(t *timer_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TIMER_DESTROYED {
		return
	}
	timer_unlink_elapsed(t)
	t.expires = jiffies() + t.duration
	timer_arm(t, t.duration)
	t.state = TIMER_PENDING
}

/* Cancel the hardware timer and unlink from the elapsed list. */
func timer_stop(t *timer_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TIMER_DESTROYED {
		return
	}
	if t.hw != nil {
		t.hw.Stop()
	}
	timer_unlink_elapsed(t)
	t.state = TIMER_IDLE
}

/* True while the timer is armed and has not yet been serviced. */
func timer_running(t *timer_t) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == TIMER_PENDING
}

/* Pause, preserving the remaining time. */
func timer_suspend(t *timer_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TIMER_PENDING {
		return
	}
	if t.hw != nil {
		t.hw.Stop()
	}
	t.rest = t.expires - jiffies()
	if t.rest < 0 {
		t.rest = 0
	}
	t.state = TIMER_SUSPENDED
}

/* Re-arm with the captured remaining time. */
func timer_resume(t *timer_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TIMER_SUSPENDED {
		return
	}
	t.expires = jiffies() + t.rest
	timer_arm(t, t.rest)
	t.state = TIMER_PENDING
}

/* Teardown.  All further operations are no-ops. */
func timer_destroy(t *timer_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TIMER_DESTROYED {
		return
	}
	if t.hw != nil {
		t.hw.Stop()
	}
	timer_unlink_elapsed(t)
	t.state = TIMER_DESTROYED
}

/*-------------------------------------------------------------------
 *
 * Name:	timer_pop_elapsed
 *
 * Purpose:	Pop at most one elapsed timer for the tick loop.
 *		Transitions it back to IDLE; the caller invokes the
 *		callback.
 *
 * Returns:	The timer, or nil when nothing has elapsed.
 *
 *---------------------------------------------------------------*/

func timer_pop_elapsed() *timer_t {
	elapsed_timer_mutex.Lock()
	var t *timer_t
	if len(elapsed_timer_list) > 0 {
		t = elapsed_timer_list[0]
		elapsed_timer_list = elapsed_timer_list[1:]
	}
	elapsed_timer_mutex.Unlock()
	if t == nil {
		return nil
	}

	t.mu.Lock()
	t.elapsed = false
	if t.state != TIMER_ELAPSED {
		/* Stopped or destroyed between expiry and service. */
		t.mu.Unlock()
		return nil
	}
	t.state = TIMER_IDLE
	t.mu.Unlock()
	return t
}
