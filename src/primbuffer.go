package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Bounded FIFO of primitives with an expedited lane and
 *		a routine lane.
 *
 * Description: Producers hand primitives to a consumer thread.  Every
 *		enqueued primitive holds one extra lock, released again
 *		by the consumer with del_prim.  A newer expedited
 *		primitive always overtakes an older routine primitive
 *		that is still queued; within one lane, dequeue order
 *		equals enqueue order.
 *
 *---------------------------------------------------------------*/

import (
	"sync"
)

const PRIMBUFFER_DEFAULT_SIZE = 128

type primbuffer_t struct {
	mu        sync.Mutex
	size      int
	free      int
	expedited []*primitive_t
	routine   []*primitive_t
	wake      chan struct{} /* Notify the consumer when a lane went non-empty. */
	dead      bool
}

type primbuffer_stats_t struct {
	size int
	free int
}

func primbuffer_init(pb *primbuffer_t, size int) {
	if size <= 0 {
		size = PRIMBUFFER_DEFAULT_SIZE
	}
	pb.size = size
	pb.free = size
	pb.expedited = make([]*primitive_t, 0, size)
	pb.routine = make([]*primitive_t, 0, size)
	pb.wake = make(chan struct{}, 1)
	pb.dead = false
}

/* Release every queued primitive and wake a blocked reader. */
func primbuffer_destroy(pb *primbuffer_t) {
	pb.mu.Lock()
	for _, prim := range pb.expedited {
		del_prim(prim)
	}
	for _, prim := range pb.routine {
		del_prim(prim)
	}
	pb.expedited = nil
	pb.routine = nil
	pb.free = pb.size
	pb.dead = true
	pb.mu.Unlock()

	select {
	case pb.wake <- struct{}{}:
	default:
	}
}

func primbuffer_stats(pb *primbuffer_t, stats *primbuffer_stats_t) {
	pb.mu.Lock()
	stats.size = pb.size
	stats.free = pb.free
	pb.mu.Unlock()
}

/*-------------------------------------------------------------------
 *
 * Name:	primbuffer_write_nonblock
 *
 * Purpose:	Enqueue a primitive, taking one lock on it.
 *
 * Returns:	False when the pool is full; the caller decides whether
 *		to retry, drop or account.
 *
 *---------------------------------------------------------------*/

func primbuffer_write_nonblock(pb *primbuffer_t, prim *primitive_t, expedited bool) bool {
	mem_chck(prim)

	pb.mu.Lock()
	if pb.dead || pb.free == 0 {
		pb.mu.Unlock()
		return false
	}
	use_prim(prim)
	pb.free--
	if expedited {
		pb.expedited = append(pb.expedited, prim)
	} else {
		pb.routine = append(pb.routine, prim)
	}
	pb.mu.Unlock()

	select {
	case pb.wake <- struct{}{}:
	default:
	}
	return true
}

/*-------------------------------------------------------------------
 *
 * Name:	primbuffer_read_nonblock
 *
 * Purpose:	Dequeue the head of the expedited lane if non-empty,
 *		else the head of the routine lane.
 *
 * Outputs:	expedited - set when the prim came from the expedited
 *		lane.  Optional.
 *
 * Returns:	The primitive, or nil when both lanes are empty.  The
 *		caller owns one lock and must del_prim when done.
 *
 *---------------------------------------------------------------*/

func primbuffer_read_nonblock(pb *primbuffer_t, expedited *bool) *primitive_t {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	var prim *primitive_t
	if len(pb.expedited) > 0 {
		prim = pb.expedited[0]
		pb.expedited = pb.expedited[1:]
		if expedited != nil {
			*expedited = true
		}
	} else if len(pb.routine) > 0 {
		prim = pb.routine[0]
		pb.routine = pb.routine[1:]
		if expedited != nil {
			*expedited = false
		}
	}
	if prim != nil {
		pb.free++
		mem_chck(prim)
	}
	return prim
}

/*-------------------------------------------------------------------
 *
 * Name:	primbuffer_read_block
 *
 * Purpose:	Like primbuffer_read_nonblock but waits for a prim.
 *
 * Returns:	The primitive, or nil when the buffer was destroyed
 *		while waiting.
 *
 *---------------------------------------------------------------*/

func primbuffer_read_block(pb *primbuffer_t, expedited *bool) *primitive_t {
	for {
		var prim = primbuffer_read_nonblock(pb, expedited)
		if prim != nil {
			return prim
		}
		pb.mu.Lock()
		var dead = pb.dead
		pb.mu.Unlock()
		if dead {
			return nil
		}
		<-pb.wake
	}
}
