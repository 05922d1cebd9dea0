package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Asynchronous logging pipeline.
 *
 * Description: Log calls format into a small buffer, prepend a single
 *		letter level tag and push the line into a ring buffer.
 *		A dedicated drain thread consumes the ring and writes
 *		to stderr through the leveled logger.  This decouples
 *		slow stderr from hot paths; overflow is accounted with
 *		rb_loose and reported by the drain.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

type debug_level_t int

const (
	DEBUG_LEVEL_NONE debug_level_t = iota
	DEBUG_LEVEL_ERROR
	DEBUG_LEVEL_WARNING
	DEBUG_LEVEL_INFO
	DEBUG_LEVEL_DEBUG
)

func debug_level_from_string(s string) (debug_level_t, bool) {
	switch s {
	case "NONE":
		return DEBUG_LEVEL_NONE, true
	case "ERROR":
		return DEBUG_LEVEL_ERROR, true
	case "WARNING":
		return DEBUG_LEVEL_WARNING, true
	case "INFO":
		return DEBUG_LEVEL_INFO, true
	case "DEBUG":
		return DEBUG_LEVEL_DEBUG, true
	}
	return DEBUG_LEVEL_NONE, false
}

const log_format_bufsize = 72
const log_ring_size = 4096

var log_ring ringbuffer_t
var log_initialized bool
var log_done sync.WaitGroup
var log_sink *charmlog.Logger

func log_init() {
	if log_initialized {
		return
	}
	rb_init(&log_ring, log_ring_size)
	log_sink = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: false,
	})
	log_sink.SetLevel(charmlog.DebugLevel)
	log_initialized = true
	log_done.Add(1)
	go log_drain()
}

func log_term() {
	if !log_initialized {
		return
	}
	log_initialized = false
	rb_destroy(&log_ring)
	log_done.Wait()
}

/*-------------------------------------------------------------------
 *
 * Name:	ax_log
 *
 * Purpose:	Level-filtered log entry point for all modules.
 *		Never blocks; an overfull ring counts the line as lost.
 *
 *---------------------------------------------------------------*/

func ax_log(dl debug_level_t, format string, args ...any) {
	if !log_initialized || configuration.loglevel < dl {
		return
	}

	var tag byte
	switch dl {
	case DEBUG_LEVEL_NONE:
		tag = 'N'
	case DEBUG_LEVEL_ERROR:
		tag = 'E'
	case DEBUG_LEVEL_WARNING:
		tag = 'W'
	case DEBUG_LEVEL_INFO:
		tag = 'I'
	case DEBUG_LEVEL_DEBUG:
		tag = 'D'
	default:
		tag = '?'
	}

	var msg = fmt.Sprintf(format, args...)
	if len(msg) > log_format_bufsize-3 {
		msg = msg[:log_format_bufsize-6] + "..."
	}
	var line = make([]byte, 0, len(msg)+3)
	line = append(line, tag, ':')
	line = append(line, msg...)
	line = append(line, '\n')

	if rb_write_nonblock(&log_ring, line) < 0 {
		rb_loose(&log_ring, len(line))
	}
}

/* Shorthands in the msg:param shape used all over the modules. */

func DBG_ERROR(msg string, par string)   { ax_log(DEBUG_LEVEL_ERROR, "%s:%s", msg, par) }
func DBG_WARNING(msg string, par string) { ax_log(DEBUG_LEVEL_WARNING, "%s:%s", msg, par) }
func DBG_INFO(msg string, par string)    { ax_log(DEBUG_LEVEL_INFO, "%s:%s", msg, par) }
func DBG_DEBUG(msg string, par string)   { ax_log(DEBUG_LEVEL_DEBUG, "%s:%s", msg, par) }

/* Log an exception at ERROR level. */
func log_ex(ex *exception_t) {
	ax_log(DEBUG_LEVEL_ERROR, "%s.%s:%s[%s]", ex.module, ex.function, ex.message, ex.param)
}

/*-------------------------------------------------------------------
 *
 * Name:	log_drain
 *
 * Purpose:	The drain thread.  Consumes complete lines from the
 *		ring and writes them to stderr via the leveled logger,
 *		warning first when lines were lost.
 *
 *---------------------------------------------------------------*/

func log_drain() {
	defer log_done.Done()

	var pump = make([]byte, 256)
	var pending []byte

	for {
		var lost = rb_clear_lost(&log_ring)
		if lost > 0 {
			metrics_count_log_lost(lost)
			if configuration.loglevel >= DEBUG_LEVEL_WARNING {
				log_sink.Warnf("Debug lost: %d characters", lost)
			}
		}

		var n = rb_read_block(&log_ring, pump)
		if n < 0 {
			/* Ring destroyed; flush whatever is left. */
			if len(pending) > 0 {
				log_emit(pending)
			}
			return
		}
		pending = append(pending, pump[:n]...)
		for {
			var nl = bytes.IndexByte(pending, '\n')
			if nl < 0 {
				break
			}
			log_emit(pending[:nl])
			pending = pending[nl+1:]
		}
	}
}

/* One tagged line to the leveled logger. */
func log_emit(line []byte) {
	if len(line) < 2 || line[1] != ':' {
		log_sink.Print(string(line))
		return
	}
	var msg = string(line[2:])
	switch line[0] {
	case 'E':
		log_sink.Error(msg)
	case 'W':
		log_sink.Warn(msg)
	case 'I':
		log_sink.Info(msg)
	case 'D':
		log_sink.Debug(msg)
	default:
		log_sink.Print(msg)
	}
}
