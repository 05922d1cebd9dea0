package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Save monitored traffic to a log file.
 *
 * Description: Rather than the raw, sometimes rather cryptic monitor
 *		format, write separated properties into CSV format for
 *		easy reading and later processing.
 *
 *		Two alternatives:
 *
 *		  path = some file	Single file; typically logrotate
 *					keeps the size under control.
 *		  daily = 1		path is a directory and daily
 *					names are created in it.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

type activity_log_t struct {
	name        string
	path        string
	daily       bool
	pattern     *strftime.Strftime
	mu          sync.Mutex
	fp          *os.File
	open_fname  string
	listener    *monitor_listener_t
}

func activity_log_get_plugin(name string, configurator configurator_func, context any, ex *exception_t) any {
	var al = &activity_log_t{name: name}

	var daily uint
	var descriptor = []setting_descriptor_t{
		{"path", CSTR_T, &al.path, "", true},
		{"daily", UINT_T, &daily, "0", false},
	}
	if !configurator(al, descriptor, context, ex) {
		return nil
	}
	al.daily = daily != 0

	if al.daily {
		var pattern, err = strftime.New("%Y-%m-%d.log")
		if err != nil {
			exception_fill(ex, EINVAL, name, "get_plugin", "strftime", err.Error())
			return nil
		}
		al.pattern = pattern
	}
	return al
}

func activity_log_start(handle any, ex *exception_t) bool {
	var al = handle.(*activity_log_t)
	DBG_DEBUG("Start", al.name)

	if al.daily {
		var stat, err = os.Stat(al.path)
		if err != nil {
			if err := os.Mkdir(al.path, 0755); err != nil {
				exception_fill(ex, EIO, al.name, "start_plugin",
					"Cannot create log directory", al.path)
				return false
			}
			DBG_INFO("Log file location created", al.path)
		} else if !stat.IsDir() {
			exception_fill(ex, EINVAL, al.name, "start_plugin",
				"Log file location is not a directory", al.path)
			return false
		}
	}

	al.listener = register_monitor_listener(al.log_write, nil)
	return true
}

func activity_log_stop(handle any, ex *exception_t) bool {
	var al = handle.(*activity_log_t)
	DBG_DEBUG("Stop", al.name)

	unregister_monitor_listener(al.listener)
	al.mu.Lock()
	defer al.mu.Unlock()
	if al.fp != nil {
		DBG_INFO("Closing log file", al.open_fname)
		al.fp.Close()
		al.fp = nil
		al.open_fname = ""
	}
	return true
}

/*-------------------------------------------------------------------
 *
 * Name:	log_write
 *
 * Purpose:	Append one CSV row per monitored primitive.
 *
 *---------------------------------------------------------------*/

func (al *activity_log_t) log_write(line string, service string, tx bool, user_data any) {
	al.mu.Lock()
	defer al.mu.Unlock()

	var now = time.Now().UTC()

	var full_path = al.path
	if al.daily {
		/* Generate the file name from the current date, UTC. */
		var fname = al.pattern.FormatString(now)
		if al.fp != nil && fname != al.open_fname {
			al.fp.Close()
			al.fp = nil
		}
		full_path = filepath.Join(al.path, fname)
		al.open_fname = fname
	} else {
		al.open_fname = al.path
	}

	if al.fp == nil {
		var _, statErr = os.Stat(full_path)
		var already_there = statErr == nil

		var f, openErr = os.OpenFile(full_path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644)
		if openErr != nil {
			DBG_ERROR("Cannot open log file for write", full_path)
			return
		}
		al.fp = f

		/* Header suitable for importing into a spreadsheet, only if
		 * this will be the first line. */
		if !already_there {
			al.fp.WriteString("utime,isotime,service,dir,text\n")
		}
	}

	var dir = "rx"
	if tx {
		dir = "tx"
	}
	var w = csv.NewWriter(al.fp)
	w.Write([]string{
		strconv.FormatInt(now.Unix(), 10),
		now.Format("2006-01-02T15:04:05Z"),
		service,
		dir,
		line,
	})
	w.Flush()
	if err := w.Error(); err != nil {
		DBG_ERROR("CSV write error", err.Error())
	}
}

var activity_log_plugin_descriptor = plugin_descriptor_t{
	get_plugin:   activity_log_get_plugin,
	start_plugin: activity_log_start,
	stop_plugin:  activity_log_stop,
}
