package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Names for the layer 3 protocol ids shown by the
 *		monitor.
 *
 * Description: A built-in table covers the well-known assignments.
 *		An optional pids.yaml file can extend or override it,
 *		for example for experimental PIDs:
 *
 *		  pids:
 *		    - pid: 0xc3
 *		      name: TEXNET
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var pid_names = map[uint8]string{
	PID_X25:      "X25PLP",
	PID_SEGMENT:  "SEGMENT",
	PID_TEXNET:   "TEXNET",
	PID_LQP:      "LQP",
	PID_APPLETLK: "APPLETALK",
	PID_IP:       "IP",
	PID_ARP:      "ARP",
	PID_NETROM:   "NETROM",
	PID_NO_L3:    "NO_L3",
	PID_ESCAPE:   "ESCAPE",
}

var pid_names_mutex sync.Mutex

type pid_names_file_t struct {
	Pids []struct {
		Pid  int    `yaml:"pid"`
		Name string `yaml:"name"`
	} `yaml:"pids"`
}

func pid_name(pid uint8) string {
	pid_names_mutex.Lock()
	defer pid_names_mutex.Unlock()
	if name, ok := pid_names[pid]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", pid)
}

/*-------------------------------------------------------------------
 *
 * Name:	load_pid_names
 *
 * Purpose:	Merge entries from a pids.yaml file into the built-in
 *		table.  A missing file is not an error.
 *
 *---------------------------------------------------------------*/

func load_pid_names(path string) error {
	var data, err = os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var parsed pid_names_file_t
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return err
	}

	pid_names_mutex.Lock()
	defer pid_names_mutex.Unlock()
	for _, entry := range parsed.Pids {
		if entry.Pid < 0 || entry.Pid > 255 || entry.Name == "" {
			continue
		}
		pid_names[uint8(entry.Pid)] = entry.Name
	}
	return nil
}
