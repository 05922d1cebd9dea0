package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for "Borzoi", a modular AX.25 stack:
 *
 *			AX.25 v2.2 data link state machine.
 *			Frame codec with CRC-16/X.25.
 *			Pluggable physical transports:
 *			  serial/pty KISS, UDP tunnel, KISS over TCP.
 *			DLSAP registry for protocol layering.
 *			Line terminal, monitor, activity log, metrics.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"
)

/* Built-in fallback configuration: a UDP tunnel below the AX.25
 * module, terminal on top. */
const default_configuration = `<Configuration name="default">
  <Plugins>
    <Plugin name="axudp" file="axudp">
      <Instances>
        <Instance name="axudp">
          <Settings>
            <Setting name="dest_host">localhost</Setting>
            <Setting name="dest_port">10094</Setting>
          </Settings>
        </Instance>
      </Instances>
    </Plugin>
    <Plugin name="AX25" file="ax25v2_2">
      <Settings>
        <Setting name="peer">axudp</Setting>
      </Settings>
    </Plugin>
    <Plugin name="terminal" file="terminal">
      <Settings>
        <Setting name="peer">AX25</Setting>
      </Settings>
    </Plugin>
  </Plugins>
</Configuration>
`

func BorzoiMain() {
	var loglevel = pflag.String("loglevel", "", "Log level: NONE|ERROR|WARNING|INFO|DEBUG.")
	var pidfile = pflag.String("pid", "", "Write own pid to this file.")
	var escape = pflag.String("esc", "", "Override the terminal escape character.")
	var noleads = pflag.Bool("noleads", false, "Suppress the lead column in the terminal.")
	var version = pflag.Bool("version", false, "Print version and exit.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [config.xml]\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(EXIT_SUCCESS)
	}
	if *version {
		printVersion()
		os.Exit(EXIT_SUCCESS)
	}

	os.Exit(borzoi_run(*loglevel, *pidfile, *escape, *noleads, pflag.Args()))
}

func borzoi_run(loglevel string, pidfile string, escape string, noleads bool, args []string) int {
	var ex exception_t

	runtime_initialize()
	defer runtime_terminate()

	if loglevel != "" {
		var dl, ok = debug_level_from_string(loglevel)
		if !ok {
			fmt.Fprintf(os.Stderr, "Invalid log level \"%s\"\n", loglevel)
			return EXIT_FAILURE
		}
		configuration.loglevel = dl
	}
	if escape != "" {
		configuration.escape = escape[0]
	}
	configuration.noleads = noleads

	if pidfile != "" {
		var err = os.WriteFile(pidfile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot write pid file %s: %s\n", pidfile, err)
			return EXIT_FAILURE
		}
		defer os.Remove(pidfile)
	}

	register_builtin_providers()
	if err := load_pid_names("pids.yaml"); err != nil {
		DBG_WARNING("pids.yaml", err.Error())
	}

	var loaded bool
	if len(args) >= 1 {
		loaded = load_configuration(args[0], &ex)
	} else {
		loaded = load_configuration_bytes([]byte(default_configuration), &ex)
	}
	if !loaded {
		return print_ex(&ex)
	}

	if !start(&ex) {
		return print_ex(&ex)
	}

	/* Shut down cleanly on SIGINT/SIGTERM; the tick loop notices the
	 * alive flag at its next pass. */
	var sigch = make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigch
		die()
	}()

	/* The heartbeat runs on the main thread until die(). */
	exception_reset(&ex)
	tick_run(configuration.tick, &ex)

	var erc = EXIT_SUCCESS
	if ex.erc != EXIT_SUCCESS {
		erc = print_ex(&ex)
	}

	exception_reset(&ex)
	if !stop(&ex) && erc == EXIT_SUCCESS {
		erc = print_ex(&ex)
	}
	return erc
}
