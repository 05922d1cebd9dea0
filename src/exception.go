package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Very simple exception-like error mechanism shared by
 *		all modules.
 *
 * Description: Every fallible operation fills an exception structure
 *		describing the error code, the module and function that
 *		failed, a message and an optional parameter.  The top of
 *		each thread decides whether to recover or to die().
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
)

/* Error codes, errno-flavoured. */

const (
	EOK       = 0
	EPERM     = 1
	ENOENT    = 2
	EIO       = 5
	EAGAIN    = 11
	ENOMEM    = 12
	EFAULT    = 14
	EEXIST    = 17
	EINVAL    = 22
	ERANGE    = 34
	EMSGSIZE  = 90
	ETIMEDOUT = 110

	EXIT_SUCCESS = 0
	EXIT_FAILURE = 1
)

type exception_t struct {
	erc      int    /* Error code                                  */
	module   string /* Name of the module causing the exception.   */
	function string /* Name of the function that failed.           */
	message  string /* Error message text.                         */
	param    string /* Additional information, if available.       */
}

func (ex *exception_t) Error() string {
	return fmt.Sprintf("%s.%s: %s[%s] erc=%d",
		ex.module, ex.function, ex.message, ex.param, ex.erc)
}

func exception_fill(ex *exception_t, erc int, module string, function string, message string, param string) {
	if ex == nil {
		return
	}
	ex.erc = erc
	ex.module = module
	ex.function = function
	ex.message = message
	ex.param = param
}

func exception_reset(ex *exception_t) {
	*ex = exception_t{}
}

/*-------------------------------------------------------------------
 *
 * Name:	print_ex
 *
 * Purpose:	Print an exception to stderr and return its error code.
 *		Used by the driver as the process exit code.
 *
 *---------------------------------------------------------------*/

func print_ex(ex *exception_t) int {
	if ex == nil || ex.erc == EXIT_SUCCESS {
		return EXIT_SUCCESS
	}

	fmt.Fprintf(os.Stderr,
		"Function \"%s\" in module \"%s\" throwed exception \"%s[%s]\" with error code %d\n",
		ex.function, ex.module, ex.message, ex.param, ex.erc)

	return ex.erc
}
