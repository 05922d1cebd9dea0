/* Modular AX.25 packet-radio stack. */
package main

import (
	borzoi "github.com/doismellburning/borzoi/src"
)

func main() {
	borzoi.BorzoiMain()
}
