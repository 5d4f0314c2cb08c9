// kith is the Kith contact-store binary: an event-sourced personal contact
// store served over CardDAV.
package main

import (
	"os"

	"github.com/johnbchron/kith/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
