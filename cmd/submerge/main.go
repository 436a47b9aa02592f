// Command submerge merges proxy subscriptions into one Clash proxies file.
package main

import (
	"fmt"
	"os"

	"github.com/morikuni/failure/v2"

	"github.com/John-Robertt/submerge/internal/cli"
)

func main() {
	if err := cli.Run(); err != nil {
		msg := err.Error()
		if fmsg := failure.MessageOf(err); fmsg != "" {
			msg = fmsg.String()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", msg)
		os.Exit(1)
	}
}
