// Command weighstationd runs the ingestion daemon without the CLI, for
// service managers. WEIGHSTATION_CONFIG selects the config file and
// WEIGHSTATION_LOG_LEVEL overrides logging.level.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := run(context.Background(), os.Getenv); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
