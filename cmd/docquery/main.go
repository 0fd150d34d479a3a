// Command docquery translates semantic document queries and serves them over HTTP.
package main

import (
	"os"

	"github.com/relabs-tech/docquery/core/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Default().Error(err)
		os.Exit(1)
	}
}
