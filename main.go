package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"graphmail/config"
)

// Version is overwritten at build time using -ldflags.
var Version = "1.0.0"

func main() {
	err := newRootCmd(Version).Execute()
	config.FlushSentry()
	if err != nil {
		logrus.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}
