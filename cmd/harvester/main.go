package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
