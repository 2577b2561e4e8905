package main

import (
	"os"

	"github.com/DRSN-tech/go-recommender/pkg/logger"
)

func main() {
	log := logger.NewSlogLogger()

	if err := newRootCmd(log).Execute(); err != nil {
		os.Exit(1)
	}
}
