package main

import (
	"io"

	"github.com/jonwraymond/toolops-ontology/observe"
)

func testLogger() observe.Logger {
	return observe.NewLoggerWithWriter("error", io.Discard)
}
