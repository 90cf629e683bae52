package log

import (
	"io"
	"log"
	"os"
)

var (
	Trace   = log.New(io.Discard, "TRACE: ", log.Ldate|log.Ltime|log.Lshortfile)
	Info    = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime)
	Warning = log.New(os.Stdout, "WARNING: ", log.Ldate|log.Ltime)
	Error   = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
)

func Init(traceHandle, infoHandle, warningHandle, errorHandle io.Writer) {
	Trace.SetOutput(traceHandle)
	Info.SetOutput(infoHandle)
	Warning.SetOutput(warningHandle)
	Error.SetOutput(errorHandle)
}

// InitLog enables trace output when DIGITALINK_TRACE=1
func InitLog() {
	var trace io.Writer = io.Discard
	if os.Getenv("DIGITALINK_TRACE") == "1" {
		trace = os.Stdout
	}

	Init(trace, os.Stdout, os.Stdout, os.Stderr)
}
