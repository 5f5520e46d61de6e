// Package debug provides an optional debug log, enabled by setting the
// environment variable DEBUG_LOG to a file name.
package debug

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var opts struct {
	logger *log.Logger
}

// make sure that the initialization happens before any init() functions run,
// cf https://golang.org/ref/spec#Package_initialization
var _ = initDebug()

func initDebug() bool {
	debugfile := os.Getenv("DEBUG_LOG")
	if debugfile == "" {
		return false
	}

	f, err := os.OpenFile(debugfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to open debug log file: %v\n", err)
		os.Exit(2)
	}

	opts.logger = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
	fmt.Fprintf(os.Stderr, "debug log file %v\n", debugfile)

	return true
}

func goroutineNum() int {
	b := make([]byte, 20)
	runtime.Stack(b, false)
	var num int

	fmt.Sscanf(string(b), "goroutine %d ", &num)
	return num
}

// getPosition returns the common prefix for the current debug location.
func getPosition() string {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return ""
	}

	dirname := filepath.Base(filepath.Dir(file))
	goroutine := goroutineNum()

	fn := runtime.FuncForPC(pc)
	name := fn.Name()
	if pos := strings.LastIndex(name, "/"); pos >= 0 {
		name = name[pos+1:]
	}

	return fmt.Sprintf("%s/%s:%d\t%s\t%d", dirname, filepath.Base(file), line, name, goroutine)
}

// Log prints a message to the debug log (if enabled).
func Log(f string, args ...interface{}) {
	if opts.logger == nil {
		return
	}

	if !strings.HasSuffix(f, "\n") {
		f += "\n"
	}

	opts.logger.Printf(getPosition()+"\t"+f, args...)
}
