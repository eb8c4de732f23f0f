package logger

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/golang/glog"
)

// Environment variables used by InitFromEnv.
const (
	envLogDir = "CACHE_MCP_LOG_DIR"
	envLogV   = "CACHE_MCP_LOG_V"
)

// debugLevel is the glog verbosity at which Debugf output appears.
const debugLevel glog.Level = 2

var (
	mu            sync.Mutex
	isInitialized bool
)

// InitFromEnv initializes the logger from CACHE_MCP_LOG_DIR and
// CACHE_MCP_LOG_V, defaulting to a logs directory next to the executable.
func InitFromEnv() error {
	dir := os.Getenv(envLogDir)
	if dir == "" {
		if exePath, err := os.Executable(); err == nil {
			dir = filepath.Join(filepath.Dir(exePath), "logs")
		} else {
			dir = "./logs"
		}
	}
	verbosity, _ := strconv.Atoi(os.Getenv(envLogV))
	return Init(dir, verbosity)
}

// Init points glog at dir and sets its verbosity. Errors are also copied to
// stderr; nothing is ever written to stdout, which belongs to the MCP transport.
// Only the first call has any effect.
func Init(dir string, verbosity int) error {
	mu.Lock()
	defer mu.Unlock()
	if isInitialized {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for name, value := range map[string]string{
		"log_dir":         dir,
		"v":               strconv.Itoa(verbosity),
		"logtostderr":     "false",
		"stderrthreshold": "ERROR",
	} {
		if f := flag.Lookup(name); f != nil {
			if err := f.Value.Set(value); err != nil {
				return err
			}
		}
	}
	isInitialized = true
	return nil
}

// Close flushes buffered log lines.
func Close() error {
	glog.Flush()
	return nil
}

// Infof logs informational messages.
func Infof(format string, args ...any) { glog.InfoDepth(1, fmt.Sprintf(format, args...)) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { glog.WarningDepth(1, fmt.Sprintf(format, args...)) }

// Errorf logs errors.
func Errorf(format string, args ...any) { glog.ErrorDepth(1, fmt.Sprintf(format, args...)) }

// Debugf logs only when verbosity is 2 or higher.
func Debugf(format string, args ...any) {
	if glog.V(debugLevel) {
		glog.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}
