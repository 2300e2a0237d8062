package testutil

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// Test binaries log everything, but only show it under -test.v.
func init() {
	var isVerbose bool
	for _, arg := range os.Args {
		if arg == "-test.v" || (strings.HasPrefix(arg, "-test.v=") && arg != "-test.v=false") {
			isVerbose = true
		}
	}

	logrus.SetLevel(logrus.TraceLevel)

	if !isVerbose {
		logrus.StandardLogger().Out = io.Discard
	}
}

// CaptureLogs records every entry the standard logger emits until the test
// ends, at which point the previous hooks, level and output are restored.
func CaptureLogs(t *testing.T) *test.Hook {
	logger := logrus.StandardLogger()

	hooks := logger.ReplaceHooks(make(logrus.LevelHooks))
	level := logger.GetLevel()
	out := logger.Out
	formatter := logger.Formatter

	t.Cleanup(func() {
		logger.ReplaceHooks(hooks)
		logger.SetLevel(level)
		logger.SetOutput(out)
		logger.SetFormatter(formatter)
	})

	return test.NewLocal(logger)
}
