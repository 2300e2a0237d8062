package drop

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// ConfigureLogging applies the environment's log level and format to the
// standard logger and directs it to w, keeping stdout free for results.
func ConfigureLogging(env *Environment, w io.Writer) {
	switch strings.ToLower(env.LogFormat) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(strings.ToLower(env.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", env.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(w)
}
