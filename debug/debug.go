package debug

import (
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	Debug bool
)

func init() {
	debugEnv, exists := os.LookupEnv("RESOCKET_DEBUG")
	if exists {
		if val, err := strconv.ParseBool(debugEnv); err == nil {
			Debug = val
		}
	}
}

// Printf writes a debug level line through the global zerolog logger when
// debugging is enabled.
func Printf(format string, v ...interface{}) {
	if Debug {
		log.Debug().Msgf(format, v...)
	}
}

func Enable() {
	Debug = true
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func Disable() {
	Debug = false
}

// Level maps a textual level onto zerolog, turning on Printf output for
// "debug" and "trace". RESOCKET_DEBUG lowers any level to debug.
func Level(name string) (zerolog.Level, error) {
	lvl := zerolog.InfoLevel
	if name != "" {
		var err error
		if lvl, err = zerolog.ParseLevel(name); err != nil {
			return zerolog.InfoLevel, err
		}
	}
	if Debug && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}
	if lvl <= zerolog.DebugLevel {
		Enable()
	}
	return lvl, nil
}
