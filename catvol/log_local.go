package catvol

import (
	"fmt"
	"log"
	"strings"

	"github.com/natefinch/lumberjack"
)

// LogConfig is the [logging] section of the catvol TOML.  Without a logfile,
// messages go to stderr.
type LogConfig struct {
	Logfile    string
	Level      string // debug, info, warning, error, critical or silent
	MaxSize    int    `toml:"max_log_size"`    // megabytes before rotation
	MaxAge     int    `toml:"max_log_age"`     // days to keep rotated files
	MaxBackups int    `toml:"max_log_backups"` // 0 keeps all
	Compress   bool   `toml:"compress_logs"`
}

var modeNames = map[string]ModeFlag{
	"debug":    DebugMode,
	"info":     InfoMode,
	"warning":  WarningMode,
	"error":    ErrorMode,
	"critical": CriticalMode,
	"silent":   SilentMode,
}

// ParseLogMode returns the mode named by a [logging] level setting.
func ParseLogMode(name string) (ModeFlag, error) {
	m, found := modeNames[strings.ToLower(strings.TrimSpace(name))]
	if !found {
		return InfoMode, Invalid("level", "unknown log level %q", name)
	}
	return m, nil
}

// SetLogger applies the logging settings.  A set level replaces the current mode.
func (c *LogConfig) SetLogger() {
	if c == nil {
		return
	}
	if c.Level != "" {
		m, err := ParseLogMode(c.Level)
		if err != nil {
			Warningf("Ignoring [logging] level: %v\n", err)
		} else {
			SetLogMode(m)
		}
	}
	if c.Logfile == "" {
		Infof("No logfile configured, logging to stderr.\n")
		return
	}
	fmt.Printf("catvol logging to %s\n", c.Logfile)
	out := &lumberjack.Logger{
		Filename:   c.Logfile,
		MaxSize:    c.MaxSize,
		MaxAge:     c.MaxAge,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	}
	log.SetOutput(out)
	logger = fileLogger{out}
}

// fileLogger writes severity-tagged lines through the standard log package,
// optionally backed by a rotating file.
type fileLogger struct {
	out *lumberjack.Logger
}

var logger Logger = fileLogger{}

func (fileLogger) write(tag, format string, args []interface{}) {
	log.Printf(tag+" "+format, args...)
}

func (l fileLogger) Debugf(format string, args ...interface{})    { l.write("DEBUG", format, args) }
func (l fileLogger) Infof(format string, args ...interface{})     { l.write("INFO", format, args) }
func (l fileLogger) Warningf(format string, args ...interface{})  { l.write("WARN", format, args) }
func (l fileLogger) Errorf(format string, args ...interface{})    { l.write("ERROR", format, args) }
func (l fileLogger) Criticalf(format string, args ...interface{}) { l.write("CRITICAL", format, args) }

func (l fileLogger) Shutdown() {
	if l.out == nil {
		return
	}
	log.Printf("INFO closing %s\n", l.out.Filename)
	if err := l.out.Close(); err != nil {
		fmt.Printf("Error closing log file %s: %v\n", l.out.Filename, err)
	}
}
