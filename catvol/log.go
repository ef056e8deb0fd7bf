package catvol

import "time"

// ModeFlag is a log severity.  Messages below the current mode are dropped.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

var mode = InfoMode

// Logger is the sink behind the package-level logging functions.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	// Shutdown flushes and closes any underlying file.
	Shutdown()
}

// SetLogMode sets the minimum severity that gets logged.  SilentMode turns
// off all logging.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

// LogMode returns the current severity gate.
func LogMode() ModeFlag {
	return mode
}

// emit routes a message of the given severity to l if the gate allows it.
func emit(l Logger, sev ModeFlag, format string, args []interface{}) {
	if sev < mode {
		return
	}
	switch sev {
	case DebugMode:
		l.Debugf(format, args...)
	case InfoMode:
		l.Infof(format, args...)
	case WarningMode:
		l.Warningf(format, args...)
	case ErrorMode:
		l.Errorf(format, args...)
	default:
		l.Criticalf(format, args...)
	}
}

func Debugf(format string, args ...interface{})    { emit(logger, DebugMode, format, args) }
func Infof(format string, args ...interface{})     { emit(logger, InfoMode, format, args) }
func Warningf(format string, args ...interface{})  { emit(logger, WarningMode, format, args) }
func Errorf(format string, args ...interface{})    { emit(logger, ErrorMode, format, args) }
func Criticalf(format string, args ...interface{}) { emit(logger, CriticalMode, format, args) }

// Shutdown closes any log file in use.
func Shutdown() {
	logger.Shutdown()
}

// TimeLog appends the time elapsed since its creation to each message.
//
//	tlog := catvol.NewTimeLog()
//	...
//	tlog.Infof("Built volume %s", name) // "Built volume p1_s2: 1.2s"
type TimeLog struct {
	logger Logger
	start  time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{logger, time.Now()}
}

// Elapsed returns the time since the TimeLog was created.
func (t TimeLog) Elapsed() time.Duration {
	return time.Since(t.start)
}

func (t TimeLog) emit(sev ModeFlag, format string, args []interface{}) {
	emit(t.logger, sev, format+": %s\n", append(args, time.Since(t.start)))
}

func (t TimeLog) Debugf(format string, args ...interface{})   { t.emit(DebugMode, format, args) }
func (t TimeLog) Infof(format string, args ...interface{})    { t.emit(InfoMode, format, args) }
func (t TimeLog) Warningf(format string, args ...interface{}) { t.emit(WarningMode, format, args) }
func (t TimeLog) Errorf(format string, args ...interface{})   { t.emit(ErrorMode, format, args) }
