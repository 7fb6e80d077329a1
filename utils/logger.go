package utils

import (
	"github.com/jfrog/gofrog/log"
)

type LevelType = log.LevelType

const (
	ERROR = log.ERROR
	WARN  = log.WARN
	INFO  = log.INFO
	DEBUG = log.DEBUG
)

type Log interface {
	Debug(a ...interface{})
	Info(a ...interface{})
	Warn(a ...interface{})
	Error(a ...interface{})
	Output(a ...interface{})
}

// NullLog is a logger that does nothing
type NullLog struct {
}

func (nl *NullLog) Debug(...interface{}) {
}

func (nl *NullLog) Info(...interface{}) {
}

func (nl *NullLog) Warn(...interface{}) {
}

func (nl *NullLog) Error(...interface{}) {
}

func (nl *NullLog) Output(...interface{}) {
}

// NewDefaultLogger returns the shared gofrog logger at the given level.
// The package-level log calls of the repository clients write to the same logger.
func NewDefaultLogger(level LevelType) Log {
	logger := log.GetLogger()
	logger.SetLogLevel(level)
	return logger
}

// GetLogLevel maps a level name, as found in the PUBLISH_LOG_LEVEL environment variable, to its LevelType.
func GetLogLevel(name string) LevelType {
	switch name {
	case "ERROR":
		return ERROR
	case "WARN":
		return WARN
	case "DEBUG":
		return DEBUG
	default:
		return INFO
	}
}
