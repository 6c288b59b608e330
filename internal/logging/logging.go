// Package logging contains helpers to print leveled messages through a standard logger.
package logging

import (
	"fmt"
	"log"
)

const (
	levelInfo  = "INFO"
	levelWarn  = "WARN"
	levelError = "ERROR"
)

func printLevel(logger *log.Logger, level string, v ...interface{}) {
	if logger == nil {
		logger = log.Default()
	}
	logger.Println(fmt.Sprintf("[%s]", level), fmt.Sprint(v...))
}

// PrintlnInfo prints an info message.
func PrintlnInfo(logger *log.Logger, v ...interface{}) {
	printLevel(logger, levelInfo, v...)
}

// PrintlnWarn prints a warning message.
func PrintlnWarn(logger *log.Logger, v ...interface{}) {
	printLevel(logger, levelWarn, v...)
}

// PrintlnError prints an error message.
func PrintlnError(logger *log.Logger, v ...interface{}) {
	printLevel(logger, levelError, v...)
}
