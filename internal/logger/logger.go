package logger

import (
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

const (
	LevelError = iota
	LevelWarning
	LevelInfo
	LevelDebug
)

var (
	ErrorLogger = log.New(os.Stderr, "Error: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLogger  = log.New(os.Stderr, "Warning: ", log.Ldate|log.Ltime)
	InfoLogger  = log.New(os.Stdout, "Info: ", log.Ldate|log.Ltime)
	DebugLogger = log.New(io.Discard, "", 0)

	currentLevel = LevelInfo
)

var (
	errorPrefix = color.New(color.FgHiRed, color.Bold).Sprint("Error: ")
	warnPrefix  = color.New(color.FgHiYellow).Sprint("Warning: ")
	infoPrefix  = color.New(color.FgHiBlack).Sprint("Info: ")
	debugPrefix = color.New(color.FgCyan).Sprint("DEBUG: ")
)

func Setup(level int) {
	currentLevel = level

	ErrorLogger = log.New(os.Stderr, errorPrefix, log.Ldate|log.Ltime|log.Lshortfile)

	if level >= LevelWarning {
		WarnLogger = log.New(os.Stderr, warnPrefix, log.Ldate|log.Ltime)
	} else {
		WarnLogger = log.New(io.Discard, "", 0)
	}

	if level >= LevelInfo {
		InfoLogger = log.New(os.Stdout, infoPrefix, log.Ldate|log.Ltime)
	} else {
		InfoLogger = log.New(io.Discard, "", 0)
	}

	if level >= LevelDebug {
		DebugLogger = log.New(os.Stdout, debugPrefix, log.Ldate|log.Ltime|log.Lshortfile)
	} else {
		DebugLogger = log.New(io.Discard, "", 0)
	}
}

// Silence routes every logger to io.Discard. Used by test suites.
func Silence() {
	ErrorLogger = log.New(io.Discard, "", 0)
	WarnLogger = log.New(io.Discard, "", 0)
	InfoLogger = log.New(io.Discard, "", 0)
	DebugLogger = log.New(io.Discard, "", 0)
}

func GetCurrentLevel() int {
	return currentLevel
}

func SetLevel(newLevel int) {
	Setup(newLevel)
}
