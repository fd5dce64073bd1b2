package logger

import (
	"io"
	"log"
	"os"
	"sync"
	"time"
)

var (
	InfoLog  *log.Logger
	ErrorLog *log.Logger
	WarnLog  *log.Logger
	logFile  *os.File
	initOnce sync.Once
)

const (
	INFO = iota
	DEBUG
)

// InitLogger initializes the logger with a file output and console output
func InitLogger(filename string, level int) error {
	var err error
	logFile, err = os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}

	multiWriter := io.MultiWriter(os.Stdout, logFile)

	InfoLog = log.New(multiWriter, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLog = log.New(multiWriter, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLog = log.New(multiWriter, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)

	return nil
}

func Close() {
	if logFile != nil {
		logFile.Close()
	}
}

// Init sets up console-only loggers for callers that never call
// InitLogger.
func Init() {
	InfoLog = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLog = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLog = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
}

// ensureInit lazily initializes the loggers exactly once, so the first
// log call is safe even from concurrent goroutines.
func ensureInit() {
	initOnce.Do(func() {
		if InfoLog == nil {
			Init()
		}
	})
}

func Info(format string, v ...interface{}) {
	ensureInit()
	InfoLog.Printf(format, v...)
}

func Infof(format string, v ...interface{}) {
	Info(format, v...)
}

func Error(format string, v ...interface{}) {
	ensureInit()
	ErrorLog.Printf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	Error(format, v...)
}

func Warn(format string, v ...interface{}) {
	ensureInit()
	WarnLog.Printf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	Warn(format, v...)
}

// Measure runs work and logs how long it took under the given label.
// It is purely observational: the work's error is returned unchanged.
func Measure(label string, work func() error) error {
	start := time.Now()
	err := work()
	Infof("%s took %s", label, time.Since(start).Round(time.Millisecond))
	return err
}
