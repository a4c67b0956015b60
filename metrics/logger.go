package metrics

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Logger interface {
	Log(info *ConversionInfo)
}

type StdoutLogger struct{}

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{}
}

func (l *StdoutLogger) Log(info *ConversionInfo) {
	infoStr, err := info.ToJSON()
	if err == nil {
		log.Print(infoStr)
	} else {
		log.Printf("StdoutLogger: error: %v", err)
	}
}

const defaultQueueSize = 2000
const defaultMaxLogFileSize = 256 * 1024 * 1024
const defaultMaxLogFiles = 10

// FileLogger appends records to LogDir/conversions.log from a single
// writer goroutine, rotating the file once it reaches MaxLogFileSize.
// Rotated files are named conversions.log.N; when MaxLogFiles of them
// exist the oldest is overwritten.
type FileLogger struct {
	MetricsQueue   chan *ConversionInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int
	Verbose        bool

	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

func NewFileLogger(logDir string, maxLogFileSize int64, maxLogFiles int, verbose bool) *FileLogger {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	logger := &FileLogger{
		MetricsQueue:   make(chan *ConversionInfo, defaultQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		Verbose:        verbose,
		done:           make(chan struct{}),
	}

	go logger.startLogWriter()
	return logger
}

// NewLogger picks the logger for a -log_dir flag value: nil for "", stdout
// for "-" and a FileLogger otherwise. File size and count limits come from
// VOXRGB_MAX_LOG_FILE_SIZE and VOXRGB_MAX_LOG_FILES.
func NewLogger(logDir string, verbose bool, errLog *log.Logger) Logger {
	switch logDir {
	case "":
		return nil
	case "-":
		return NewStdoutLogger()
	}

	maxLogFileSize := int64(0)
	if val, ok := os.LookupEnv("VOXRGB_MAX_LOG_FILE_SIZE"); ok {
		valInt, e := strconv.ParseInt(val, 10, 64)
		if e == nil {
			maxLogFileSize = valInt
		} else {
			errLog.Printf("invalid VOXRGB_MAX_LOG_FILE_SIZE: %v", e)
		}
	}

	maxLogFiles := -1
	if val, ok := os.LookupEnv("VOXRGB_MAX_LOG_FILES"); ok {
		valInt, e := strconv.ParseInt(val, 10, 32)
		if e == nil {
			maxLogFiles = int(valInt)
		} else {
			errLog.Printf("invalid VOXRGB_MAX_LOG_FILES: %v", e)
		}
	}

	return NewFileLogger(logDir, maxLogFileSize, maxLogFiles, verbose)
}

// Log queues info for the writer. Records logged after Close are dropped.
func (l *FileLogger) Log(info *ConversionInfo) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	l.MetricsQueue <- info
}

// Close flushes the queue and waits for the writer to finish. Calling it
// more than once is harmless.
func (l *FileLogger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.MetricsQueue)
	l.mu.Unlock()
	<-l.done
}

func (l *FileLogger) logFilePath() string {
	return filepath.Join(l.LogDir, "conversions.log")
}

func (l *FileLogger) startLogWriter() {
	defer close(l.done)

	f, err := l.openLogFile()
	if err != nil {
		log.Printf("FileLogger: log open error: %v", err)
	}

	for info := range l.MetricsQueue {
		infoStr, err := info.ToJSON()
		if err != nil {
			log.Printf("FileLogger: info.ToJSON() error: %v", err)
			continue
		}

		f, err = l.tryRotateLogFile(f)
		if err != nil || f == nil {
			continue
		}

		if _, err := f.WriteString(infoStr); err != nil {
			log.Printf("FileLogger: write error: %v", err)
			continue
		}
		f.Sync()
	}

	if f != nil {
		f.Close()
	}
}

func (l *FileLogger) openLogFile() (*os.File, error) {
	return os.OpenFile(l.logFilePath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (l *FileLogger) tryRotateLogFile(currFile *os.File) (*os.File, error) {
	if currFile == nil {
		return l.openLogFile()
	}

	info, err := currFile.Stat()
	if err != nil {
		log.Printf("FileLogger: log rotation error: %v", err)
		return currFile, nil
	}
	if info.Size() < l.MaxLogFileSize {
		return currFile, nil
	}

	rotatedLogFilePath, err := l.rotationTarget()
	if err != nil {
		log.Printf("FileLogger: log rotation error: %v", err)
		return currFile, nil
	}

	currFile.Close()
	if err := os.Rename(l.logFilePath(), rotatedLogFilePath); err != nil {
		log.Printf("FileLogger: log rotation error: %v", err)
	} else if l.Verbose {
		log.Printf("FileLogger: log file rotated: %v", rotatedLogFilePath)
	}

	f, err := l.openLogFile()
	if err != nil {
		log.Printf("FileLogger: log rotation error: %v", err)
	}
	return f, err
}

// rotationTarget returns the first free conversions.log.N or, when all
// are taken, removes and returns the oldest one.
func (l *FileLogger) rotationTarget() (string, error) {
	base := filepath.Base(l.logFilePath())
	for i := 0; i < l.MaxLogFiles; i++ {
		filePath := filepath.Join(l.LogDir, fmt.Sprintf("%s.%d", base, i))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			return filePath, nil
		}
	}

	files, err := ioutil.ReadDir(l.LogDir)
	if err != nil {
		return "", err
	}

	var oldestFile os.FileInfo
	oldestTime := time.Now()
	for _, file := range files {
		if !file.Mode().IsRegular() || !strings.HasPrefix(file.Name(), base+".") {
			continue
		}
		if file.ModTime().Before(oldestTime) {
			oldestFile = file
			oldestTime = file.ModTime()
		}
	}

	rotated := filepath.Join(l.LogDir, fmt.Sprintf("%s.%d", base, 0))
	if oldestFile != nil {
		rotated = filepath.Join(l.LogDir, oldestFile.Name())
	}
	if l.Verbose {
		log.Printf("FileLogger: maximum number of log files reached, overwriting %s", rotated)
	}
	if err := os.Remove(rotated); err != nil {
		return "", err
	}
	return rotated, nil
}
