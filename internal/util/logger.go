package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const LOG_BUFFER_SIZE = 1000

var ErrLogNotInitialized = errors.New("log object is not initialized yet")

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

// LogConfig selects where and how verbosely a Logger writes.
type LogConfig struct {
	Dir      string
	FileName string
	Level    string
	Rewrite  bool
	Console  bool
}

// Logger writes through a buffered channel drained by one goroutine, so
// request handlers never block on file I/O. The zero value is usable and
// discards everything.
type Logger struct {
	mu                sync.RWMutex
	logBuffer         chan leveledEntry
	handle            *os.File
	wg                sync.WaitGroup
	loggerInitialized bool
	zapLogger         *zap.Logger
}

type leveledEntry struct {
	level  int
	logMsg string
	fields []zap.Field
}

func (l *Logger) Init(cfg LogConfig) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var cores []zapcore.Core
	encoder := zapcore.NewConsoleEncoder(encoderConfig())

	if cfg.FileName != "" {
		CheckAndCreateLogFolder(cfg.Dir)

		flags := os.O_RDWR | os.O_CREATE | os.O_APPEND
		if cfg.Rewrite {
			flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		}
		l.handle, err = os.OpenFile(filepath.Join(cfg.Dir, cfg.FileName), flags, 0666)
		if err != nil {
			return err
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(l.handle), level))
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level))
	}

	l.zapLogger = zap.New(zapcore.NewTee(cores...))
	l.logBuffer = make(chan leveledEntry, LOG_BUFFER_SIZE)

	l.wg.Add(1)
	go l.logWriter()

	l.mu.Lock()
	l.loggerInitialized = true
	l.mu.Unlock()
	return nil
}

func encoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeLevel = zapcore.CapitalLevelEncoder
	return config
}

func (l *Logger) logWriter() {
	defer l.wg.Done()
	for entry := range l.logBuffer {
		switch entry.level {
		case LOG_LEVEL_ERROR:
			l.zapLogger.Error(entry.logMsg, entry.fields...)
		case LOG_LEVEL_WARN:
			l.zapLogger.Warn(entry.logMsg, entry.fields...)
		case LOG_LEVEL_DEBUG:
			l.zapLogger.Debug(entry.logMsg, entry.fields...)
		default:
			l.zapLogger.Info(entry.logMsg, entry.fields...)
		}
	}
	_ = l.zapLogger.Sync()
}

// LogEvent accepts either a single message or a LOG_LEVEL_* constant
// followed by message parts, which are joined with spaces.
func (l *Logger) LogEvent(v ...interface{}) error {
	if len(v) == 0 {
		return nil
	}

	level := LOG_LEVEL_INFO
	parts := v
	if lv, ok := v[0].(int); ok && len(v) > 1 && lv >= LOG_LEVEL_ERROR && lv <= LOG_LEVEL_DEBUG {
		level = lv
		parts = v[1:]
	}

	msg := fmt.Sprintln(parts...)
	return l.enqueue(leveledEntry{level: level, logMsg: msg[:len(msg)-1]})
}

// LogFields logs msg with structured zap fields.
func (l *Logger) LogFields(level int, msg string, fields ...zap.Field) error {
	return l.enqueue(leveledEntry{level: level, logMsg: msg, fields: fields})
}

func (l *Logger) enqueue(entry leveledEntry) error {
	if l == nil {
		return ErrLogNotInitialized
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.loggerInitialized {
		return ErrLogNotInitialized
	}
	l.logBuffer <- entry
	return nil
}

func (l *Logger) DeInit() {
	l.mu.Lock()
	if !l.loggerInitialized {
		l.mu.Unlock()
		return
	}
	l.loggerInitialized = false
	close(l.logBuffer)
	l.mu.Unlock()

	l.wg.Wait()

	if l.handle != nil {
		l.handle.Close()
	}
}

func CheckAndCreateLogFolder(FolderNameWithPath string) {
	_, err := os.Stat(FolderNameWithPath)

	if os.IsNotExist(err) {
		err := os.MkdirAll(FolderNameWithPath, 0755)
		if err != nil {
			fmt.Println("Failed to create the log folder and Mkdir err :: ", err)
		}
	}
}
