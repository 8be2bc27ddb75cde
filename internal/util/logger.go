package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const LOG_BUFFER_SIZE = 1000

var (
	ErrLogNotInitialized      = errors.New("log object is not initialized yet")
	LOG_FOLDER_NAME_WITH_PATH = ".." + string(os.PathSeparator) + "log"
	globalLogLevel            = 3
)

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

// Logger is what the listener components log through.
type Logger interface {
	LogEvent(v ...interface{}) error
}

type ListenerLogger struct {
	logBuffer         chan LeveledLogger
	handle            io.WriteCloser
	wg                *sync.WaitGroup
	mu                sync.RWMutex
	loggerInitialized bool
	zapLogger         *zap.Logger
}

type LeveledLogger struct {
	level  int
	logMsg string
}

// Init opens logFileName under the log folder and starts the writer.
func (m *ListenerLogger) Init(logFileName string, rewrite bool) error {

	var (
		err             error
		fileWithRelPath string
		handle          *os.File
	)

	fileWithRelPath = LOG_FOLDER_NAME_WITH_PATH + string(os.PathSeparator) + logFileName

	if rewrite {
		handle, err = os.OpenFile(fileWithRelPath,
			os.O_RDWR|os.O_CREATE|os.O_TRUNC,
			0666)
	} else {
		handle, err = os.OpenFile(fileWithRelPath,
			os.O_RDWR|os.O_CREATE|os.O_APPEND,
			0666)
	}
	if err != nil {
		return err
	}

	m.start(handle)
	return nil
}

// InitConsole logs to stderr, which is what an embedded listener usually wants.
func (m *ListenerLogger) InitConsole() {
	m.start(nopCloser{os.Stderr})
}

// InitWriter logs to w. Used by tests to capture output.
func (m *ListenerLogger) InitWriter(w io.Writer) {
	m.start(nopCloser{w})
}

func (m *ListenerLogger) start(handle io.WriteCloser) {
	m.wg = new(sync.WaitGroup)
	m.logBuffer = make(chan LeveledLogger, LOG_BUFFER_SIZE)
	m.handle = handle

	m.zapLoggerInit()

	m.wg.Add(1)
	go m.logWritter()

	m.mu.Lock()
	m.loggerInitialized = true
	m.mu.Unlock()
}

func (m *ListenerLogger) zapLoggerInit() {

	var writer zapcore.WriteSyncer
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	config.EncodeLevel = zapcore.CapitalLevelEncoder //To Print level in Uppercase.
	fileEncoder := zapcore.NewConsoleEncoder(config) //To Print Lines in non json format.

	writer = zapcore.AddSync(m.handle)

	core := zapcore.NewTee(
		zapcore.NewCore(fileEncoder, writer, GlobalLogLevelSetter()),
	)
	m.zapLogger = zap.New(core).Named("influxdb-listener")
}

func GlobalLogLevelSetter() zapcore.Level {
	switch globalLogLevel {
	case LOG_LEVEL_ERROR:
		return zapcore.ErrorLevel
	case LOG_LEVEL_WARN:
		return zapcore.WarnLevel
	case LOG_LEVEL_DEBUG:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (m *ListenerLogger) logWritter() {
	for logdata := range m.logBuffer {
		switch logdata.level {
		case LOG_LEVEL_ERROR:
			m.zapLogger.Error(logdata.logMsg)
		case LOG_LEVEL_WARN:
			m.zapLogger.Warn(logdata.logMsg)
		case LOG_LEVEL_INFO:
			m.zapLogger.Info(logdata.logMsg)
		case LOG_LEVEL_DEBUG:
			m.zapLogger.Debug(logdata.logMsg)
		}
	}
	m.zapLogger.Sync()
	m.wg.Done()
}

// LogEvent queues a message. The first argument may be one of the
// LOG_LEVEL_* constants; otherwise the message is logged at info level.
func (m *ListenerLogger) LogEvent(v ...interface{}) error {
	var msg string
	var level int
	var ok bool

	if len(v) == 1 {
		level = LOG_LEVEL_INFO
		msg = fmt.Sprint(v[0])

	} else if len(v) > 1 {
		level, ok = v[0].(int)
		if ok {
			if level == LOG_LEVEL_ERROR || level == LOG_LEVEL_WARN || level == LOG_LEVEL_INFO || level == LOG_LEVEL_DEBUG {
				msg = fmt.Sprintf("%v", v[1:])
			} else {
				level = LOG_LEVEL_INFO
				msg = fmt.Sprintf("%v", v)
			}
		} else {
			level = LOG_LEVEL_INFO
			msg = fmt.Sprintf("%v", v)
		}
		msg = msg[1 : len(msg)-1]
	}

	lobj := LeveledLogger{level, msg}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loggerInitialized {
		return ErrLogNotInitialized
	}
	m.logBuffer <- lobj
	return nil
}

// DeInit drains queued messages and closes the log handle.
func (m *ListenerLogger) DeInit() {

	m.mu.Lock()
	if !m.loggerInitialized {
		m.mu.Unlock()
		return
	}
	m.loggerInitialized = false
	close(m.logBuffer)
	m.mu.Unlock()

	m.wg.Wait()
	m.handle.Close()
}

func SetCommonLoggerAttributes(GlobalLogLevel int) {
	globalLogLevel = GlobalLogLevel
}

func SetLoggerPath(logPath string) {
	LOG_FOLDER_NAME_WITH_PATH = logPath
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

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
