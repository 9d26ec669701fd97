package logger

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
)

type Logger struct {
	logger *log.Logger
	level  Level

	mu        sync.RWMutex
	publisher port.LogPublisher
}

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func New(level string) *Logger {
	l := &Logger{
		logger: log.New(os.Stdout, "", 0),
		level:  parseLevel(level),
	}
	return l
}

func parseLevel(level string) Level {
	switch level {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetLogPublisher дублирует записи во внешнюю систему логирования (CloudWatch Logs).
// nil отключает публикацию.
func (l *Logger) SetLogPublisher(publisher port.LogPublisher) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.publisher = publisher
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.level <= DEBUG {
		l.log(port.LogLevelDebug, msg, args...)
	}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	if l.level <= INFO {
		l.log(port.LogLevelInfo, msg, args...)
	}
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.level <= WARN {
		l.log(port.LogLevelWarn, msg, args...)
	}
}

func (l *Logger) Error(msg string, err error, args ...interface{}) {
	if l.level <= ERROR {
		if err != nil {
			args = append(args, "error", err.Error())
		}
		l.log(port.LogLevelError, msg, args...)
	}
}

func (l *Logger) log(level port.LogLevel, msg string, args ...interface{}) {
	now := time.Now()
	message := fmt.Sprintf("[%s] [%s] %s", now.Format("2006-01-02 15:04:05"), level, msg)

	if len(args) > 0 {
		message += " |"
		for i := 0; i < len(args); i += 2 {
			if i+1 < len(args) {
				message += fmt.Sprintf(" %v=%v", args[i], args[i+1])
			}
		}
	}

	l.logger.Println(message)
	l.publish(now, level, msg, args)
}

func (l *Logger) publish(at time.Time, level port.LogLevel, msg string, args []interface{}) {
	l.mu.RLock()
	publisher := l.publisher
	l.mu.RUnlock()

	if publisher == nil {
		return
	}

	fields := make(map[string]interface{}, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		fields[fmt.Sprint(args[i])] = args[i+1]
	}

	// Публикация буферизуется на стороне publisher'а, ошибку игнорируем:
	// логгер не должен уходить в рекурсию при сбое CloudWatch.
	_ = publisher.Publish(context.Background(), port.LogEntry{
		Timestamp: at,
		Level:     level,
		Message:   msg,
		Fields:    fields,
	})
}
