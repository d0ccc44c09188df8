package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

type level string

const (
	levelDebug level = "DEBUG"
	levelInfo  level = "INFO"
	levelWarn  level = "WARN"
	levelError level = "ERROR"
	levelFatal level = "FATAL"
)

var levelColors = map[level]*color.Color{
	levelDebug: color.New(color.FgCyan),
	levelInfo:  color.New(color.FgGreen),
	levelWarn:  color.New(color.FgYellow),
	levelError: color.New(color.FgRed),
	levelFatal: color.New(color.FgRed, color.Bold),
}

type entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
}

// Logger writes colored category-tagged lines to stdout and JSON lines to a
// daily file under logs/.
type Logger struct {
	file *os.File
}

func NewLogger() *Logger {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "cannot create logs directory:", err)
		os.Exit(1)
	}

	name := fmt.Sprintf("logs/booking-service-%s.log", time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cannot open log file:", err)
		os.Exit(1)
	}

	l := &Logger{file: file}
	l.Info("LOGGER", "logging to "+name)
	return l
}

func (l *Logger) write(lv level, category, message string) {
	now := time.Now().UTC()
	e := entry{
		Timestamp: now.Format(time.RFC3339Nano),
		Level:     string(lv),
		Category:  strings.ToUpper(category),
		Message:   message,
	}

	c, ok := levelColors[lv]
	if !ok {
		c = color.New(color.FgWhite)
	}
	fmt.Printf("%s %s %s %s\n",
		color.New(color.FgBlue).Sprint(now.Format("15:04:05")),
		c.Sprintf("%-5s", e.Level),
		c.Sprintf("[%-8s]", e.Category),
		e.Message)

	if l.file != nil {
		line, _ := json.Marshal(e)
		l.file.Write(append(line, '\n'))
	}
}

func (l *Logger) Debug(category, message string) { l.write(levelDebug, category, message) }
func (l *Logger) Info(category, message string)  { l.write(levelInfo, category, message) }
func (l *Logger) Warn(category, message string)  { l.write(levelWarn, category, message) }
func (l *Logger) Error(category, message string) { l.write(levelError, category, message) }

func (l *Logger) Fatal(category, message string) {
	l.write(levelFatal, category, message)
	os.Exit(1)
}

// Component shortcuts.

func (l *Logger) LogBooking(action, ref, message string) {
	l.Info("BOOKING", fmt.Sprintf("[%s] %s - %s", action, ref, message))
}

func (l *Logger) LogCheckin(ticketCode, message string) {
	l.Info("CHECKIN", fmt.Sprintf("%s - %s", ticketCode, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.Info("DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) Close() {
	if l.file != nil {
		l.file.Close()
	}
}
