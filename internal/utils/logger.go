package utils

import (
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

func levelStyle(label, bg, fg string) lipgloss.Style {
	return lipgloss.NewStyle().
		SetString(label).
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color(bg)).
		Foreground(lipgloss.Color(fg)).Bold(true)
}

// NewLogger 创建带时间戳和彩色等级标签的日志器，level 取 debug/info/warn/error
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           lvl,
		Prefix:          "sobe",
	})

	styles := log.DefaultStyles()
	styles.Levels[log.DebugLevel] = levelStyle("DEBUG🔍", "#30303080", "#A0A0A0FF")
	styles.Levels[log.InfoLevel] = levelStyle("INFOF🌟", "#90EE9080", "#006400FF")
	styles.Levels[log.WarnLevel] = levelStyle("WARN🃏", "#FFD70080", "#000000FF")
	styles.Levels[log.ErrorLevel] = levelStyle("ERROR🔥", "#FF0000FF", "#00FFFF00")
	styles.Levels[log.FatalLevel] = levelStyle("FATAL⚡️", "#000000FF", "#00FFFF00")
	logger.SetStyles(styles)
	return logger, nil
}
