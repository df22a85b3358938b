package logging

import (
	"log/slog"
	"os"
)

var stdout = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Setup installs the JSON stdout logger as the default.
func Setup() {
	slog.SetDefault(stdout)
}

// AttachDB fans the default logger out to stdout and the system_logs table.
func AttachDB(h *DBHandler) {
	slog.SetDefault(slog.New(NewMultiHandler(stdout.Handler(), h)))
}
