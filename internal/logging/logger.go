package logging

import (
	"log/slog"
	"os"
)

// Setup installs a JSON stdout logger as the process default. It runs before
// the database is up; main swaps in the fan-out to the system_logs sink once
// a connection exists.
func Setup() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}
