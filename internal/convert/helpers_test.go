package convert

import (
	"io"
	"log/slog"
	"os/exec"
)

func fakeTools(available ...string) *Tools {
	set := make(map[string]bool, len(available))
	for _, a := range available {
		set[a] = true
	}
	return &Tools{
		lookPath: func(name string) (string, error) {
			if set[name] {
				return "/usr/bin/" + name, nil
			}
			return "", exec.ErrNotFound
		},
		command: exec.CommandContext,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
