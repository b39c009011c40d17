package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const pidFile = "worktracker.pid"

func pidPath(dir string) string {
	return filepath.Join(dir, pidFile)
}

// WritePID records the current process in dir so `stop` can find it.
func WritePID(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating PID directory: %w", err)
	}
	return os.WriteFile(pidPath(dir), []byte(strconv.Itoa(os.Getpid())), 0644)
}

func RemovePID(dir string) {
	os.Remove(pidPath(dir))
}

func ReadPID(dir string) (int, error) {
	data, err := os.ReadFile(pidPath(dir))
	if err != nil {
		return 0, fmt.Errorf("no running bot found")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file")
	}

	return pid, nil
}
