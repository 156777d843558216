package app

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Output goes to a file under the
// storage root; stdout belongs to the TUI.
func NewLogger(root string, debug bool) (*zap.Logger, error) {
	if root == "" {
		root = DefaultStorageRoot()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logPath := filepath.Join(root, "quickbar.log")
	cfg.OutputPaths = []string{logPath}
	cfg.ErrorOutputPaths = []string{logPath}
	return cfg.Build()
}
