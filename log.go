package assetcache

import "go.uber.org/zap"

// logOrNop returns logger if non-nil, or a no-op logger otherwise, so the
// coordinator never has to nil-check before logging.
func logOrNop(logger *zap.Logger) *zap.Logger {
	if logger != nil {
		return logger
	}
	return zap.NewNop()
}
