// control/hotreload.go
// Polls a config file and reloads the store when it changes.

package control

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchFile reloads store from path whenever the file's modification time
// or size changes. It returns when ctx is done. Reload failures are logged
// and the previous configuration stays in effect.
func WatchFile(ctx context.Context, store *ConfigStore, path string, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	var lastMod time.Time
	var lastSize int64 = -1
	if fi, err := os.Stat(path); err == nil {
		lastMod, lastSize = fi.ModTime(), fi.Size()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		fi, err := os.Stat(path)
		if err != nil {
			logger.Debug().Err(err).Str("path", path).Msg("config stat failed")
			continue
		}
		if fi.ModTime().Equal(lastMod) && fi.Size() == lastSize {
			continue
		}
		lastMod, lastSize = fi.ModTime(), fi.Size()
		if err := store.Reload(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("config reload rejected")
			continue
		}
		logger.Info().Str("path", path).Msg("config reloaded")
	}
}
