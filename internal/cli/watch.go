package cli

import (
	"context"
	"time"
)

// watchDebounce groups bursts of file events (editors often write twice).
const watchDebounce = 200 * time.Millisecond

// WatchCatalog refreshes the engine whenever the Loam catalog changes, until ctx is done.
// It is a no-op without a catalog dir.
func (a *App) WatchCatalog(ctx context.Context) error {
	if a.Catalog == nil {
		return nil
	}
	changes, err := a.Catalog.Watch(ctx)
	if err != nil {
		return err
	}

	go func() {
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case id, ok := <-changes:
				if !ok {
					return
				}
				a.Logger.Debug("Catalog change detected", "document", id)
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				n, err := a.Engine.Refresh(ctx)
				if err != nil {
					a.Logger.Error("Catalog reload failed", "err", err)
					continue
				}
				a.Logger.Info("Catalog reloaded", "protocols", n)
			}
		}
	}()
	return nil
}
