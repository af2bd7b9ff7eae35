package session

import (
	"context"
	"time"
)

// framePeriod approximates one display frame.
const framePeriod = 33 * time.Millisecond

// startLipSync samples the stream's audio level every frame and drives
// the avatar mouth callback. Best-effort: it self-terminates when the
// returned stop function runs or ctx is cancelled.
func startLipSync(ctx context.Context, stream Stream, onMouth func(scale float64)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(framePeriod)
		defer ticker.Stop()
		defer func() {
			if onMouth != nil {
				onMouth(1)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				level := stream.AudioLevel()
				scale := 1 + min(1.4, level*1.4)
				if onMouth != nil {
					onMouth(scale)
				}
			}
		}
	}()
	return cancel
}
