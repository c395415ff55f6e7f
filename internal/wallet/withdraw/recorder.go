package withdraw

import "time"

// Recorder receives engine and scheduler events, typically for metrics.
type Recorder interface {
	QueueDepth(depth int)
	Decision(decision Decision)
	TickSkipped()
	TickDuration(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) QueueDepth(int)             {}
func (nopRecorder) Decision(Decision)          {}
func (nopRecorder) TickSkipped()               {}
func (nopRecorder) TickDuration(time.Duration) {}
