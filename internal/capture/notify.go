package capture

import "github.com/pwnholic/slidecap/internal"

// Notifier surfaces the outcome of each trigger to the user.
type Notifier interface {
	CaptureSucceeded(name string)
	CaptureFailed(err error)
	FinalizeSucceeded(filename string, size int)
	FinalizeFailed(err error)
}

// LogNotifier reports through the leveled logger.
type LogNotifier struct {
	log *internal.Logger
}

func NewLogNotifier(l *internal.Logger) *LogNotifier {
	return &LogNotifier{log: l}
}

func (n *LogNotifier) CaptureSucceeded(name string) {
	n.log.Success("captured %s", name)
}

func (n *LogNotifier) CaptureFailed(err error) {
	n.log.Error("capture failed: %v", err)
}

func (n *LogNotifier) FinalizeSucceeded(filename string, size int) {
	n.log.Success("%s ready (%d bytes)", filename, size)
}

func (n *LogNotifier) FinalizeFailed(err error) {
	n.log.Error("download failed: %v", err)
}
