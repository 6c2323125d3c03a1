package coordinator

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier writes run notifications to the process log. It is the default
// when no other notifier is wired in.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	log := n.logger.WithFields(logrus.Fields{
		"title":    notification.Title,
		"severity": notification.Severity,
	})

	switch notification.Severity {
	case SeverityError:
		log.Error(notification.Message)
	case SeverityWarning:
		log.Warn(notification.Message)
	default:
		log.Info(notification.Message)
	}

	return nil
}
