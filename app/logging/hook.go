package logging

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/logging"
	log "github.com/sirupsen/logrus"
)

const DefaultLogID = "quota"

type (
	// CloudHook forwards logrus entries to Google Cloud Logging.
	CloudHook struct {
		client *logging.Client
		logger entryLogger
		levels []log.Level
	}

	// entryLogger is implemented by *logging.Logger.
	entryLogger interface {
		Log(logging.Entry)
		LogSync(context.Context, logging.Entry) error
		Flush() error
	}
)

const syncTimeout = 5 * time.Second

var _ log.Hook = (*CloudHook)(nil)

func NewCloudHook(ctx context.Context, projectID, logID string, level log.Level) (*CloudHook, error) {
	c, err := logging.NewClient(ctx, "projects/"+projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloud logging client: %w", err)
	}

	if logID == "" {
		logID = DefaultLogID
	}

	return &CloudHook{
		client: c,
		logger: c.Logger(logID),
		levels: levelsFrom(level),
	}, nil
}

func (h *CloudHook) Levels() []log.Level { return h.levels }

// Fire buffers the entry. Fatal and panic entries are written synchronously
// since the process exits right after the hooks ran.
func (h *CloudHook) Fire(e *log.Entry) error {
	entry := logging.Entry{
		Timestamp: e.Time,
		Severity:  Severity(e.Level),
		Payload:   payload(e),
	}

	if e.Level > log.FatalLevel {
		h.logger.Log(entry)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	if err := h.logger.LogSync(ctx, entry); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}

	return nil
}

func (h *CloudHook) Close() {
	_ = h.logger.Flush()

	if h.client != nil {
		_ = h.client.Close()
	}
}

func Severity(l log.Level) logging.Severity {
	switch l {
	case log.TraceLevel, log.DebugLevel:
		return logging.Debug
	case log.InfoLevel:
		return logging.Info
	case log.WarnLevel:
		return logging.Warning
	case log.ErrorLevel:
		return logging.Error
	case log.FatalLevel:
		return logging.Critical
	case log.PanicLevel:
		return logging.Alert
	}

	return logging.Default
}

func payload(e *log.Entry) map[string]interface{} {
	p := make(map[string]interface{}, len(e.Data)+1)

	for k, v := range e.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}

		p[k] = v
	}

	p["message"] = e.Message

	return p
}

func levelsFrom(level log.Level) []log.Level {
	var levels []log.Level

	for _, l := range log.AllLevels {
		if l <= level {
			levels = append(levels, l)
		}
	}

	return levels
}
