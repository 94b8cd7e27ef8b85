package tasks

import (
	"github.com/ThreeDotsLabs/watermill"
	log "github.com/sirupsen/logrus"
)

// logrusAdapter bridges watermill's logger interface onto the logrus logger
// used everywhere else, so router and handler output lands in one stream.
type logrusAdapter struct {
	fields log.Fields
}

// NewLoggerAdapter returns a watermill.LoggerAdapter backed by logrus.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return &logrusAdapter{fields: log.Fields{}}
}

func (a *logrusAdapter) entry(fields watermill.LogFields) *log.Entry {
	e := log.WithFields(a.fields)
	for k, v := range fields {
		e = e.WithField(k, v)
	}
	return e
}

func (a *logrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.entry(fields).WithError(err).Error(msg)
}

func (a *logrusAdapter) Info(msg string, fields watermill.LogFields) {
	a.entry(fields).Info(msg)
}

func (a *logrusAdapter) Debug(msg string, fields watermill.LogFields) {
	a.entry(fields).Debug(msg)
}

func (a *logrusAdapter) Trace(msg string, fields watermill.LogFields) {
	a.entry(fields).Trace(msg)
}

func (a *logrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(log.Fields, len(a.fields)+len(fields))
	for k, v := range a.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &logrusAdapter{fields: merged}
}
