package logger

import "go.uber.org/zap"

// Package-level convenience wrappers over the global logger. These keep
// call sites short in packages that log only occasionally.

func Debugw(msg string, keysAndValues ...interface{}) {
	Logger.Debugw(msg, keysAndValues...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	Logger.Infow(msg, keysAndValues...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	Logger.Warnw(msg, keysAndValues...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	Logger.Errorw(msg, keysAndValues...)
}

// ComponentLogger returns a logger pre-tagged with a component field.
// Use at subsystem boundaries (job controller, scheduler, server).
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.With("component", name)
}

// ChildLogger derives a logger from a parent with extra structured fields.
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	if parent == nil {
		parent = Logger
	}
	return parent.With(keysAndValues...)
}
