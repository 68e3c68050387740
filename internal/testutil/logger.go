// Package testutil provides shared test helpers for LanWatch packages.
package testutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// Logger returns a development Zap logger for use in tests.
func Logger() *zap.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		panic("testutil.Logger: " + err.Error())
	}
	return l
}

// ObservedLogger returns a logger that records entries at level debug and
// above, plus the recorder for assertions on what was logged.
func ObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}
