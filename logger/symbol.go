package logger

import "go.uber.org/zap"

// Segment symbols tag a log line with the subsystem that emitted it, so logs
// stay queryable by component; the minimal console encoder prints a logger
// name only in abbreviated form.
//
// Usage:
//
//	logger.WMInfow("window claimed", "class", class)
const (
	SymbolWM        = "⊞" // wm — window manager / X11 session
	SymbolProcess   = "▶" // process — child process supervisor
	SymbolScripting = "λ" // scripting — plugin runtime
	SymbolNotify    = "≈" // notify — notification bus
	SymbolWS        = "⇄" // wsserver — client control plane
)

// WMInfow logs an info message tagged with the window-manager symbol.
func WMInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolWM}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// WMWarnw logs a warning message tagged with the window-manager symbol.
func WMWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolWM}, keysAndValues...)
		Logger.Warnw(msg, fields...)
	}
}

// ProcessInfow logs an info message tagged with the process-supervisor symbol.
func ProcessInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolProcess}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// ProcessWarnw logs a warning message tagged with the process-supervisor symbol.
func ProcessWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolProcess}, keysAndValues...)
		Logger.Warnw(msg, fields...)
	}
}

// ScriptingInfow logs an info message tagged with the scripting-runtime symbol.
func ScriptingInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolScripting}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// ScriptingWarnw logs a warning message tagged with the scripting-runtime symbol.
func ScriptingWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolScripting}, keysAndValues...)
		Logger.Warnw(msg, fields...)
	}
}

// WSInfow logs an info message tagged with the control-plane symbol.
func WSInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolWS}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// WSWarnw logs a warning message tagged with the control-plane symbol.
func WSWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolWS}, keysAndValues...)
		Logger.Warnw(msg, fields...)
	}
}

// WithSymbol returns a logger with the given segment symbol as a field.
func WithSymbol(symbol string) *zap.SugaredLogger {
	return Logger.With(FieldSymbol, symbol)
}
