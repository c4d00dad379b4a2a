// Package logx wraps zerolog behind a small structured Logger with
// functional field options and a Service that can swap sinks/levels
// at runtime (config hot reload).
package logx
