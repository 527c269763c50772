// Package logger provides structured logging built on zerolog.
//
// A global logger is initialized once from config at startup; components
// derive tagged child loggers via WithComponent and WithInterview so every
// line of a pipeline run can be traced back to its interview.
package logger
