// Package logging provides a simple leveled logging interface for the
// MOV to MP4 converter.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (engine command lines, cleanup)
//   - INFO: General operational messages (job start/finish, startup)
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true.
package logging
