// Package logger wraps zap for the whole binary:
//   - a global sugared logger writing a console encoding to stdout,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing and runtime level changes,
//   - context-first helpers such as InfoKV and ErrorKV.
//
// Components take a context and log through it, so the control loop, the
// notification workers and the telemetry servers each carry a named logger.
package logger
