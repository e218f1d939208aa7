// Package logx configures stacknotify's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - JSON output for Lambda/CloudWatch and log shippers
//   - Optional JSON log file next to either of them
package logx
