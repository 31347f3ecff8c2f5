// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components receive a child logger tagged with their name:
//
//	logger := logging.NewOrNop(logging.Config{Level: "info"})
//	wmLog := logger.Component("window")
//	wmLog.Info("window opened", zap.String("app_id", "subjects"))
package logging
