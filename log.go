// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.9.21
//

package celltrack

import "github.com/sirupsen/logrus"

// logger receives the boundary warnings named in the error-handling
// design: a dropped ill-formed observation, a degenerate innovation
// covariance, a batch estimator falling back to centroid. It never
// influences an observable result; a caller that wants silence can
// install a discard logger with SetLogger.
var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger overrides the package-level logger, e.g. to route warnings
// into an application's own logrus instance or field set.
func SetLogger(l logrus.FieldLogger) {
	logger = l
}

func logWarnf(format string, args ...any) {
	logger.Warnf(format, args...)
}
