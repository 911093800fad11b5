// Package mlog is the logging facade shared by store and chunk. It
// mirrors the teacher's "[operation] path: detail" call-site shape
// (backend/sqlite/sqlite_utils.go's fs.Debugf(nil, "[findFile] fullPath: %q", ...))
// over a concrete structured logger instead of rclone's own fs log package,
// which was filtered out of the retrieved tree.
package mlog

import (
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger()

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Debugf logs an operation tagged with the VFS path it concerns.
func Debugf(op, path, format string, args ...any) {
	log.WithField("op", op).WithField("path", path).Debugf(format, args...)
}

// Errorf logs a failed operation tagged with the VFS path it concerns.
func Errorf(op, path, format string, args ...any) {
	log.WithField("op", op).WithField("path", path).Errorf(format, args...)
}

// Infof logs a successful operation, rendering any byte count with
// humanize.Bytes so large pulls are legible at a glance.
func Infof(op, path string, bytes int64) {
	log.WithField("op", op).WithField("path", path).Infof("%s (%s)", op, humanize.Bytes(uint64(bytes)))
}
