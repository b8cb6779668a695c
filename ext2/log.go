package ext2

import "github.com/sirupsen/logrus"

// baseLogger is the logrus.FieldLogger every MasterRecord derives its
// per-volume *logrus.Entry from. Overriding it with SetLogger rewires
// every subsequently mounted or created volume at once, without
// touching already-mounted volumes.
var baseLogger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the base logger used for volumes mounted or
// created after this call. Useful for routing ext2's structured log
// output into a host application's own logrus instance.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		return
	}
	baseLogger = l
}

func volumeLogger(mountID, volumeName string) *logrus.Entry {
	return baseLogger.WithFields(logrus.Fields{
		"mount_id": mountID,
		"volume":   volumeName,
	})
}

// SetLogger rebuilds m's logger from l, preserving the mount_id/volume
// fields every log line carries. Lets a caller route one specific
// volume's log output somewhere other than the package's base logger,
// e.g. a per-mount file or a test's captured buffer.
func (m *MasterRecord) SetLogger(l logrus.FieldLogger) {
	if l == nil {
		return
	}
	m.log = l.WithFields(logrus.Fields{
		"mount_id": m.MountID.String(),
		"volume":   m.VolumeName,
	})
}
