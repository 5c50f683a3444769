// SPDX-License-Identifier: MPL-2.0

package watch

import "errors"

// isFatalFsnotifyError reports whether err means the kernel ran out of watch
// or descriptor resources. The errno list is platform specific.
func isFatalFsnotifyError(err error) bool {
	for _, errno := range fatalErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
