// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mint

import (
	"fmt"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// NotificationCallback is used for a caller to provide a callback for
// notifications about various mint events.
type NotificationCallback func(*Notification)

// Constants for the type of a notification message.
const (
	// NTOutputFinalized indicates an output received its blind signature.
	NTOutputFinalized NotificationType = iota
	// NTOutputFailed indicates an output could not be signed.
	NTOutputFailed
	// NTNoteRedeemed indicates a note was spent.
	NTNoteRedeemed
	// NTBackupStored indicates a user backup was replaced.
	NTBackupStored
	// NTBatchApplied indicates a batch was committed.
	NTBatchApplied
)

// notificationTypeStrings is a map of notification types back to their constant
// names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTOutputFinalized: "NTOutputFinalized",
	NTOutputFailed:    "NTOutputFailed",
	NTNoteRedeemed:    "NTNoteRedeemed",
	NTBackupStored:    "NTBackupStored",
	NTBatchApplied:    "NTBatchApplied",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// Notification defines notification that is sent to the caller via the callback
// function provided during the call to Subscribe and consists of a notification type
// as well as associated data that depends on the type as follows:
//   - NTOutputFinalized:  *OutcomeNotification
//   - NTOutputFailed:     *OutcomeNotification
//   - NTNoteRedeemed:     RedeemNote
//   - NTBackupStored:     types.BackupID
//   - NTBatchApplied:     *BatchResult
type Notification struct {
	Type NotificationType
	Data interface{}
}

// Subscribe to mint notifications. Registers a callback to be executed
// when various events take place. Notifications are only sent for state
// that has been committed.
func (m *Mint) Subscribe(callback NotificationCallback) {
	m.notificationsLock.Lock()
	m.notifications = append(m.notifications, callback)
	m.notificationsLock.Unlock()
}

// sendNotification sends a notification with the passed type and data to
// every subscriber.
func (m *Mint) sendNotification(typ NotificationType, data interface{}) {
	n := Notification{Type: typ, Data: data}
	m.notificationsLock.RLock()
	for _, callback := range m.notifications {
		go callback(&n)
	}
	m.notificationsLock.RUnlock()
}
