// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package repo

import (
	"go.uber.org/zap"
)

var log = zap.S()

// UpdateLogger picks up the global logger after it has been replaced.
func UpdateLogger() {
	log = zap.S()
}
