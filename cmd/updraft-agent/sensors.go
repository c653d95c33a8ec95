// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"log/slog"

	"github.com/updraft-systems/updraft/lib/transport"
)

// sensorHandler returns the data-plane handler. Payloads that parse as
// JSON are logged as structured readings; anything else is logged raw.
// The handler never fails: the data plane has no business interrupting
// the process over a malformed message.
func sensorHandler(logger *slog.Logger) transport.Handler {
	return func(topic string, payload []byte) {
		var reading map[string]any
		if err := json.Unmarshal(payload, &reading); err != nil {
			logger.Info("sensor message", "topic", topic, "payload", string(payload))
			return
		}
		logger.Info("sensor reading", "topic", topic, "reading", reading)
	}
}
