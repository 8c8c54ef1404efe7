/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package restart implements the process-wide warm restart used when the
// IPC backend escalates a fatal error. No in-memory state survives it.
package restart

import "os"

// ExitCodeFatal is used when an in-place restart is not possible and the
// process has to be restarted by its supervisor instead.
const ExitCodeFatal = 70

// EnvRestartCount is incremented on every warm restart so the new image can
// tell it was restarted.
const EnvRestartCount = "SYSCTRL_IPC_RESTART_COUNT"

// Exit terminates the process with ExitCodeFatal.
func Exit() {
	os.Exit(ExitCodeFatal)
}

// WarmOrExit attempts Warm and falls back to Exit if the image could not be
// replaced. onFail, when set, sees the Warm error before the exit. It never
// returns.
func WarmOrExit(onFail func(error)) {
	if err := Warm(); err != nil && onFail != nil {
		onFail(err)
	}
	Exit()
}
