//go:build unix

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

package restart

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// Warm replaces the running image with a fresh copy of the same executable,
// keeping pid, arguments and environment. On success it does not return.
func Warm() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	return unix.Exec(exe, os.Args, nextEnviron(os.Environ()))
}

func nextEnviron(env []string) []string {
	count := 0
	if v, ok := os.LookupEnv(EnvRestartCount); ok {
		if n, err := strconv.Atoi(v); err == nil {
			count = n
		}
	}
	out := make([]string, 0, len(env)+1)
	prefix := EnvRestartCount + "="
	for _, kv := range env {
		if len(kv) >= len(prefix) && kv[:len(prefix)] == prefix {
			continue
		}
		out = append(out, kv)
	}
	return append(out, prefix+strconv.Itoa(count+1))
}
