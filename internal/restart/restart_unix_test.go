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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextEnvironIncrementsCount(t *testing.T) {
	t.Setenv(EnvRestartCount, "2")
	env := nextEnviron([]string{"HOME=/root", EnvRestartCount + "=2"})
	assert.Equal(t, []string{"HOME=/root", EnvRestartCount + "=3"}, env)
}

func TestNextEnvironStartsAtOne(t *testing.T) {
	t.Setenv(EnvRestartCount, "")
	env := nextEnviron([]string{"PATH=/bin"})
	assert.Equal(t, []string{"PATH=/bin", EnvRestartCount + "=1"}, env)
}
