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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/srediag/sysctrl-ipc/pkg/types"
)

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func (s *ConfigTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ConfigTestSuite) writeFile(name, body string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(body), 0o644))
	return path
}

func (s *ConfigTestSuite) TestDefaultsAreValid() {
	cfg, err := Load("")
	s.Require().NoError(err)
	s.Equal(DefaultEndpointName, cfg.Endpoint.Name)
	s.Equal(DefaultMaxPacketSize, cfg.Endpoint.MaxPacketSize)
	s.Equal(DefaultQueueCapacity, cfg.Endpoint.QueueCapacity)
	s.Equal(TransportLoopback, cfg.Transport.Kind)
}

func (s *ConfigTestSuite) TestPartialFileGetsDefaults() {
	path := s.writeFile("ipc.yaml", `
endpoint:
  queue_capacity: 4
  max_packet_size: 64
  connect_timeout: 250ms
transport:
  kind: seqpacket
`)
	cfg, err := Load(path)
	s.Require().NoError(err)
	s.Equal(4, cfg.Endpoint.QueueCapacity)
	s.Equal(64, cfg.Endpoint.MaxPacketSize)
	s.Equal(250*time.Millisecond, cfg.Endpoint.ConnectTimeout)
	s.Equal(TransportSeqpacket, cfg.Transport.Kind)
	s.Equal(DefaultEndpointName, cfg.Endpoint.Name)
	s.Equal(DefaultLogLevel, cfg.Logging.Level)
	s.Equal(DefaultInboxSize, cfg.Transport.InboxSize)
}

func (s *ConfigTestSuite) TestInterpolation() {
	s.T().Setenv("IPC_TEST_NAME", "ipc_to_radio")
	path := s.writeFile("ipc.yml", `
endpoint:
  name: ${IPC_TEST_NAME}
admin:
  address: ${IPC_TEST_ADDR:-127.0.0.1:9999}
`)
	cfg, err := Load(path)
	s.Require().NoError(err)
	s.Equal("ipc_to_radio", cfg.Endpoint.Name)
	s.Equal("127.0.0.1:9999", cfg.Admin.Address)
}

func (s *ConfigTestSuite) TestEnvOverrides() {
	s.T().Setenv(EnvQueueCapacity, "8")
	s.T().Setenv(EnvMaxPacketSize, "128")
	s.T().Setenv(EnvChannelID, "3")
	s.T().Setenv(EnvTransportKind, TransportSeqpacket)

	cfg, err := Load("")
	s.Require().NoError(err)
	s.Equal(8, cfg.Endpoint.QueueCapacity)
	s.Equal(128, cfg.Endpoint.MaxPacketSize)
	s.Equal(uint32(3), cfg.Endpoint.ChannelID)
	s.Equal(TransportSeqpacket, cfg.Transport.Kind)
}

func (s *ConfigTestSuite) TestBadEnvOverride() {
	s.T().Setenv(EnvQueueCapacity, "many")
	_, err := Load("")
	s.Require().Error(err)
	s.True(types.IsErrCode(err, types.ErrCodeInvalidArgument))
}

func (s *ConfigTestSuite) TestValidate() {
	cfg := Default()
	cfg.Endpoint.QueueCapacity = 0
	s.Error(cfg.Validate())

	cfg = Default()
	cfg.Endpoint.MaxPacketSize = -1
	s.Error(cfg.Validate())

	cfg = Default()
	cfg.Transport.Kind = "smoke-signals"
	s.Error(cfg.Validate())

	cfg = Default()
	cfg.Logging.Level = "loud"
	s.Error(cfg.Validate())

	cfg = Default()
	cfg.Admin.Address = ""
	s.Error(cfg.Validate())
	cfg.Metrics.Enabled = false
	cfg.Health.Enabled = false
	s.NoError(cfg.Validate())
}

func (s *ConfigTestSuite) TestFileErrors() {
	_, err := LoadFromFile(filepath.Join(s.dir, "missing.yaml"))
	s.True(types.IsErrCode(err, types.ErrCodeNotFound))

	_, err = LoadFromFile(s.writeFile("ipc.json", "{}"))
	s.True(types.IsErrCode(err, types.ErrCodeInvalidArgument))

	_, err = LoadFromFile(s.writeFile("empty.yaml", "   \n"))
	s.True(types.IsErrCode(err, types.ErrCodeInvalidArgument))

	_, err = LoadFromFile(s.writeFile("bad.yaml", "endpoint:\n  queue_capacity: lots\n"))
	s.True(types.IsErrCode(err, types.ErrCodeInvalidArgument))
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
