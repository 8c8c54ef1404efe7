// Package transport selects and builds the channel primitive an endpoint runs
// on. Implementations live in the loopback and seqpacket subpackages.
package transport

import (
	"errors"
	"fmt"

	"github.com/srediag/sysctrl-ipc/api"
	"github.com/srediag/sysctrl-ipc/internal/config"
	"github.com/srediag/sysctrl-ipc/internal/logger"
	"github.com/srediag/sysctrl-ipc/pkg/transport/loopback"
	"github.com/srediag/sysctrl-ipc/pkg/transport/seqpacket"
)

// Pair is a connected couple of transports: Local for the application
// endpoint, Remote for the system controller side.
type Pair struct {
	Local  api.Transport
	Remote api.Transport

	closers []func() error
}

// Close releases both transports
func (p *Pair) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewPair builds the transport kind named in cfg. maxPacket is the endpoint
// packet limit; record based transports size their receive buffers from it so
// every legal payload arrives whole.
func NewPair(cfg config.TransportConfig, maxPacket int, log *logger.Logger) (*Pair, error) {
	switch cfg.Kind {
	case config.TransportLoopback, "":
		lp := loopback.NewPair(cfg.InboxSize, log)
		return &Pair{Local: lp.Local, Remote: lp.Remote, closers: []func() error{lp.Close}}, nil
	case config.TransportSeqpacket:
		local, remote, err := seqpacket.NewPair(maxPacket, log)
		if err != nil {
			return nil, fmt.Errorf("create seqpacket transport: %w", err)
		}
		return &Pair{Local: local, Remote: remote, closers: []func() error{local.Close, remote.Close}}, nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}
