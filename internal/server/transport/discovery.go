package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dmitrijs2005/chatrelay/internal/logging"
	"github.com/dmitrijs2005/chatrelay/internal/protocol"
	"github.com/dmitrijs2005/chatrelay/internal/server/config"
)

// Discovery answers LAN probes on a UDP multicast group so clients can find
// the broker without configuration. The exchange is plain text and carries
// no secrets.
type Discovery struct {
	addr   string
	logger logging.Logger
}

func NewDiscovery(cfg *config.Config, l logging.Logger) *Discovery {
	return &Discovery{
		addr:   cfg.DiscoveryAddr,
		logger: l.With("module", "discovery"),
	}
}

// Run joins the multicast group and answers probes until ctx is canceled.
func (d *Discovery) Run(ctx context.Context) error {
	group, err := net.ResolveUDPAddr("udp4", d.addr)
	if err != nil {
		return fmt.Errorf("error resolving discovery address: %w", err)
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return fmt.Errorf("error joining multicast group: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	d.logger.Info(ctx, "discovery listening", "addr", d.addr)

	buf := make([]byte, 64)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if shuttingDown(ctx, err) {
				d.logger.Info(ctx, "discovery stopped")
				return nil
			}
			// A transient datagram error must not take the broker down.
			d.logger.Warn(ctx, "discovery read failed", "error", err)
			continue
		}

		reply, ok := probeReply(buf[:n])
		if !ok {
			continue
		}

		if _, err := conn.WriteToUDP(reply, src); err != nil {
			d.logger.Debug(ctx, "discovery reply failed", "remote", src.String(), "error", err)
		}
	}
}

// shuttingDown reports whether a read error means the responder is being
// stopped rather than hitting a transient socket error.
func shuttingDown(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, net.ErrClosed)
}

// probeReply validates one datagram and returns the reply to send. Anything
// other than an exact probe is ignored.
func probeReply(payload []byte) ([]byte, bool) {
	if !bytes.Equal(payload, []byte(protocol.DiscoveryProbe)) {
		return nil, false
	}
	return []byte(protocol.DiscoveryReply), true
}
