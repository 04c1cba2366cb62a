package probe

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/streamlens/streamlens/internal/core"
)

// ICMPProber sends echo requests over unprivileged ICMP sockets. It needs
// either root or net.ipv4.ping_group_range to cover the process group; the
// PingProber remains the portable fallback.
type ICMPProber struct {
	Count   int
	Timeout time.Duration
}

// NewICMPProber builds a socket-based prober.
func NewICMPProber(count int, timeout time.Duration) *ICMPProber {
	if count < 1 {
		count = 1
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &ICMPProber{Count: count, Timeout: timeout}
}

// Probe issues Count sequential echo requests and returns one sample per
// reply received. Missing individual replies are tolerated; an error is
// returned only when no reply arrived at all.
func (p *ICMPProber) Probe(ctx context.Context, endpoint core.Endpoint) ([]float64, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: prober is nil", ErrExecution)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	network := "udp4"
	listenAddr := "0.0.0.0"
	echoType := icmp.Type(ipv4.ICMPTypeEcho)
	replyProto := 1 // iana.ProtocolICMP
	if endpoint.Family == core.FamilyIPv6 {
		network = "udp6"
		listenAddr = "::"
		echoType = ipv6.ICMPTypeEchoRequest
		replyProto = 58 // iana.ProtocolIPv6ICMP
	}

	conn, err := icmp.ListenPacket(network, listenAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: open icmp socket: %v", ErrExecution, err)
	}
	defer conn.Close() // nolint:errcheck // best-effort cleanup on socket

	dst := &net.UDPAddr{IP: net.ParseIP(endpoint.Address)}
	if dst.IP == nil {
		return nil, fmt.Errorf("%w: not an IP literal: %s", ErrExecution, endpoint.Address)
	}

	id := os.Getpid() & 0xffff
	perSample := p.Timeout / time.Duration(p.Count)
	if perSample <= 0 {
		perSample = p.Timeout
	}

	samples := make([]float64, 0, p.Count)
	buf := make([]byte, 1500)

	for seq := 1; seq <= p.Count; seq++ {
		if err := ctx.Err(); err != nil {
			break
		}

		msg := icmp.Message{
			Type: echoType,
			Body: &icmp.Echo{ID: id, Seq: seq, Data: []byte("streamlens")},
		}
		payload, err := msg.Marshal(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal echo: %v", ErrExecution, err)
		}

		start := time.Now()
		if _, err := conn.WriteTo(payload, dst); err != nil {
			continue
		}

		deadline := start.Add(perSample)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("%w: set deadline: %v", ErrExecution, err)
		}

		if rtt, ok := p.awaitReply(conn, buf, replyProto, id, seq, start); ok {
			samples = append(samples, rtt)
		}
	}

	if err := ctx.Err(); err == context.DeadlineExceeded && len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTimeout, endpoint.Address)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no echo replies from %s", ErrTimeout, endpoint.Address)
	}
	return samples, nil
}

func (p *ICMPProber) awaitReply(conn *icmp.PacketConn, buf []byte, proto, id, seq int, start time.Time) (float64, bool) {
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return 0, false
		}
		rtt := time.Since(start)

		msg, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			continue
		}
		echo, ok := msg.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			// Stray reply from an earlier sequence; keep reading until
			// the deadline fires.
			continue
		}
		// Unprivileged sockets rewrite the echo ID, so only the sequence
		// number is matched.
		_ = id
		return float64(rtt.Microseconds()) / 1000.0, true
	}
}
