package cnl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Hello is the banner both peers send before any frame.
const Hello = "CANNELLONIv1"

// ErrBadHello reports a peer that opened with something other than Hello.
var ErrBadHello = errors.New("cnl: bad hello")

// Handshake exchanges Hello with the peer on c. Both directions run at once
// since either side may write first. A non-positive timeout leaves the
// connection deadline alone; cancelling ctx aborts the exchange.
func Handshake(ctx context.Context, c net.Conn, timeout time.Duration) error {
	if timeout > 0 {
		if err := c.SetDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("cnl: set deadline: %w", err)
		}
	}
	defer func() { _ = c.SetDeadline(time.Time{}) }()

	// A deadline in the past unblocks whichever half is still pending.
	abort := func() { _ = c.SetDeadline(time.Unix(1, 0)) }
	stop := context.AfterFunc(ctx, abort)
	defer stop()

	errc := make(chan error, 2)
	go func() {
		_, err := io.WriteString(c, Hello)
		errc <- err
	}()
	go func() { errc <- readHello(c) }()

	var first error
	for range 2 {
		if err := <-errc; err != nil && first == nil {
			first = err
			abort()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if first != nil {
		return fmt.Errorf("cnl: handshake: %w", first)
	}
	return nil
}

func readHello(r io.Reader) error {
	buf := make([]byte, len(Hello))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if string(buf) != Hello {
		return fmt.Errorf("%w: %q", ErrBadHello, buf)
	}
	return nil
}
