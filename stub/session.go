// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stub

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/beevik/gdbstub/rsp"
	"github.com/google/uuid"
)

const readBufferSize = 4096

// A session services one debugger connection.
type session struct {
	stub    *Stub
	conn    net.Conn
	log     *slog.Logger
	dec     *rsp.Decoder
	noAck   bool
	waiting bool   // a stop reply is owed to the client
	last    []byte // last frame sent, for retransmission
	done    bool
}

// ServeConn runs a debugger session over conn until the client detaches,
// the connection fails or ctx is done. The connection is closed on return.
// When the session ends, pending halt and step requests are cleared and
// the disconnect policy is applied; the breakpoint registry is kept.
func (s *Stub) ServeConn(ctx context.Context, conn net.Conn) error {
	id := uuid.New()
	ss := &session{
		stub: s,
		conn: conn,
		log:  s.log.With("session", id.String()),
		dec:  rsp.NewDecoder(s.maxPacketSize),
	}

	s.Reset()
	ss.log.Info("debugger connected", "remote", conn.RemoteAddr())

	err := ss.run(ctx)
	conn.Close()

	s.Reset()
	if !s.haltOnDetach {
		s.Continue()
	}

	if err != nil {
		ss.log.Info("debugger disconnected", "err", err)
	} else {
		ss.log.Info("debugger disconnected")
	}
	return err
}

func (ss *session) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan []byte)
	errc := make(chan error, 1)
	go ss.read(ctx, in, errc)

	for !ss.done {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errc:
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err

		case b := <-in:
			ss.dec.Feed(b)
			if err := ss.drain(); err != nil {
				return err
			}

		case stop := <-ss.stub.traps:
			if !ss.waiting {
				ss.log.Debug("stop reply dropped", "reply", stop)
				continue
			}
			ss.waiting = false
			if err := ss.send(stop); err != nil {
				return err
			}
		}
	}
	return nil
}

// read copies bytes from the connection to the in channel until the
// connection fails or ctx is done.
func (ss *session) read(ctx context.Context, in chan<- []byte, errc chan<- error) {
	go func() {
		<-ctx.Done()
		ss.conn.Close()
	}()

	for {
		buf := make([]byte, readBufferSize)
		n, err := ss.conn.Read(buf)
		if n > 0 {
			select {
			case in <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errc <- err
			return
		}
	}
}

// drain handles every complete packet in the decoder.
func (ss *session) drain() error {
	for !ss.done {
		p := ss.dec.Next()
		switch p.Kind {
		case rsp.NeedMoreData:
			return nil

		case rsp.Ack:
			ss.last = nil

		case rsp.Nack:
			if ss.last != nil {
				ss.log.Debug("retransmit", "frame", string(ss.last))
				if _, err := ss.conn.Write(ss.last); err != nil {
					return err
				}
			}

		case rsp.Interrupt:
			ss.log.Debug("interrupt")
			ss.stub.mu.Lock()
			if ss.stub.requestHaltLocked() {
				ss.waiting = true
			}
			ss.stub.mu.Unlock()

		case rsp.Malformed:
			ss.log.Warn("malformed packet", "err", p.Err)
			if errors.Is(p.Err, rsp.ErrNoise) || ss.noAck {
				continue
			}
			if _, err := ss.conn.Write([]byte{rsp.NackByte}); err != nil {
				return err
			}

		case rsp.Command:
			if err := ss.command(p.Payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ss *session) command(payload []byte) error {
	ss.log.Debug("packet", "payload", string(payload))
	if !ss.noAck {
		if _, err := ss.conn.Write([]byte{rsp.AckByte}); err != nil {
			return err
		}
	}

	res := ss.stub.dispatch(payload)
	switch {
	case res.kill:
		ss.done = true
		return nil
	case res.deferred:
		ss.waiting = true
		return nil
	}

	if err := ss.send(res.reply); err != nil {
		return err
	}
	if res.noAck {
		ss.noAck = true
		ss.last = nil
	}
	if res.detach {
		ss.done = true
	}
	return nil
}

func (ss *session) send(payload string) error {
	frame := rsp.Encode([]byte(payload))
	ss.log.Debug("reply", "payload", payload)
	if !ss.noAck {
		ss.last = frame
	}
	_, err := ss.conn.Write(frame)
	return err
}
