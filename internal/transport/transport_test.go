// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

package transport

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"

	"github.com/netseam/tlstream/internal/net/spipe"
)

func TestAcquireIsExclusive(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	ca, cb := spipe.Pipe()
	defer func() {
		_ = ca.Close()
		_ = cb.Close()
	}()

	adapter := Wrap(ca)
	session, err := adapter.Acquire()
	if err != nil {
		t.Fatal(err)
	}

	if _, err = adapter.Acquire(); !errors.Is(err, ErrOwned) {
		t.Fatalf("second acquire = %v, want ErrOwned", err)
	}
	if _, err = adapter.Read(make([]byte, 1)); !errors.Is(err, ErrOwned) {
		t.Fatalf("unowned read on owned transport = %v, want ErrOwned", err)
	}
	if _, err = adapter.Write([]byte("x")); !errors.Is(err, ErrOwned) {
		t.Fatalf("unowned write on owned transport = %v, want ErrOwned", err)
	}

	session.Release()
	if _, err = adapter.Acquire(); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestAcquireWhileBusy(t *testing.T) {
	lim := test.TimeOut(time.Second * 10)
	defer lim.Stop()

	report := test.CheckRoutines(t)
	defer report()

	ca, cb := spipe.Pipe()
	defer func() {
		_ = ca.Close()
		_ = cb.Close()
	}()

	adapter := Wrap(ca)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 4)
		_, _ = adapter.Read(buf)
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := adapter.Acquire(); !errors.Is(err, ErrBusy) {
		t.Fatalf("acquire with outstanding read = %v, want ErrBusy", err)
	}

	if _, err := cb.Write([]byte("done")); err != nil {
		t.Fatal(err)
	}
	<-readDone

	if _, err := adapter.Acquire(); err != nil {
		t.Fatalf("acquire after read settled: %v", err)
	}
}

// An uncoordinated read and an ownership claim issued at the same
// time must never both succeed: either the read observes the new
// owner and backs off, or the claim observes the outstanding read.
// Data is written only once both calls are in flight, so a read that
// returns bytes was provably outstanding when Acquire decided.
func TestAcquireReadRace(t *testing.T) {
	lim := test.TimeOut(time.Second * 30)
	defer lim.Stop()

	report := test.CheckRoutines(t)
	defer report()

	for i := 0; i < 500; i++ {
		ca, cb := spipe.Pipe()
		adapter := Wrap(ca)

		start := make(chan struct{})
		readErr := make(chan error, 1)
		go func() {
			<-start
			_, err := adapter.Read(make([]byte, 4))
			readErr <- err
		}()
		acqErr := make(chan error, 1)
		go func() {
			<-start
			_, err := adapter.Acquire()
			acqErr <- err
		}()
		close(start)

		aerr := <-acqErr
		if _, err := cb.Write([]byte("data")); err != nil {
			t.Fatal(err)
		}
		rerr := <-readErr

		if aerr == nil && rerr == nil {
			t.Fatalf("iteration %d: ownership granted while an uncoordinated read was outstanding", i)
		}

		_ = ca.Close()
		_ = cb.Close()
	}
}

func TestConcurrentReadsRejected(t *testing.T) {
	lim := test.TimeOut(time.Second * 10)
	defer lim.Stop()

	report := test.CheckRoutines(t)
	defer report()

	ca, cb := spipe.Pipe()
	defer func() {
		_ = ca.Close()
		_ = cb.Close()
	}()

	adapter := Wrap(ca)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_, _ = adapter.Read(make([]byte, 4))
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := adapter.Read(make([]byte, 4)); !errors.Is(err, ErrBusy) {
		t.Fatalf("overlapping read = %v, want ErrBusy", err)
	}

	if _, err := cb.Write([]byte("done")); err != nil {
		t.Fatal(err)
	}
	<-readDone
}

func TestZeroLengthFastPath(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	ca, cb := spipe.Pipe()
	defer func() {
		_ = ca.Close()
		_ = cb.Close()
	}()

	adapter := Wrap(ca)
	if n, err := adapter.Read(nil); n != 0 || err != nil {
		t.Errorf("zero-length read: got (%d, %v)", n, err)
	}
	if n, err := adapter.Write(nil); n != 0 || err != nil {
		t.Errorf("zero-length write: got (%d, %v)", n, err)
	}
}

func TestCloseInterruptsRead(t *testing.T) {
	lim := test.TimeOut(time.Second * 10)
	defer lim.Stop()

	report := test.CheckRoutines(t)
	defer report()

	ca, cb := spipe.Pipe()
	defer func() {
		_ = cb.Close()
	}()

	adapter := Wrap(ca)

	readErr := make(chan error, 1)
	go func() {
		_, err := adapter.Read(make([]byte, 4))
		readErr <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := adapter.Close(); err != nil {
		t.Fatal(err)
	}
	if err := adapter.Close(); err != nil {
		t.Fatalf("repeated close: %v", err)
	}

	if err := <-readErr; !errors.Is(err, ErrClosed) {
		t.Fatalf("interrupted read = %v, want ErrClosed", err)
	}
	if _, err := adapter.Read(make([]byte, 4)); !errors.Is(err, ErrClosed) {
		t.Fatalf("read after close = %v, want ErrClosed", err)
	}
	if _, err := adapter.Write([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("write after close = %v, want ErrClosed", err)
	}
}

func TestSawEOF(t *testing.T) {
	lim := test.TimeOut(time.Second * 10)
	defer lim.Stop()

	report := test.CheckRoutines(t)
	defer report()

	ca, cb := spipe.Pipe()
	defer func() {
		_ = ca.Close()
	}()

	adapter := Wrap(ca)
	if adapter.SawEOF() {
		t.Fatal("fresh adapter must not report end of stream")
	}

	if _, err := cb.Write([]byte("last")); err != nil {
		t.Fatal(err)
	}
	if err := cb.Close(); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 16)
	n, err := adapter.Read(buf)
	if err != nil || string(buf[:n]) != "last" {
		t.Fatalf("draining read: (%q, %v)", buf[:n], err)
	}
	if adapter.SawEOF() {
		t.Fatal("end of stream reported before it was observed")
	}

	if _, err = adapter.Read(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("read at end of stream = %v, want io.EOF", err)
	}
	if !adapter.SawEOF() {
		t.Fatal("end of stream was observed but not reported")
	}
}

func TestSessionHalfClose(t *testing.T) {
	lim := test.TimeOut(time.Second * 10)
	defer lim.Stop()

	report := test.CheckRoutines(t)
	defer report()

	ca, cb := spipe.Pipe()
	defer func() {
		_ = cb.Close()
	}()

	adapter := Wrap(ca)
	defer func() {
		_ = adapter.Close()
	}()

	session, err := adapter.Acquire()
	if err != nil {
		t.Fatal(err)
	}

	if _, err = session.Write([]byte("parting")); err != nil {
		t.Fatal(err)
	}
	if err = session.CloseWrite(); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 16)
	n, err := cb.Read(buf)
	if err != nil || string(buf[:n]) != "parting" {
		t.Fatalf("peer read: (%q, %v)", buf[:n], err)
	}
	if _, err = cb.Read(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("peer read after half-close = %v, want io.EOF", err)
	}

	// The inbound direction is still open.
	if _, err = cb.Write([]byte("reply")); err != nil {
		t.Fatal(err)
	}
	n, err = session.Read(buf)
	if err != nil || string(buf[:n]) != "reply" {
		t.Fatalf("session read: (%q, %v)", buf[:n], err)
	}
}
