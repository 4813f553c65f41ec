// Command tinymmo-probe is a headless client for exercising a running server.
//
// Each simulated client sends input at a fixed rate following a button
// pattern, reads the server's frames and prints a summary when done.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/marmos91/tinymmo/internal/logger"
	"github.com/marmos91/tinymmo/internal/protocol/wire"
	"github.com/marmos91/tinymmo/internal/ratelimiter"
)

type result struct {
	id        int
	sent      uint32
	received  uint64
	reordered uint64
	lastSeq   uint32
	sounds    uint64
	music     int8
	frame     wire.Video
}

func main() {
	addr := flag.String("addr", "127.0.0.1:6502", "Server address")
	clients := flag.Int("clients", 1, "Number of simulated clients")
	rate := flag.Uint("rate", 20, "Inputs per second per client")
	duration := flag.Duration("duration", 10*time.Second, "How long to run (0 = until interrupted)")
	pattern := flag.String("pattern", "walk", "Button pattern: idle, walk, paint")
	render := flag.Bool("render", false, "Print the last frame received by each client")
	logLevel := flag.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	logger.SetLevel(*logLevel)

	if *rate == 0 || *clients <= 0 {
		fmt.Fprintln(os.Stderr, "--rate and --clients must be positive")
		os.Exit(2)
	}

	buttons, ok := patterns[*pattern]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown pattern %q\n", *pattern)
		os.Exit(2)
	}

	raddr, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid address %s: %v\n", *addr, err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	logger.Info("Probing %s with %d client(s) at %d inputs/s", raddr, *clients, *rate)

	results := make([]*result, *clients)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := runClient(ctx, i, raddr, *rate, buttons)
			if err != nil {
				logger.Error("Client %d: %v", i, err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	failed := false
	for _, res := range results {
		if res == nil {
			failed = true
			continue
		}
		fmt.Printf("client %d: sent=%d received=%d reordered=%d last_seq=%d sounds=%d music=%d\n",
			res.id, res.sent, res.received, res.reordered, res.lastSeq, res.sounds, res.music)
		if *render {
			fmt.Print(renderFrame(&res.frame))
		}
		if res.received == 0 {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// patterns map a 1-based input sequence to a button mask. Buttons are
// released on every other input so presses register as edges.
var patterns = map[string]func(seq uint32) uint8{
	"idle": func(seq uint32) uint8 { return 0 },
	"walk": func(seq uint32) uint8 {
		if seq%2 == 0 {
			return 0
		}
		dirs := [...]uint8{wire.ButtonRight, wire.ButtonDown, wire.ButtonLeft, wire.ButtonUp}
		return dirs[(seq/8)%4]
	},
	"paint": func(seq uint32) uint8 {
		switch seq % 4 {
		case 1:
			return wire.ButtonRight
		case 3:
			return wire.ButtonA
		default:
			return 0
		}
	},
}

func runClient(ctx context.Context, id int, raddr *net.UDPAddr, rate uint, buttons func(uint32) uint8) (*result, error) {
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	res := &result{id: id, music: wire.MusicNone}
	var mu sync.Mutex

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		readFrames(ctx, conn, res, &mu)
	}()

	limiter := ratelimiter.New(rate, 1)
	buf := make([]byte, wire.InputSize)
	for seq := uint32(1); ; seq++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		datagram, err := wire.EncodeInput(buf, wire.Input{Sequence: seq, Buttons: buttons(seq)})
		if err != nil {
			return nil, err
		}
		if _, err := conn.Write(datagram); err != nil {
			logger.Debug("Client %d: send failed: %v", id, err)
			continue
		}
		mu.Lock()
		res.sent = seq
		mu.Unlock()
	}

	<-readDone
	return res, nil
}

func readFrames(ctx context.Context, conn *net.UDPConn, res *result, mu *sync.Mutex) {
	buf := make([]byte, wire.MaxDatagramSize)
	for ctx.Err() == nil {
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			// ICMP port unreachable surfaces here while the server is down.
			logger.Debug("Read failed: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		out, err := wire.DecodeOutput(buf[:n])
		if err != nil {
			logger.Debug("Ignoring %d-byte datagram: %v", n, err)
			continue
		}

		mu.Lock()
		res.received++
		if out.Sequence <= res.lastSeq {
			res.reordered++
		} else {
			res.lastSeq = out.Sequence
			res.frame = out.Video
			res.music = out.Music
		}
		for bits := out.Audio; bits != 0; bits &= bits - 1 {
			res.sounds++
		}
		mu.Unlock()
	}
}

func renderFrame(v *wire.Video) string {
	var b strings.Builder
	for _, row := range v {
		for _, tile := range row {
			switch tile {
			case 0:
				b.WriteByte('.')
			case 1:
				b.WriteByte('#')
			case 2:
				b.WriteByte('o')
			case 3:
				b.WriteByte('@')
			default:
				b.WriteByte('?')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
