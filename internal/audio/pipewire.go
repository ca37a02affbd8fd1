package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// PipeWireDevice captures through a pw-record subprocess.
type PipeWireDevice struct {
	config  Config
	command string

	mu     sync.Mutex // guards cmd and cancel
	cmd    *exec.Cmd
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// NewPipeWireDevice returns a pw-record backed device.
func NewPipeWireDevice(config Config) *PipeWireDevice {
	return &PipeWireDevice{config: config, command: "pw-record"}
}

func (d *PipeWireDevice) Start(deliver func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return fmt.Errorf("already recording")
	}

	if d.command == "pw-record" {
		if err := CheckPipeWireAvailable(context.Background()); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, d.command, d.buildArgs()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", d.command, err)
	}

	d.cmd = cmd
	d.cancel = cancel

	// Log stderr lines to aid diagnostics.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Printf("Recording stderr: %s", scanner.Text())
		}
	}()

	d.wg.Add(1)
	go d.readLoop(ctx, stdout, deliver)
	return nil
}

func (d *PipeWireDevice) readLoop(ctx context.Context, stdout io.Reader, deliver func([]byte)) {
	defer d.wg.Done()

	buffer := make([]byte, d.config.ChunkBytes())
	for {
		n, err := io.ReadFull(stdout, buffer)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			deliver(chunk)
		}
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				log.Printf("Recording error: read audio: %v", err)
			}
			return
		}
	}
}

// Stop kills pw-record and waits for the reader to finish.
func (d *PipeWireDevice) Stop() error {
	d.mu.Lock()
	cmd, cancel := d.cmd, d.cancel
	d.cmd, d.cancel = nil, nil
	d.mu.Unlock()

	if cmd == nil {
		return nil
	}
	cancel()
	d.wg.Wait()
	// reap the child; a killed process reports an error we do not care about
	_ = cmd.Wait()
	return nil
}

func (d *PipeWireDevice) buildArgs() []string {
	args := []string{
		"--format", "s16",
		"--rate", strconv.Itoa(d.config.SampleRate),
		"--channels", strconv.Itoa(d.config.Channels),
	}
	if d.config.Device != "" {
		args = append(args, "--target", d.config.Device)
	}
	return append(args, "-") // stdout
}

// CheckPipeWireAvailable verifies pw-record exists and PipeWire responds.
func CheckPipeWireAvailable(ctx context.Context) error {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}
	// Use a short timeout to avoid hangs on misconfigured systems.
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := exec.CommandContext(checkCtx, "pw-cli", "info").Run(); err != nil {
		return fmt.Errorf("PipeWire not running or accessible: %w", err)
	}
	return nil
}
