// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// =============================================================================
// AUDIO PLAYER
// =============================================================================

// ErrNoPlayer indicates no usable audio player was found.
var ErrNoPlayer = errors.New("no audio player available")

// Player plays PCM audio through an external system player. Only one
// clip plays at a time; starting a new one stops the current playback.
type Player struct {
	// Command overrides the platform default player. The WAV path is
	// appended as the final argument.
	Command string

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	tmpFile string
}

// playerCommand returns the platform player command and base arguments.
func playerCommand(wavPath string) (string, []string, error) {
	switch runtime.GOOS {
	case "darwin":
		return "afplay", []string{wavPath}, nil
	case "linux":
		if _, err := exec.LookPath("aplay"); err == nil {
			return "aplay", []string{"-q", wavPath}, nil
		}
		if _, err := exec.LookPath("paplay"); err == nil {
			return "paplay", []string{wavPath}, nil
		}
		return "", nil, ErrNoPlayer
	case "windows":
		script := fmt.Sprintf("(New-Object Media.SoundPlayer '%s').PlaySync()", wavPath)
		return "powershell", []string{"-NoProfile", "-Command", script}, nil
	default:
		return "", nil, ErrNoPlayer
	}
}

// Play writes pcm to a temporary WAV file and plays it. Any playback in
// progress is stopped first. Play does not block on completion.
func (p *Player) Play(pcm []byte) error {
	p.Stop()

	tmp, err := os.CreateTemp("", "queryquant-speech-*.wav")
	if err != nil {
		return fmt.Errorf("failed to create temp audio file: %w", err)
	}
	if err := WriteWAV(tmp, pcm); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	var name string
	var args []string
	if p.Command != "" {
		fields := strings.Fields(p.Command)
		name = fields[0]
		args = append(fields[1:], tmp.Name())
	} else {
		name, args, err = playerCommand(tmp.Name())
		if err != nil {
			os.Remove(tmp.Name())
			return err
		}
	}

	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to start player: %w", err)
	}

	done := make(chan struct{})

	p.mu.Lock()
	p.cmd = cmd
	p.done = done
	p.tmpFile = tmp.Name()
	p.mu.Unlock()

	// Reap the process and clean up the temp file when playback ends.
	go func() {
		cmd.Wait()
		close(done)
		p.mu.Lock()
		if p.cmd == cmd {
			p.cmd = nil
			os.Remove(p.tmpFile)
			p.tmpFile = ""
		}
		p.mu.Unlock()
	}()

	return nil
}

// PlaySync plays pcm and blocks until playback finishes.
func (p *Player) PlaySync(pcm []byte) error {
	if err := p.Play(pcm); err != nil {
		return err
	}

	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
	return nil
}

// Stop halts any current playback and removes its temp file.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.cmd = nil
	if p.tmpFile != "" {
		os.Remove(p.tmpFile)
		p.tmpFile = ""
	}
}
