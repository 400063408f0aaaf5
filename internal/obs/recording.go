package obs

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

type outputStatus struct {
	OutputActive bool `json:"outputActive"`
}

// ClipResult is the reply of createClip.
type ClipResult struct {
	Success    bool   `json:"success"`
	Duration   int    `json:"duration,omitempty"`
	Directory  string `json:"directory,omitempty"`
	OutputPath string `json:"outputPath,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ReplayResult is the reply of the replay buffer operations.
type ReplayResult struct {
	Success        bool   `json:"success"`
	Status         string `json:"status,omitempty"`
	BufferDuration int    `json:"bufferDuration,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Replay and clip reasons.
const (
	ReasonAlreadyRecording    = "already_recording"
	ReasonReplayInactive      = "replay_buffer_inactive"
	ReplayStatusAlreadyActive = "already_active"
	ReplayStatusStarted       = "started"
)

func (c *Controller) clipLength(units int) (int, error) {
	if units == 0 {
		units = c.cfg.DefaultClip
	}
	if units < 0 || units > c.cfg.MaxClip {
		return 0, fmt.Errorf("%w: duration must be between 1 and %d", domain.ErrInvalidArgument, c.cfg.MaxClip)
	}
	return units, nil
}

// CreateClip records for the given number of seconds unless a recording is
// already running. It blocks for the whole clip.
func (c *Controller) CreateClip(ctx context.Context, seconds int) (ClipResult, error) {
	seconds, err := c.clipLength(seconds)
	if err != nil {
		return ClipResult{}, err
	}
	if err := c.guard.EnsureConnected(ctx); err != nil {
		return ClipResult{}, err
	}

	var status outputStatus
	if err := c.call(ctx, "GetRecordStatus", nil, &status); err != nil {
		return ClipResult{}, err
	}
	if status.OutputActive {
		c.logger.Info("recording already running, clip skipped")
		return ClipResult{Success: false, Reason: ReasonAlreadyRecording}, nil
	}

	if err := c.call(ctx, "StartRecord", nil, nil); err != nil {
		return ClipResult{}, err
	}
	c.logger.Info("clip recording started", ports.Int("seconds", seconds))

	waitErr := sleepCtx(ctx, time.Duration(seconds)*c.cfg.Unit)

	// The recording must stop even when the caller went away.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	var stopped struct {
		OutputPath string `json:"outputPath"`
	}
	if err := c.call(stopCtx, "StopRecord", nil, &stopped); err != nil {
		return ClipResult{}, err
	}
	if waitErr != nil {
		return ClipResult{}, fmt.Errorf("clip interrupted: %w", waitErr)
	}

	var dir struct {
		RecordDirectory string `json:"recordDirectory"`
	}
	if err := c.call(ctx, "GetRecordDirectory", nil, &dir); err != nil {
		return ClipResult{}, err
	}
	c.logger.Info("clip created", ports.Int("seconds", seconds), ports.String("path", stopped.OutputPath))
	return ClipResult{
		Success:    true,
		Duration:   seconds,
		Directory:  dir.RecordDirectory,
		OutputPath: stopped.OutputPath,
	}, nil
}

// SetupReplayBuffer starts the replay buffer and, after the given number of
// seconds, saves it and stops it again.
func (c *Controller) SetupReplayBuffer(ctx context.Context, seconds int) (ReplayResult, error) {
	seconds, err := c.clipLength(seconds)
	if err != nil {
		return ReplayResult{}, err
	}
	if err := c.guard.EnsureConnected(ctx); err != nil {
		return ReplayResult{}, err
	}

	var status outputStatus
	if err := c.call(ctx, "GetReplayBufferStatus", nil, &status); err != nil {
		return ReplayResult{}, err
	}
	if status.OutputActive {
		return ReplayResult{Success: true, Status: ReplayStatusAlreadyActive}, nil
	}
	if err := c.call(ctx, "StartReplayBuffer", nil, nil); err != nil {
		return ReplayResult{}, err
	}
	c.logger.Info("replay buffer started", ports.Int("seconds", seconds))

	window := time.Duration(seconds) * c.cfg.Unit
	c.background(func(bg context.Context) {
		if err := sleepCtx(bg, window); err != nil {
			return
		}
		if err := c.call(bg, "SaveReplayBuffer", nil, nil); err != nil {
			c.logger.Warn("replay buffer save failed", ports.Err(err))
		}
		if err := c.call(bg, "StopReplayBuffer", nil, nil); err != nil {
			c.logger.Warn("replay buffer stop failed", ports.Err(err))
			return
		}
		c.logger.Info("replay buffer saved and stopped")
	})

	return ReplayResult{Success: true, Status: ReplayStatusStarted, BufferDuration: seconds}, nil
}

// SaveReplayBuffer saves the running replay buffer.
func (c *Controller) SaveReplayBuffer(ctx context.Context) (ReplayResult, error) {
	if err := c.guard.EnsureConnected(ctx); err != nil {
		return ReplayResult{}, err
	}
	var status outputStatus
	if err := c.call(ctx, "GetReplayBufferStatus", nil, &status); err != nil {
		return ReplayResult{}, err
	}
	if !status.OutputActive {
		return ReplayResult{Success: false, Reason: ReasonReplayInactive}, nil
	}
	if err := c.call(ctx, "SaveReplayBuffer", nil, nil); err != nil {
		return ReplayResult{}, err
	}
	return ReplayResult{Success: true, Timestamp: time.Now().UTC().Format(time.RFC3339)}, nil
}

// StopReplayBuffer stops the replay buffer.
func (c *Controller) StopReplayBuffer(ctx context.Context) (ReplayResult, error) {
	if _, err := c.Request(ctx, "StopReplayBuffer", nil); err != nil {
		return ReplayResult{}, err
	}
	return ReplayResult{Success: true}, nil
}
