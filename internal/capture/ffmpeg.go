package capture

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/frame"
	"github.com/third-eye-sec/thirdeye/internal/logging"
)

const bgrChannels = 3

// FFmpegSource reads raw BGR24 frames from an ffmpeg process decoding the
// configured camera device or stream URL. BGR matches the channel order
// the vision layer expects.
type FFmpegSource struct {
	settings conf.CaptureSettings
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	stdout   io.ReadCloser
	stderr   *boundedBuffer
	buf      []byte
	done     chan error
}

// NewFFmpegSource creates a source for the given capture settings.
func NewFFmpegSource(settings conf.CaptureSettings) *FFmpegSource {
	return &FFmpegSource{
		settings: settings,
		buf:      make([]byte, settings.Width*settings.Height*bgrChannels),
	}
}

// Open starts the ffmpeg process and wires up the raw video pipe.
func (s *FFmpegSource) Open(ctx context.Context) error {
	args := []string{
		"-loglevel", "error",
		"-hide_banner",
	}
	if strings.HasPrefix(s.settings.Source, "rtsp://") {
		args = append(args, "-rtsp_transport", "tcp")
	}
	args = append(args,
		"-i", s.settings.Source,
		"-an", // no audio
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-vf", fmt.Sprintf("scale=%d:%d", s.settings.Width, s.settings.Height),
		"pipe:1",
	)
	return s.openWithArgs(ctx, args)
}

// openWithArgs starts the capture binary with explicit arguments. Split out
// from Open so tests can run a plain byte producer through the same pipe
// plumbing.
func (s *FFmpegSource) openWithArgs(ctx context.Context, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	cmd := exec.CommandContext(ctx, s.settings.FfmpegPath, args...)

	s.stderr = newBoundedBuffer(4096)
	cmd.Stderr = s.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("creating ffmpeg pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("starting ffmpeg for %s: %w", s.settings.Source, err)
	}
	logging.Info("capture started", "source", s.settings.Source,
		"width", s.settings.Width, "height", s.settings.Height)

	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if err != nil && !strings.Contains(err.Error(), "signal: killed") {
			if msg := s.stderr.String(); msg != "" {
				err = fmt.Errorf("%w\nstderr: %s", err, msg)
			}
			logging.Warn("ffmpeg exited", "source", s.settings.Source, "error", err)
		}
		done <- err
	}()

	s.cmd = cmd
	s.stdout = stdout
	s.done = done
	return nil
}

// Read blocks until a full frame has arrived on the pipe.
func (s *FFmpegSource) Read() (*frame.Frame, error) {
	if s.stdout == nil {
		return nil, fmt.Errorf("capture source is not open")
	}
	if _, err := io.ReadFull(s.stdout, s.buf); err != nil {
		return nil, fmt.Errorf("reading frame from ffmpeg: %w", err)
	}
	f, err := frame.FromBytes(s.settings.Width, s.settings.Height, s.buf, time.Now())
	if err != nil {
		return nil, fmt.Errorf("building frame: %w", err)
	}
	logging.Trace("frame read", "source", s.settings.Source)
	return f, nil
}

// Close stops the ffmpeg process and waits for it to exit.
func (s *FFmpegSource) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	if s.done != nil {
		select {
		case <-s.done:
		case <-time.After(5 * time.Second):
			return fmt.Errorf("timeout waiting for ffmpeg to exit")
		}
	}
	return nil
}
