// Package clip implements the C6 clip extractor: cutting a validated
// sub-range of a capture buffer, re-encoding it for web delivery, and
// producing a best-effort thumbnail plus evenly spaced preview frames.
package clip

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/Riotcoke123/clipper/internal/apierr"
)

var timeRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)

type Extractor struct {
	ffmpegPath string
}

func New() *Extractor {
	return &Extractor{ffmpegPath: "ffmpeg"}
}

func NewWithBinary(path string) *Extractor {
	return &Extractor{ffmpegPath: path}
}

// ValidateRange implements §4.6's extract_clip validation: start_s >= 0,
// duration_s > 0, start_s + duration_s <= maxClipDuration.
func ValidateRange(startS, durationS, maxClipDuration int) error {
	if startS < 0 {
		return apierr.InvalidRangeError("start_s must be non-negative")
	}
	if durationS <= 0 {
		return apierr.InvalidRangeError("duration_s must be positive")
	}
	if startS+durationS > maxClipDuration {
		return apierr.InvalidRangeError(fmt.Sprintf("start_s+duration_s (%d) exceeds max clip duration (%d)", startS+durationS, maxClipDuration))
	}
	return nil
}

// ExtractClip cuts [startS, startS+durationS) from bufferPath, re-encoding
// to H.264/CRF22/medium + AAC 128k with faststart, per §4.6.
func (e *Extractor) ExtractClip(ctx context.Context, bufferPath, outPath string, startS, durationS int, onProgress func(pct int)) error {
	args := []string{
		"-y",
		"-ss", strconv.Itoa(startS),
		"-i", bufferPath,
		"-t", strconv.Itoa(durationS),
		"-c:v", "libx264", "-preset", "medium", "-crf", "22",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		outPath,
	}
	return e.run(ctx, args, durationS, onProgress)
}

// Thumbnail grabs a single frame at atS. Failure is reported to the caller
// but must not fail the surrounding clip job, per §4.6's "best-effort side
// effect".
func (e *Extractor) Thumbnail(ctx context.Context, bufferPath, outPath string, atS int) error {
	args := []string{
		"-y",
		"-ss", strconv.Itoa(atS),
		"-i", bufferPath,
		"-frames:v", "1",
		outPath,
	}
	return e.run(ctx, args, 0, nil)
}

// GeneratePreviews extracts numFrames evenly spaced frames across the full
// buffer (not the sub-range) at a sampling rate of
// 1/floor(maxClipDuration/numFrames) fps, per §4.6.
func (e *Extractor) GeneratePreviews(ctx context.Context, bufferPath, outDir string, numFrames, maxClipDuration int) ([]string, error) {
	if numFrames <= 0 {
		return nil, apierr.InvalidRangeError("num_frames must be positive")
	}
	interval := maxClipDuration / numFrames
	if interval <= 0 {
		interval = 1
	}
	fps := 1.0 / float64(interval)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, apierr.InternalError("create preview directory", err)
	}

	pattern := filepath.Join(outDir, "preview-%03d.jpg")
	args := []string{
		"-y",
		"-i", bufferPath,
		"-vf", fmt.Sprintf("fps=%f", fps),
		"-vframes", strconv.Itoa(numFrames),
		pattern,
	}
	if err := e.run(ctx, args, 0, nil); err != nil {
		return nil, apierr.TranscodeErrorf("generate previews", err)
	}

	var paths []string
	for i := 1; i <= numFrames; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("preview-%03d.jpg", i))
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func (e *Extractor) run(ctx context.Context, args []string, durationS int, onProgress func(pct int)) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return apierr.TranscodeErrorf("open ffmpeg stderr", err)
	}
	if err := cmd.Start(); err != nil {
		return apierr.TranscodeErrorf("start ffmpeg", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if onProgress == nil || durationS <= 0 {
			_, _ = bufio.NewReader(stderr).Discard(1 << 30)
			return
		}
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 64*1024)
		for scanner.Scan() {
			if secs, ok := parseElapsedSeconds(scanner.Text()); ok {
				pct := int(secs * 100 / float64(durationS))
				if pct < 0 {
					pct = 0
				}
				if pct > 100 {
					pct = 100
				}
				onProgress(pct)
			}
		}
	}()

	waitErr := cmd.Wait()
	<-done

	if waitErr != nil {
		return apierr.TranscodeErrorf("ffmpeg failed", waitErr)
	}
	return nil
}

func parseElapsedSeconds(line string) (float64, bool) {
	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	centis, _ := strconv.Atoi(m[4])
	total := time.Duration(h)*time.Hour + time.Duration(min)*time.Minute + time.Duration(s)*time.Second + time.Duration(centis)*10*time.Millisecond
	return total.Seconds(), true
}
