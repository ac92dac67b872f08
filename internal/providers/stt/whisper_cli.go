package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// WhisperCLI runs the openai-whisper command line tool, which needs ffmpeg
// on PATH. One process loads the model per call, so it is not concurrency safe.
type WhisperCLI struct {
	bin   string
	model string
}

type whisperOut struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		End float64 `json:"end"`
	} `json:"segments"`
}

func NewWhisperCLI(bin, model string) (*WhisperCLI, error) {
	if bin == "" {
		bin = "whisper"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("whisper binary %q not found: %w", bin, err)
	}
	return &WhisperCLI{bin: path, model: model}, nil
}

func (w *WhisperCLI) Name() string  { return "whisper" }
func (w *WhisperCLI) Model() string { return w.model }
func (w *WhisperCLI) Close() error  { return nil }

func (w *WhisperCLI) Transcribe(ctx context.Context, a Audio) (*Result, error) {
	dir, err := os.MkdirTemp("", "scribe-whisper-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, filepath.Base(a.Filename))
	if err := spool(input, a.Reader); err != nil {
		return nil, fmt.Errorf("spool audio: %w", err)
	}

	args := []string{
		input,
		"--model", w.model,
		"--output_format", "json",
		"--output_dir", dir,
		"--verbose", "False",
		"--fp16", "False",
	}
	if a.Language != "" {
		args = append(args, "--language", a.Language)
	}

	cmd := exec.CommandContext(ctx, w.bin, args...)
	cmd.Env = os.Environ()
	if _, err := cmd.Output(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("whisper failed: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("run whisper: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	raw, err := os.ReadFile(filepath.Join(dir, stem+".json"))
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	var out whisperOut
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	res := &Result{Text: strings.TrimSpace(out.Text), Language: out.Language}
	if n := len(out.Segments); n > 0 {
		res.Duration = time.Duration(out.Segments[n-1].End * float64(time.Second))
	}
	return res, nil
}

func spool(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
