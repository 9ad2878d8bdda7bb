// Package bootstrap ensures the configured model is usable before the
// first request, pulling it through the ollama CLI when the daemon
// reports it missing.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"go.uber.org/zap"
)

// ErrModelUnavailable means the model is absent and could not be pulled.
var ErrModelUnavailable = errors.New("model unavailable")

// ModelProber is the narrow transport surface bootstrap needs.
// *ollama.Client satisfies it.
type ModelProber interface {
	HasModel(ctx context.Context, name string) (bool, error)
}

// Ensure verifies the model is available locally, invoking a single
// `ollama pull` attempt when it is not. Pull progress is streamed to
// progress. No retries beyond the one attempt.
func Ensure(ctx context.Context, prober ModelProber, model string, progress io.Writer, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	ok, err := prober.HasModel(ctx, model)
	if err != nil {
		return fmt.Errorf("model probe failed: %w", err)
	}
	if ok {
		log.Debug("model present", zap.String("model", model))
		return nil
	}

	cli, err := exec.LookPath("ollama")
	if err != nil {
		fmt.Fprintln(progress, "'ollama' CLI not found in PATH.")
		fmt.Fprintln(progress, "Install Ollama and ensure the daemon is running: https://ollama.com")
		return fmt.Errorf("%w: ollama CLI not found", ErrModelUnavailable)
	}

	fmt.Fprintf(progress, "Pulling model %q via ollama... This may take a while on first run.\n", model)
	log.Info("pulling model", zap.String("model", model), zap.String("cli", cli))

	cmd := exec.CommandContext(ctx, cli, "pull", model)
	cmd.Stdout = progress
	cmd.Stderr = progress
	if err := cmd.Run(); err != nil {
		fmt.Fprintln(progress, "Failed to pull model via the ollama CLI. You can pull manually:")
		fmt.Fprintf(progress, "  ollama pull %s\n", model)
		return fmt.Errorf("%w: pull failed: %v", ErrModelUnavailable, err)
	}
	return nil
}
