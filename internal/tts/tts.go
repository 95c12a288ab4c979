// Package tts defines the spoken-output contract and a speaker that
// pipes text to an external synthesis command.
package tts

import (
	"context"
	"os/exec"
	"strings"

	"github.com/animus-ai/animus/internal/observability"
)

// Outcome is the result of a speak attempt.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeError       Outcome = "error"
)

// Speaker voices a reply. Implementations must respect ctx cancellation
// and report OutcomeInterrupted when cut off.
type Speaker interface {
	Speak(ctx context.Context, text string) (Outcome, error)
}

// NopSpeaker discards all output; used when speech is disabled.
type NopSpeaker struct{}

func (NopSpeaker) Speak(context.Context, string) (Outcome, error) { return OutcomeCompleted, nil }

// CommandSpeaker pipes the text to an external command's stdin (for
// example piper or espeak-ng driving the audio device).
type CommandSpeaker struct {
	Command string
	Args    []string
	Logger  *observability.Logger
}

// NewCommandSpeaker creates a speaker running the given command per
// utterance.
func NewCommandSpeaker(command string, args []string, log *observability.Logger) *CommandSpeaker {
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &CommandSpeaker{Command: command, Args: args, Logger: log}
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) (Outcome, error) {
	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Stdin = strings.NewReader(text)

	err := cmd.Run()
	switch {
	case ctx.Err() != nil:
		return OutcomeInterrupted, ctx.Err()
	case err != nil:
		s.Logger.Warn(ctx, "tts command failed", "command", s.Command, "error", err)
		return OutcomeError, err
	}
	return OutcomeCompleted, nil
}
