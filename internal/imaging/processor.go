package imaging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"
)

// Processor runs the external restoration step over an uploaded file.
type Processor interface {
	Restore(ctx context.Context, src, dst string) error
}

// CommandProcessor shells out to a restoration binary, e.g.
// RESTORE_CMD="gfpgan --upscale 2". The source and destination paths are
// appended as the last two arguments.
type CommandProcessor struct {
	Command string
	Args    []string
}

func NewCommandProcessor(cmdline string) (*CommandProcessor, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, fmt.Errorf("restore command is empty")
	}
	return &CommandProcessor{Command: fields[0], Args: fields[1:]}, nil
}

func (p *CommandProcessor) Restore(ctx context.Context, src, dst string) error {
	args := make([]string, 0, len(p.Args)+2)
	args = append(args, p.Args...)
	args = append(args, src, dst)

	cmd := exec.CommandContext(ctx, p.Command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("restore command: %w: %s", err, out)
	}
	return nil
}

// HashFileName derives a short stable name for stored files so uploads with
// the same original name collide deterministically instead of leaking user
// file names into the static dir.
func HashFileName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}
