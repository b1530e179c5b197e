package policy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// CLIPrompter asks a human to approve a pending Request by printing a
// summary and reading a yes/no line from an io.Reader, the same
// bufio.NewReader(os.Stdin) pattern cmd/nexus/handlers_setup.go uses for its
// interactive setup prompts (and internal/channel.CLI uses for message
// input), now used for an approval decision instead of free text.
type CLIPrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewCLIPrompter constructs a CLIPrompter reading from r and writing
// prompts to w.
func NewCLIPrompter(r io.Reader, w io.Writer) *CLIPrompter {
	return &CLIPrompter{reader: bufio.NewReader(r), writer: w}
}

// Prompt implements Prompter. It blocks on the next line from the reader;
// ctx cancellation is only observed between characters is not possible with
// bufio.Reader, so a cancelled ctx is checked before printing the prompt and
// returns DecisionDenied immediately without blocking on input that will
// never arrive.
//
// "a"/"always" answers allowed with remember_session=true; "y"/"yes" answers
// allowed for this call only. Anything else denies. This is a single
// compound answer rather than two separate prompts because a denial makes
// the remember question moot, matching cmd/nexus/handlers_setup.go's
// one-line-per-decision prompt style.
func (p *CLIPrompter) Prompt(ctx context.Context, req *Request) (Decision, bool, error) {
	if err := ctx.Err(); err != nil {
		return DecisionDenied, false, err
	}

	fmt.Fprintf(p.writer, "\napproval required: tool=%s action=%s reason=%s\n", req.ToolName, req.Action, req.Reason)
	fmt.Fprintf(p.writer, "allow this call? [y]es / [N]o / [a]lways for this session: ")

	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return DecisionDenied, false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "a", "always":
		return DecisionAllowed, true, nil
	case "y", "yes":
		return DecisionAllowed, false, nil
	default:
		return DecisionDenied, false, nil
	}
}
