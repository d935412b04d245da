package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var (
	checkLines   bool
	checkPreview bool
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkLines, "lines", false, "Treat each stdin line as a separate message")
	checkCmd.Flags().BoolVar(&checkPreview, "preview", false, "Classify and redact without counting violations")
}

var checkCmd = &cobra.Command{
	Use:   "check [text...]",
	Short: "Moderate a message and print the evaluation as JSON",
	Long: "Evaluates the arguments joined by spaces, or stdin when no arguments\n" +
		"are given. With --lines every stdin line is evaluated in order against\n" +
		"the same user, so escalation can be observed.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	messages, err := checkInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr())
	_, mod, l, err := setup(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer l.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	for _, text := range messages {
		if checkPreview {
			if err := enc.Encode(mod.Preview(text)); err != nil {
				return err
			}
			continue
		}

		eval, err := mod.Evaluate(cmd.Context(), userID, text)
		if eval != nil {
			if encErr := enc.Encode(eval); encErr != nil {
				return encErr
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func checkInput(stdin io.Reader, args []string) ([]string, error) {
	if len(args) > 0 {
		return []string{strings.Join(args, " ")}, nil
	}

	if !checkLines {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return []string{strings.TrimRight(string(data), "\r\n")}, nil
	}

	var out []string
	sc := bufio.NewScanner(stdin)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("no input")
	}
	return out, nil
}
