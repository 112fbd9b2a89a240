package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"timed-quiz/internal/app"
	"timed-quiz/internal/config"
	"timed-quiz/internal/domain"
	"timed-quiz/internal/logger"
)

// NewPlayCmd runs a single quiz session in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the quiz in the terminal (a-d to answer, n next, r restart/retry, q quit)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), *configPath, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runPlay(ctx context.Context, configPath string, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// logs would interleave with the quiz; only enable them on request
	log := zap.NewNop()
	if os.Getenv("QUIZ_DEBUG") != "" {
		if log, err = logger.New(cfg.Env); err != nil {
			return err
		}
	}

	d, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = d.close() }()

	service := app.NewQuizService(d.sessions, d.loader, log, app.WithQuestionSeconds(cfg.Quiz.QuestionSeconds))
	defer func() { _ = service.Shutdown(context.Background()) }()
	return playSession(ctx, service, in, out)
}

// playSession drives one session from line-oriented input until the user quits.
func playSession(ctx context.Context, service *app.QuizService, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	id, updates, cancel, err := openPlay(ctx, service)
	if err != nil {
		return err
	}
	defer func() { cancel() }()

	var (
		current app.View
		lastKey string
	)
	for {
		// hold input until the questions are in, so early keys are not dropped
		input := lines
		if current.Phase == "" || current.Phase == domain.PhaseLoading {
			input = nil
		}

		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-updates:
			if !ok {
				return nil
			}
			current = v
			if key := viewKey(v); key != lastKey {
				lastKey = key
				renderView(out, v)
			}
		case line, ok := <-input:
			if !ok || line == "q" {
				return nil
			}
			switch {
			case line == "n":
				err = service.Advance(ctx, id)
			case line == "r" && current.Phase == domain.PhaseError:
				cancel()
				closeCtx, done := context.WithTimeout(ctx, closeTimeout)
				err = service.Close(closeCtx, id)
				done()
				if err != nil {
					return err
				}
				if id, updates, cancel, err = openPlay(ctx, service); err != nil {
					return err
				}
				current, lastKey = app.View{}, ""
			case line == "r":
				err = service.Restart(ctx, id)
			default:
				var choice domain.Choice
				if choice, err = domain.ParseChoice(line); err == nil {
					err = service.Select(ctx, id, choice)
				}
			}
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				err = nil
			}
		}
	}
}

const closeTimeout = 5 * time.Second

func openPlay(ctx context.Context, service *app.QuizService) (string, <-chan app.View, func(), error) {
	id, err := service.StartSession(ctx)
	if err != nil {
		return "", nil, nil, errors.Wrap(err, "start session")
	}
	updates, cancel, err := service.Subscribe(ctx, id)
	if err != nil {
		return "", nil, nil, errors.Wrap(err, "subscribe")
	}
	return id, updates, cancel, nil
}

// viewKey changes only when something worth re-printing changes, not on every tick.
func viewKey(v app.View) string {
	if v.Question == nil {
		return string(v.Phase)
	}
	selected := ""
	for _, o := range v.Question.Options {
		if o.Selected {
			selected = string(o.Label)
		}
	}
	return fmt.Sprintf("%s|%d|%s|%t|%t", v.Phase, v.Question.Number, selected, v.Question.Locked, v.Question.Urgent)
}

func renderView(w io.Writer, v app.View) {
	switch {
	case v.Loading != nil:
		fmt.Fprintf(w, "Loading Quiz\n%s\n", v.Loading.Message)
	case v.Error != nil:
		fmt.Fprintf(w, "Error Loading Quiz\n%s\n[r] Retry  [q] Quit\n", v.Error.Message)
	case v.Result != nil:
		fmt.Fprintf(w, "Quiz Complete!\n%d/%d\nYou scored %d%%\n[r] Restart Quiz  [q] Quit\n", v.Result.Score, v.Result.Total, v.Result.Percent)
	case v.Question != nil:
		q := v.Question
		fmt.Fprintf(w, "\n%s  [%ds]\n%s\n", q.Progress, q.TimeLeft, q.Text)
		for _, o := range q.Options {
			marker := " "
			if o.Selected {
				marker = ">"
			}
			fmt.Fprintf(w, "%s %s. %s\n", marker, o.Label, o.Text)
		}
		if q.Banner != "" {
			fmt.Fprintln(w, q.Banner)
		}
		if q.CanAdvance {
			fmt.Fprintf(w, "[n] %s\n", q.AdvanceLabel)
		}
	}
}
