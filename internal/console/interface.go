package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"tab-inspector/internal/entity"
	"tab-inspector/internal/usecase"
	"tab-inspector/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var errExit = errors.New("exit")

// Interface is the interactive command loop on stdin. It shares the
// reporter's writer so prompts and events never interleave mid-line.
type Interface struct {
	logger   *zap.Logger
	usecase  *usecase.Service
	reporter *Reporter
	in       io.Reader

	ctx    context.Context
	cancel context.CancelFunc

	once sync.Once
	quit chan struct{}
}

type Params struct {
	fx.In

	Logger   *zap.Logger
	Usecase  *usecase.Service
	Reporter *Reporter
}

func NewInterface(params Params) *Interface {
	return newInterface(params.Logger, params.Usecase, params.Reporter, os.Stdin)
}

func newInterface(logger *zap.Logger, service *usecase.Service, reporter *Reporter, in io.Reader) *Interface {
	ctx, cancel := context.WithCancel(context.Background())

	return &Interface{
		logger:   logger.With(zap.String(logg.Layer, "Console")),
		usecase:  service,
		reporter: reporter,
		in:       in,
		ctx:      ctx,
		cancel:   cancel,
		quit:     make(chan struct{}),
	}
}

// Start reads commands until quit, end of input or Stop. Only the quit
// command is reported on Quit; a closed stdin just ends the loop.
func (i *Interface) Start() error {
	i.reporter.printf("tab-inspector: type 'help' for commands\n")

	scanner := bufio.NewScanner(i.in)

	for i.ctx.Err() == nil && scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if err := i.handleCommand(input); err != nil {
			if errors.Is(err, errExit) {
				i.once.Do(func() {
					close(i.quit)
				})

				return nil
			}

			i.logger.Debug("Command failed", zap.String("command", input), zap.Error(err))
			i.reporter.printf("error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	if i.ctx.Err() == nil {
		i.logger.Info("Console input closed, commands disabled")
	}

	return nil
}

// Stop cancels in-flight commands. A blocked stdin read is left to the
// process exit.
func (i *Interface) Stop() error {
	i.cancel()

	return nil
}

// Quit is closed when the user asks to stop the application.
func (i *Interface) Quit() <-chan struct{} {
	return i.quit
}

func (i *Interface) handleCommand(input string) error {
	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "help", "h":
		i.printHelp()

		return nil
	case "quit", "exit", "q":
		return errExit
	case "tabs":
		i.printTabs()

		return nil
	case "show":
		return i.show(rest)
	case "snapshot":
		return i.snapshot(rest)
	case "highlight":
		id, selector, _ := strings.Cut(rest, " ")

		return i.highlight(id, strings.TrimSpace(selector))
	case "clear":
		return i.clear(rest)
	case "redraw":
		return i.redraw(rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (i *Interface) printTabs() {
	tabs := i.usecase.Tabs.Tabs()
	if len(tabs) == 0 {
		i.reporter.printf("no tabs tracked\n")

		return
	}

	for _, t := range tabs {
		if selector, color, ok := i.usecase.Highlights.Active(t.ID); ok {
			i.reporter.printf("%s  %s  %s  [%s %s]\n", t.ID, t.URL, t.Title, color, selector)

			continue
		}

		i.reporter.printf("%s  %s  %s\n", t.ID, t.URL, t.Title)
	}
}

func (i *Interface) show(tabID string) error {
	if tabID == "" {
		return errors.New("usage: show <tab-id>")
	}

	snap, ok := i.usecase.Tabs.LatestSnapshot(tabID)
	if !ok {
		return fmt.Errorf("no snapshot for tab %s", tabID)
	}

	i.reporter.printf("%s\n%s\n", snap.URL, snap.DOM)

	return nil
}

func (i *Interface) snapshot(tabID string) error {
	if tabID == "" {
		return errors.New("usage: snapshot <tab-id>")
	}

	snap, err := i.usecase.Tabs.Snapshot(i.ctx, tabID)
	if err != nil {
		return err
	}

	i.reporter.printf("%s\n", snap.DOM)

	return nil
}

func (i *Interface) highlight(tabID, selector string) error {
	if tabID == "" || selector == "" {
		return errors.New("usage: highlight <tab-id> <selector>")
	}

	tab, err := i.tab(tabID)
	if err != nil {
		return err
	}

	res, err := i.usecase.Highlights.Highlight(i.ctx, tab, entity.HighlightRequest{Selector: selector})
	if err != nil {
		return err
	}

	i.reporter.printf("highlighted %d elements in %s\n", res.Matched, res.Color)

	return nil
}

func (i *Interface) clear(tabID string) error {
	if tabID == "" {
		return errors.New("usage: clear <tab-id>")
	}

	tab, err := i.tab(tabID)
	if err != nil {
		return err
	}

	return i.usecase.Highlights.Clear(i.ctx, tab)
}

func (i *Interface) redraw(tabID string) error {
	if tabID == "" {
		return errors.New("usage: redraw <tab-id>")
	}

	tab, err := i.tab(tabID)
	if err != nil {
		return err
	}

	res, err := i.usecase.Highlights.Rehighlight(i.ctx, tab)
	if err != nil {
		return err
	}
	if res == nil {
		i.reporter.printf("nothing highlighted in %s\n", tabID)

		return nil
	}

	i.reporter.printf("highlighted %d elements in %s\n", res.Matched, res.Color)

	return nil
}

func (i *Interface) tab(tabID string) (entity.TabReference, error) {
	tab, ok := i.usecase.Tabs.Tab(tabID)
	if !ok {
		return entity.TabReference{}, fmt.Errorf("tab %s is not tracked", tabID)
	}

	return tab, nil
}

func (i *Interface) printHelp() {
	i.reporter.printf(`
Commands:
  tabs                          list tracked tabs
  show <tab-id>                 print the latest snapshot
  snapshot <tab-id>             take a snapshot now
  highlight <tab-id> <selector> outline elements matching a CSS selector
  clear <tab-id>                remove highlights
  redraw <tab-id>               draw the last highlight again
  help, h                       show this message
  quit, exit, q                 stop
`)
}
