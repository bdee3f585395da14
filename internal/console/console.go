// Package console is the interactive operator loop: it reads commands,
// feeds them to the engine and renders every turn.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/infra/storage"
	"github.com/MRamiBalles/reactorsim/internal/platform/config"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
	"github.com/MRamiBalles/reactorsim/internal/ui"
)

const (
	historyLines = 15
	storeTimeout = 5 * time.Second
)

// Options wires a console.
type Options struct {
	Engine   *engine.Engine
	Store    storage.Store
	SavePath string
	In       io.Reader
	Out      io.Writer
	Logger   *logger.Logger
}

// Console runs one interactive session.
type Console struct {
	engine   *engine.Engine
	store    storage.Store
	savePath string
	in       io.Reader
	out      io.Writer
	logger   *logger.Logger
	ui       *ui.Console

	highScore int64
	hasHigh   bool
}

// New loads persisted achievements and the high score for the engine's
// difficulty. Store failures are logged and the console carries on.
func New(ctx context.Context, opts Options) *Console {
	c := &Console{
		engine:   opts.Engine,
		store:    opts.Store,
		savePath: opts.SavePath,
		in:       opts.In,
		out:      opts.Out,
		logger:   opts.Logger,
		ui:       ui.NewConsole(opts.Out),
	}

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if ids, err := c.store.Unlocked(sctx); err != nil {
		c.logger.Warn("Could not load achievements", "error", err)
	} else {
		c.engine.PreloadAchievements(ids)
	}
	c.refreshHighScore(sctx)

	c.engine.OnTurn(c.persistAchievements)
	return c
}

func (c *Console) refreshHighScore(ctx context.Context) {
	score, err := c.store.HighScore(ctx, c.engine.Params().Name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.hasHigh = false
	case err != nil:
		c.logger.Warn("Could not load high score", "error", err)
	default:
		c.highScore, c.hasHigh = score, true
	}
}

func (c *Console) persistAchievements(r engine.TurnReport) {
	if len(r.Achievements) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	for _, a := range r.Achievements {
		if _, err := c.store.Unlock(ctx, a.ID, time.Now()); err != nil {
			c.logger.Warn("Could not store achievement", "id", a.ID, "error", err)
		}
	}
}

// Run reads commands until quit, end of input or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	c.render(c.engine.Report())
	fmt.Fprintln(c.out, c.ui.Help(c.engine.Subsystems()))
	for {
		c.prompt()
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			if c.Handle(ctx, line) {
				return nil
			}
		}
	}
}

func (c *Console) prompt() {
	fmt.Fprint(c.out, "> ")
}

// Handle executes one line of input and reports whether the operator quit.
func (c *Console) Handle(ctx context.Context, line string) bool {
	cmd := engine.ParseCommand(line)
	switch cmd.Kind {
	case engine.CmdQuit:
		return true
	case engine.CmdHelp:
		fmt.Fprintln(c.out, c.ui.Help(c.engine.Subsystems()))
		fmt.Fprintln(c.out, c.ui.Achievements(c.engine.Unlocked()))
		return false
	case engine.CmdHistory:
		fmt.Fprintln(c.out, c.ui.History(c.engine.GetEventLog().Replay(), historyLines))
		return false
	case engine.CmdSave:
		if err := c.Save(ctx); err != nil {
			c.notice("Save failed: %v", err)
		} else {
			c.notice("Session saved to %s", c.savePath)
		}
		return false
	case engine.CmdLoad:
		if err := c.Load(ctx); err != nil {
			c.notice("Load failed: %v", err)
			return false
		}
		c.notice("Session loaded")
		c.render(c.engine.LastReport())
		return false
	case engine.CmdNewGame:
		if c.recordScore(ctx) {
			c.notice("New high score: %d", c.highScore)
		}
	}

	r, err := c.engine.Apply(cmd)
	if err != nil {
		c.notice("%v", err)
		return false
	}
	c.render(r)
	return false
}

func (c *Console) notice(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *Console) render(r engine.TurnReport) {
	fmt.Fprintln(c.out, c.ui.Dashboard(r, ui.View{
		Params:     c.engine.Params(),
		Subsystems: c.engine.Subsystems(),
		HighScore:  c.highScore,
		HasHigh:    c.hasHigh,
	}))
}

// Save writes the session to the save file and mirrors it into the store.
// The file is authoritative; a store failure is only logged.
func (c *Console) Save(ctx context.Context) error {
	sess, err := c.engine.Session()
	if err != nil {
		return err
	}
	if err := storage.SaveToFile(c.savePath, sess); err != nil {
		return err
	}

	data, err := storage.EncodeSave(sess)
	if err != nil {
		return err
	}
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := c.store.SaveSession(sctx, storage.DefaultSaveSlot, data); err != nil {
		c.logger.Warn("Could not mirror save into the store", "error", err)
	}
	return nil
}

// Load restores the save file, falling back to the store when the file
// does not exist. A failed load leaves the running game untouched.
func (c *Console) Load(ctx context.Context) error {
	sess, err := storage.LoadFromFile(c.savePath)
	if errors.Is(err, os.ErrNotExist) {
		sctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		data, serr := c.store.LoadSession(sctx, storage.DefaultSaveSlot)
		if errors.Is(serr, storage.ErrNotFound) {
			return fmt.Errorf("no saved session at %s", c.savePath)
		}
		if serr != nil {
			return serr
		}
		sess, err = storage.DecodeSave(data)
	}
	if err != nil {
		return err
	}
	return c.engine.Restore(sess)
}

// recordScore submits the current game's score and reports whether it
// set a new record.
func (c *Console) recordScore(ctx context.Context) bool {
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	score := c.engine.Score()
	ok, err := c.store.SubmitScore(sctx, c.engine.Params().Name, score)
	if err != nil {
		c.logger.Warn("Could not store high score", "error", err)
		return false
	}
	if ok {
		c.highScore, c.hasHigh = score, true
		c.logger.Info("New high score", "difficulty", c.engine.Params().Name, "score", score)
	}
	return ok
}

// Finish records the score and prints the session summary.
func (c *Console) Finish(ctx context.Context) config.Summary {
	record := c.recordScore(ctx)
	summary := c.engine.Summary()
	fmt.Fprintln(c.out, c.ui.Summary(summary, c.engine.Score(), record, config.Recommend(summary)))
	fmt.Fprintln(c.out, c.ui.Achievements(c.engine.Unlocked()))
	return summary
}
