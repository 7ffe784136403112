package importer

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/garyellow/lullabot-go/internal/bot"
	"github.com/garyellow/lullabot-go/internal/storage"
)

// UserLister lists workspace members. *slackapp.Client implements it.
type UserLister interface {
	ListUsers(ctx context.Context) ([]bot.User, error)
}

// KarmaStore is implemented by *storage.KarmaRepository.
type KarmaStore interface {
	Merge(ctx context.Context, team string, scores map[string]int) error
}

// FactoidStore is implemented by *storage.FactoidRepository.
type FactoidStore interface {
	Merge(ctx context.Context, team string, facts []storage.Fact) error
}

// Options controls a single import.
type Options struct {
	Team   string
	DryRun bool // parse and resolve, but do not write
}

// Karma imports a karma export into opts.Team and returns the resolved
// scores. The user list is fetched while the file is parsed.
func Karma(ctx context.Context, r io.Reader, users UserLister, store KarmaStore, opts Options) (map[string]int, error) {
	var (
		raw     map[string]int
		members []bot.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		raw, err = ParseKarma(r)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = users.ListUsers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scores := KarmaScores(raw, NewDirectory(members))
	if opts.DryRun {
		return scores, nil
	}
	if err := store.Merge(ctx, opts.Team, scores); err != nil {
		return nil, fmt.Errorf("importer: save karma: %w", err)
	}
	return scores, nil
}

// Factoids imports a factoid export into opts.Team and returns the facts
// written.
func Factoids(ctx context.Context, r io.Reader, users UserLister, store FactoidStore, opts Options) ([]storage.Fact, error) {
	var (
		rows    []FactoidRow
		members []bot.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = ParseFactoids(r)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = users.ListUsers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	facts := Facts(rows, NewDirectory(members))
	if opts.DryRun {
		return facts, nil
	}
	if err := store.Merge(ctx, opts.Team, facts); err != nil {
		return nil, fmt.Errorf("importer: save factoids: %w", err)
	}
	return facts, nil
}
