package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HomerJax/SKV-Strich-App/app/balance"
	"github.com/HomerJax/SKV-Strich-App/app/event"
	"github.com/HomerJax/SKV-Strich-App/app/store"
)

// Bot is a command to run discord bot.
type Bot struct {
	CommonOpts
	Token          string        `long:"token"           env:"TOKEN"           description:"Discord bot token"`
	AdminIDs       []string      `long:"admin-id"        env:"ADMIN_IDS"       description:"Admin discords IDs" env-delim:","`
	StoreLocation  string        `long:"loc"             env:"LOCATION"        description:"Store location" default:"skv.db"`
	HandlerTimeout time.Duration `long:"handler-timeout" env:"HANDLER_TIMEOUT" description:"Timeout of a single command" default:"5s"`
	Trials         int           `long:"trials"          env:"TRIALS"          description:"Balancer trials per team roll" default:"1200"`
}

// Execute runs the command.
func (b Bot) Execute([]string) error {
	s, err := store.New(b.StoreLocation)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer s.Close()

	if b.Trials <= 0 {
		b.Trials = balance.DefaultTrials
	}

	disc := &event.Discord{
		Token:          b.Token,
		AdminIDs:       b.AdminIDs,
		Service:        store.NewService(s),
		HandlerTimeout: b.HandlerTimeout,
		Trials:         b.Trials,
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	go func() { // catch signal and invoke graceful termination
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		sig := <-stop
		log.Printf("[WARN] caught signal: %s", sig)
		cancel(fmt.Errorf("caught signal: %s", sig))
	}()

	ewg, ctx := errgroup.WithContext(ctx)
	ewg.Go(func() error {
		log.Printf("[INFO] starting bot, version %s", b.Version)
		return disc.Run(ctx)
	})
	ewg.Go(func() error {
		<-ctx.Done()
		log.Printf("[INFO] stopping bot")
		return nil
	})

	if err := ewg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
