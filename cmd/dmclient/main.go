// Command dmclient is a terminal client for dm-service.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"dm-service/internal/client"
	"dm-service/internal/clientsync"
	"dm-service/internal/logging"
)

type options struct {
	server   string
	email    string
	signup   string
	chatList string
	open     string
}

func parseFlags(args []string) (options, error) {
	home, _ := os.UserHomeDir()
	opts := options{}

	fs := flag.NewFlagSet("dmclient", flag.ContinueOnError)
	fs.StringVar(&opts.server, "server", "http://localhost:5001", "dm-service base URL")
	fs.StringVar(&opts.email, "email", "", "account email")
	fs.StringVar(&opts.signup, "signup", "", "create the account with this display name before signing in")
	fs.StringVar(&opts.chatList, "chatlist", filepath.Join(home, ".dmclient", "chatted.json"), "chat list file")
	fs.StringVar(&opts.open, "open", "", "user id of the conversation to open on start")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.email == "" {
		return options{}, errors.New("-email is required")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	log := logging.New(os.Stderr, false)
	reader := bufio.NewReader(in)

	password, err := readPassword(in, reader, out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	api, err := client.NewAPI(opts.server)
	if err != nil {
		return err
	}
	if opts.signup != "" {
		if _, err := api.Signup(ctx, opts.signup, opts.email, password); err != nil {
			return fmt.Errorf("signup: %w", err)
		}
	}
	me, err := api.Login(ctx, opts.email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Fprintf(out, "signed in as %s (%s)\n", me.FullName, me.ID)

	syncer, err := clientsync.NewSyncer(me, api, clientsync.NewFileChatList(opts.chatList), log)
	if err != nil {
		return err
	}
	defer syncer.Close()

	stream, err := client.DialStream(ctx, api.BaseURL(), me.ID, api.Jar())
	if err != nil {
		return err
	}
	defer stream.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		err := stream.Run(ctx, func(ctx context.Context, a clientsync.Action) {
			syncer.Dispatch(ctx, a)
			printEvent(out, syncer.State(), a)
		})
		if err != nil {
			log.Warn(ctx, "live stream closed", "err", err)
		}
		cancel()
	}()

	sh := &shell{api: api, syncer: syncer, out: out}
	if opts.open != "" {
		sh.exec(ctx, "/open "+opts.open)
	}
	return sh.loop(ctx, reader)
}

// readPassword reads without echo from a terminal, or one line otherwise.
func readPassword(in io.Reader, reader *bufio.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Enter password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		return string(pw), err
	}
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
