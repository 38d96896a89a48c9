// Command directory browses the student directory from a terminal, loading
// further pages as the list is scrolled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"sekolahkita/internal/app"
	"sekolahkita/internal/config"
	"sekolahkita/internal/directory"
	"sekolahkita/internal/logging"
	"sekolahkita/internal/paging"
	"sekolahkita/internal/session"
)

var readPasswordFunc = term.ReadPassword // mockable

func main() {
	email := flag.String("login", "", "sign in as this email; the password is prompted next")
	search := flag.String("q", "", "initial search term")
	flag.Parse()

	cfg := config.Load()
	log := logging.New("error")
	ctx := context.Background()

	backends, err := app.Open(ctx, cfg, nil, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "setup failed:", err)
		os.Exit(1)
	}
	defer backends.Close()

	sess := session.Anonymous
	if *email != "" {
		if sess, err = signIn(ctx, cfg, *email); err != nil {
			fmt.Fprintln(os.Stderr, "sign in failed:", err)
			os.Exit(1)
		}
	}

	svc := directory.NewService(backends.Store, backends.Storage, cfg.PublicBaseURL, logging.Component(log, "directory"))
	b := newBrowser(paging.New[directory.Entry, string](directory.PageSize, svc.Fetcher(sess)), os.Stdout, width())
	if err := b.run(ctx, os.Stdin, *search); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signIn(ctx context.Context, cfg config.App, email string) (session.Session, error) {
	provider, err := app.AuthProvider(cfg)
	if err != nil {
		return session.Session{}, err
	}
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return session.Session{}, err
	}
	sess, _, err := provider.SignIn(ctx, email, string(pwd))
	return sess, err
}

func width() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
