package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"sekolahkita/internal/directory"
	"sekolahkita/internal/paging"
)

const help = "enter: more   /text: search   /: clear search   q: quit"

// browser prints the directory list and feeds scroll and search input to the
// paging controller.
type browser struct {
	ctrl  *paging.Controller[directory.Entry, string]
	out   io.Writer
	width int
	shown int
}

func newBrowser(ctrl *paging.Controller[directory.Entry, string], out io.Writer, width int) *browser {
	return &browser{ctrl: ctrl, out: out, width: width}
}

func (b *browser) run(ctx context.Context, in io.Reader, term string) error {
	fmt.Fprintln(b.out, help)
	b.search(ctx, term)

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "q":
			return nil
		case line == "?":
			fmt.Fprintln(b.out, help)
		case strings.HasPrefix(line, "/"):
			b.search(ctx, strings.TrimPrefix(line, "/"))
		default:
			b.more(ctx)
		}
	}
	return sc.Err()
}

func (b *browser) search(ctx context.Context, term string) {
	b.shown = 0
	if term = strings.TrimSpace(term); term != "" {
		fmt.Fprintf(b.out, "-- search %q --\n", term)
	}
	if err := b.ctrl.SetFilter(ctx, term); err != nil {
		fmt.Fprintln(b.out, "error:", err)
	}
	b.render()
}

func (b *browser) more(ctx context.Context) {
	fetched, err := b.ctrl.NearBottom(ctx)
	if err != nil {
		fmt.Fprintln(b.out, "error:", err, "(enter to retry)")
		return
	}
	if !fetched {
		fmt.Fprintln(b.out, "-- end of list --")
		return
	}
	b.render()
}

// render prints the rows loaded since the last render and a status line.
func (b *browser) render() {
	snap := b.ctrl.Snapshot()
	for i := b.shown; i < len(snap.Items); i++ {
		e := snap.Items[i]
		fmt.Fprintln(b.out, b.clip(fmt.Sprintf("%4d  %-10s %-6s %s", i+1, e.NIS, e.Kelas, e.Nama)))
	}
	b.shown = len(snap.Items)
	switch snap.State {
	case paging.Exhausted:
		fmt.Fprintf(b.out, "-- %d students --\n", len(snap.Items))
	case paging.Idle:
		fmt.Fprintf(b.out, "-- %d shown, enter for more --\n", len(snap.Items))
	}
}

func (b *browser) clip(s string) string {
	r := []rune(s)
	if b.width <= 1 || len(r) <= b.width {
		return s
	}
	return string(r[:b.width-1]) + "…"
}
