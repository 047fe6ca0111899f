// Command annotate resolves document identities and edits a document's
// highlights on a running annotation server.
//
// Usage:
//
//	annotate id ./paper.pdf
//	annotate id https://arxiv.org/pdf/2203.11115
//	annotate list -doc ./paper.pdf
//	annotate add -doc ./paper.pdf -page 3 -text "key result" -comment "check this"
//	annotate comment -doc ./paper.pdf -id <highlight id> -text "revised"
//	annotate delete -doc ./paper.pdf -id <highlight id>
//
// The server defaults to $ANNOTATE_SERVER or http://localhost:5000.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdf-annotation-sync/internal/client"
	"pdf-annotation-sync/internal/domain"
	"pdf-annotation-sync/internal/identity"
	"pdf-annotation-sync/internal/selection"
	"pdf-annotation-sync/pkg/logger"

	"github.com/joho/godotenv"
)

const defaultServer = "http://localhost:5000"

func main() {
	_ = godotenv.Load()

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("annotate: %v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: annotate <id|list|add|comment|delete> [flags]")
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	server := fs.String("server", envOr("ANNOTATE_SERVER", defaultServer), "annotation server base URL")
	doc := fs.String("doc", "", "local PDF path, remote URL or raw identity")
	name := fs.String("name", "", "derive the identity from this file name instead of -doc")
	id := fs.String("id", "", "highlight id")
	page := fs.Int("page", 1, "page number for a new highlight")
	text := fs.String("text", "", "highlight text, or the new comment")
	comment := fs.String("comment", "", "comment for a new highlight")
	retries := fs.Int("retries", 3, "attempts per request")
	verbose := fs.Bool("v", false, "log sync activity")

	if cmd == "id" {
		if len(rest) != 1 {
			return errors.New("usage: annotate id <path|url>")
		}
		d, err := resolveDocument(rest[0], "")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\tpages=%d\n", d.Identity, d.Name, d.PageCount)
		return nil
	}

	if err := fs.Parse(rest); err != nil {
		return err
	}
	if *doc == "" && *name == "" {
		return errors.New("-doc or -name is required")
	}
	d, err := resolveDocument(*doc, *name)
	if err != nil {
		return err
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	store := client.NewHTTPStore(*server, &http.Client{Timeout: 15 * time.Second})
	c := client.New(store,
		client.WithLogger(logger.NewLogger(level, logger.FormatConsole)),
		client.WithRetry(*retries, 500*time.Millisecond),
	)
	if err := c.Load(ctx, d.Identity); err != nil {
		return err
	}

	switch cmd {
	case "list":
		printHighlights(out, c.Highlights())
		return nil
	case "add":
		h, err := addTextNote(c, d, *page, *text, *comment)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, h.ID)
	case "comment":
		if *id == "" {
			return errors.New("-id is required")
		}
		if _, ok := c.Get(*id); !ok {
			return fmt.Errorf("highlight %s: %w", *id, domain.ErrHighlightNotFound)
		}
		if err := c.UpdateComment(*id, *text); err != nil {
			return err
		}
	case "delete":
		if *id == "" {
			return errors.New("-id is required")
		}
		if err := c.Delete(*id); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	flushCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	return c.Flush(flushCtx)
}

// resolveDocument picks the identity rule for ref: an explicit file name,
// a remote URL, a readable local file, or else ref taken as an identity.
// A path that cannot be read is an error, never an identity.
func resolveDocument(ref, name string) (*identity.Document, error) {
	switch {
	case name != "":
		return &identity.Document{Identity: identity.FromFileName(name), Name: name}, nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return &identity.Document{Identity: identity.FromLocator(ref), Name: ref}, nil
	}
	_, statErr := os.Stat(ref)
	if statErr == nil {
		return identity.OpenLocal(ref)
	}
	if looksLikePath(ref) {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableContent, statErr)
	}
	d := &identity.Document{Identity: domain.DocumentIdentity(ref), Name: ref}
	if err := d.Identity.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// addTextNote creates a text highlight spanning a full-width line at the top
// of page. It stands in for a renderer selection when annotating from a shell.
func addTextNote(c *client.Client, d *identity.Document, page int, text, comment string) (domain.Highlight, error) {
	if text == "" {
		return domain.Highlight{}, errors.New("-text is required")
	}
	rect := domain.PageRect{X1: 0, Y1: 0, X2: 1, Y2: 0.02, Width: 1, Height: 1, PageNumber: page}
	draft, err := selection.FromSelection(selection.Selection{
		Type:     domain.HighlightTypeText,
		Position: domain.Position{BoundingRect: rect, Rects: []domain.PageRect{rect}},
		Content:  domain.Content{Text: &text},
	}, comment)
	if err != nil {
		return domain.Highlight{}, err
	}
	if err := selection.CheckPages(draft, d.PageCount); err != nil {
		return domain.Highlight{}, err
	}
	return c.Create(draft)
}

func printHighlights(out io.Writer, highlights []domain.Highlight) {
	for _, h := range highlights {
		summary := ""
		switch h.Type {
		case domain.HighlightTypeText:
			if h.Content.Text != nil {
				summary = *h.Content.Text
			}
		case domain.HighlightTypeArea:
			summary = "[area]"
		}
		comment := ""
		if h.Comment != nil {
			comment = *h.Comment
		}
		fmt.Fprintf(out, "%s\tp%d\t%s\t%q\t%q\n",
			h.ID, h.Position.BoundingRect.PageNumber, h.CreatedAt.Format(time.RFC3339), summary, comment)
	}
}

func looksLikePath(ref string) bool {
	return strings.ContainsAny(ref, `/\`) || filepath.Ext(ref) != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
