// postctl creates, edits and inspects race posts from the terminal using the
// same authoring workflow as the web pages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/race-posts/internal/config"
	"github.com/debemdeboas/race-posts/internal/db"
	"github.com/debemdeboas/race-posts/internal/form"
	"github.com/debemdeboas/race-posts/internal/gateway"
	"github.com/debemdeboas/race-posts/internal/intake"
	"github.com/debemdeboas/race-posts/internal/logger"
	"github.com/debemdeboas/race-posts/internal/model"
	"github.com/debemdeboas/race-posts/internal/workflow"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

const usage = `Usage: postctl [-config file] <command> [flags]

Commands:
  list                                    List stored posts
  get -id ID                              Show one post
  create -title T -body B -image FILE     Create a post
  update -id ID [-title T] [-body B] [-image FILE]
                                          Edit a post, keeping its owner
`

func main() {
	configPath := flag.String("config", config.Path(), "Path to the YAML configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf(config.ErrLoadConfigFmt, err)))
		os.Exit(1)
	}

	l := logger.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	config.SetLogger(l)
	db.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.TimeoutSeconds)*2*time.Second)
	defer cancel()

	backends, err := gateway.Open(ctx, cfg, l)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf(config.ErrBuildGatewayFmt, err)))
		os.Exit(1)
	}
	defer backends.Close()

	c := &cli{
		backend: backends.Gateway,
		owner:   model.UserID(cfg.Identity.DefaultOwner),
		policy:  intake.Policy{MaxBytes: cfg.Image.MaxBytes},
		orphans: cfg.Blob.DiscardOrphans,
		out:     os.Stdout,
		logger:  l,
	}
	if err := c.run(ctx, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

type backend interface {
	workflow.Persister
	ListPosts(ctx context.Context) ([]model.Post, error)
}

type cli struct {
	backend backend
	owner   model.UserID
	policy  intake.Policy
	orphans bool
	out     io.Writer
	logger  zerolog.Logger
}

var errUsage = errors.New("invalid usage, run postctl -h")

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "list":
		return c.list(ctx)
	case "get":
		return c.get(ctx, args[1:])
	case "create":
		return c.create(ctx, args[1:])
	case "update":
		return c.update(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (c *cli) list(ctx context.Context) error {
	posts, err := c.backend.ListPosts(ctx)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Fprintln(c.out, valueStyle.Render("No posts yet"))
		return nil
	}
	for _, p := range posts {
		fmt.Fprintln(c.out, labelStyle.Render(string(p.ID))+" "+valueStyle.Render(p.Title))
	}
	return nil
}

func (c *cli) get(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(c.out)
	id := fs.String("id", "", "Post id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errUsage
	}

	p, err := c.backend.FetchPost(ctx, model.PostID(*id))
	if err != nil {
		return err
	}
	c.printPost(model.PostID(*id), p)
	return nil
}

func (c *cli) printPost(id model.PostID, p *model.Post) {
	for _, row := range [][2]string{
		{"ID", string(id)},
		{"Title", p.Title},
		{"Body", p.Body},
		{"Image", p.Image},
		{"Owner", string(p.UID)},
	} {
		fmt.Fprintln(c.out, labelStyle.Render(fmt.Sprintf("%-6s", row[0]))+" "+valueStyle.Render(row[1]))
	}
}

func (c *cli) flowOptions(saved *model.PostID) []workflow.Option {
	return []workflow.Option{
		workflow.WithLogger(c.logger),
		workflow.WithOnSaved(func(id model.PostID) { *saved = id }),
		workflow.WithFormOptions(
			form.WithPolicy(c.policy),
			form.WithOrphanCleanup(c.orphans),
		),
	}
}

func (c *cli) navigator() workflow.Navigator {
	return workflow.NavigatorFunc(func(route string) {
		fmt.Fprintln(c.out, labelStyle.Render("Saved.")+" "+valueStyle.Render("Back to "+route))
	})
}

func (c *cli) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(c.out)
	title := fs.String("title", "", "Post title")
	body := fs.String("body", "", "Post body")
	image := fs.String("image", "", "Path to the post image")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var saved model.PostID
	f := workflow.NewCreateFlow(c.backend, c.owner, c.navigator(), c.flowOptions(&saved)...).NewForm()
	f.SetTitle(*title)
	f.SetBody(*body)

	if err := c.submit(ctx, f, *image); err != nil {
		return err
	}
	fmt.Fprintln(c.out, labelStyle.Render("Created")+" "+valueStyle.Render(string(saved)))
	return nil
}

func (c *cli) update(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(c.out)
	id := fs.String("id", "", "Post id")
	title := fs.String("title", "", "New title, unchanged when empty")
	body := fs.String("body", "", "New body, unchanged when empty")
	image := fs.String("image", "", "Path to a replacement image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errUsage
	}

	var saved model.PostID
	flow := workflow.NewUpdateFlow(c.backend, model.PostID(*id), c.navigator(), c.flowOptions(&saved)...)
	f, err := flow.NewForm(ctx)
	if err != nil {
		return err
	}
	if *title != "" {
		f.SetTitle(*title)
	}
	if *body != "" {
		f.SetBody(*body)
	}

	if err := c.submit(ctx, f, *image); err != nil {
		return err
	}
	fmt.Fprintln(c.out, labelStyle.Render("Updated")+" "+valueStyle.Render(string(saved)))
	return nil
}

// submit selects the image at path, if any, and saves the form. Form errors
// are reported with the message a user of the web page would see.
func (c *cli) submit(ctx context.Context, f *form.Form, path string) error {
	if path != "" {
		file, err := intake.FromPath(path)
		if err != nil {
			return err
		}
		if res := <-f.SelectImage(ctx, file); res.Err != nil {
			return errors.New(f.ErrorMessage())
		}
	}

	if err := f.Submit(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("Submit failed")
		return errors.New(f.ErrorMessage())
	}
	return nil
}
