// migrate copies every post from one document backend into another, e.g. from
// the Firebase realtime database into a local SQLite file.
package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/debemdeboas/race-posts/internal/config"
	"github.com/debemdeboas/race-posts/internal/db"
	"github.com/debemdeboas/race-posts/internal/gateway"
	"github.com/debemdeboas/race-posts/internal/logger"
	"github.com/debemdeboas/race-posts/internal/model"
)

func main() {
	configPath := flag.String("config", config.Path(), "Path to the YAML configuration file")
	from := flag.String("from", "firebase", "Source document backend")
	to := flag.String("to", "sqlite", "Target document backend")
	dryRun := flag.Bool("dry-run", false, "List what would be copied without writing")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Msgf(config.ErrLoadConfigFmt, err)
	}
	l := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	config.SetLogger(l)
	db.SetLogger(l)

	if *from == *to {
		l.Fatal().Msg("Both -from and -to name the same backend")
	}

	ctx := context.Background()
	src := openDocuments(ctx, cfg, *from, l)
	defer src.Close()
	dst := openDocuments(ctx, cfg, *to, l)
	defer dst.Close()

	copied, err := copyPosts(ctx, src.Docs, dst.Docs, *dryRun, l)
	if err != nil {
		l.Fatal().Err(err).Int("copied", copied).Msg("Migration failed")
	}
	l.Info().Int("copied", copied).Bool("dry_run", *dryRun).Msg("Migration finished")
}

// openDocuments builds the backends for one document store. Images are never
// touched, so the blob side always uses memory.
func openDocuments(ctx context.Context, base *config.Config, backend string, l zerolog.Logger) *gateway.Backends {
	cfg := *base
	cfg.Blob.Backend = "memory"
	cfg.Documents.Backend = backend
	if err := cfg.Validate(); err != nil {
		l.Fatal().Err(err).Msg("Invalid backend")
	}

	b, err := gateway.Open(ctx, &cfg, l)
	if err != nil {
		l.Fatal().Msgf(config.ErrBuildGatewayFmt, err)
	}
	return b
}

// copyPosts creates every post of src in dst, oldest first so listings keep
// their order. Target ids are assigned by dst.
func copyPosts(ctx context.Context, src, dst gateway.DocumentStore, dryRun bool, l zerolog.Logger) (int, error) {
	posts, err := src.List(ctx)
	if err != nil {
		return 0, err
	}

	copied := 0
	for i := len(posts) - 1; i >= 0; i-- {
		p := posts[i]
		if !p.Complete() {
			l.Warn().Str("post_id", string(p.ID)).Msg("Skipping incomplete post")
			continue
		}
		if dryRun {
			l.Info().Str("post_id", string(p.ID)).Str("title", p.Title).Msg("Would copy post")
			copied++
			continue
		}

		id, err := dst.Create(ctx, &model.Post{Title: p.Title, Body: p.Body, Image: p.Image, UID: p.UID})
		if err != nil {
			return copied, err
		}
		l.Info().Str("from_id", string(p.ID)).Str("to_id", string(id)).Msg("Post copied")
		copied++
	}
	return copied, nil
}
