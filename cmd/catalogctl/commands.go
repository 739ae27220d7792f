package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/utafrali/coursesearch/internal/app"
	"github.com/utafrali/coursesearch/internal/catalog"
	"github.com/utafrali/coursesearch/internal/config"
	"github.com/utafrali/coursesearch/internal/domain"
	"github.com/utafrali/coursesearch/internal/engine"
	"github.com/utafrali/coursesearch/internal/event"
	"github.com/utafrali/coursesearch/internal/lock"
	"github.com/utafrali/coursesearch/internal/service"
	"github.com/utafrali/coursesearch/pkg/database"
	"github.com/utafrali/coursesearch/pkg/kafka"
	"github.com/utafrali/coursesearch/pkg/logger"
	"github.com/utafrali/coursesearch/pkg/pagination"
)

const eventSource = "catalogctl"

// env bundles what every engine-backed command needs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	engine engine.SearchEngine
}

func setup(cmd *cli.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := logger.NewText(cmd.Root().String("log-level"), os.Stderr)

	eng, err := app.NewEngine(cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: log, engine: eng}, nil
}

// searchService returns a search service over the configured engine. The
// embedded engine starts empty in every process, so it is filled first.
func (e *env) searchService(ctx context.Context) (*service.SearchService, error) {
	if e.cfg.SearchEngine == config.EngineMemory {
		idx := service.NewIndexingService(e.engine, catalog.NewSource(e.cfg.CatalogPath), e.logger)
		if _, err := idx.LoadIfEmpty(ctx); err != nil {
			return nil, err
		}
	}
	return service.NewSearchService(e.engine, e.logger), nil
}

func writeJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Decode the dataset and report what it holds",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			src := catalog.NewSource(cfg.CatalogPath)
			courses, err := src.Load(ctx)
			if err != nil {
				return err
			}

			w := cmd.Root().Writer
			fmt.Fprintf(w, "%s: %d courses\n", src.Name(), len(courses))

			seen := make(map[string]int, len(courses))
			perCategory := make(map[string]int)
			for _, c := range courses {
				seen[c.ID]++
				perCategory[c.Category]++
			}

			categories := make([]string, 0, len(perCategory))
			for c := range perCategory {
				categories = append(categories, c)
			}
			sort.Strings(categories)
			for _, c := range categories {
				fmt.Fprintf(w, "  %-20s %d\n", c, perCategory[c])
			}

			var dups []string
			for id, n := range seen {
				if n > 1 {
					dups = append(dups, id)
				}
			}
			sort.Strings(dups)
			for _, id := range dups {
				fmt.Fprintf(w, "warning: id %s appears %d times, the last one wins\n", id, seen[id])
			}
			return nil
		},
	}
}

func reindexCommand() *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Drop the index and reload the full dataset",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}

			var opts []service.IndexingOption
			if e.cfg.RedisEnabled {
				client, err := database.NewRedisClient(ctx, e.cfg.Redis(), e.logger)
				if err != nil {
					return fmt.Errorf("init redis: %w", err)
				}
				defer func(c *redis.Client) { _ = c.Close() }(client)
				opts = append(opts, service.WithLocker(lock.NewRedis(client, app.ReindexLockKey, e.cfg.ReindexLockTTL)))
			}

			idx := service.NewIndexingService(e.engine, catalog.NewSource(e.cfg.CatalogPath), e.logger, opts...)
			n, err := idx.Reindex(ctx)
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}
			fmt.Fprintf(cmd.Root().Writer, "Data reindexed successfully (%d courses)\n", n)
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Run a course search and print the result page as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "q", Usage: "free text"},
			&cli.IntFlag{Name: "min-age", Usage: "youngest age the course must admit"},
			&cli.IntFlag{Name: "max-age", Usage: "oldest age the course must admit"},
			&cli.StringFlag{Name: "category", Usage: "exact category"},
			&cli.StringFlag{Name: "type", Usage: "COURSE or ONE_TIME"},
			&cli.FloatFlag{Name: "min-price", Usage: "lowest price, inclusive"},
			&cli.FloatFlag{Name: "max-price", Usage: "highest price, inclusive"},
			&cli.StringFlag{Name: "start-date", Usage: "earliest session (RFC 3339); now when empty"},
			&cli.StringFlag{Name: "sort", Usage: "UPCOMING, PRICE_ASC or PRICE_DESC", Value: string(domain.SortUpcoming)},
			&cli.IntFlag{Name: "page", Usage: "zero-based page", Value: pagination.DefaultPage},
			&cli.IntFlag{Name: "size", Usage: "page size", Value: pagination.DefaultSize},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			req, err := searchRequestFromFlags(cmd)
			if err != nil {
				return err
			}

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			svc, err := e.searchService(ctx)
			if err != nil {
				return err
			}

			resp, err := svc.Search(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd, resp)
		},
	}
}

func searchRequestFromFlags(cmd *cli.Command) (*domain.SearchRequest, error) {
	req := domain.NewSearchRequest()
	req.Q = cmd.String("q")
	req.Category = cmd.String("category")

	if cmd.IsSet("min-age") {
		v := int(cmd.Int("min-age"))
		req.MinAge = &v
	}
	if cmd.IsSet("max-age") {
		v := int(cmd.Int("max-age"))
		req.MaxAge = &v
	}
	if cmd.IsSet("min-price") {
		v := cmd.Float("min-price")
		req.MinPrice = &v
	}
	if cmd.IsSet("max-price") {
		v := cmd.Float("max-price")
		req.MaxPrice = &v
	}
	if raw := cmd.String("type"); raw != "" {
		ct, err := domain.ParseCourseType(raw)
		if err != nil {
			return nil, err
		}
		req.Type = &ct
	}
	if raw := cmd.String("start-date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("start-date: %w", err)
		}
		req.StartDate = &t
	}

	sortOpt, err := domain.ParseSortOption(cmd.String("sort"))
	if err != nil {
		return nil, err
	}
	req.Sort = sortOpt

	req.Page = int(cmd.Int("page"))
	req.Size = int(cmd.Int("size"))
	if req.Page < 0 {
		return nil, fmt.Errorf("page must be greater than or equal to 0")
	}
	if req.Size < 1 || req.Size > pagination.MaxSize {
		return nil, fmt.Errorf("size must be between 1 and %d", pagination.MaxSize)
	}
	if !(pagination.Params{Page: req.Page, Size: req.Size}).WithinWindow() {
		return nil, fmt.Errorf("page: %s", pagination.WindowReason)
	}
	return req, nil
}

func suggestCommand() *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "Print title suggestions for a fragment",
		ArgsUsage: "FRAGMENT",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("suggest takes exactly one fragment")
			}

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			svc, err := e.searchService(ctx)
			if err != nil {
				return err
			}

			titles, err := svc.Suggest(ctx, cmd.Args().First())
			if err != nil {
				return err
			}
			for _, title := range titles {
				fmt.Fprintln(cmd.Root().Writer, title)
			}
			return nil
		},
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Announce a new catalog version so running services reindex",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "catalog-version", Usage: "version label carried in the event"},
			&cli.DurationFlag{Name: "timeout", Usage: "publish deadline", Value: 10 * time.Second},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.NewText(cmd.Root().String("log-level"), os.Stderr)

			courses, err := catalog.NewSource(cfg.CatalogPath).Load(ctx)
			if err != nil {
				return err
			}

			ev, err := kafka.NewEvent(event.EventTypeCatalogPublished, "courses", eventSource, event.CatalogPublishedData{
				Version: cmd.String("catalog-version"),
				Courses: len(courses),
			})
			if err != nil {
				return err
			}

			producer := kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
			defer func() { _ = producer.Close() }()

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()
			if err := producer.Publish(ctx, event.TopicCatalogPublished, ev); err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "published %s %s\n", event.EventTypeCatalogPublished, ev.EventID)
			return nil
		},
	}
}
