package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/config"
	"github.com/zcomx/zco-mx/database"
	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/release"
	"github.com/zcomx/zco-mx/rendition"
	"github.com/zcomx/zco-mx/server"
	"github.com/zcomx/zco-mx/sitemap"
	"github.com/zcomx/zco-mx/social"
	"github.com/zcomx/zco-mx/store"
	"github.com/zcomx/zco-mx/upload"
	"github.com/zcomx/zco-mx/util"
	"github.com/zcomx/zco-mx/worker"
)

const (
	greetingBanner = `
███████  ██████  ██████          ███    ███ ██   ██
   ███  ██      ██    ██         ████  ████  ██ ██
  ███   ██      ██    ██  █████  ██ ████ ██   ███
 ███    ██      ██    ██         ██  ██  ██  ██ ██
███████  ██████  ██████          ██      ██ ██   ██
`
)

var (
	configFile string
	dataDir    string
	host       string
	port       int

	rootCmd = &cobra.Command{
		Use:           "zco-mx",
		Short:         "zco-mx is a curated comic sharing site",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.GetConfig(); err != nil {
				return err
			}
			if configFile != "" {
				if _, err := config.ParseFile(configFile); err != nil {
					return err
				}
			}
			if dataDir != "" {
				config.Opts.Data = dataDir
				config.Opts.DSN = filepath.Join(dataDir, "zco-mx.db")
			}
			if host != "" {
				config.Opts.Host = host
			}
			if port != 0 {
				config.Opts.Port = port
			}
			log.Setup(config.Opts.LogFile, config.Opts.LogLevel,
				config.Opts.LogFileMaxSize, config.Opts.LogFileMaxBackups,
				config.Opts.LogFileMaxAge, config.Opts.LogCompress)
			return nil
		},
		RunE: runServe,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory")
	rootCmd.Flags().StringVar(&host, "host", "", "host to listen on")
	rootCmd.Flags().IntVar(&port, "port", 0, "port to listen on")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSetBookCompletedCmd())
	rootCmd.AddCommand(newResizeImagesCmd())
	rootCmd.AddCommand(newPostBookCompletedCmd())
	rootCmd.AddCommand(newPostOngoingUpdateCmd())
	rootCmd.AddCommand(newCreateSitemapCmd())
}

func main() {
	defer log.Logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		log.Error("Command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStore opens the database, runs migrations and wraps it in a store.
// The caller owns the returned *sql.DB.
func openStore(ctx context.Context) (*sql.DB, *store.Store, error) {
	db, err := database.NewDB()
	if err != nil {
		log.Error("Error connecting to database", zap.Error(err))
		return nil, nil, err
	}
	if err := database.Migrate(db, ctx); err != nil {
		db.Close()
		log.Error("Error migrating database", zap.Error(err))
		return nil, nil, err
	}
	s := store.NewStore(db)
	if err := s.Ping(); err != nil {
		db.Close()
		log.Error("Error pinging database", zap.Error(err))
		return nil, nil, err
	}
	return db, s, nil
}

// buildPosters wires a poster for every service with credentials
// configured. A service without credentials is skipped, not an error.
func buildPosters() []social.Poster {
	o := config.Opts
	var posters []social.Poster
	if o.TwitterConsumerKey != "" && o.TwitterAccessToken != "" {
		posters = append(posters, social.NewTwitter(
			o.TwitterConsumerKey, o.TwitterConsumerSecret,
			o.TwitterAccessToken, o.TwitterAccessSecret))
	} else {
		log.Warn("Twitter credentials not configured, posting disabled",
			zap.String("service", model.ServiceTwitter))
	}
	if o.TumblrConsumerKey != "" && o.TumblrBlogName != "" {
		posters = append(posters, social.NewTumblr(
			o.TumblrConsumerKey, o.TumblrConsumerSecret,
			o.TumblrAccessToken, o.TumblrAccessSecret, o.TumblrBlogName))
	} else {
		log.Warn("Tumblr credentials not configured, posting disabled",
			zap.String("service", model.ServiceTumblr))
	}
	if o.FacebookAccessToken != "" && o.FacebookPageID != "" {
		posters = append(posters, social.NewFacebook(o.FacebookAccessToken, o.FacebookPageID))
	} else {
		log.Warn("Facebook credentials not configured, posting disabled",
			zap.String("service", model.ServiceFacebook))
	}
	return posters
}

type stack struct {
	rend      *rendition.Renditioner
	uploader  *upload.Uploader
	packager  *release.Packager
	publisher *social.Publisher
	orch      *worker.Orchestrator
}

func buildStack(s *store.Store) *stack {
	rend := rendition.New(filepath.Join(config.Opts.Data, "images"),
		config.Opts.WebFormat, config.Opts.WebQuality, config.Opts.CBZQuality)
	uploader := upload.NewUploader(s, rend, config.Opts.TmpDir())
	packager := release.NewPackager(s, rend,
		config.Opts.ReleasesDir(), config.Opts.TorrentsDir(),
		config.Opts.TmpDir(), config.Opts.AnnounceURL)
	publisher := social.NewPublisher(s, config.Opts.BaseURL, buildPosters()...)
	return &stack{
		rend:      rend,
		uploader:  uploader,
		packager:  packager,
		publisher: publisher,
		orch:      worker.NewOrchestrator(s, packager, publisher),
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the job workers",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&host, "host", "", "host to listen on")
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on")
	return withMan(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancle := context.WithCancel(context.Background())
	defer cancle()

	db, s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	stack := buildStack(s)
	pool := worker.NewPool(s, stack.orch, config.Opts.WorkerPoolSize)
	if err := pool.Resume(s); err != nil {
		log.Warn("Failed to resume pending jobs", zap.Error(err))
	}

	srv, err := server.NewServer(ctx, s, stack.uploader, stack.rend, pool)
	if err != nil {
		log.Error("Error creating server", zap.Error(err))
		return err
	}

	fmt.Println(greetingBanner)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sig:
		log.Info("Signal received, shutting down")
	}
	srv.Shutdown(ctx)
	return nil
}

// runJob drives a job and its followups to completion in-process.
// Retryable failures are retried up to the job's requeue budget, the
// way the worker pool would.
func runJob(orch *worker.Orchestrator, job model.Job) error {
	queue := []model.Job{job}
	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]

		followups, retry, err := orch.Handle(&j)
		if err != nil {
			if retry && j.Requeues+1 < j.MaxRequeues {
				j.Requeues++
				log.Warn("Job failed, retrying",
					zap.String("type", j.Type),
					zap.Int("requeues", j.Requeues),
					zap.Error(err))
				queue = append(queue, j)
				continue
			}
			return err
		}
		queue = append(queue, followups...)
	}
	return nil
}

// withMan adds a --man flag printing the command's extended help, the
// way the legacy scripts exposed their man pages. With --man set the
// positional arguments are not required.
func withMan(cmd *cobra.Command) *cobra.Command {
	var man bool
	cmd.Flags().BoolVar(&man, "man", false, "print the extended help and exit")
	validate := cmd.Args
	cmd.Args = func(c *cobra.Command, args []string) error {
		if man || validate == nil {
			return nil
		}
		return validate(c, args)
	}
	run := cmd.RunE
	cmd.RunE = func(c *cobra.Command, args []string) error {
		if man {
			return c.Help()
		}
		return run(c, args)
	}
	return cmd
}

// serviceFlags narrows posting to the services named on the command
// line; no flag means every configured service.
func serviceFlags(tumblr, twitter, facebook bool) []string {
	var services []string
	if tumblr {
		services = append(services, model.ServiceTumblr)
	}
	if twitter {
		services = append(services, model.ServiceTwitter)
	}
	if facebook {
		services = append(services, model.ServiceFacebook)
	}
	return services
}

func newSetBookCompletedCmd() *cobra.Command {
	var (
		reverse     bool
		deletePosts bool
		maxRequeues int
		requeues    int
	)
	cmd := &cobra.Command{
		Use:   "set_book_completed BOOK_ID",
		Short: "Package a book for release, or reverse a release with --reverse",
		Long: `Package a completed book for release: renumber its pages, build the
cbz archive and the torrent, record the release date, and queue a
post_book_completed followup announcing it.

With --reverse the release is undone: the release date, archive paths
and magnet link are cleared and the page numbers are left as they are.
Confirmed social posts stay up unless --delete-posts is also given, in
which case they are deleted from the remote services first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := context.Background()
			db, s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if maxRequeues == 0 {
				maxRequeues = config.Opts.MaxRequeues
			}
			stack := buildStack(s)
			return runJob(stack.orch, model.Job{
				UUID:        util.GenUUID(),
				BookID:      bookID,
				Type:        model.JobTypeSetBookCompleted,
				Status:      model.JobStatusPending,
				Reverse:     reverse,
				DeletePosts: deletePosts,
				Requeues:    requeues,
				MaxRequeues: maxRequeues,
			})
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "undo a completed release")
	cmd.Flags().BoolVar(&deletePosts, "delete-posts", false, "with --reverse, delete the confirmed social posts")
	cmd.Flags().IntVar(&maxRequeues, "max-requeues", 0, "retry budget for the posting followup")
	cmd.Flags().IntVar(&requeues, "requeues", 0, "requeue count already spent")
	return withMan(cmd)
}

func newPostBookCompletedCmd() *cobra.Command {
	var (
		force    bool
		tumblr   bool
		twitter  bool
		facebook bool
	)
	cmd := &cobra.Command{
		Use:   "post_book_completed BOOK_ID",
		Short: "Announce a released book on the social services",
		Long: `Announce a released book on the configured social services. A service
whose post id column is already confirmed is skipped, and a column
holding the in-progress sentinel refuses the post until --force is
given. The --tumblr, --twitter and --facebook flags narrow the run to
the named services.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := context.Background()
			db, s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			stack := buildStack(s)
			return runJob(stack.orch, model.Job{
				UUID:        util.GenUUID(),
				BookID:      bookID,
				Type:        model.JobTypePostBookCompleted,
				Status:      model.JobStatusPending,
				Force:       force,
				Services:    serviceFlags(tumblr, twitter, facebook),
				MaxRequeues: 1,
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "repost over confirmed or in-progress posts")
	cmd.Flags().BoolVar(&tumblr, "tumblr", false, "post to tumblr only")
	cmd.Flags().BoolVar(&twitter, "twitter", false, "post to twitter only")
	cmd.Flags().BoolVar(&facebook, "facebook", false, "post to facebook only")
	return withMan(cmd)
}

func newPostOngoingUpdateCmd() *cobra.Command {
	var (
		processLogs bool
		force       bool
		tumblr      bool
		twitter     bool
		facebook    bool
	)
	cmd := &cobra.Command{
		Use:   "post_ongoing_update YYYY-MM-DD",
		Short: "Announce the pages added to ongoing books on a date",
		Long: `Announce the pages added to ongoing books on the given date, one post
per service covering every creator with activity. Per-creator post id
columns carry the in-progress sentinel while a post is being made and
the confirmed id afterwards, so a rerun for the same date is skipped
unless --force is given.

With --process-activity-logs the day's activity logs are marked
processed after a successful post and the creator columns are reset for
the next cycle. Without it the logs stay unprocessed so a later
scheduled run still picks them up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := args[0]
			if _, err := time.Parse("2006-01-02", date); err != nil {
				return fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
			}
			ctx := context.Background()
			db, s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			stack := buildStack(s)
			services := serviceFlags(tumblr, twitter, facebook)

			if processLogs {
				return runJob(stack.orch, model.Job{
					UUID:        util.GenUUID(),
					Type:        model.JobTypePostOngoingUpdate,
					Status:      model.JobStatusPending,
					Date:        date,
					Force:       force,
					Services:    services,
					MaxRequeues: 1,
				})
			}

			// Without --process-activity-logs the logs stay unprocessed
			// so a later scheduled run still picks them up.
			creatorIDs, err := activityCreators(s, date)
			if err != nil {
				return err
			}
			if len(creatorIDs) == 0 {
				log.Info("No activity to announce", zap.String("date", date))
				return nil
			}
			_, err = stack.publisher.PostOngoingUpdate(date, creatorIDs, force, services...)
			return err
		},
	}
	cmd.Flags().BoolVar(&processLogs, "process-activity-logs", false, "mark the day's activity logs processed")
	cmd.Flags().BoolVar(&force, "force", false, "repost over confirmed or in-progress posts")
	cmd.Flags().BoolVar(&tumblr, "tumblr", false, "post to tumblr only")
	cmd.Flags().BoolVar(&twitter, "twitter", false, "post to twitter only")
	cmd.Flags().BoolVar(&facebook, "facebook", false, "post to facebook only")
	return withMan(cmd)
}

// activityCreators resolves the distinct creators whose books gained
// pages on the given date, per the unprocessed activity logs.
func activityCreators(s *store.Store, date string) ([]int, error) {
	unprocessed := false
	entries, err := s.ListActivityLogs(&model.FindActivityLog{
		Date:      &date,
		Processed: &unprocessed,
	})
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	var ids []int
	for _, entry := range entries {
		book, err := s.MustGetBook(&model.FindBook{ID: &entry.BookID})
		if err != nil {
			log.Warn("Activity log references unknown book",
				zap.Int("book_id", entry.BookID), zap.Error(err))
			continue
		}
		if !seen[book.CreatorID] {
			seen[book.CreatorID] = true
			ids = append(ids, book.CreatorID)
		}
	}
	return ids, nil
}

func newResizeImagesCmd() *cobra.Command {
	var (
		field string
		id    int
		purge bool
	)
	cmd := &cobra.Command{
		Use:   "resize_images [files...]",
		Short: "Rebuild the sized renditions of stored page images",
		Long: `Rebuild the web, thumb and cbz renditions of stored page images from
their originals. With no arguments every page is rebuilt; image names
narrow the run, and --id restricts it to one book_page record. With
--purge the renditions are deleted instead, the originals are never
touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if field != "book_page.image" {
				return fmt.Errorf("unsupported field %q", field)
			}
			ctx := context.Background()
			db, s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			stack := buildStack(s)
			pages, err := selectPages(s, id, args)
			if err != nil {
				return err
			}
			for _, page := range pages {
				if purge {
					if err := stack.rend.DeleteAll(page.Image); err != nil {
						log.Warn("Failed to purge renditions",
							zap.String("image", page.Image), zap.Error(err))
					}
					continue
				}
				resizePage(s, stack.rend, page)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&field, "field", "book_page.image", "table.field holding the image names")
	cmd.Flags().IntVar(&id, "id", 0, "restrict to one book_page record")
	cmd.Flags().BoolVar(&purge, "purge", false, "delete renditions instead of rebuilding them")
	return withMan(cmd)
}

// selectPages picks the pages to operate on: an explicit record id, an
// explicit list of image names, or every page.
func selectPages(s *store.Store, id int, names []string) ([]*model.BookPage, error) {
	if id != 0 {
		page, err := s.MustGetPage(&model.FindBookPage{ID: &id})
		if err != nil {
			return nil, err
		}
		return []*model.BookPage{page}, nil
	}
	pages, err := s.ListPages(&model.FindBookPage{})
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return pages, nil
	}
	want := map[string]bool{}
	for _, name := range names {
		want[filepath.Base(name)] = true
	}
	var selected []*model.BookPage
	for _, page := range pages {
		if want[page.Image] {
			selected = append(selected, page)
		}
	}
	return selected, nil
}

// resizePage rebuilds every derived size of one page. Decode failures
// are reported and skipped, the original is never touched.
func resizePage(s *store.Store, rend *rendition.Renditioner, page *model.BookPage) {
	for _, size := range rendition.Sizes {
		geo, err := rend.Resize(page.Image, size)
		if err != nil {
			log.Warn("Failed to rebuild rendition",
				zap.String("image", page.Image),
				zap.String("size", size),
				zap.Error(err))
			continue
		}
		if size == rendition.SizeThumb {
			if err := s.UpdatePageThumb(page.ID, geo.Width, geo.Height, geo.Shrink); err != nil {
				log.Warn("Failed to record thumb geometry",
					zap.Int("page_id", page.ID), zap.Error(err))
			}
		}
	}
}

func newCreateSitemapCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "create_sitemap",
		Short: "Write the sitemap XML of creator and book pages",
		Long: `Write a sitemap XML document listing the home page and every creator
and released book page, to stdout or to the file named by --output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			db, s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			var w *os.File = os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return sitemap.Write(w, s, config.Opts.BaseURL)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to FILE instead of stdout")
	return withMan(cmd)
}

func parseID(arg string) (int, error) {
	var id int
	if _, err := fmt.Sscanf(arg, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid book id %q", arg)
	}
	return id, nil
}
