package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/banshee-data/waymo-kitti/internal/config"
	"github.com/banshee-data/waymo-kitti/internal/db"
	"github.com/banshee-data/waymo-kitti/internal/fsutil"
	"github.com/banshee-data/waymo-kitti/internal/kitti"
	"github.com/banshee-data/waymo-kitti/internal/pipeline"
	"github.com/banshee-data/waymo-kitti/internal/version"
)

var (
	dataDir    = flag.String("data", "", "Folder holding the segment .tfrecord files")
	listFile   = flag.String("list", "", "File naming the segments to convert, one per line, relative to -data")
	outDir     = flag.String("out", "kitti", "Output dataset root")
	configPath = flag.String("config", "", "JSON conversion config; built-in defaults when empty")
	dbPath     = flag.String("db", "", "SQLite conversion manifest; disabled when empty")
	workers    = flag.Int("workers", 0, "Capture workers; overrides the config when > 0")
	cameraType = flag.String("camera", "", "Camera index or \"all\"; overrides the config")
	keyframe   = flag.Int("keyframe", 0, "Keep every Nth frame; overrides the config when > 0")
	startIndex = flag.Int("start-index", -1, "First output index; overrides the config when >= 0")
	testMode   = flag.Bool("test", false, "Convert without ground truth labels")
	showVer    = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrate(os.Args[2:])
			return
		case "shuffle":
			runShuffle(os.Args[2:])
			return
		}
	}

	flag.Parse()
	if *showVer {
		fmt.Println(version.String())
		return
	}
	if *dataDir == "" {
		log.Fatal("-data is required")
	}

	cfg := loadConfig()
	paths := convertPaths{data: *dataDir, list: *listFile, out: *outDir, db: *dbPath}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	start := time.Now()
	stats, err := runConvert(ctx, cfg, paths)
	stop()
	if err != nil {
		log.Fatalf("conversion failed: %v", err)
	}
	log.Printf("wrote %d captures in %s; next start index is %d",
		stats.Written, time.Since(start).Round(time.Millisecond), stats.NextIndex)
}

type convertPaths struct {
	data string
	list string
	out  string
	db   string // empty disables the manifest
}

// runConvert converts every input segment and, when a manifest path is set,
// records the run. The manifest is closed before returning on every path.
func runConvert(ctx context.Context, cfg *config.ConvertConfig, paths convertPaths) (stats pipeline.Stats, err error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return stats, fmt.Errorf("failed to encode config: %w", err)
	}

	fsys := fsutil.OSFileSystem{}
	files, err := pipeline.ResolveInputs(fsys, paths.data, paths.list)
	if err != nil {
		return stats, fmt.Errorf("failed to resolve inputs: %w", err)
	}
	writer, err := kitti.NewWriter(fsys, paths.out, cfg.GetIndexLength())
	if err != nil {
		return stats, fmt.Errorf("failed to prepare output %s: %w", paths.out, err)
	}

	runner := &pipeline.Runner{
		FS:         fsys,
		Files:      files,
		Writer:     writer,
		Converter:  pipeline.NewConverter(cfg),
		Keyframe:   cfg.GetKeyframe(),
		StartIndex: cfg.GetStartIndex(),
		Workers:    cfg.GetWorkers(),
	}
	if len(cfg.GetLocationFilter()) > 0 {
		runner.AcceptLocation = cfg.AcceptsLocation
	}

	var database *db.DB
	if paths.db != "" {
		database, err = db.NewDB(paths.db)
		if err != nil {
			return stats, fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			err = multierr.Append(err, database.Close())
		}()

		run, err := database.CreateRun(ctx, paths.data, paths.out, string(cfgJSON))
		if err != nil {
			return stats, fmt.Errorf("failed to create run: %w", err)
		}
		runner.Recorder = database
		runner.RunID = run.ID
		log.Printf("conversion run %s", run.ID)
	}

	log.Printf("%s", version.String())
	log.Printf("converting %d segment files from %s into %s", len(files), paths.data, paths.out)
	stats, runErr := runner.Run(ctx)

	if database != nil {
		status := db.RunFinished
		if runErr != nil {
			status = db.RunFailed
		}
		// the run context may already be cancelled
		if err := database.FinishRun(context.Background(), runner.RunID, status); err != nil {
			log.Printf("failed to finish run: %v", err)
		}
	}
	return stats, runErr
}

func loadConfig() *config.ConvertConfig {
	cfg := config.DefaultConvertConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConvertConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *workers > 0 {
		cfg.Workers = workers
	}
	if *cameraType != "" {
		cfg.CameraType = cameraType
	}
	if *keyframe > 0 {
		cfg.Keyframe = keyframe
	}
	if *startIndex >= 0 {
		cfg.StartIndex = startIndex
	}
	if *testMode {
		cfg.TestMode = testMode
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return cfg
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	path := fs.String("db", "waymo-kitti.db", "SQLite conversion manifest")
	fs.Parse(args)

	if err := db.RunMigrateCommand(fs.Args(), *path, os.Stdout); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func runShuffle(args []string) {
	fs := flag.NewFlagSet("shuffle", flag.ExitOnError)
	src := fs.String("src", "", "Converted dataset to shuffle")
	dst := fs.String("dst", "", "Destination of the shuffled copy")
	seed := fs.Int64("seed", time.Now().UnixNano(), "Permutation seed")
	fs.Parse(args)

	if *src == "" || *dst == "" {
		fmt.Fprintln(os.Stderr, "usage: waymo-kitti shuffle -src <dataset> -dst <dataset> [-seed N]")
		os.Exit(2)
	}
	rng := rand.New(rand.NewPCG(uint64(*seed), 0))
	pairs, err := kitti.Shuffle(fsutil.OSFileSystem{}, *src, *dst, rng)
	if err != nil {
		log.Fatalf("shuffle failed: %v", err)
	}
	log.Printf("shuffled %d captures into %s (seed %d)", len(pairs), *dst, *seed)
}
