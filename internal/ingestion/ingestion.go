package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guttosm/proptrack/internal/domain/models"
	"github.com/guttosm/proptrack/internal/logger"
)

const (
	fileExt        = ".csv"
	maxParallelism = 8
)

// Importer imports or previews one CSV export on behalf of the system. It
// is satisfied by an adapter over the import service.
type Importer interface {
	ImportCSV(ctx context.Context, accountID, platform, csv string) (*models.ImportResult, error)
	PreviewCSV(ctx context.Context, accountID, platform, csv string) (*models.PreviewResult, error)
}

// InputFile is one export found in the input directory.
type InputFile struct {
	Path      string
	AccountID string
	Platform  string
}

// FileResult is the outcome of one processed file. Exactly one of Import
// and Preview is set.
type FileResult struct {
	InputFile
	Import  *models.ImportResult
	Preview *models.PreviewResult
	Elapsed time.Duration
}

// ProcessOptions tunes ProcessDirectory.
type ProcessOptions struct {
	// Parallel bounds how many accounts are processed at once. 0 means
	// min(NumCPU, 8).
	Parallel int
	// Preview reports what each file would do without writing.
	Preview bool
}

// ParseFileName splits "<accountID>_<platform>[_anything].csv" into its
// account id and platform.
func ParseFileName(name string) (accountID, platformID string, err error) {
	base := filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(base), fileExt) {
		return "", "", fmt.Errorf("%s: not a %s file", base, fileExt)
	}
	parts := strings.SplitN(strings.TrimSuffix(base, filepath.Ext(base)), "_", 3)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("%s: expected <account>_<platform>%s", base, fileExt)
	}
	return strings.TrimSpace(parts[0]), strings.ToLower(strings.TrimSpace(parts[1])), nil
}

// ProcessDirectory imports every CSV export in dir.
//
// Parameters:
//   - dir: directory containing files named "<accountID>_<platform>[_suffix].csv".
//   - imp: importer used for each file.
//   - opts: parallelism and preview mode.
//
// Behavior:
//   - Validates every file name upfront and fails before importing anything
//     if one does not match or names an unknown platform.
//   - Files of the same account run sequentially in name order, so their
//     ledger updates never race. Different accounts run concurrently.
//   - If any file returns an error, cancels the rest and returns that error.
//
// Returns:
//   - []FileResult: results of the files processed, in name order.
//   - error: first error encountered (if any).
func ProcessDirectory(ctx context.Context, dir string, imp Importer, opts ProcessOptions) ([]FileResult, error) {
	files, err := discover(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.L().Warn().Str("dir", dir).Msg("no csv files to ingest")
		return nil, nil
	}

	byAccount := map[string][]InputFile{}
	var accounts []string
	for _, f := range files {
		if _, ok := byAccount[f.AccountID]; !ok {
			accounts = append(accounts, f.AccountID)
		}
		byAccount[f.AccountID] = append(byAccount[f.AccountID], f)
	}

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = min(runtime.NumCPU(), maxParallelism)
	}
	parallel = min(parallel, maxParallelism)

	logger.L().Info().
		Str("dir", dir).
		Int("files", len(files)).
		Int("accounts", len(accounts)).
		Int("max_parallel", parallel).
		Bool("preview", opts.Preview).
		Msg("ingestion start")

	var (
		mu      sync.Mutex
		results []FileResult
	)

	// errgroup will cancel siblings on first error.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for _, acct := range accounts {
		queue := byAccount[acct]
		g.Go(func() error {
			for _, f := range queue {
				res, err := processFile(gctx, imp, f, opts.Preview)
				if err != nil {
					return err
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

// discover lists and validates the CSV files of dir, sorted by name.
func discover(dir string) ([]InputFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir %s: %w", dir, err)
	}

	var (
		files   []InputFile
		invalid []string
	)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), fileExt) {
			continue
		}
		acct, pid, err := ParseFileName(e.Name())
		if err == nil {
			if _, known := formats[pid]; !known {
				err = fmt.Errorf("%s: unknown platform %q", e.Name(), pid)
			}
		}
		if err != nil {
			invalid = append(invalid, err.Error())
			continue
		}
		files = append(files, InputFile{Path: filepath.Join(dir, e.Name()), AccountID: acct, Platform: pid})
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid input files: %s", strings.Join(invalid, "; "))
	}
	// os.ReadDir already sorts by name
	return files, nil
}

func processFile(ctx context.Context, imp Importer, f InputFile, preview bool) (FileResult, error) {
	start := time.Now()
	base := filepath.Base(f.Path)
	log := logger.L().With().Str("file", base).Str("account_id", f.AccountID).Str("platform", f.Platform).Logger()
	log.Info().Msg("file start")

	b, err := os.ReadFile(f.Path)
	if err != nil {
		return FileResult{}, fmt.Errorf("file %s: %w", f.Path, err)
	}

	out := FileResult{InputFile: f}
	if preview {
		out.Preview, err = imp.PreviewCSV(ctx, f.AccountID, f.Platform, string(b))
	} else {
		out.Import, err = imp.ImportCSV(ctx, f.AccountID, f.Platform, string(b))
	}
	out.Elapsed = time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", out.Elapsed).Msg("file failed")
		return FileResult{}, fmt.Errorf("file %s: %w", f.Path, err)
	}

	ev := log.Info().Dur("elapsed", out.Elapsed)
	if out.Import != nil {
		ev = ev.Int("stored", out.Import.TradesStored).Int("failed", out.Import.TradesFailed).Int("duplicates", out.Import.DuplicatesIgnored)
	}
	if out.Preview != nil {
		ev = ev.Int("new", out.Preview.NewTrades).Int("duplicates", out.Preview.DuplicateTrades)
	}
	ev.Msg("file done")
	return out, nil
}
