// Package inventory scans the filesystem and service supervisor for assets.
package inventory

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/bborn/jarvis/internal/config"
	"github.com/bborn/jarvis/internal/db"
)

var dbFilePattern = regexp.MustCompile(`\.(db|sqlite|sqlite3)$`)

// Scanner discovers repos, databases, env files, and supervised services,
// recording them as assets.
type Scanner struct {
	db     *db.DB
	cfg    config.ScanConfig
	logger *log.Logger

	// OnScan, when set, is called after each successful scan with the
	// number of assets recorded.
	OnScan func(count int)
}

// NewScanner creates a scanner.
func NewScanner(database *db.DB, cfg config.ScanConfig) *Scanner {
	return &Scanner{
		db:     database,
		cfg:    cfg,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "inventory"}),
	}
}

// Run scans immediately, then rescans on the configured interval and shortly
// after filesystem changes when the scan root is watchable.
func (s *Scanner) Run(ctx context.Context) {
	s.scanAndLog(ctx)

	changes := s.watch(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Debounce filesystem events: a checkout touches thousands of files.
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanAndLog(ctx)
		case <-changes:
			pending = time.After(10 * time.Second)
		case <-pending:
			pending = nil
			s.scanAndLog(ctx)
		}
	}
}

func (s *Scanner) scanAndLog(ctx context.Context) {
	n, err := s.Scan(ctx)
	if err != nil {
		s.logger.Error("scan failed", "error", err)
		return
	}
	s.logger.Info("scan complete", "assets", n)
	if s.OnScan != nil {
		s.OnScan(n)
	}
}

// watch returns a channel that fires on changes under the scan root. A
// failed watcher setup just disables change-triggered rescans.
func (s *Scanner) watch(ctx context.Context) <-chan struct{} {
	changes := make(chan struct{}, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("fsnotify unavailable", "error", err)
		return changes
	}
	if err := watcher.Add(s.cfg.Dir); err != nil {
		s.logger.Warn("cannot watch scan dir", "dir", s.cfg.Dir, "error", err)
		watcher.Close()
		return changes
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Debug("watch error", "error", err)
			}
		}
	}()

	return changes
}

// Scan walks the scan root and the service supervisor once, upserting every
// discovered asset. It returns the number of assets seen.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	assets := scanDirectory(s.cfg.Dir, s.cfg.MaxDepth)
	assets = append(assets, scanServices(ctx)...)

	for _, a := range assets {
		if err := s.db.UpsertAsset(a); err != nil {
			return 0, err
		}
	}
	return len(assets), nil
}

// scanDirectory finds git repos, database files, and env files under dir.
func scanDirectory(dir string, maxDepth int) []*db.Asset {
	var assets []*db.Asset
	walk(dir, 0, maxDepth, &assets)
	return assets
}

func walk(dir string, depth, maxDepth int, assets *[]*db.Asset) {
	if depth > maxDepth {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.Name() == ".git" && entry.IsDir() {
			remote := gitRemote(dir)
			meta, _ := json.Marshal(map[string]string{"remote": remote})
			*assets = append(*assets, &db.Asset{
				Path: dir, Type: db.AssetRepo, Source: "scan", Meta: meta,
			})
			break
		}
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == "node_modules" || name == ".git" {
			continue
		}
		full := filepath.Join(dir, name)

		if entry.Type().IsRegular() {
			if dbFilePattern.MatchString(name) {
				var size int64
				if info, err := entry.Info(); err == nil {
					size = info.Size()
				}
				meta, _ := json.Marshal(map[string]int64{"size": size})
				*assets = append(*assets, &db.Asset{
					Path: full, Type: db.AssetDatabase, Source: "scan", Meta: meta,
				})
			}
			if strings.HasPrefix(name, ".env") {
				meta, _ := json.Marshal(map[string]bool{"sensitive": true})
				*assets = append(*assets, &db.Asset{
					Path: full, Type: db.AssetConfig, Source: "scan", Meta: meta,
				})
			}
		}

		if entry.IsDir() {
			walk(full, depth+1, maxDepth, assets)
		}
	}
}

func gitRemote(dir string) string {
	cmd := exec.Command("git", "remote", "get-url", "origin")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// pm2Process is the slice of pm2 jlist output we care about.
type pm2Process struct {
	Name   string `json:"name"`
	PMID   int    `json:"pm_id"`
	PM2Env struct {
		Status string `json:"status"`
		Cwd    string `json:"pm_cwd"`
	} `json:"pm2_env"`
}

// scanServices lists supervised services via pm2. A missing supervisor just
// yields no service assets.
func scanServices(ctx context.Context) []*db.Asset {
	out, err := exec.CommandContext(ctx, "pm2", "jlist").Output()
	if err != nil {
		return nil
	}

	var procs []pm2Process
	if err := json.Unmarshal(out, &procs); err != nil {
		return nil
	}

	var assets []*db.Asset
	for _, p := range procs {
		path := p.PM2Env.Cwd
		if path == "" {
			path = p.Name
		}
		meta, _ := json.Marshal(map[string]any{
			"name":   p.Name,
			"status": p.PM2Env.Status,
			"pm_id":  p.PMID,
		})
		assets = append(assets, &db.Asset{
			Path: path, Type: db.AssetService, Source: "scan", Meta: meta,
		})
	}
	return assets
}
