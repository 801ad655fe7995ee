// assessctl runs the assessment pipeline for one tenant from the command
// line: start a run, execute it, and print the per-domain scores.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/TenantGuard/go-api/tenantguard"
	"github.com/TenantGuard/go-api/tenantguard/assess"
	"github.com/TenantGuard/go-api/tenantguard/assess/catalog"
	"github.com/TenantGuard/go-api/tenantguard/assess/modules"
	"github.com/TenantGuard/go-api/tenantguard/postgres"
	"github.com/TenantGuard/go-api/tenantguard/queue"
	"github.com/TenantGuard/go-api/tenantguard/runs"
	"github.com/TenantGuard/go-api/tenantguard/slogger"
	"github.com/TenantGuard/go-api/tenantguard/snapshot"
	"github.com/TenantGuard/go-api/tenantguard/store"
)

func main() {
	slogger.Init()

	var (
		tenantID    = flag.String("tenant", "", "tenant identifier (required)")
		domainsFlag = flag.String("domains", "", "comma-separated domains to assess (default: all registered)")
		initiatedBy = flag.String("initiated-by", "assessctl", "who initiated the run")
		catalogPath = flag.String("catalog", "", "path to a custom check catalog (default: built-in)")
		inventory   = flag.Bool("inventory", false, "run inventory modules instead of an assessment")
		doSnapshot  = flag.Bool("snapshot", false, "cache a posture snapshot after a completed run")
		preflight   = flag.Bool("preflight", false, "skip modules whose permission validation fails")
		relay       = flag.Bool("relay", false, "publish progress updates to the message queue")
	)
	flag.Parse()

	if *tenantID == "" {
		fmt.Fprintln(os.Stderr, "usage: assessctl -tenant <id> [-domains identity,privileged_access] [-inventory]")
		os.Exit(2)
	}

	cat := catalog.Default()
	if *catalogPath != "" {
		loaded, err := catalog.LoadFile(*catalogPath)
		if err != nil {
			slog.Error("Failed to load check catalog", "path", *catalogPath, "error", err)
			os.Exit(1)
		}
		cat = loaded
	}

	uow, err := postgres.NewUnitOfWork()
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}

	var kv store.KVStore
	if kv, err = store.NewValkeyStore(); err != nil {
		slog.Warn("KV store unavailable; baselines and snapshots disabled", "error", err)
		kv = nil
	} else {
		defer kv.Close()
	}

	registry := assess.NewRegistry()
	registry.Register(modules.NewIdentityModule(cat))
	registry.Register(modules.NewPrivilegedRolesModule(cat))
	registry.Register(modules.NewConditionalAccessModule(cat))
	registry.RegisterInventory(modules.NewApplicationsInventory(cat, uow, kv))

	opts := []assess.EngineOption{
		assess.WithProgressSink(func(u tenantguard.ProgressUpdate) {
			fmt.Printf("[%3d%%] %s\n", u.Percent, u.Operation)
		}),
	}
	if *relay {
		opts = append(opts, assess.WithProgressSink(queue.PublishProgress))
	}
	if *preflight {
		opts = append(opts, assess.WithPermissionPreflight())
	}

	factory := assess.TokenClientFactory{
		Token:   os.Getenv("POSTURE_API_TOKEN"),
		Timeout: 30 * time.Second,
	}
	engine := assess.NewEngine(uow, assess.UnlimitedQuota{}, factory, registry, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *inventory {
		runInventory(ctx, engine, *tenantID)
		return
	}

	runID, err := engine.StartAssessment(ctx, *tenantID, parseDomains(*domainsFlag), *initiatedBy)
	if err != nil {
		slog.Error("Failed to start assessment", "error", err)
		os.Exit(1)
	}

	if err := engine.ExecuteAssessment(ctx, runID); err != nil {
		slog.Error("Assessment failed", "runId", runID, "error", err)
		os.Exit(1)
	}

	printRun(runID)

	if *doSnapshot && kv != nil {
		manager := snapshot.NewPostureManager(kv)
		if snap, err := manager.CreateSnapshot(ctx, runID); err != nil {
			slog.Warn("Failed to cache posture snapshot", "runId", runID, "error", err)
		} else {
			fmt.Printf("Posture snapshot cached: %s\n", snap.SnapshotID)
		}
	}
}

func runInventory(ctx context.Context, engine *assess.Engine, tenantID string) {
	results, err := engine.RunInventory(ctx, tenantID, "")
	if err != nil {
		slog.Error("Inventory collection failed", "error", err)
		os.Exit(1)
	}

	for _, r := range results {
		if !r.Success {
			fmt.Printf("%-20s unavailable: %s\n", r.Domain, r.ErrorMessage)
			continue
		}
		fmt.Printf("%-20s %d items", r.Domain, r.ItemCount)
		if r.Delta != nil {
			fmt.Printf(" (+%d / -%d / ~%d)", r.Delta.Added, r.Delta.Removed, r.Delta.Modified)
		}
		fmt.Println()
		for _, w := range r.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}
}

func printRun(runID string) {
	run, err := runs.GetRun(runID)
	if err != nil {
		slog.Warn("Failed to reload run for display", "runId", runID, "error", err)
		return
	}

	fmt.Printf("\nRun %s: %s\n", run.RunID, run.Status)
	if run.ErrorMessage != "" {
		fmt.Printf("Error: %s\n", run.ErrorMessage)
	}

	var scores []tenantguard.DomainScore
	if run.ScoreSummary != "" {
		if err := json.Unmarshal([]byte(run.ScoreSummary), &scores); err != nil {
			slog.Warn("Failed to parse score summary", "runId", runID, "error", err)
		}
	}
	for _, s := range scores {
		if !s.IsAvailable {
			fmt.Printf("%-20s unavailable: %s\n", s.Domain, s.UnavailableReason)
			continue
		}
		fmt.Printf("%-20s %3d/100 (%s)  checks %d/%d passed\n", s.Domain, s.Score, s.Grade, s.PassedChecks, s.TotalChecks)
	}
	if run.OverallScore != nil {
		fmt.Printf("%-20s %3d/100 (%s)\n", "overall", *run.OverallScore, assess.Grade(*run.OverallScore))
	} else {
		fmt.Printf("%-20s no domains had usable data\n", "overall")
	}
}

func parseDomains(s string) []tenantguard.Domain {
	if s == "" {
		return nil
	}
	var out []tenantguard.Domain
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, tenantguard.Domain(p))
		}
	}
	return out
}
