// Package tracker is the aggregation engine: the single entry point that
// turns invocation observations into durable increments, plus the query API
// that derives per-primitive and summary statistics from them.
//
// The write path (Record, ReportTokens) never returns errors. Tracking is
// droppable by contract: a failing store degrades to "observation silently
// dropped", never to an error the host has to handle. Read paths surface
// errors normally.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mcpstat/internal/logging"
	"mcpstat/internal/store"
	"mcpstat/internal/tags"
)

// Default artifact locations, relative to the working directory. Descriptive
// names so the files are recognizable next to the host server's own data.
const (
	DefaultDBPath       = "./mcp_stat_data.sqlite"
	DefaultAuditLogPath = "./mcp_stat.log"
)

// charsPerToken converts response character counts to estimated tokens.
// Conservative ratio for English-ish text; the estimate delta is truncated
// (350 chars -> 100 tokens), never rounded up.
const charsPerToken = 3.5

// Config carries everything a Tracker needs at construction. Zero-value
// paths fall back to the defaults above.
type Config struct {
	// ServerName identifies the host server in prompts and descriptions.
	ServerName string

	// DBPath is the SQLite database location. ":memory:" works for tests.
	DBPath string

	// AuditLogPath and AuditEnabled control the pipe-delimited invocation
	// log. Disabled by default.
	AuditLogPath string
	AuditEnabled bool

	// Presets pin metadata for specific names, overriding what sync derives.
	Presets map[string]Preset

	// CleanupOrphans makes sync authoritative: metadata for names absent
	// from the batch is deleted (usage history is never touched).
	CleanupOrphans bool
}

// Tracker owns the store and the audit log for its lifetime. Construct one
// per process and hand it to every call site; there is no package-level
// shared instance.
type Tracker struct {
	serverName     string
	db             *store.Store
	audit          *logging.UsageLog
	cleanupOrphans bool

	mu      sync.Mutex
	presets map[string]Preset
}

// New opens the store (running schema migration, fatal on failure) and the
// audit log, and returns a ready Tracker.
func New(cfg Config) (*Tracker, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	auditPath := ""
	if cfg.AuditEnabled {
		auditPath = cfg.AuditLogPath
		if auditPath == "" {
			auditPath = DefaultAuditLogPath
		}
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("tracker init: %w", err)
	}

	presets := make(map[string]Preset, len(cfg.Presets))
	for name, p := range cfg.Presets {
		presets[name] = p
	}

	t := &Tracker{
		serverName:     cfg.ServerName,
		db:             db,
		audit:          logging.NewUsageLog(auditPath),
		cleanupOrphans: cfg.CleanupOrphans,
		presets:        presets,
	}
	logging.Track("Tracker ready: server=%s db=%s audit=%v", cfg.ServerName, cfg.DBPath, t.audit.Enabled())
	return t, nil
}

// Record applies one invocation observation. Never returns an error and
// never panics outward: every internal failure is logged and swallowed.
//
// Failed invocations (Success=false) increment call_count exactly like
// successful ones; the error message goes to the audit log only. An unknown
// primitive type still produces an audit line but the aggregate write is
// dropped.
func (t *Tracker) Record(ctx context.Context, obs Observation) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryTrack).Error("Record panic for %s: %v", obs.Name, r)
		}
	}()

	// Audit first: the line documents the invocation even when the
	// aggregate write fails or the type is bogus.
	t.audit.Log(obs.Name, obs.Type, obs.Success, obs.ErrorMsg)

	delta := store.UsageDelta{
		CallCount:       1,
		InputTokens:     obs.InputTokens,
		OutputTokens:    obs.OutputTokens,
		ResponseChars:   obs.ResponseChars,
		EstimatedTokens: int64(float64(obs.ResponseChars) / charsPerToken),
		DurationMs:      obs.DurationMs,
	}

	if err := t.db.UpsertUsage(obs.Name, obs.Type, time.Now(), delta); err != nil {
		logging.Get(logging.CategoryTrack).Error("Tracking failed for %s: %v", obs.Name, err)
		return
	}
	logging.TrackDebug("Recorded %s:%s success=%v", obs.Type, obs.Name, obs.Success)
}

// ReportTokens adds actual token counts to an already recorded name without
// touching call_count or last_accessed. Same suppression contract as Record;
// reporting against a name with no usage row is a caller error that is
// logged, not raised.
func (t *Tracker) ReportTokens(ctx context.Context, name string, inputTokens, outputTokens int64) {
	if err := t.db.AddTokens(name, inputTokens, outputTokens); err != nil {
		logging.Get(logging.CategoryTrack).Error("Token report failed for %s: %v", name, err)
		return
	}
	logging.TrackDebug("Tokens reported for %s: %d in / %d out", name, inputTokens, outputTokens)
}

// RegisterMetadata writes catalog metadata for one name. Tags are normalized
// and deduplicated; repeated registration with the same input is idempotent.
func (t *Tracker) RegisterMetadata(ctx context.Context, name string, tagList []string, short, full string) error {
	return t.db.UpsertMetadata(name, tags.Normalize(tagList, false), short, full)
}

// AddPreset pins tags and a short description for name, applied by the next
// SyncDefinitions call.
func (t *Tracker) AddPreset(name string, tagList []string, short string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.presets[name] = Preset{Tags: tagList, Short: short}
}

// SyncDefinitions makes the metadata catalog mirror the given definitions.
// Tags come from the preset when one exists, otherwise from the name joined
// with any tags the definition declares; short descriptions come from the
// preset or the first sentence of the description. With orphan cleanup
// enabled, metadata for names absent from the batch is removed.
func (t *Tracker) SyncDefinitions(ctx context.Context, defs []Definition) error {
	timer := logging.StartTimer(logging.CategoryCatalog, "SyncDefinitions")
	defer timer.Stop()

	batch := make([]store.MetadataUpsert, 0, len(defs))
	for _, def := range defs {
		tagList, short := t.deriveMetadata(def)
		batch = append(batch, store.MetadataUpsert{
			Name:             def.Name,
			Tags:             tagList,
			ShortDescription: short,
			FullDescription:  def.Description,
		})
	}

	if err := t.db.SyncMetadata(batch, t.cleanupOrphans); err != nil {
		return fmt.Errorf("sync definitions: %w", err)
	}
	logging.Catalog("Synced %d definitions (cleanup=%v)", len(defs), t.cleanupOrphans)
	return nil
}

func (t *Tracker) deriveMetadata(def Definition) ([]string, string) {
	t.mu.Lock()
	preset, hasPreset := t.presets[def.Name]
	t.mu.Unlock()

	var tagList []string
	var short string

	if hasPreset {
		tagList = tags.Normalize(preset.Tags, false)
		short = preset.Short
		if short == "" {
			short = tags.DeriveShortDescription(def.Description, def.Name, tags.DefaultShortDescriptionLen)
		}
	} else {
		candidates := append(tags.Extract(def.Name), def.Tags...)
		tagList = tags.Normalize(candidates, false)
		short = tags.DeriveShortDescription(def.Description, def.Name, tags.DefaultShortDescriptionLen)
	}

	if len(tagList) == 0 {
		tagList = []string{strings.ToLower(def.Name)}
	}
	return tagList, short
}

// ServerName returns the host server identifier given at construction.
func (t *Tracker) ServerName() string {
	return t.serverName
}

// AuditEnabled reports whether the audit log is actually writing lines.
func (t *Tracker) AuditEnabled() bool {
	return t.audit.Enabled()
}

// Close releases the store and audit log. Safe to call multiple times;
// subsequent writes are dropped (suppression contract) and reads fail fast.
func (t *Tracker) Close() error {
	t.audit.Close()
	return t.db.Close()
}
