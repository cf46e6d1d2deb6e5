package evidence

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/tordrt/lala/internal/dataset"
	"github.com/tordrt/lala/internal/idmap"
	"github.com/tordrt/lala/internal/pseudonym"
	"github.com/tordrt/lala/internal/relations"
	"github.com/tordrt/lala/internal/schema"
)

// Source is the database capability a version run reads from.
type Source interface {
	relations.SchemaIntrospector
	relations.RowReader
}

// Options configures a version run.
type Options struct {
	// RootTable holds the entities the dataset's sample ids refer to.
	RootTable string
	// Anonymize pseudonymizes the dataset and all related data.
	Anonymize bool
	// TrainRatio is the share of shuffled rows that go to the train dataset.
	TrainRatio float64
	// PluralTables lets "user_id" reference a "users" table.
	PluralTables bool
}

// Version gathers the evidence of one model version. A Version runs once and
// is not safe for concurrent use.
type Version struct {
	id     uuid.UUID
	source Source
	store  Store
	opts   Options
	logger *zap.Logger

	walker        *relations.Walker
	pseudonymizer *pseudonym.Pseudonymizer
	manifest      *Manifest
}

// NewVersion creates a version run. If logger is nil, a no-op logger is used.
func NewVersion(source Source, store Store, opts Options, logger *zap.Logger) *Version {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New()
	logger = logger.With(zap.String("version_id", id.String()))

	var walkerOpts []relations.WalkerOption
	var pseudonymOpts []pseudonym.Option
	if opts.PluralTables {
		walkerOpts = append(walkerOpts, relations.WithPluralTables())
		pseudonymOpts = append(pseudonymOpts, pseudonym.WithPluralTables())
	}

	return &Version{
		id:            id,
		source:        source,
		store:         store,
		opts:          opts,
		logger:        logger,
		walker:        relations.NewWalker(source, source, logger, walkerOpts...),
		pseudonymizer: pseudonym.New(logger, pseudonymOpts...),
		manifest: &Manifest{
			VersionID:  id.String(),
			CreatedAt:  time.Now().UTC(),
			RootTable:  opts.RootTable,
			Anonymized: opts.Anonymize,
		},
	}
}

// ID returns the version id.
func (v *Version) ID() uuid.UUID {
	return v.id
}

// Run persists the dataset, its shuffled train/test split and the related
// data of the dataset's entities. The manifest is saved whether or not the
// run succeeds; on failure it carries the error and later steps are skipped.
func (v *Version) Run(ctx context.Context, ds *dataset.Dataset) (m *Manifest, err error) {
	defer func() { m, err = v.finish(ctx, err) }()

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	ids, err := ds.IDsUsed()
	if err != nil {
		return nil, err
	}

	working := ds
	var rootMap *idmap.Map
	if v.opts.Anonymize {
		rootMap, err = idmap.FromIDs(ids)
		if err != nil {
			return nil, err
		}
		working, err = ds.Pseudonymize(rootMap)
		if err != nil {
			return nil, err
		}
		if err := v.persist(ctx, KindDatasetAnonymized, "", Payload{Dataset: working}); err != nil {
			return nil, err
		}
	} else {
		if err := v.persist(ctx, KindDataset, "", Payload{Dataset: working}); err != nil {
			return nil, err
		}
	}

	shuffled := working.Shuffled()
	if err := v.persist(ctx, KindDatasetShuffled, "", Payload{Dataset: shuffled}); err != nil {
		return nil, err
	}

	train, test := shuffled.Split(trainSize(shuffled.Len(), v.opts.TrainRatio))
	if err := v.persist(ctx, KindTrainDataset, "", Payload{Dataset: train}); err != nil {
		return nil, err
	}
	if err := v.persist(ctx, KindTestDataset, "", Payload{Dataset: test}); err != nil {
		return nil, err
	}

	if err := v.collectRelated(ctx, ids, rootMap); err != nil {
		return nil, err
	}
	return v.manifest, nil
}

// CollectRelated persists the related data of the given root entities only.
func (v *Version) CollectRelated(ctx context.Context, ids []int64) (m *Manifest, err error) {
	defer func() { m, err = v.finish(ctx, err) }()

	ids = lo.Uniq(ids)
	var rootMap *idmap.Map
	if v.opts.Anonymize {
		if rootMap, err = idmap.FromIDs(ids); err != nil {
			return nil, err
		}
	}
	if err := v.collectRelated(ctx, ids, rootMap); err != nil {
		return nil, err
	}
	return v.manifest, nil
}

// collectRelated discovers the related tables, fetches their rows and, when
// anonymizing, builds every identity map before pseudonymizing anything: a
// foreign key may point at a table that comes later in discovery order.
func (v *Version) collectRelated(ctx context.Context, ids []int64, rootMap *idmap.Map) error {
	graph, err := v.walker.Discover(ctx, v.opts.RootTable, ids, nil)
	if err != nil {
		return fmt.Errorf("failed to discover related tables: %w", err)
	}
	tables := graph.Tables()
	for _, table := range tables {
		v.manifest.Tables = append(v.manifest.Tables, TableSummary{Name: table, IDs: len(graph.IDs(table))})
	}
	v.logger.Info("Discovered related tables", zap.Strings("tables", tables))

	rowSets := make([]*schema.RowSet, 0, len(tables))
	for _, table := range tables {
		rs, err := v.fetch(ctx, table, graph.IDs(table))
		if err != nil {
			return err
		}
		rowSets = append(rowSets, rs)
	}

	if v.opts.Anonymize {
		for _, rs := range rowSets {
			if err := v.pseudonymizer.CheckAnonymity(rs.Table, rs.Rows, tables); err != nil {
				return err
			}
		}

		idmaps := make(map[string]*idmap.Map, len(tables))
		for _, table := range tables {
			if table == v.opts.RootTable && rootMap != nil {
				idmaps[table] = rootMap
				continue
			}
			m, err := idmap.FromIDs(graph.IDs(table))
			if err != nil {
				return fmt.Errorf("failed to map ids of %s: %w", table, err)
			}
			idmaps[table] = m
		}

		for _, rs := range rowSets {
			rows, err := v.pseudonymizer.Pseudonymize(rs.Rows, idmaps, rs.Table)
			if err != nil {
				return err
			}
			rs.Rows = rows
		}
	}

	for _, rs := range rowSets {
		if err := v.persist(ctx, KindRelatedData, rs.Table, Payload{Rows: rs}); err != nil {
			return err
		}
	}
	return nil
}

func (v *Version) fetch(ctx context.Context, table string, ids []int64) (*schema.RowSet, error) {
	columns, err := v.source.ListColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", table, err)
	}
	names := lo.Map(columns, func(c schema.Column, _ int) string { return c.Name })

	rows, err := v.source.FetchRowsByIDs(ctx, table, relations.PrimaryKeyColumn, ids, names)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rows of %s: %w", table, err)
	}
	return &schema.RowSet{Table: table, Columns: names, Rows: rows}, nil
}

// persist serializes and stores one evidence item. A failed item is removed
// so no partial file is left behind.
func (v *Version) persist(ctx context.Context, kind Kind, table string, p Payload) error {
	key := Key{VersionID: v.id, Kind: kind, EvidenceID: uuid.New(), Table: table}

	var buf bytes.Buffer
	if err := kind.Serialize(&buf, p); err != nil {
		return fmt.Errorf("failed to serialize %s: %w", kind, err)
	}

	location, err := v.store.Put(ctx, key, buf.Bytes())
	if err != nil {
		if delErr := v.store.Delete(ctx, key); delErr != nil {
			v.logger.Warn("Failed to remove partial evidence", zap.String("kind", kind.String()), zap.Error(delErr))
		}
		return fmt.Errorf("failed to store %s: %w", kind, err)
	}

	rows := 0
	switch {
	case p.Dataset != nil:
		rows = p.Dataset.Len()
	case p.Rows != nil:
		rows = len(p.Rows.Rows)
	}
	v.manifest.Evidence = append(v.manifest.Evidence, Item{
		ID:       key.EvidenceID.String(),
		Kind:     kind.String(),
		Table:    table,
		Location: location,
		Rows:     rows,
	})
	v.logger.Debug("Stored evidence",
		zap.String("kind", kind.String()),
		zap.String("table", table),
		zap.String("location", location))
	return nil
}

// finish records the outcome in the manifest and saves it.
func (v *Version) finish(ctx context.Context, runErr error) (*Manifest, error) {
	if runErr != nil {
		v.manifest.Error = runErr.Error()
		v.logger.Error("Evidence collection failed", zap.Error(runErr))
	}
	if _, err := v.store.SaveManifest(ctx, v.manifest); err != nil {
		if runErr != nil {
			return v.manifest, runErr
		}
		return v.manifest, err
	}
	return v.manifest, runErr
}

// trainSize returns how many of n rows go to the train dataset: at least
// one, and all of them when n is 1.
func trainSize(n int, ratio float64) int {
	if n == 0 {
		return 0
	}
	size := int(math.Floor(float64(n) * ratio))
	return max(1, min(size, n))
}
