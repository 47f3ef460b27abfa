// Package heapdump persists heap snapshots to SQLite so that a run can be
// inspected after the fact: which nodes were live, who pointed at whom, and
// the pool counters at the moment of capture.
package heapdump

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/funvibe/funcell/internal/core"
)

// timeFormat is fixed-width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Load for an unknown dump id.
var ErrNotFound = errors.New("heap dump not found")

const schema = `
CREATE TABLE IF NOT EXISTS dumps (
	id       TEXT PRIMARY KEY,
	owner    TEXT NOT NULL,
	label    TEXT NOT NULL,
	taken    TEXT NOT NULL,
	tick     INTEGER NOT NULL,
	managed  INTEGER NOT NULL,
	manual   INTEGER NOT NULL,
	pairings INTEGER NOT NULL,
	cycles   INTEGER NOT NULL,
	swept    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS nodes (
	dump    TEXT NOT NULL REFERENCES dumps(id),
	id      INTEGER NOT NULL,
	type    TEXT NOT NULL,
	leading INTEGER NOT NULL,
	flags   INTEGER NOT NULL,
	width   INTEGER NOT NULL,
	used    INTEGER NOT NULL,
	rest    INTEGER NOT NULL,
	bias    INTEGER NOT NULL,
	managed INTEGER NOT NULL,
	root    INTEGER NOT NULL,
	PRIMARY KEY (dump, id)
);
CREATE TABLE IF NOT EXISTS edges (
	dump TEXT NOT NULL REFERENCES dumps(id),
	src  INTEGER NOT NULL,
	dst  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS edges_src ON edges (dump, src);
`

// Dump is one captured heap.
type Dump struct {
	ID    uuid.UUID
	Owner uuid.UUID
	Label string
	Taken time.Time
	Stats core.Stats
	Nodes []core.NodeInfo
}

// Capture snapshots h. owner identifies the runtime the heap belongs to.
func Capture(h *core.Heap, owner uuid.UUID, label string) *Dump {
	d := &Dump{
		ID:    uuid.New(),
		Owner: owner,
		Label: label,
		Taken: time.Now().UTC(),
		Stats: h.Stats(),
	}
	h.Walk(func(info core.NodeInfo) {
		d.Nodes = append(d.Nodes, info)
	})
	return d
}

// Summary is the header row of a stored dump.
type Summary struct {
	ID      uuid.UUID
	Owner   uuid.UUID
	Label   string
	Taken   time.Time
	Tick    uint64
	Managed int
	Manual  int
}

// Store is a SQLite database of dumps.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// One connection: an in-memory database is private to its connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema in %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save writes d in a single transaction.
func (s *Store) Save(ctx context.Context, d *Dump) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dumps (id, owner, label, taken, tick, managed, manual, pairings, cycles, swept)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID.String(), d.Owner.String(), d.Label, d.Taken.Format(timeFormat),
		int64(d.Stats.Tick), d.Stats.Managed, d.Stats.Manual, d.Stats.Pairings,
		int64(d.Stats.Cycles), int64(d.Stats.Swept))
	if err != nil {
		return fmt.Errorf("inserting dump: %w", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO nodes (dump, id, type, leading, flags, width, used, rest, bias, managed, root)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()
	edgeStmt, err := tx.PrepareContext(ctx, `INSERT INTO edges (dump, src, dst) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	id := d.ID.String()
	for _, n := range d.Nodes {
		_, err = nodeStmt.ExecContext(ctx, id, int64(n.ID), n.Type, int(n.Leading), int64(n.Flags),
			n.Width, n.Used, n.Rest, n.Bias, boolInt(n.Managed), boolInt(n.Root))
		if err != nil {
			return fmt.Errorf("inserting node %d: %w", n.ID, err)
		}
		for _, ref := range n.Refs {
			if _, err = edgeStmt.ExecContext(ctx, id, int64(n.ID), int64(ref)); err != nil {
				return fmt.Errorf("inserting edge %d->%d: %w", n.ID, ref, err)
			}
		}
	}
	return tx.Commit()
}

// List returns the stored dumps, oldest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, label, taken, tick, managed, manual FROM dumps ORDER BY taken, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum              Summary
			id, owner, taken string
			tick             int64
		)
		if err := rows.Scan(&id, &owner, &sum.Label, &taken, &tick, &sum.Managed, &sum.Manual); err != nil {
			return nil, err
		}
		if sum.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("dump id %q: %w", id, err)
		}
		if sum.Owner, err = uuid.Parse(owner); err != nil {
			return nil, fmt.Errorf("owner id %q: %w", owner, err)
		}
		if sum.Taken, err = time.Parse(timeFormat, taken); err != nil {
			return nil, err
		}
		sum.Tick = uint64(tick)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Load reads a dump back, nodes ordered by allocation tick.
func (s *Store) Load(ctx context.Context, id uuid.UUID) (*Dump, error) {
	d := &Dump{ID: id}
	var (
		owner, taken        string
		tick, cycles, swept int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT owner, label, taken, tick, managed, manual, pairings, cycles, swept FROM dumps WHERE id = ?`,
		id.String()).Scan(&owner, &d.Label, &taken, &tick,
		&d.Stats.Managed, &d.Stats.Manual, &d.Stats.Pairings, &cycles, &swept)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if d.Owner, err = uuid.Parse(owner); err != nil {
		return nil, err
	}
	if d.Taken, err = time.Parse(timeFormat, taken); err != nil {
		return nil, err
	}
	d.Stats.Tick, d.Stats.Cycles, d.Stats.Swept = uint64(tick), uint64(cycles), uint64(swept)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, leading, flags, width, used, rest, bias, managed, root
		 FROM nodes WHERE dump = ? ORDER BY id`, id.String())
	if err != nil {
		return nil, err
	}
	index := make(map[uint64]int)
	for rows.Next() {
		var (
			n          core.NodeInfo
			nid, flags int64
			leading    int
		)
		if err := rows.Scan(&nid, &n.Type, &leading, &flags, &n.Width, &n.Used, &n.Rest, &n.Bias,
			&n.Managed, &n.Root); err != nil {
			rows.Close()
			return nil, err
		}
		n.ID, n.Leading, n.Flags = uint64(nid), byte(leading), uint32(flags)
		index[n.ID] = len(d.Nodes)
		d.Nodes = append(d.Nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	edges, err := s.db.QueryContext(ctx,
		`SELECT src, dst FROM edges WHERE dump = ? ORDER BY rowid`, id.String())
	if err != nil {
		return nil, err
	}
	defer edges.Close()
	for edges.Next() {
		var src, dst int64
		if err := edges.Scan(&src, &dst); err != nil {
			return nil, err
		}
		if i, ok := index[uint64(src)]; ok {
			d.Nodes[i].Refs = append(d.Nodes[i].Refs, uint64(dst))
		}
	}
	return d, edges.Err()
}

// Referrers returns the ids of nodes in dump id that reference target.
func (s *Store) Referrers(ctx context.Context, id uuid.UUID, target uint64) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT src FROM edges WHERE dump = ? AND dst = ? ORDER BY src`, id.String(), int64(target))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var src int64
		if err := rows.Scan(&src); err != nil {
			return nil, err
		}
		out = append(out, uint64(src))
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
