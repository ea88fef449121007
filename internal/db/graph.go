package db

import (
	"fmt"
	"strings"

	"chatgraph/internal/model"
)

// Direction selects which side of an edge a traversal follows.
type Direction string

const (
	DirOut  Direction = "out"
	DirIn   Direction = "in"
	DirBoth Direction = "both"
)

// Neighbor pairs an edge with the node on its far side.
type Neighbor struct {
	Edge model.Edge
	Node model.Node
}

// Neighbors returns the nodes one hop from nodeID, optionally restricted to
// the given edge types. Unknown ids yield an empty slice, not an error.
func (d *DB) Neighbors(nodeID string, edgeTypes []model.EdgeType, dir Direction) ([]Neighbor, error) {
	var out []Neighbor
	if dir == DirOut || dir == DirBoth || dir == "" {
		ns, err := d.neighborsOneWay(nodeID, edgeTypes, "source_id", "target_id")
		if err != nil {
			return nil, err
		}
		out = append(out, ns...)
	}
	if dir == DirIn || dir == DirBoth {
		ns, err := d.neighborsOneWay(nodeID, edgeTypes, "target_id", "source_id")
		if err != nil {
			return nil, err
		}
		out = append(out, ns...)
	}
	return out, nil
}

func (d *DB) neighborsOneWay(nodeID string, edgeTypes []model.EdgeType, near, far string) ([]Neighbor, error) {
	query := fmt.Sprintf(`
		SELECT e.id, e.type, e.source_id, e.target_id, e.weight,
		       n.id, n.type, n.label, n.ref_table, n.ref_id
		FROM edges e
		JOIN nodes n ON n.id = e.%s
		WHERE e.%s = ?`, far, near)
	args := []any{nodeID}
	if len(edgeTypes) > 0 {
		query += " AND e.type IN (?" + strings.Repeat(", ?", len(edgeTypes)-1) + ")"
		for _, t := range edgeTypes {
			args = append(args, string(t))
		}
	}
	query += " ORDER BY e.id"

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying neighbors of %s: %w", nodeID, err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var nb Neighbor
		if err := rows.Scan(
			&nb.Edge.ID, (*string)(&nb.Edge.Type), &nb.Edge.SourceID, &nb.Edge.TargetID, &nb.Edge.Weight,
			&nb.Node.ID, (*string)(&nb.Node.Type), &nb.Node.Label, &nb.Node.RefTable, &nb.Node.RefID,
		); err != nil {
			return nil, err
		}
		out = append(out, nb)
	}
	return out, rows.Err()
}
