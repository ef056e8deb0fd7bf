package sqlstore

import (
	"context"
	"database/sql"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/nodes"
)

var _ nodes.Store = (*DB)(nil)

func (d *DB) Relations(ctx context.Context, projectID int64) (map[string]int64, error) {
	return d.nameMap(ctx, "relation", "relation_name", projectID)
}

func (d *DB) Classes(ctx context.Context, projectID int64) (map[string]int64, error) {
	return d.nameMap(ctx, "class", "class_name", projectID)
}

const treenodeColumns = `id, parent_id, location_x, location_y, location_z, confidence, user_id, radius, skeleton_id`

func scanTreenodes(rows *sql.Rows) ([]nodes.Treenode, error) {
	defer rows.Close()
	var out []nodes.Treenode
	for rows.Next() {
		var tn nodes.Treenode
		var parent sql.NullInt64
		if err := rows.Scan(&tn.ID, &parent, &tn.X, &tn.Y, &tn.Z, &tn.Confidence, &tn.UserID, &tn.Radius, &tn.SkeletonID); err != nil {
			return nil, catvol.StoreErr("scan treenode", err)
		}
		tn.ParentID = pointer(parent)
		out = append(out, tn)
	}
	if err := rows.Err(); err != nil {
		return nil, catvol.StoreErr("scan treenode", err)
	}
	return out, nil
}

func (d *DB) TreenodesInBox(ctx context.Context, projectID int64, box nodes.Box, limit int) ([]nodes.Treenode, error) {
	rows, err := d.query(ctx, d.db, `SELECT `+treenodeColumns+` FROM treenode
		WHERE project_id = ?
			AND location_x >= ? AND location_x <= ?
			AND location_y >= ? AND location_y <= ?
			AND location_z >= ? AND location_z <= ?
		ORDER BY id LIMIT ?`,
		projectID, box.MinX, box.MaxX, box.MinY, box.MaxY, box.MinZ, box.MaxZ, limit)
	if err != nil {
		return nil, err
	}
	return scanTreenodes(rows)
}

func (d *DB) SkeletonTreenodes(ctx context.Context, projectID int64, skeletonIDs ...int64) ([]nodes.Treenode, error) {
	if len(skeletonIDs) == 0 {
		return nil, nil
	}
	cond, args := d.in("skeleton_id", skeletonIDs)
	rows, err := d.query(ctx, d.db, `SELECT `+treenodeColumns+` FROM treenode
		WHERE project_id = ? AND `+cond+` ORDER BY id`, append([]interface{}{projectID}, args...)...)
	if err != nil {
		return nil, err
	}
	return scanTreenodes(rows)
}

func (d *DB) TreenodesByID(ctx context.Context, projectID int64, ids []int64) ([]nodes.Treenode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cond, args := d.in("id", ids)
	rows, err := d.query(ctx, d.db, `SELECT `+treenodeColumns+` FROM treenode
		WHERE project_id = ? AND `+cond+` ORDER BY id`, append([]interface{}{projectID}, args...)...)
	if err != nil {
		return nil, err
	}
	return scanTreenodes(rows)
}

func (d *DB) ConnectorsInBox(ctx context.Context, projectID int64, box nodes.Box, limit int) ([]nodes.ConnectorRow, error) {
	rows, err := d.query(ctx, d.db, `
		SELECT c.id, c.location_x, c.location_y, c.location_z, c.confidence, c.user_id,
			tc.relation_id, tc.treenode_id, tc.confidence
		FROM connector c LEFT OUTER JOIN treenode_connector tc ON tc.connector_id = c.id
		WHERE c.project_id = ?
			AND c.location_x >= ? AND c.location_x <= ?
			AND c.location_y >= ? AND c.location_y <= ?
			AND c.location_z >= ? AND c.location_z <= ?
		ORDER BY c.id, tc.id LIMIT ?`,
		projectID, box.MinX, box.MaxX, box.MinY, box.MaxY, box.MinZ, box.MaxZ, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []nodes.ConnectorRow
	for rows.Next() {
		var row nodes.ConnectorRow
		var relation, treenode, confidence sql.NullInt64
		if err := rows.Scan(&row.ID, &row.X, &row.Y, &row.Z, &row.Confidence, &row.UserID,
			&relation, &treenode, &confidence); err != nil {
			return nil, catvol.StoreErr("scan connector", err)
		}
		row.RelationID, row.TreenodeID = pointer(relation), pointer(treenode)
		if confidence.Valid {
			c := int(confidence.Int64)
			row.TCConfidence = &c
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, catvol.StoreErr("scan connector", err)
	}
	return out, nil
}

func (d *DB) LinkedFrom(ctx context.Context, projectID, relationID, instanceA int64) ([]nodes.Instance, error) {
	rows, err := d.query(ctx, d.db, `
		SELECT b.id, b.name, c.class_name
		FROM class_instance_class_instance cici
			JOIN class_instance b ON b.id = cici.class_instance_b
			JOIN class c ON c.id = b.class_id
		WHERE cici.project_id = ? AND cici.relation_id = ? AND cici.class_instance_a = ?
		ORDER BY cici.id`, projectID, relationID, instanceA)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []nodes.Instance
	for rows.Next() {
		var inst nodes.Instance
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.Class); err != nil {
			return nil, catvol.StoreErr("scan class instance", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, catvol.StoreErr("scan class instance", err)
	}
	return out, nil
}

func (d *DB) LinkedTo(ctx context.Context, projectID, relationID, instanceB int64) ([]int64, error) {
	rows, err := d.query(ctx, d.db, `
		SELECT class_instance_a FROM class_instance_class_instance
		WHERE project_id = ? AND relation_id = ? AND class_instance_b = ?
		ORDER BY id`, projectID, relationID, instanceB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, catvol.StoreErr("scan class instance link", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, catvol.StoreErr("scan class instance link", err)
	}
	return out, nil
}
