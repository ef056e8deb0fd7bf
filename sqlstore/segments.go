package sqlstore

import (
	"context"
	"database/sql"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/segment"
)

var (
	_ segment.Store     = (*DB)(nil)
	_ segment.NodeStore = (*DB)(nil)
)

func (d *DB) Stack(ctx context.Context, projectID, stackID int64) (*catvol.Stack, error) {
	stack := &catvol.Stack{ProjectID: projectID}
	err := d.db.QueryRowContext(ctx, d.rebind(`
		SELECT s.id, s.title, s.dim_x, s.dim_y, s.dim_z, s.res_x, s.res_y, s.res_z
		FROM stack s JOIN project_stack ps ON ps.stack_id = s.id
		WHERE ps.project_id = ? AND s.id = ?`), projectID, stackID).Scan(
		&stack.ID, &stack.Title,
		&stack.Dimension.X, &stack.Dimension.Y, &stack.Dimension.Z,
		&stack.Resolution.X, &stack.Resolution.Y, &stack.Resolution.Z)
	if err == sql.ErrNoRows {
		return nil, catvol.NotFound("stack %d of project %d", stackID, projectID)
	}
	if err != nil {
		return nil, catvol.StoreErr("get stack", err)
	}
	rows, err := d.query(ctx, d.db, "SELECT z FROM broken_slice WHERE stack_id = ? ORDER BY z", stackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var z int32
		if err := rows.Scan(&z); err != nil {
			return nil, catvol.StoreErr("scan broken slices", err)
		}
		stack.BrokenSlices = append(stack.BrokenSlices, z)
	}
	if err := rows.Err(); err != nil {
		return nil, catvol.StoreErr("scan broken slices", err)
	}
	return stack, nil
}

func (d *DB) Skeleton(ctx context.Context, projectID, skeletonID int64) error {
	var id int64
	err := d.db.QueryRowContext(ctx, d.rebind(`
		SELECT ci.id FROM class_instance ci JOIN class c ON c.id = ci.class_id
		WHERE ci.project_id = ? AND ci.id = ? AND c.class_name = 'skeleton'`), projectID, skeletonID).Scan(&id)
	if err == sql.ErrNoRows {
		return catvol.NotFound("skeleton %d of project %d", skeletonID, projectID)
	}
	if err != nil {
		return catvol.StoreErr("get skeleton", err)
	}
	return nil
}

func (d *DB) SkeletonLocations(ctx context.Context, projectID, skeletonID int64) ([]catvol.Point3d, error) {
	rows, err := d.query(ctx, d.db, `
		SELECT location_x, location_y, location_z FROM treenode
		WHERE project_id = ? AND skeleton_id = ? ORDER BY id`, projectID, skeletonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catvol.Point3d
	for rows.Next() {
		var p catvol.Point3d
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, catvol.StoreErr("scan treenode", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, catvol.StoreErr("scan treenode", err)
	}
	return out, nil
}

const componentColumns = `id, project_id, stack_id, user_id, skeleton_id, component_id, z,
	min_x, min_y, max_x, max_y, threshold, status`

func scanComponents(rows *sql.Rows) ([]segment.Component, error) {
	defer rows.Close()
	var out []segment.Component
	for rows.Next() {
		var c segment.Component
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.StackID, &c.UserID, &c.SkeletonID, &c.ComponentID, &c.Z,
			&c.MinX, &c.MinY, &c.MaxX, &c.MaxY, &c.Threshold, &c.Status); err != nil {
			return nil, catvol.StoreErr("scan component", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, catvol.StoreErr("scan component", err)
	}
	return out, nil
}

func (d *DB) Components(ctx context.Context, scope segment.Scope) ([]segment.Component, error) {
	rows, err := d.query(ctx, d.db, `SELECT `+componentColumns+` FROM component
		WHERE project_id = ? AND stack_id = ? AND skeleton_id = ? AND z = ?
		ORDER BY component_id, id`, scope.ProjectID, scope.StackID, scope.SkeletonID, scope.Z)
	if err != nil {
		return nil, err
	}
	return scanComponents(rows)
}

func (d *DB) SkeletonComponents(ctx context.Context, projectID, stackID, skeletonID int64) ([]segment.Component, error) {
	rows, err := d.query(ctx, d.db, `SELECT `+componentColumns+` FROM component
		WHERE project_id = ? AND stack_id = ? AND skeleton_id = ?
		ORDER BY z, component_id, id`, projectID, stackID, skeletonID)
	if err != nil {
		return nil, err
	}
	return scanComponents(rows)
}

func (d *DB) ReplaceComponents(ctx context.Context, insert []segment.Component, remove []int64) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return catvol.StoreErr("begin", err)
	}
	defer tx.Rollback()
	for _, id := range remove {
		res, err := d.exec(ctx, tx, "DELETE FROM component WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return catvol.StoreErr("delete component", err)
		} else if n == 0 {
			return catvol.NotFound("component row %d", id)
		}
	}
	for _, c := range insert {
		if _, err := d.exec(ctx, tx, `INSERT INTO component (project_id, stack_id, user_id, skeleton_id,
			component_id, z, min_x, min_y, max_x, max_y, threshold, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ProjectID, c.StackID, c.UserID, c.SkeletonID, c.ComponentID, c.Z,
			c.MinX, c.MinY, c.MaxX, c.MaxY, c.Threshold, c.Status); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return catvol.StoreErr("commit components", err)
	}
	return nil
}

func (d *DB) Drawings(ctx context.Context, f segment.DrawingFilter) ([]segment.Drawing, error) {
	query := `SELECT id, project_id, stack_id, user_id, skeleton_id, component_id, z,
		min_x, min_y, max_x, max_y, type, svg, status FROM drawing
		WHERE project_id = ? AND stack_id = ? AND z = ?`
	args := []interface{}{f.ProjectID, f.StackID, f.Z}
	switch f.Kind {
	case segment.FreeDrawings:
		query += " AND component_id IS NULL"
	case segment.ComponentDrawings:
		query += " AND component_id IS NOT NULL"
	}
	if f.SkeletonID != nil {
		query += " AND skeleton_id = ?"
		args = append(args, *f.SkeletonID)
	}
	if f.ComponentID != nil {
		query += " AND component_id = ?"
		args = append(args, *f.ComponentID)
	}
	rows, err := d.query(ctx, d.db, query+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []segment.Drawing
	for rows.Next() {
		var dr segment.Drawing
		var skeleton, component sql.NullInt64
		var drawingType int
		if err := rows.Scan(&dr.ID, &dr.ProjectID, &dr.StackID, &dr.UserID, &skeleton, &component, &dr.Z,
			&dr.MinX, &dr.MinY, &dr.MaxX, &dr.MaxY, &drawingType, &dr.SVG, &dr.Status); err != nil {
			return nil, catvol.StoreErr("scan drawing", err)
		}
		dr.SkeletonID, dr.ComponentID = pointer(skeleton), pointer(component)
		dr.Type = catvol.DrawingType(drawingType)
		out = append(out, dr)
	}
	if err := rows.Err(); err != nil {
		return nil, catvol.StoreErr("scan drawing", err)
	}
	return out, nil
}

func (d *DB) InsertDrawing(ctx context.Context, dr *segment.Drawing) (int64, error) {
	return d.insert(ctx, d.db, `INSERT INTO drawing (project_id, stack_id, user_id, skeleton_id,
		component_id, z, min_x, min_y, max_x, max_y, type, svg, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dr.ProjectID, dr.StackID, dr.UserID, nullable(dr.SkeletonID), nullable(dr.ComponentID), dr.Z,
		dr.MinX, dr.MinY, dr.MaxX, dr.MaxY, int(dr.Type), dr.SVG, dr.Status)
}

func (d *DB) DeleteDrawing(ctx context.Context, id int64) error {
	res, err := d.exec(ctx, d.db, "DELETE FROM drawing WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return catvol.StoreErr("delete drawing", err)
	}
	if n == 0 {
		return catvol.NotFound("drawing %d", id)
	}
	return nil
}
