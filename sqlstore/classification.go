package sqlstore

import (
	"context"
	"database/sql"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/classification"
)

var _ classification.Store = (*DB)(nil)

func (d *DB) Projects(ctx context.Context) ([]classification.Project, error) {
	rows, err := d.query(ctx, d.db, `
		SELECT p.id, p.title, t.id, t.name
		FROM project p
			LEFT OUTER JOIN project_tag pt ON pt.project_id = p.id
			LEFT OUTER JOIN tag t ON t.id = pt.tag_id
		ORDER BY p.id, t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []classification.Project
	for rows.Next() {
		var id int64
		var title string
		var tagID sql.NullInt64
		var tagName sql.NullString
		if err := rows.Scan(&id, &title, &tagID, &tagName); err != nil {
			return nil, catvol.StoreErr("scan project", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, classification.Project{ID: id, Title: title})
		}
		if tagID.Valid {
			p := &out[len(out)-1]
			p.Tags = append(p.Tags, classification.Tag{ID: tagID.Int64, Name: tagName.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, catvol.StoreErr("scan project", err)
	}
	return out, nil
}

func (d *DB) ClassificationRoots(ctx context.Context, workspace int64, projectIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64)
	if len(projectIDs) == 0 {
		return out, nil
	}
	cond, args := d.in("project_id", projectIDs)
	rows, err := d.query(ctx, d.db, `SELECT project_id, root_id FROM classification_link
		WHERE workspace_id = ? AND `+cond+` ORDER BY project_id, root_id`, append([]interface{}{workspace}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var pid, root int64
		if err := rows.Scan(&pid, &root); err != nil {
			return nil, catvol.StoreErr("scan classification link", err)
		}
		out[pid] = append(out[pid], root)
	}
	if err := rows.Err(); err != nil {
		return nil, catvol.StoreErr("scan classification link", err)
	}
	return out, nil
}

func (d *DB) LinkClassification(ctx context.Context, workspace, userID, projectID, rootID int64) error {
	var id int64
	err := d.db.QueryRowContext(ctx, d.rebind("SELECT id FROM class_instance WHERE id = ? AND project_id = ?"),
		rootID, workspace).Scan(&id)
	if err == sql.ErrNoRows {
		return catvol.NotFound("classification root %d in workspace %d", rootID, workspace)
	}
	if err != nil {
		return catvol.StoreErr("get classification root", err)
	}
	_, err = d.insert(ctx, d.db, `INSERT INTO classification_link (workspace_id, project_id, root_id, user_id)
		VALUES (?, ?, ?, ?)`, workspace, projectID, rootID, userID)
	return err
}
