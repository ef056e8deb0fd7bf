/*
	Package classification finds groups of projects sharing a tag set whose linked
	classification graphs disagree, and links the missing graphs.

	A project's classification roots are the roots of the classification graphs
	linked to it within an ontology workspace.  Inside a tag group every project is
	expected to be linked to every root any (non-superset) member is linked to.
*/
package classification

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/janelia-flyem/catvol/catvol"
)

// Tag is a project tag.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Project is a project with its tags.
type Project struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Tags  []Tag  `json:"tags"`
}

// Store reads projects and classification links and creates new links.
type Store interface {
	Projects(ctx context.Context) ([]Project, error)

	// ClassificationRoots returns the classification roots linked to each project
	// within the workspace.
	ClassificationRoots(ctx context.Context, workspace int64, projectIDs []int64) (map[int64][]int64, error)

	// LinkClassification links an existing classification root to a project.
	LinkClassification(ctx context.Context, workspace, userID, projectID, rootID int64) error
}

// Options controls grouping.  AddSupersets adds projects whose tag set strictly
// contains a group's tag set to that group.  RespectSupersetGraphs lets roots linked
// only by those superset projects count as expected for the whole group.
type Options struct {
	AddSupersets          bool `json:"add_supersets"`
	RespectSupersetGraphs bool `json:"respect_superset_graphs"`
}

// ProjectRoots is one member of a tag group.
type ProjectRoots struct {
	ProjectID int64   `json:"project_id"`
	Linked    []int64 `json:"linked"`
	Missing   []int64 `json:"missing"`
	Superset  bool    `json:"superset"`
}

// TagGroup is a set of projects sharing a tag set in which at least one project is
// missing a classification root.
type TagGroup struct {
	Name         string         `json:"name"`
	Workspace    int64          `json:"workspace"`
	Projects     []ProjectRoots `json:"projects"`
	AllRoots     []int64        `json:"all_roots"`
	NumDiffering int            `json:"num_differing"`
	Meta         []string       `json:"meta"`
}

// Description returns the name together with a summary of differing projects.
func (g *TagGroup) Description() string {
	return fmt.Sprintf("%s (%d/%d differ: %s)", g.Name, g.NumDiffering, len(g.Projects), strings.Join(g.Meta, ", "))
}

type tagSet struct {
	name     string
	ids      map[int64]bool
	projects []int64
}

func newTagSet(tags []Tag) (key string, set *tagSet) {
	sorted := append([]Tag(nil), tags...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	set = &tagSet{ids: make(map[int64]bool, len(sorted))}
	keys := make([]string, 0, len(sorted))
	names := make([]string, 0, len(sorted))
	for _, t := range sorted {
		if set.ids[t.ID] {
			continue
		}
		set.ids[t.ID] = true
		keys = append(keys, strconv.FormatInt(t.ID, 10))
		names = append(names, t.Name)
	}
	set.name = strings.Join(names, ", ")
	return strings.Join(keys, ","), set
}

// strictSubset returns true if a is a proper subset of b.
func (a *tagSet) strictSubset(b *tagSet) bool {
	if len(a.ids) >= len(b.ids) {
		return false
	}
	for id := range a.ids {
		if !b.ids[id] {
			return false
		}
	}
	return true
}

// TagGroups returns the tag groups with non-uniform classification links, sorted by
// name.  Projects without tags are ignored.
func TagGroups(ctx context.Context, store Store, workspace int64, opts Options) ([]TagGroup, error) {
	projects, err := store.Projects(ctx)
	if err != nil {
		return nil, err
	}
	sets := make(map[string]*tagSet)
	projectIDs := make([]int64, 0, len(projects))
	for _, p := range projects {
		projectIDs = append(projectIDs, p.ID)
		if len(p.Tags) == 0 {
			continue
		}
		key, set := newTagSet(p.Tags)
		if existing, found := sets[key]; found {
			set = existing
		} else {
			sets[key] = set
		}
		set.projects = append(set.projects, p.ID)
	}
	links, err := store.ClassificationRoots(ctx, workspace, projectIDs)
	if err != nil {
		return nil, err
	}

	var groups []TagGroup
	for _, set := range sets {
		members := make(map[int64]bool)
		for _, pid := range set.projects {
			members[pid] = false
		}
		if opts.AddSupersets {
			for _, other := range sets {
				if set.strictSubset(other) {
					for _, pid := range other.projects {
						members[pid] = true
					}
				}
			}
		}
		if group := compare(set.name, workspace, members, links, opts.RespectSupersetGraphs); group != nil {
			groups = append(groups, *group)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	catvol.Debugf("Found %d differing tag groups among %d tag sets\n", len(groups), len(sets))
	return groups, nil
}

// compare returns the group for a membership map of project id to superset flag, or
// nil if all members are linked to the same roots.
func compare(name string, workspace int64, members map[int64]bool, links map[int64][]int64, respectSupersets bool) *TagGroup {
	expected := make(map[int64]bool)
	for pid, superset := range members {
		if !superset || respectSupersets {
			for _, root := range links[pid] {
				expected[root] = true
			}
		}
	}
	group := &TagGroup{Name: name, Workspace: workspace, AllRoots: sortedKeys(expected)}
	for pid, superset := range members {
		linked := make(map[int64]bool)
		for _, root := range links[pid] {
			linked[root] = true
		}
		pr := ProjectRoots{ProjectID: pid, Linked: sortedKeys(linked), Superset: superset}
		for _, root := range group.AllRoots {
			if !linked[root] {
				pr.Missing = append(pr.Missing, root)
			}
		}
		group.Projects = append(group.Projects, pr)
	}
	sort.Slice(group.Projects, func(i, j int) bool { return group.Projects[i].ProjectID < group.Projects[j].ProjectID })
	for _, pr := range group.Projects {
		if len(pr.Missing) == 0 {
			continue
		}
		group.NumDiffering++
		missing := make([]string, len(pr.Missing))
		for i, root := range pr.Missing {
			missing[i] = strconv.FormatInt(root, 10)
		}
		group.Meta = append(group.Meta, fmt.Sprintf("[PID: %d Missing: %s]", pr.ProjectID, strings.Join(missing, ", ")))
	}
	if group.NumDiffering == 0 {
		return nil
	}
	return group
}

func sortedKeys(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ApplyLinks links every missing root of the given groups.  It returns the number of
// links created.  Failed links do not stop the batch; they are returned together in
// a *catvol.PartialFailure keyed by root id.
func ApplyLinks(ctx context.Context, store Store, userID int64, groups []TagGroup) (int, error) {
	failures := &catvol.PartialFailure{}
	for _, g := range groups {
		for _, pr := range g.Projects {
			for _, root := range pr.Missing {
				if err := store.LinkClassification(ctx, g.Workspace, userID, pr.ProjectID, root); err != nil {
					catvol.Warningf("Couldn't link classification %d to project %d: %v\n", root, pr.ProjectID, err)
					failures.Add(root, err)
					continue
				}
				failures.Succeeded++
			}
		}
	}
	catvol.Infof("Linked %d classification graphs, %d failed\n", failures.Succeeded, len(failures.Failures))
	return failures.Succeeded, failures.OrNil()
}

// Select returns the groups with the given names.  Unknown names are a ValidationError.
func Select(groups []TagGroup, names []string) ([]TagGroup, error) {
	byName := make(map[string]TagGroup, len(groups))
	for _, g := range groups {
		byName[g.Name] = g
	}
	selected := make([]TagGroup, 0, len(names))
	for _, name := range names {
		g, found := byName[name]
		if !found {
			return nil, catvol.Invalid("tag_groups", "unknown tag group %q", name)
		}
		selected = append(selected, g)
	}
	return selected, nil
}
