// Package tasks keeps open windows grouped by application class.
//
// A Registry is a plain value owned by a single mutator; it does no locking
// of its own. See the feed package for the guarded, event-driven wrapper.
package tasks

import (
	"encoding/json"
	"fmt"
)

// Task is one open window.
type Task struct {
	Title string   `json:"title" yaml:"title"`
	ID    WindowID `json:"id" yaml:"id"`
}

// Group holds every task sharing a class, in arrival order.
type Group struct {
	Title string `json:"title" yaml:"title"`
	Class string `json:"class" yaml:"class"`
	Tasks []Task `json:"tasks" yaml:"tasks"`
}

// Registry is the ordered set of groups. Groups appear in the order their
// class was first seen and are never empty.
type Registry struct {
	groups []Group
}

// emptyDocument is what Serialize falls back to when encoding fails.
var emptyDocument = []byte("[]")

// marshal is swapped in tests to exercise the encoding fallback.
var marshal = json.Marshal

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Add records a window under its class. It reports false, leaving the
// registry untouched, when id is already tracked.
func (r *Registry) Add(id WindowID, class, title string) bool {
	return r.AddTitled(id, class, title, "")
}

// AddTitled is Add with an explicit title for the group, used only when the
// class is new. An empty groupTitle falls back to the task title.
func (r *Registry) AddTitled(id WindowID, class, title, groupTitle string) bool {
	if r.Contains(id) {
		return false
	}

	task := Task{Title: title, ID: id}
	for i := range r.groups {
		if r.groups[i].Class == class {
			r.groups[i].Tasks = append(r.groups[i].Tasks, task)
			return true
		}
	}

	if groupTitle == "" {
		groupTitle = title
	}
	r.groups = append(r.groups, Group{
		Title: groupTitle,
		Class: class,
		Tasks: []Task{task},
	})
	return true
}

// Remove drops every task with the given id and prunes groups left empty.
// Unknown ids are ignored. It reports whether anything was removed.
func (r *Registry) Remove(id WindowID) bool {
	removed := false
	kept := r.groups[:0]
	for _, g := range r.groups {
		tasks := g.Tasks[:0]
		for _, t := range g.Tasks {
			if t.ID == id {
				removed = true
				continue
			}
			tasks = append(tasks, t)
		}
		g.Tasks = tasks
		if len(g.Tasks) > 0 {
			kept = append(kept, g)
		}
	}
	// Clear the tail so pruned groups don't linger in the backing array.
	for i := len(kept); i < len(r.groups); i++ {
		r.groups[i] = Group{}
	}
	r.groups = kept
	return removed
}

// Rename sets the title of the task with the given id. When groupTitle is
// non-nil it also retitles the group containing that task, and no other.
// Unknown ids are ignored. It reports whether any title changed.
func (r *Registry) Rename(id WindowID, title string, groupTitle *string) bool {
	changed := false
	for gi := range r.groups {
		g := &r.groups[gi]
		found := false
		for ti := range g.Tasks {
			if g.Tasks[ti].ID != id {
				continue
			}
			found = true
			if g.Tasks[ti].Title != title {
				g.Tasks[ti].Title = title
				changed = true
			}
		}
		if found && groupTitle != nil && g.Title != *groupTitle {
			g.Title = *groupTitle
			changed = true
		}
	}
	return changed
}

// Contains reports whether id is tracked in any group.
func (r *Registry) Contains(id WindowID) bool {
	_, _, ok := r.Find(id)
	return ok
}

// Find returns the task with the given id and the class of its group.
func (r *Registry) Find(id WindowID) (Task, string, bool) {
	for _, g := range r.groups {
		for _, t := range g.Tasks {
			if t.ID == id {
				return t, g.Class, true
			}
		}
	}
	return Task{}, "", false
}

// Len returns the number of tracked tasks.
func (r *Registry) Len() int {
	n := 0
	for _, g := range r.groups {
		n += len(g.Tasks)
	}
	return n
}

// Groups returns a deep copy of the groups in registry order.
func (r *Registry) Groups() []Group {
	out := make([]Group, len(r.groups))
	for i, g := range r.groups {
		out[i] = Group{
			Title: g.Title,
			Class: g.Class,
			Tasks: append([]Task(nil), g.Tasks...),
		}
	}
	return out
}

// Encode renders the registry as a JSON array of groups. The empty registry
// encodes as [] rather than null.
func (r *Registry) Encode() ([]byte, error) {
	groups := r.groups
	if groups == nil {
		groups = []Group{}
	}
	data, err := marshal(groups)
	if err != nil {
		return nil, fmt.Errorf("encode task groups: %w", err)
	}
	return data, nil
}

// Serialize is Encode that never fails: on error it returns [].
func (r *Registry) Serialize() []byte {
	data, err := r.Encode()
	if err != nil {
		return append([]byte(nil), emptyDocument...)
	}
	return data
}

// Decode parses a serialized registry. Order is preserved as written; the
// grouping invariants are not re-checked.
func Decode(data []byte) (*Registry, error) {
	var groups []Group
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("decode task groups: %w", err)
	}
	for i := range groups {
		if groups[i].Tasks == nil {
			groups[i].Tasks = []Task{}
		}
	}
	return &Registry{groups: groups}, nil
}
