package memory

import (
	"context"
	"sort"
	"time"

	"payoutledger/internal/model"
)

type projectRepo struct {
	s *session
}

func completionKey(employeeID, itemID string) string {
	return employeeID + "/" + itemID
}

func (r *projectRepo) Create(ctx context.Context, p *model.Project, items []*model.WorkItem) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.projects[p.ID]; ok {
			return duplicate("project.Create")
		}
		seen := make(map[int]bool, len(items))
		for _, item := range items {
			if seen[item.SequenceIndex] {
				return duplicate("project.CreateItems")
			}
			if _, ok := st.items[item.ID]; ok {
				return duplicate("project.CreateItems")
			}
			seen[item.SequenceIndex] = true
		}

		now := r.s.now()
		p.CreatedAt = now
		p.UpdatedAt = now
		st.projects[p.ID] = *p
		for _, item := range items {
			item.CreatedAt = now
			st.items[item.ID] = *item
		}
		return nil
	})
}

func (r *projectRepo) get(op, id string) (*model.Project, error) {
	var out *model.Project
	err := r.s.read(func(st *state) error {
		p, ok := st.projects[id]
		if !ok {
			return notFound(op)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *projectRepo) GetByID(_ context.Context, id string) (*model.Project, error) {
	return r.get("project.GetByID", id)
}

func (r *projectRepo) GetByIDForUpdate(_ context.Context, id string) (*model.Project, error) {
	return r.get("project.GetByIDForUpdate", id)
}

func (r *projectRepo) Save(ctx context.Context, p *model.Project) error {
	return r.s.write(ctx, func(st *state) error {
		p.UpdatedAt = r.s.now()
		st.projects[p.ID] = *p
		return nil
	})
}

func (r *projectRepo) FinalizeIfOpen(ctx context.Context, id string, at time.Time) (bool, error) {
	updated := false
	err := r.s.write(ctx, func(st *state) error {
		p, ok := st.projects[id]
		if !ok || p.IsFinalized {
			return nil
		}
		p.IsFinalized = true
		p.Status = model.ProjectStatusFinalizedPendingReview
		p.FinalizedAt = &at
		p.UpdatedAt = r.s.now()
		st.projects[id] = p
		updated = true
		return nil
	})
	return updated, err
}

func (r *projectRepo) filter(keep func(p *model.Project) bool) ([]*model.Project, error) {
	var out []*model.Project
	err := r.s.read(func(st *state) error {
		for _, p := range st.projects {
			p := p
			if keep(&p) {
				out = append(out, &p)
			}
		}
		return nil
	})
	return out, err
}

func (r *projectRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]*model.Project, error) {
	out, err := r.filter(func(p *model.Project) bool {
		return !p.IsFinalized && p.Deadline != nil && p.Deadline.Before(now)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Deadline.Before(*out[j].Deadline)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *projectRepo) ListPendingReview(_ context.Context) ([]*model.Project, error) {
	out, err := r.filter(func(p *model.Project) bool {
		return p.IsFinalized && !p.IsApproved && p.Status != model.ProjectStatusRejected
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return timeOrZero(out[i].FinalizedAt).Before(timeOrZero(out[j].FinalizedAt))
	})
	return out, nil
}

func (r *projectRepo) ListByAssignee(_ context.Context, employeeID string) ([]*model.Project, error) {
	out, err := r.filter(func(p *model.Project) bool {
		return p.IsAssignedTo(employeeID)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return timeOrZero(out[i].AssignedAt).After(timeOrZero(out[j].AssignedAt))
	})
	return out, nil
}

func (r *projectRepo) List(_ context.Context, status string, limit int) ([]*model.Project, error) {
	out, err := r.filter(func(p *model.Project) bool {
		return status == "" || p.Status == status
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func (r *projectRepo) ListItems(_ context.Context, projectID string) ([]*model.WorkItem, error) {
	var out []*model.WorkItem
	err := r.s.read(func(st *state) error {
		out = itemsOf(st, projectID)
		return nil
	})
	return out, err
}

func itemsOf(st *state, projectID string) []*model.WorkItem {
	var out []*model.WorkItem
	for _, item := range st.items {
		if item.ProjectID == projectID {
			item := item
			out = append(out, &item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SequenceIndex < out[j].SequenceIndex
	})
	return out
}

func (r *projectRepo) GetItem(_ context.Context, itemID string) (*model.WorkItem, error) {
	var out *model.WorkItem
	err := r.s.read(func(st *state) error {
		item, ok := st.items[itemID]
		if !ok {
			return notFound("project.GetItem")
		}
		out = &item
		return nil
	})
	return out, err
}

func (r *projectRepo) GetItemBySequence(_ context.Context, projectID string, sequence int) (*model.WorkItem, error) {
	var out *model.WorkItem
	err := r.s.read(func(st *state) error {
		for _, item := range itemsOf(st, projectID) {
			if item.SequenceIndex == sequence {
				out = item
				return nil
			}
		}
		return notFound("project.GetItemBySequence")
	})
	return out, err
}

func (r *projectRepo) NextUncompletedItem(_ context.Context, projectID, employeeID string) (*model.WorkItem, error) {
	var out *model.WorkItem
	err := r.s.read(func(st *state) error {
		for _, item := range itemsOf(st, projectID) {
			if _, done := st.completions[completionKey(employeeID, item.ID)]; !done {
				out = item
				return nil
			}
		}
		return notFound("project.NextUncompletedItem")
	})
	return out, err
}

func (r *projectRepo) CountItems(_ context.Context, projectID string) (int64, error) {
	var count int64
	err := r.s.read(func(st *state) error {
		for _, item := range st.items {
			if item.ProjectID == projectID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *projectRepo) CountItemsByProject(_ context.Context, projectIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(projectIDs))
	err := r.s.read(func(st *state) error {
		wanted := idSet(projectIDs)
		for _, item := range st.items {
			if wanted[item.ProjectID] {
				counts[item.ProjectID]++
			}
		}
		return nil
	})
	return counts, err
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (r *projectRepo) UpsertCompletion(ctx context.Context, c *model.Completion) error {
	return r.s.write(ctx, func(st *state) error {
		key := completionKey(c.EmployeeID, c.WorkItemID)
		if existing, ok := st.completions[key]; ok {
			existing.Payload = c.Payload
			existing.Status = c.Status
			existing.SubmittedAt = c.SubmittedAt
			st.completions[key] = existing
			return nil
		}
		c.CreatedAt = r.s.now()
		st.completions[key] = *c
		return nil
	})
}

func (r *projectRepo) GetCompletion(_ context.Context, employeeID, workItemID string) (*model.Completion, error) {
	var out *model.Completion
	err := r.s.read(func(st *state) error {
		c, ok := st.completions[completionKey(employeeID, workItemID)]
		if !ok {
			return notFound("project.GetCompletion")
		}
		out = &c
		return nil
	})
	return out, err
}

func (r *projectRepo) CountCompletionsByProject(_ context.Context, projectIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(projectIDs))
	err := r.s.read(func(st *state) error {
		wanted := idSet(projectIDs)
		for _, c := range st.completions {
			if wanted[c.ProjectID] {
				counts[c.ProjectID]++
			}
		}
		return nil
	})
	return counts, err
}

func (r *projectRepo) CountCompletions(_ context.Context, projectID, employeeID string) (int64, error) {
	var count int64
	err := r.s.read(func(st *state) error {
		for _, c := range st.completions {
			if c.ProjectID == projectID && c.EmployeeID == employeeID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *projectRepo) ListCompletions(_ context.Context, projectID string) ([]*model.Completion, error) {
	var out []*model.Completion
	err := r.s.read(func(st *state) error {
		for _, c := range st.completions {
			if c.ProjectID == projectID {
				c := c
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}
