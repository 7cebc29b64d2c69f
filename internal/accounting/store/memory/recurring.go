package memory

import (
	"context"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/recurring"
)

func (t *tx) InsertTemplate(_ context.Context, tpl recurring.Template) (recurring.Template, error) {
	tpl.ID = t.st.nextID()
	lines := make([]recurring.TemplateLine, 0, len(tpl.Lines))
	for _, line := range tpl.Lines {
		line.ID = t.st.nextID()
		line.TemplateID = tpl.ID
		lines = append(lines, line)
	}
	tpl.Lines = lines
	t.st.templates[tpl.ID] = tpl
	return tpl, nil
}

func (t *tx) GetTemplate(_ context.Context, id int64) (recurring.Template, error) {
	tpl, ok := t.st.templates[id]
	if !ok {
		return recurring.Template{}, recurring.ErrTemplateNotFound
	}
	tpl.Lines = append([]recurring.TemplateLine(nil), tpl.Lines...)
	return tpl, nil
}

func (t *tx) GetTemplateForUpdate(ctx context.Context, id int64) (recurring.Template, error) {
	return t.GetTemplate(ctx, id)
}

func (t *tx) ListTemplates(_ context.Context, filter recurring.TemplateFilter) ([]recurring.Template, error) {
	out := make([]recurring.Template, 0, len(t.st.templates))
	for _, tpl := range t.st.templates {
		if filter.ActiveOnly && !tpl.IsActive {
			continue
		}
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) ListDueTemplates(_ context.Context, today time.Time) ([]recurring.Template, error) {
	var out []recurring.Template
	for _, tpl := range t.st.templates {
		if tpl.IsActive && !tpl.NextRunDate.After(today) {
			out = append(out, tpl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextRunDate.Equal(out[j].NextRunDate) {
			return out[i].NextRunDate.Before(out[j].NextRunDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) SetTemplateActive(_ context.Context, id int64, active bool, at time.Time) error {
	tpl, ok := t.st.templates[id]
	if !ok {
		return recurring.ErrTemplateNotFound
	}
	tpl.IsActive = active
	tpl.UpdatedAt = at
	t.st.templates[id] = tpl
	return nil
}

func (t *tx) InsertRun(_ context.Context, run recurring.Run) error {
	key := runKey{templateID: run.TemplateID, date: run.RunDate}
	if _, ok := t.st.runs[key]; ok {
		return recurring.ErrAlreadyGenerated
	}
	t.st.runs[key] = run
	return nil
}

func (t *tx) AdvanceTemplate(_ context.Context, adv recurring.Advance) (bool, error) {
	tpl, ok := t.st.templates[adv.TemplateID]
	if !ok {
		return false, recurring.ErrTemplateNotFound
	}
	if !tpl.NextRunDate.Equal(adv.ExpectedNext) {
		return false, nil
	}
	last := adv.LastRun
	tpl.LastRunDate = &last
	tpl.NextRunDate = adv.NextRun
	tpl.Occurrences = adv.Occurrences
	tpl.UpdatedAt = adv.At
	t.st.templates[tpl.ID] = tpl
	return true, nil
}
