package memory

import (
	"context"
	"sort"
	"time"

	"stakehub/internal/ledger"
)

// Referral commissions

// InsertReferralCommission records the legacy commission for a referred user.
func (t *tx) InsertReferralCommission(_ context.Context, c *ledger.ReferralCommission) error {
	for _, o := range t.s.commissions {
		if o.ReferredUserID == c.ReferredUserID {
			return &ledger.UniqueError{Constraint: ledger.ConstraintCommissionReferred}
		}
	}
	c.ID = t.s.nextID()
	cp := *c
	t.s.commissions[c.ID] = &cp
	return nil
}

// ListReferralCommissions returns the commissions earned by a referrer.
func (t *tx) ListReferralCommissions(_ context.Context, referrerID int64) ([]*ledger.ReferralCommission, error) {
	var out []*ledger.ReferralCommission
	for _, c := range t.s.commissions {
		if referrerID == 0 || c.ReferrerID == referrerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Activity

// AppendActivity appends an activity row.
func (t *tx) AppendActivity(_ context.Context, a *ledger.ActivityLog) error {
	a.ID = t.s.nextID()
	cp := *a
	t.s.activity = append(t.s.activity, &cp)
	return nil
}

// ListActivity returns activity rows newest first.
func (t *tx) ListActivity(_ context.Context, f ledger.ListFilter) ([]*ledger.ActivityLog, error) {
	var out []*ledger.ActivityLog
	for i := len(t.s.activity) - 1; i >= 0; i-- {
		a := t.s.activity[i]
		if f.UserID != 0 && (a.UserID == nil || *a.UserID != f.UserID) {
			continue
		}
		if f.Action != "" && a.Action != f.Action {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return page(out, f), nil
}

// Settings

// ListSettings returns every stored platform setting.
func (t *tx) ListSettings(_ context.Context) ([]*ledger.PlatformSetting, error) {
	out := make([]*ledger.PlatformSetting, 0, len(t.s.settings))
	for _, s := range t.s.settings {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// UpsertSetting inserts or replaces a platform setting.
func (t *tx) UpsertSetting(_ context.Context, s *ledger.PlatformSetting) error {
	cp := *s
	t.s.settings[s.Key] = &cp
	return nil
}

// Salary requests

// InsertSalaryRequest inserts a salary request and sets its ID.
func (t *tx) InsertSalaryRequest(_ context.Context, r *ledger.SalaryRequest) error {
	r.ID = t.s.nextID()
	cp := *r
	t.s.salary[r.ID] = &cp
	return nil
}

// GetSalaryRequestForUpdate returns a salary request and locks its row.
func (t *tx) GetSalaryRequestForUpdate(_ context.Context, id int64) (*ledger.SalaryRequest, error) {
	r, ok := t.s.salary[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// UpdateSalaryRequest stores the review outcome of a salary request.
func (t *tx) UpdateSalaryRequest(_ context.Context, r *ledger.SalaryRequest) error {
	cur, ok := t.s.salary[r.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	cur.Status = r.Status
	cur.TxHash = r.TxHash
	cur.AdminNotes = r.AdminNotes
	cur.ProcessedBy = r.ProcessedBy
	cur.ProcessedAt = r.ProcessedAt
	return nil
}

// HasSalaryRequestSince reports whether the user has a salary request created at or after since.
func (t *tx) HasSalaryRequestSince(_ context.Context, userID int64, since time.Time) (bool, error) {
	for _, r := range t.s.salary {
		if r.UserID == userID && !r.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// ListSalaryRequests returns salary requests newest first.
func (t *tx) ListSalaryRequests(_ context.Context, f ledger.ListFilter) ([]*ledger.SalaryRequest, error) {
	var out []*ledger.SalaryRequest
	for _, r := range t.s.salary {
		if (f.UserID != 0 && r.UserID != f.UserID) || (f.Status != "" && r.Status != f.Status) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f), nil
}

// Login attempts

// RecordLoginAttempt stores one password check.
func (t *tx) RecordLoginAttempt(_ context.Context, a *ledger.LoginAttempt) error {
	cp := *a
	t.s.logins = append(t.s.logins, &cp)
	return nil
}

// CountFailedLogins counts failed checks of a login at or after since.
func (t *tx) CountFailedLogins(_ context.Context, login string, since time.Time) (int, error) {
	n := 0
	for _, a := range t.s.logins {
		if a.Login == login && !a.Success && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
