package domain

// Patch is a partial update of a task. Nil fields are left untouched; a non-nil
// pointer to an empty string clears the field.
type Patch struct {
	Description    *string  `json:"description,omitempty"`
	AssignedAgency *string  `json:"assigned_agency,omitempty"`
	Priority       *string  `json:"priority,omitempty"`
	AllocatedDate  *string  `json:"allocated_date,omitempty"`
	TimeGiven      *string  `json:"time_given,omitempty"`
	DeadlineDate   *string  `json:"deadline_date,omitempty"`
	CompletionDate *string  `json:"completion_date,omitempty"`
	Status         *Status  `json:"status,omitempty"`
	ScheduledDate  *string  `json:"scheduled_date,omitempty"`
	ScheduledTime  *string  `json:"scheduled_time,omitempty"`
	Position       *float64 `json:"position,omitempty"`
	IsPinned       *bool    `json:"is_pinned,omitempty"`
	Remarks        *string  `json:"remarks,omitempty"`
}

// BulkItem is one entry of a batch update: the task id plus the fields to change.
type BulkItem struct {
	ID string `json:"id"`
	Patch
}

// Str returns a pointer to s, for building patches inline.
func Str(s string) *string { return &s }

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Apply returns a copy of t with every set field of the patch written over it.
func (p Patch) Apply(t Task) Task {
	out := t.Clone()
	setString(&out.Description, p.Description)
	setString(&out.AssignedAgency, p.AssignedAgency)
	setString(&out.Priority, p.Priority)
	setString(&out.AllocatedDate, p.AllocatedDate)
	setString(&out.TimeGiven, p.TimeGiven)
	setString(&out.DeadlineDate, p.DeadlineDate)
	setString(&out.CompletionDate, p.CompletionDate)
	setString(&out.ScheduledDate, p.ScheduledDate)
	setString(&out.ScheduledTime, p.ScheduledTime)
	setString(&out.Remarks, p.Remarks)
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Position != nil {
		pos := *p.Position
		out.Position = &pos
	}
	if p.IsPinned != nil {
		out.IsPinned = *p.IsPinned
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
