package storage

import (
	"github.com/bytedance/sonic"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

const edmDouble = "Edm.Double"

type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

// taskEntity is the table row of a task. String columns are always written so a
// replace clears fields set to empty.
type taskEntity struct {
	entityKeys
	TaskNumber     string   `json:"TaskNumber"`
	Description    string   `json:"Description"`
	AssignedAgency string   `json:"AssignedAgency"`
	Priority       string   `json:"Priority"`
	AllocatedDate  string   `json:"AllocatedDate"`
	TimeGiven      string   `json:"TimeGiven"`
	DeadlineDate   string   `json:"DeadlineDate"`
	CompletionDate string   `json:"CompletionDate"`
	Status         string   `json:"Status"`
	ScheduledDate  string   `json:"ScheduledDate"`
	ScheduledTime  string   `json:"ScheduledTime"`
	Position       *float64 `json:"Position,omitempty"`
	PositionType   string   `json:"Position@odata.type,omitempty"`
	IsPinned       bool     `json:"IsPinned"`
	Remarks        string   `json:"Remarks"`
	Source         string   `json:"Source"`
}

func newTaskEntity(partition string, t domain.Task) taskEntity {
	ent := taskEntity{
		entityKeys:     entityKeys{PartitionKey: partition, RowKey: t.ID},
		TaskNumber:     t.TaskNumber,
		Description:    t.Description,
		AssignedAgency: t.AssignedAgency,
		Priority:       t.Priority,
		AllocatedDate:  t.AllocatedDate,
		TimeGiven:      t.TimeGiven,
		DeadlineDate:   t.DeadlineDate,
		CompletionDate: t.CompletionDate,
		Status:         string(t.Status),
		ScheduledDate:  t.ScheduledDate,
		ScheduledTime:  t.ScheduledTime,
		IsPinned:       t.IsPinned,
		Remarks:        t.Remarks,
		Source:         t.Source,
	}
	if t.Position != nil {
		p := *t.Position
		ent.Position = &p
		ent.PositionType = edmDouble
	}
	return ent
}

func (e taskEntity) task() domain.Task {
	return domain.Task{
		ID:             e.RowKey,
		TaskNumber:     e.TaskNumber,
		Description:    e.Description,
		AssignedAgency: e.AssignedAgency,
		Priority:       e.Priority,
		AllocatedDate:  e.AllocatedDate,
		TimeGiven:      e.TimeGiven,
		DeadlineDate:   e.DeadlineDate,
		CompletionDate: e.CompletionDate,
		Status:         domain.Status(e.Status),
		ScheduledDate:  e.ScheduledDate,
		ScheduledTime:  e.ScheduledTime,
		Position:       e.Position,
		IsPinned:       e.IsPinned,
		Remarks:        e.Remarks,
		Source:         e.Source,
	}
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	return ent.task(), nil
}
