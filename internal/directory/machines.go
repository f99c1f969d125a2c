package directory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/notify"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
)

// MachineRequest is the full set of editable machine fields.
type MachineRequest struct {
	Name          string `json:"name"`
	Size          string `json:"size"`
	Capacity      *int   `json:"capacity"`
	Description   string `json:"description"`
	AvailableDays *int   `json:"available_days"`
}

func (r MachineRequest) validate() error {
	v := common.NewValidator().
		Field("name", strings.TrimSpace(r.Name), common.Required, common.MaxLength(200)).
		Field("capacity", r.Capacity, common.NonNegative).
		Field("available_days", r.AvailableDays, common.NonNegative)
	return common.ValidateAndReturnError(v)
}

// MachineService handles the machine register.
type MachineService struct {
	machines  repository.MachineRepository
	publisher notify.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewMachineService(machines repository.MachineRepository, publisher notify.Publisher, logger *slog.Logger) *MachineService {
	return &MachineService{machines: machines, publisher: publisher, logger: logger, now: time.Now}
}

func (s *MachineService) ListMachines(ctx context.Context) ([]*entity.Machine, error) {
	return s.machines.List(ctx)
}

func (s *MachineService) GetMachine(ctx context.Context, id string) (*entity.Machine, error) {
	return s.machines.GetByID(ctx, id)
}

func (s *MachineService) CreateMachine(ctx context.Context, req MachineRequest) (*entity.Machine, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	m := &entity.Machine{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(req.Name),
		Size:          strings.TrimSpace(req.Size),
		Capacity:      req.Capacity,
		Description:   strings.TrimSpace(req.Description),
		AvailableDays: req.AvailableDays,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.machines.Create(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("machine created", "machine_id", m.ID, "name", m.Name)
	notify.PublishQuietly(ctx, s.publisher, s.logger, notify.Event{Topic: notify.TopicMachines, Op: notify.OpInsert, Key: m.ID})
	return m, nil
}

// UpdateMachine replaces every editable field of the machine.
func (s *MachineService) UpdateMachine(ctx context.Context, id string, req MachineRequest) (*entity.Machine, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	current, err := s.machines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	current.Name = strings.TrimSpace(req.Name)
	current.Size = strings.TrimSpace(req.Size)
	current.Capacity = req.Capacity
	current.Description = strings.TrimSpace(req.Description)
	current.AvailableDays = req.AvailableDays
	current.UpdatedAt = s.now().UTC()
	if err := s.machines.Update(ctx, current); err != nil {
		return nil, err
	}
	s.logger.Info("machine updated", "machine_id", id)
	notify.PublishQuietly(ctx, s.publisher, s.logger, notify.Event{Topic: notify.TopicMachines, Op: notify.OpUpdate, Key: id})
	return current, nil
}

func (s *MachineService) DeleteMachine(ctx context.Context, id string) error {
	if err := s.machines.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("machine deleted", "machine_id", id)
	notify.PublishQuietly(ctx, s.publisher, s.logger, notify.Event{Topic: notify.TopicMachines, Op: notify.OpDelete, Key: id})
	return nil
}
